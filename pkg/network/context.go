package network

import (
	"time"

	"github.com/openmmo/realmd/pkg/netmsg"
	"github.com/openmmo/realmd/pkg/protocol"
)

// ServerContext owns the process-wide networking state: the tick
// dispatcher, the shared output pool riding on it, the server RSA key
// and every service port. Everything that used to be reachable from
// anywhere lives here and is passed down explicitly.
type ServerContext struct {
	Dispatcher *Dispatcher
	Pool       *netmsg.OutputMessagePool
	RSA        *protocol.RSAKey

	ports []*ServicePort
}

// NewServerContext wires the dispatcher and pool together. The RSA key
// may be nil for deployments without handshake ports.
func NewServerContext(tick time.Duration, rsa *protocol.RSAKey) *ServerContext {
	d := NewDispatcher(tick)
	return &ServerContext{
		Dispatcher: d,
		Pool:       netmsg.NewOutputMessagePool(d),
		RSA:        rsa,
	}
}

// AddService registers a port. Ports start listening on Start, in
// registration order.
func (c *ServerContext) AddService(cfg ServiceConfig) *ServicePort {
	port := NewServicePort(cfg, c.Pool)
	c.ports = append(c.ports, port)
	return port
}

// Start launches the dispatcher and binds every registered port. On
// any bind failure the ports already started are stopped again.
func (c *ServerContext) Start() error {
	c.Dispatcher.Start()
	for i, port := range c.ports {
		if err := port.Start(); err != nil {
			for _, started := range c.ports[:i] {
				started.Stop()
			}
			c.Dispatcher.Stop()
			return err
		}
	}
	return nil
}

// Stop closes the listeners, flushes whatever output is still pending
// and halts the dispatcher.
func (c *ServerContext) Stop() {
	for _, port := range c.ports {
		port.Stop()
	}
	c.Pool.FlushAll()
	c.Dispatcher.Stop()
}
