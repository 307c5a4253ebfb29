package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmmo/realmd/pkg/metrics"
	"github.com/openmmo/realmd/pkg/netmsg"
	"github.com/openmmo/realmd/pkg/protocol"
)

// ServiceConfig describes one listening port and the protocol variants
// it speaks.
type ServiceConfig struct {
	// Name tags the port in logs ("login", "game", "status").
	Name string
	// Addr is the listen address, host:port.
	Addr string
	// ConnTimeout is the per-connection inactivity limit.
	ConnTimeout time.Duration
	// Options seeds every session accepted on this port.
	Options protocol.Options
	// Registry maps first-frame identifiers to variants. Ignored when
	// PreBind is set.
	Registry *protocol.Registry
	// PreBind fixes the port's sole variant at accept time, before the
	// client's first frame. Used by ports that greet with a challenge.
	PreBind protocol.HandlerFactory
}

// ServicePort accepts connections on one address and hands each a
// fresh protocol session.
type ServicePort struct {
	cfg    ServiceConfig
	pool   *netmsg.OutputMessagePool
	logger zerolog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServicePort builds a port over the shared output pool. Call Start
// to begin accepting.
func NewServicePort(cfg ServiceConfig, pool *netmsg.OutputMessagePool) *ServicePort {
	return &ServicePort{
		cfg:    cfg,
		pool:   pool,
		logger: logger.With().Str("service", cfg.Name).Logger(),
	}
}

// Start binds the listen address and launches the accept loop.
func (p *ServicePort) Start() error {
	listener, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s on %s: %w", p.cfg.Name, p.cfg.Addr, err)
	}
	p.listener = listener
	p.logger.Info().Str("addr", p.cfg.Addr).Msg("service listening")

	p.wg.Add(1)
	go p.acceptLoop()
	return nil
}

// Stop closes the listener. Connections already accepted keep running
// until their sessions disconnect.
func (p *ServicePort) Stop() {
	if p.listener != nil {
		p.listener.Close()
	}
	p.wg.Wait()
}

func (p *ServicePort) acceptLoop() {
	defer p.wg.Done()
	for {
		tcp, err := p.listener.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return
		}
		metrics.ConnectionsAccepted.Inc()
		go p.handleConnection(tcp)
	}
}

func (p *ServicePort) handleConnection(tcp net.Conn) {
	conn := newConn(tcp, p.cfg.ConnTimeout, p.cfg.Options.RawMessages)

	session, err := protocol.NewSession(conn, p.pool, p.cfg.Registry, p.cfg.Options)
	if err != nil {
		p.logger.Error().Err(err).Msg("session setup failed")
		conn.Close()
		return
	}
	p.logger.Debug().Str("remote", conn.RemoteAddr()).Msg("connection accepted")

	if p.cfg.PreBind != nil {
		session.Negotiate(p.cfg.PreBind)
	}
	conn.readLoop(session)
}
