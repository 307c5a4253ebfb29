package network

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmmo/realmd/pkg/metrics"
	"github.com/openmmo/realmd/pkg/netmsg"
	"github.com/openmmo/realmd/pkg/protocol"
)

// Conn wraps one accepted TCP connection. It owns the single reader
// goroutine that delimits frames and feeds them to the session, and it
// is the transport the session's encode pipeline writes back to.
type Conn struct {
	tcp     net.Conn
	timeout time.Duration
	raw     bool

	closeOnce sync.Once
	closed    atomic.Bool
}

func newConn(tcp net.Conn, timeout time.Duration, raw bool) *Conn {
	return &Conn{tcp: tcp, timeout: timeout, raw: raw}
}

// Send transmits one finished frame. Short writes surface as errors and
// close the session.
func (c *Conn) Send(frame []byte) error {
	if err := c.tcp.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	_, err := c.tcp.Write(frame)
	return err
}

// Close tears the socket down. Idempotent; the reader goroutine exits
// on the next read error.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.tcp.Close()
	})
}

// IsExpired reports whether the socket is already gone. The pool skips
// expired sessions instead of flushing into a dead connection.
func (c *Conn) IsExpired() bool {
	return c.closed.Load()
}

// RemoteAddr identifies the peer for logging.
func (c *Conn) RemoteAddr() string {
	return c.tcp.RemoteAddr().String()
}

// readLoop delimits frames and runs each through the session's decode
// pipeline. One buffer is reused for the whole connection. The read
// deadline doubles as the inactivity timeout: a client that goes quiet
// longer than the timeout is dropped.
func (c *Conn) readLoop(s *protocol.Session) {
	defer func() {
		s.Disconnect()
		c.Close()
	}()

	msg := netmsg.NewMessage()
	for {
		if err := c.tcp.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return
		}
		if _, err := io.ReadFull(c.tcp, msg.Buffer()[:netmsg.LengthHeaderSize]); err != nil {
			if err != io.EOF && !c.closed.Load() {
				s.Logger().Debug().Str("op", "read").Err(err).Msg("frame header read failed")
			}
			return
		}

		// Checksummed services frame in cipher blocks, raw services in
		// plain bytes.
		var bodyLen int
		if c.raw {
			bodyLen = int(msg.LengthHeader())
		} else {
			bodyLen = msg.DecodeHeader()
		}
		if bodyLen <= 0 || bodyLen > netmsg.MaxBodyLength {
			metrics.ProtocolViolations.Inc()
			s.Logger().Warn().Str("op", "read").Int("length", bodyLen).Msg("frame length out of range")
			return
		}

		msg.Reset()
		body := msg.Buffer()[netmsg.LengthHeaderSize : netmsg.LengthHeaderSize+bodyLen]
		if _, err := io.ReadFull(c.tcp, body); err != nil {
			if !c.closed.Load() {
				s.Logger().Debug().Str("op", "read").Err(err).Msg("frame body read failed")
			}
			return
		}
		msg.SetLength(bodyLen)
		msg.SetBufferPosition(netmsg.LengthHeaderSize)

		if !s.OnRecvMessage(msg) {
			return
		}
	}
}
