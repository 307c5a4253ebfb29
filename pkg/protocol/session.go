package protocol

import (
	"hash/adler32"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"golang.org/x/crypto/xtea"

	"github.com/openmmo/realmd/pkg/metrics"
	"github.com/openmmo/realmd/pkg/netmsg"
)

// State is the session lifecycle. Closed is terminal.
type State uint32

const (
	StateAwaitingFirstMessage State = iota
	StateNegotiating
	StateActive
	StateClosed
)

// ChecksumMethod selects how the 4-byte frame header is verified.
type ChecksumMethod uint8

const (
	ChecksumNone ChecksumMethod = iota
	ChecksumAdler32
	ChecksumSequence
)

// sequenceCompressedFlag marks a compressed outgoing payload in the
// top bit of the sequence field. Compression therefore requires
// sequence mode.
const sequenceCompressedFlag = uint32(1) << 31

// Connection is the transport a session writes to. Socket I/O,
// timeouts and reconnection live behind it.
type Connection interface {
	// Send transmits a finished frame.
	Send(frame []byte) error
	// Close tears the transport down.
	Close()
	// IsExpired reports whether the connection is already gone.
	IsExpired() bool
	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}

// Handler interprets decoded application payloads for one protocol
// variant. Variants form a closed set selected by the first frame's
// protocol identifier.
type Handler interface {
	// OnRecvFirstMessage handles the first frame of a session.
	OnRecvFirstMessage(msg *netmsg.NetworkMessage)
	// ParsePacket handles every frame after the first.
	ParsePacket(msg *netmsg.NetworkMessage)
}

// ChallengeSender is implemented by variants that greet the client
// with a challenge before its first frame.
type ChallengeSender interface {
	SendLoginChallenge()
}

// HandlerFactory builds a variant's handler bound to a session.
type HandlerFactory func(s *Session) Handler

// Registry is the closed set of protocol variants a service port
// accepts, keyed by the identifier byte of the first frame. Built at
// startup, read-only afterwards.
type Registry struct {
	factories map[uint8]HandlerFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[uint8]HandlerFactory)}
}

func (r *Registry) Register(id uint8, f HandlerFactory) {
	r.factories[id] = f
}

func (r *Registry) factory(id uint8) HandlerFactory {
	return r.factories[id]
}

// Options carries the per-service scalars a session starts with.
type Options struct {
	Checksum             ChecksumMethod
	RawMessages          bool
	CompressionLevel     int // 0 disables the deflate stream entirely
	CompressionThreshold int
	RSA                  *RSAKey
}

// Session is the per-connection protocol state machine. It owns the
// cipher key, checksum mode and compression flag, and orchestrates the
// decode pipeline (checksum verify, decrypt, dispatch) and the encode
// pipeline (compress, pad, encrypt, checksum, frame).
//
// The decode path runs on the connection's single reader goroutine and
// is not internally synchronized. The output buffer is shared between
// application writers and the pool's scheduled flush; mu scopes that
// "append vs finalize-and-send" exclusion.
type Session struct {
	conn     Connection
	pool     *netmsg.OutputMessagePool
	registry *Registry
	rsa      *RSAKey
	logger   zerolog.Logger

	state atomic.Uint32

	mu     sync.Mutex
	output *netmsg.OutputMessage

	cipher            *xtea.Cipher
	encryptionEnabled bool
	rawMessages       bool
	checksumMethod    ChecksumMethod

	comp                 *compressor
	compressionEnabled   bool
	compressionThreshold int

	serverSequence uint32
	clientSequence uint32

	handler Handler
}

// NewSession binds a fresh session to an accepted connection. The pool
// is the shared server-wide output pool; the registry is the port's
// variant set.
func NewSession(conn Connection, pool *netmsg.OutputMessagePool, registry *Registry, opts Options) (*Session, error) {
	s := &Session{
		conn:                 conn,
		pool:                 pool,
		registry:             registry,
		rsa:                  opts.RSA,
		checksumMethod:       opts.Checksum,
		rawMessages:          opts.RawMessages,
		compressionThreshold: opts.CompressionThreshold,
		logger: log.With().
			Str("component", "protocol").
			Str("remote", conn.RemoteAddr()).
			Logger(),
	}
	if opts.CompressionLevel > 0 {
		comp, err := newCompressor(opts.CompressionLevel)
		if err != nil {
			return nil, err
		}
		s.comp = comp
	}
	metrics.ActiveSessions.Inc()
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(uint32(st))
}

// Negotiate pre-binds the port's sole variant and sends its login
// challenge ahead of the client's first frame.
func (s *Session) Negotiate(f HandlerFactory) {
	s.handler = f(s)
	s.setState(StateNegotiating)
	if cs, ok := s.handler.(ChallengeSender); ok {
		cs.SendLoginChallenge()
	}
}

// OnRecvMessage runs the decode pipeline over one complete frame as
// delivered by the connection: checksum verify, decrypt, strip
// padding, dispatch. Returns false once the session is closed.
func (s *Session) OnRecvMessage(msg *netmsg.NetworkMessage) bool {
	if s.State() == StateClosed {
		return false
	}

	if !s.rawMessages {
		if s.checksumMethod != ChecksumNone && !s.verifyChecksum(msg) {
			metrics.ChecksumFailures.Inc()
			s.logger.Warn().Str("op", "recv").Msg("checksum verification failed")
			s.Disconnect()
			return false
		}
		if s.encryptionEnabled && !s.decrypt(msg) {
			metrics.ProtocolViolations.Inc()
			s.logger.Warn().Str("op", "recv").Msg("payload not cipher-block aligned")
			s.Disconnect()
			return false
		}
		padding := int(msg.GetByte())
		if msg.IsOverrun() || padding > msg.Length() {
			metrics.ProtocolViolations.Inc()
			s.logger.Warn().Str("op", "recv").Int("padding", padding).Msg("invalid padding count")
			s.Disconnect()
			return false
		}
		msg.SetLength(msg.Length() - padding)
	}

	metrics.FramesIn.Inc()
	s.dispatch(msg)
	return s.State() != StateClosed
}

// verifyChecksum consumes the 4-byte header and checks it against the
// Adler-32 digest of the remaining body, or the expected client
// sequence counter.
func (s *Session) verifyChecksum(msg *netmsg.NetworkMessage) bool {
	recv := msg.GetUint32()
	if msg.IsOverrun() {
		return false
	}
	switch s.checksumMethod {
	case ChecksumAdler32:
		body := msg.Buffer()[msg.BufferPosition() : netmsg.LengthHeaderSize+msg.Length()]
		return adler32.Checksum(body) == recv
	case ChecksumSequence:
		expected := s.clientSequence
		s.clientSequence++
		return recv&^sequenceCompressedFlag == expected
	default:
		return true
	}
}

// decrypt runs XTEA in place over the body following the checksum
// field. The region must be a multiple of the 8-byte block size;
// anything else is corruption.
func (s *Session) decrypt(msg *netmsg.NetworkMessage) bool {
	if s.cipher == nil {
		return false
	}
	body := msg.Buffer()[msg.BufferPosition() : netmsg.LengthHeaderSize+msg.Length()]
	if len(body)%8 != 0 {
		return false
	}
	xteaTransform(s.cipher, body, false)
	return true
}

func (s *Session) dispatch(msg *netmsg.NetworkMessage) {
	switch s.State() {
	case StateAwaitingFirstMessage, StateNegotiating:
		if s.handler == nil {
			id := msg.GetByte()
			if msg.IsOverrun() {
				s.Disconnect()
				return
			}
			f := s.registry.factory(id)
			if f == nil {
				s.logger.Warn().Str("op", "dispatch").Uint8("protocolId", id).Msg("unknown protocol identifier")
				s.Disconnect()
				return
			}
			s.handler = f(s)
		}
		s.setState(StateActive)
		s.handler.OnRecvFirstMessage(msg)
	case StateActive:
		s.handler.ParsePacket(msg)
	}
}

// onSendMessage runs the encode pipeline: compress, pad, encrypt,
// checksum, length header. Caller holds mu.
func (s *Session) onSendMessage(msg *netmsg.OutputMessage) {
	if s.rawMessages {
		msg.WriteRawLength()
		return
	}

	compressed := false
	if s.compressionEnabled && s.comp != nil && msg.Length() > s.compressionThreshold {
		compressed = s.comp.compress(msg)
	}

	msg.WritePaddingAmount()
	if s.encryptionEnabled {
		xteaTransform(s.cipher, msg.Frame(), true)
	}

	switch s.checksumMethod {
	case ChecksumAdler32:
		msg.AddCryptoHeader(true, adler32.Checksum(msg.Frame()))
	case ChecksumSequence:
		seq := s.serverSequence
		s.serverSequence++
		if compressed {
			seq |= sequenceCompressedFlag
		}
		msg.AddCryptoHeader(true, seq)
	default:
		msg.AddCryptoHeader(false, 0)
	}
}

// Send finalizes and transmits a standalone message immediately,
// bypassing the batched buffer, then recycles it.
func (s *Session) Send(msg *netmsg.OutputMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(msg)
}

func (s *Session) sendLocked(msg *netmsg.OutputMessage) {
	if s.State() == StateClosed {
		s.pool.Release(msg)
		return
	}
	s.onSendMessage(msg)
	frame := msg.Frame()
	if err := s.conn.Send(frame); err != nil {
		s.logger.Warn().Str("op", "send").Err(err).Msg("connection write failed")
		s.closeLocked()
	} else {
		metrics.FramesOut.Inc()
		metrics.BytesOut.Add(float64(len(frame)))
	}
	s.pool.Release(msg)
}

// WriteOutput appends a reply of up to size bytes into the session's
// pending batched buffer and registers for the next scheduled flush.
// The build callback runs under the session lock: no byte range is
// transmitted while still being appended to.
func (s *Session) WriteOutput(size int, build func(msg *netmsg.OutputMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return
	}
	msg := s.outputBufferLocked(size)
	if msg == nil {
		return
	}
	build(msg)
	s.pool.RegisterForAutosend(s)
	s.pool.ScheduleFlushAll()
}

// outputBufferLocked returns the pending buffer, flushing it first
// when the requested write no longer fits. Returns nil when the
// inline flush failed and closed the session.
func (s *Session) outputBufferLocked(size int) *netmsg.OutputMessage {
	// Keep headroom for padding so finalize never overflows.
	const slack = 8
	if s.output == nil {
		s.output = s.pool.Acquire()
	} else if s.output.Length()+size > netmsg.MaxBodyLength-slack {
		flush := s.output
		s.output = s.pool.Acquire()
		s.sendLocked(flush)
		if s.State() == StateClosed {
			return nil
		}
	}
	return s.output
}

// FlushOutput finalizes and transmits the pending batched buffer. It
// is the pool's flush callback and a no-op once the session closed or
// nothing is pending.
func (s *Session) FlushOutput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed || s.output == nil || s.output.Length() == 0 {
		return
	}
	msg := s.output
	s.output = nil
	s.sendLocked(msg)
}

// ConnectionExpired reports whether the owning connection is gone.
func (s *Session) ConnectionExpired() bool {
	return s.conn.IsExpired()
}

// Disconnect closes the session irreversibly: pending output is
// recycled unsent, the connection is closed and the session leaves the
// autosend set. Every fatal protocol error funnels through here.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *Session) closeLocked() {
	if s.State() == StateClosed {
		return
	}
	s.setState(StateClosed)
	if s.output != nil {
		s.pool.Release(s.output)
		s.output = nil
	}
	s.pool.Unregister(s)
	s.conn.Close()
	metrics.ActiveSessions.Dec()
}

// SetXTEAKey installs the 128-bit session key extracted from the
// handshake. Set once; never rotated within a session.
func (s *Session) SetXTEAKey(key [4]uint32) error {
	block, err := newXTEABlock(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cipher = block
	s.mu.Unlock()
	return nil
}

// EnableEncryption turns on the XTEA pipeline for both directions.
func (s *Session) EnableEncryption() {
	s.mu.Lock()
	s.encryptionEnabled = true
	s.mu.Unlock()
}

// SetChecksumMethod switches the frame verification mode.
func (s *Session) SetChecksumMethod(m ChecksumMethod) {
	s.mu.Lock()
	s.checksumMethod = m
	s.mu.Unlock()
}

// EnableCompression turns on deflate for outgoing payloads above the
// configured threshold. Requires a compression level in Options.
func (s *Session) EnableCompression() {
	s.mu.Lock()
	if s.comp != nil {
		s.compressionEnabled = true
	}
	s.mu.Unlock()
}

// SetRawMessages bypasses framing for special low-level exchanges.
func (s *Session) SetRawMessages(raw bool) {
	s.mu.Lock()
	s.rawMessages = raw
	s.mu.Unlock()
}

// RSADecrypt unwraps the handshake key blob in place and leaves the
// cursor on the first plaintext byte after the mandatory zero. False
// means the handshake is invalid and the session must close.
func (s *Session) RSADecrypt(msg *netmsg.NetworkMessage) bool {
	if s.rsa == nil {
		return false
	}
	pos := msg.BufferPosition()
	remaining := netmsg.LengthHeaderSize + msg.Length() - pos
	if remaining < rsaBlockSize {
		return false
	}
	if err := s.rsa.decryptBlock(msg.Buffer()[pos : pos+rsaBlockSize]); err != nil {
		return false
	}
	return msg.GetByte() == 0
}

// Pool exposes the shared output pool to handlers that build
// standalone replies.
func (s *Session) Pool() *netmsg.OutputMessagePool {
	return s.pool
}

// Logger returns the session's structured log context.
func (s *Session) Logger() *zerolog.Logger {
	return &s.logger
}
