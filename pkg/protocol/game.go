package protocol

import (
	"crypto/rand"
	"time"

	"github.com/openmmo/realmd/pkg/netmsg"
)

// Game packet opcodes, client and server side.
const (
	challengeOpcode uint8 = 0x1F
	welcomeOpcode   uint8 = 0x17
	pingOpcode      uint8 = 0x1D
	pongOpcode      uint8 = 0x1E
	logoutOpcode    uint8 = 0x14
	gameErrorOpcode uint8 = 0x14
)

// gameHandler runs the steady-state variant: challenge greeting, RSA
// handshake with challenge echo, then sequence-checksummed and
// optionally compressed packet exchange.
type gameHandler struct {
	session *Session
	auth    Authenticator

	challengeTimestamp uint32
	challengeRandom    uint8
}

// GameVariant builds the game handler factory. Game ports pre-bind the
// handler at accept time so the challenge reaches the client before
// its first frame.
func GameVariant(auth Authenticator) HandlerFactory {
	return func(s *Session) Handler {
		return &gameHandler{session: s, auth: auth}
	}
}

// SendLoginChallenge greets the accepted client with a plaintext
// challenge frame the handshake must echo back.
func (h *gameHandler) SendLoginChallenge() {
	h.challengeTimestamp = uint32(time.Now().Unix())
	var b [1]byte
	if _, err := rand.Read(b[:]); err == nil {
		h.challengeRandom = b[0]
	}

	msg := h.session.Pool().Acquire()
	msg.AddByte(challengeOpcode)
	msg.AddUint32(h.challengeTimestamp)
	msg.AddByte(h.challengeRandom)
	h.session.Send(msg)
}

func (h *gameHandler) OnRecvFirstMessage(msg *netmsg.NetworkMessage) {
	s := h.session

	// Pre-bound handler: the identifier byte is still in the payload.
	if id := msg.GetByte(); id != ProtocolIDGame {
		s.Logger().Warn().Str("op", "game").Uint8("protocolId", id).Msg("wrong protocol identifier")
		s.Disconnect()
		return
	}
	msg.SkipBytes(4) // client OS and version, unused here

	if !s.RSADecrypt(msg) {
		s.Logger().Warn().Str("op", "game").Msg("handshake RSA decryption failed")
		s.Disconnect()
		return
	}

	var key [4]uint32
	for i := range key {
		key[i] = msg.GetUint32()
	}
	if err := s.SetXTEAKey(key); err != nil {
		s.Logger().Error().Str("op", "game").Err(err).Msg("rejected session key")
		s.Disconnect()
		return
	}
	s.EnableEncryption()

	timestamp := msg.GetUint32()
	random := msg.GetByte()
	if timestamp != h.challengeTimestamp || random != h.challengeRandom {
		s.Logger().Warn().Str("op", "game").Msg("challenge echo mismatch")
		s.Disconnect()
		return
	}

	name := msg.GetString()
	password := msg.GetString()
	if msg.IsOverrun() {
		s.Disconnect()
		return
	}

	accountID, err := h.auth.Authenticate(name, password)
	if err != nil {
		reply := s.Pool().Acquire()
		reply.AddByte(gameErrorOpcode)
		reply.AddString("Account name or password is not correct.")
		s.Send(reply)
		s.Disconnect()
		return
	}

	// Steady state: counter-verified frames, deflate above threshold.
	s.SetChecksumMethod(ChecksumSequence)
	s.EnableCompression()

	s.WriteOutput(8, func(m *netmsg.OutputMessage) {
		m.AddByte(welcomeOpcode)
		m.AddUint32(accountID)
	})
}

func (h *gameHandler) ParsePacket(msg *netmsg.NetworkMessage) {
	opcode := msg.GetByte()
	if msg.IsOverrun() {
		h.session.Disconnect()
		return
	}
	switch opcode {
	case pingOpcode:
		h.session.WriteOutput(1, func(m *netmsg.OutputMessage) {
			m.AddByte(pongOpcode)
		})
	case logoutOpcode:
		h.session.Disconnect()
	default:
		h.session.Logger().Debug().Str("op", "game").Uint8("opcode", opcode).Msg("unhandled packet")
	}
}
