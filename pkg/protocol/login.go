package protocol

import "github.com/openmmo/realmd/pkg/netmsg"

// Authenticator verifies account credentials for the login and game
// variants and returns the account identifier.
type Authenticator interface {
	Authenticate(name, password string) (uint32, error)
}

// Login reply opcodes.
const (
	loginErrorOpcode  uint8 = 0x0A
	loginAcceptOpcode uint8 = 0x64
)

// loginHandler performs the one-shot login exchange: RSA-unwrapped
// XTEA key, credential check, encrypted reply, hang up.
type loginHandler struct {
	session *Session
	auth    Authenticator
}

// LoginVariant builds the login handler factory.
func LoginVariant(auth Authenticator) HandlerFactory {
	return func(s *Session) Handler {
		return &loginHandler{session: s, auth: auth}
	}
}

func (h *loginHandler) OnRecvFirstMessage(msg *netmsg.NetworkMessage) {
	s := h.session

	clientOS := msg.GetUint16()
	version := msg.GetUint16()

	if !s.RSADecrypt(msg) {
		s.Logger().Warn().Str("op", "login").Msg("handshake RSA decryption failed")
		s.Disconnect()
		return
	}

	var key [4]uint32
	for i := range key {
		key[i] = msg.GetUint32()
	}
	if err := s.SetXTEAKey(key); err != nil {
		s.Logger().Error().Str("op", "login").Err(err).Msg("rejected session key")
		s.Disconnect()
		return
	}
	s.EnableEncryption()

	name := msg.GetString()
	password := msg.GetString()
	if msg.IsOverrun() {
		s.Logger().Warn().Str("op", "login").Msg("truncated login payload")
		s.Disconnect()
		return
	}

	accountID, err := h.auth.Authenticate(name, password)
	if err != nil {
		s.Logger().Info().
			Str("op", "login").
			Str("account", name).
			Uint16("clientOS", clientOS).
			Uint16("version", version).
			Msg("login rejected")
		h.sendError("Account name or password is not correct.")
		return
	}

	reply := s.Pool().Acquire()
	reply.AddByte(loginAcceptOpcode)
	reply.AddUint32(accountID)
	s.Send(reply)
	s.Disconnect()
}

func (h *loginHandler) ParsePacket(msg *netmsg.NetworkMessage) {
	// Login is a single exchange; anything more is a client bug.
	h.session.Disconnect()
}

func (h *loginHandler) sendError(text string) {
	reply := h.session.Pool().Acquire()
	reply.AddByte(loginErrorOpcode)
	reply.AddString(text)
	h.session.Send(reply)
	h.session.Disconnect()
}
