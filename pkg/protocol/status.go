package protocol

import (
	"time"

	"github.com/openmmo/realmd/pkg/netmsg"
)

// Protocol identifiers carried by the first byte of a session's first
// frame. The set is closed; anything else drops the connection.
const (
	ProtocolIDLogin  uint8 = 0x01
	ProtocolIDGame   uint8 = 0x0A
	ProtocolIDStatus uint8 = 0xFF
)

// ServerInfo is the static identity the status variant reports.
type ServerInfo struct {
	Name      string
	Version   string
	StartedAt time.Time
}

// statusHandler answers a single raw info request and hangs up. Status
// sessions run in raw-messages mode: no checksum, no cipher, plain
// byte-count framing.
type statusHandler struct {
	session *Session
	info    ServerInfo
}

// StatusVariant builds the status handler factory.
func StatusVariant(info ServerInfo) HandlerFactory {
	return func(s *Session) Handler {
		return &statusHandler{session: s, info: info}
	}
}

func (h *statusHandler) OnRecvFirstMessage(msg *netmsg.NetworkMessage) {
	// The identifier byte was the whole request; trailing option bytes
	// from newer clients are ignored.
	reply := h.session.Pool().Acquire()
	reply.AddString(h.info.Name)
	reply.AddString(h.info.Version)
	reply.AddUint32(uint32(time.Since(h.info.StartedAt).Seconds()))
	h.session.Send(reply)
	h.session.Disconnect()
}

func (h *statusHandler) ParsePacket(msg *netmsg.NetworkMessage) {
	// One request per connection.
	h.session.Disconnect()
}
