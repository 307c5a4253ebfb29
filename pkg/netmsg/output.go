package netmsg

import "encoding/binary"

// OutputMessage specializes NetworkMessage for replies. Application
// writes grow the payload forward from offset 7; the finalize-time
// headers (padding count, checksum, block length) are prepended
// backward into the 7-byte reserve, because only once all writes are
// done is the payload length known.
type OutputMessage struct {
	NetworkMessage
	// headerPos marks the start of the finished frame. It begins at
	// HeaderLength and only ever decrements as headers are prepended.
	headerPos int
}

// NewOutputMessage returns a reset output buffer. Production code
// acquires these from an OutputMessagePool instead.
func NewOutputMessage() *OutputMessage {
	m := &OutputMessage{}
	m.Reset()
	return m
}

// Reset rewinds the buffer and restores the full header reserve.
func (m *OutputMessage) Reset() {
	m.NetworkMessage.Reset()
	m.headerPos = HeaderLength
}

// prependHeader grows the frame backward into the reserve. The reserve
// is sized to exactly fit length+checksum+padding-count; running out
// of it is a programming error, never a network condition.
func (m *OutputMessage) prependHeader(b []byte) {
	if m.headerPos < len(b) {
		logger.Error().Str("op", "prependHeader").Int("size", len(b)).Int("headerPos", m.headerPos).Msg("header reserve exhausted")
		panic("netmsg: header reserve exhausted")
	}
	m.headerPos -= len(b)
	copy(m.buf[m.headerPos:], b)
	m.length += len(b)
}

func (m *OutputMessage) prependByte(v uint8) {
	m.prependHeader([]byte{v})
}

func (m *OutputMessage) prependUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	m.prependHeader(b[:])
}

func (m *OutputMessage) prependUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.prependHeader(b[:])
}

// WritePaddingAmount pads the payload out to the cipher block size:
// enough filler that padding-count byte + filler + payload land on an
// 8-byte boundary, then the count byte itself in front.
func (m *OutputMessage) WritePaddingAmount() {
	padding := 8 - m.length%8 - 1
	m.AddPaddingBytes(padding)
	m.prependByte(uint8(padding))
}

// WriteMessageLength prepends the 2-byte block-length field:
// (length - 4) / 8, the cipher block count of the encrypted region.
// The 4 checksum bytes sit outside that accounting but inside the
// final frame.
func (m *OutputMessage) WriteMessageLength() {
	m.prependUint16(uint16((m.length - ChecksumSize) / 8))
}

// WriteRawLength prepends a plain byte count instead of a block count.
// Raw services (no checksum, no cipher) frame this way.
func (m *OutputMessage) WriteRawLength() {
	m.prependUint16(uint16(m.length))
}

// AddCryptoHeader prepends the checksum/sequence field when enabled,
// then always the block-length field.
func (m *OutputMessage) AddCryptoHeader(addChecksum bool, checksum uint32) {
	if addChecksum {
		m.prependUint32(checksum)
	}
	m.WriteMessageLength()
}

// Frame returns the finished byte range, headers included, ready for
// socket transmission.
func (m *OutputMessage) Frame() []byte {
	return m.buf[m.headerPos : m.headerPos+m.length]
}

// AppendOutput copies only the payload region of an already-finalized
// message into this message's live write region.
func (m *OutputMessage) AppendOutput(other *OutputMessage) {
	m.Append(&other.NetworkMessage)
}
