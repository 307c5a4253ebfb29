package netmsg

import (
	"encoding/binary"
	"math"

	"github.com/rs/zerolog/log"
)

// Protocol-wide buffer layout constants.
const (
	// MaxMessageSize is the protocol-wide maximum frame size. Frames
	// larger than this are a hard error.
	MaxMessageSize = 65500

	// LengthHeaderSize is the size of the leading block-length field.
	LengthHeaderSize = 2

	// ChecksumSize is the size of the checksum/sequence field.
	ChecksumSize = 4

	// HeaderLength is the reserved prefix: 2 bytes block length,
	// 4 bytes checksum, 1 byte padding count. Payload starts here.
	HeaderLength = 7

	// MaxBodyLength is the largest payload a single buffer can carry.
	MaxBodyLength = MaxMessageSize - HeaderLength

	// DefaultDoublePrecision is the decimal precision used by the
	// fixed-point double codec unless a caller picks its own.
	DefaultDoublePrecision = 4
)

// doubleBias recenters the fixed-point double encoding so negative
// values survive the unsigned wire field.
const doubleBias = math.MaxInt32

var logger = log.With().Str("component", "netmsg").Logger()

// Position is a world coordinate as it travels on the wire.
type Position struct {
	X uint16
	Y uint16
	Z uint8
}

// NetworkMessage is a fixed-capacity byte buffer with a read/write
// cursor. The same type backs incoming frames (read) and reply
// payloads (write, via OutputMessage).
type NetworkMessage struct {
	buf      [MaxMessageSize]byte
	length   int
	position int
	overrun  bool
}

// NewMessage returns a buffer with the cursor at the payload start.
func NewMessage() *NetworkMessage {
	return &NetworkMessage{position: HeaderLength}
}

// Reset rewinds the buffer to its initial state. Contents are left in
// place; only the bookkeeping is cleared.
func (m *NetworkMessage) Reset() {
	m.length = 0
	m.position = HeaderLength
	m.overrun = false
}

// canRead reports whether size more bytes may be read. On failure the
// overrun flag latches and the cursor stays put.
func (m *NetworkMessage) canRead(size int) bool {
	if m.position+size > len(m.buf) || m.position+size > HeaderLength+m.length {
		m.overrun = true
		return false
	}
	return true
}

// canAdd reports whether size more bytes fit behind the cursor.
func (m *NetworkMessage) canAdd(size int) bool {
	return m.position+size <= len(m.buf)
}

// DecodeHeader reads the 2-byte block-length field and returns the
// number of body bytes expected to follow it on the wire: the 4-byte
// checksum plus blockLength 8-byte cipher blocks. The connection uses
// this to delimit frames on checksummed services.
func (m *NetworkMessage) DecodeHeader() int {
	blocks := binary.LittleEndian.Uint16(m.buf[0:LengthHeaderSize])
	return int(blocks)*8 + ChecksumSize
}

// LengthHeader returns the raw 2-byte wire length field. Raw services
// frame with a plain byte count instead of a block count.
func (m *NetworkMessage) LengthHeader() uint16 {
	return binary.LittleEndian.Uint16(m.buf[0:LengthHeaderSize])
}

// GetByte reads one byte.
func (m *NetworkMessage) GetByte() uint8 {
	if !m.canRead(1) {
		return 0
	}
	b := m.buf[m.position]
	m.position++
	return b
}

// GetPreviousByte steps the cursor back one byte and returns it.
func (m *NetworkMessage) GetPreviousByte() uint8 {
	if m.position == 0 {
		m.overrun = true
		return 0
	}
	m.position--
	return m.buf[m.position]
}

// GetUint16 reads a little-endian uint16.
func (m *NetworkMessage) GetUint16() uint16 {
	if !m.canRead(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(m.buf[m.position:])
	m.position += 2
	return v
}

// GetUint32 reads a little-endian uint32.
func (m *NetworkMessage) GetUint32() uint32 {
	if !m.canRead(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(m.buf[m.position:])
	m.position += 4
	return v
}

// GetUint64 reads a little-endian uint64.
func (m *NetworkMessage) GetUint64() uint64 {
	if !m.canRead(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(m.buf[m.position:])
	m.position += 8
	return v
}

// GetString reads a 2-byte length prefix followed by that many bytes.
func (m *NetworkMessage) GetString() string {
	n := int(m.GetUint16())
	return m.GetFixedString(n)
}

// GetFixedString reads exactly n bytes as a string.
func (m *NetworkMessage) GetFixedString(n int) string {
	if !m.canRead(n) {
		return ""
	}
	s := string(m.buf[m.position : m.position+n])
	m.position += n
	return s
}

// GetPosition reads a world coordinate.
func (m *NetworkMessage) GetPosition() Position {
	return Position{
		X: m.GetUint16(),
		Y: m.GetUint16(),
		Z: m.GetByte(),
	}
}

// GetDouble reads a fixed-point double: one precision byte followed by
// a biased uint32.
func (m *NetworkMessage) GetDouble() float64 {
	precision := m.GetByte()
	v := int64(m.GetUint32()) - doubleBias
	return float64(v) / math.Pow10(int(precision))
}

// SkipBytes moves the cursor over count unused bytes. Negative counts
// rewind.
func (m *NetworkMessage) SkipBytes(count int) {
	m.position += count
}

// AddByte writes one byte.
func (m *NetworkMessage) AddByte(v uint8) {
	if !m.canAdd(1) {
		logger.Error().Str("op", "addByte").Int("position", m.position).Msg("write exceeds buffer capacity")
		return
	}
	m.buf[m.position] = v
	m.position++
	m.length++
}

// AddUint16 writes a little-endian uint16.
func (m *NetworkMessage) AddUint16(v uint16) {
	if !m.canAdd(2) {
		logger.Error().Str("op", "addUint16").Int("position", m.position).Msg("write exceeds buffer capacity")
		return
	}
	binary.LittleEndian.PutUint16(m.buf[m.position:], v)
	m.position += 2
	m.length += 2
}

// AddUint32 writes a little-endian uint32.
func (m *NetworkMessage) AddUint32(v uint32) {
	if !m.canAdd(4) {
		logger.Error().Str("op", "addUint32").Int("position", m.position).Msg("write exceeds buffer capacity")
		return
	}
	binary.LittleEndian.PutUint32(m.buf[m.position:], v)
	m.position += 4
	m.length += 4
}

// AddUint64 writes a little-endian uint64.
func (m *NetworkMessage) AddUint64(v uint64) {
	if !m.canAdd(8) {
		logger.Error().Str("op", "addUint64").Int("position", m.position).Msg("write exceeds buffer capacity")
		return
	}
	binary.LittleEndian.PutUint64(m.buf[m.position:], v)
	m.position += 8
	m.length += 8
}

// AddBytes writes a raw byte slice.
func (m *NetworkMessage) AddBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	if !m.canAdd(len(b)) {
		logger.Error().Str("op", "addBytes").Int("size", len(b)).Int("position", m.position).Msg("write exceeds buffer capacity")
		return
	}
	copy(m.buf[m.position:], b)
	m.position += len(b)
	m.length += len(b)
}

// AddString writes a 2-byte length prefix followed by the string bytes.
func (m *NetworkMessage) AddString(s string) {
	n := len(s)
	if n > math.MaxUint16 {
		logger.Error().Str("op", "addString").Int("size", n).Msg("string exceeds length prefix range")
		return
	}
	if !m.canAdd(2 + n) {
		logger.Error().Str("op", "addString").Int("size", n).Int("position", m.position).Msg("write exceeds buffer capacity")
		return
	}
	m.AddUint16(uint16(n))
	copy(m.buf[m.position:], s)
	m.position += n
	m.length += n
}

// AddPosition writes a world coordinate.
func (m *NetworkMessage) AddPosition(p Position) {
	m.AddUint16(p.X)
	m.AddUint16(p.Y)
	m.AddByte(p.Z)
}

// AddDouble writes a fixed-point double: one precision byte followed
// by round(v * 10^precision) shifted by the bias.
func (m *NetworkMessage) AddDouble(v float64, precision uint8) {
	m.AddByte(precision)
	scaled := int64(math.Round(v * math.Pow10(int(precision))))
	m.AddUint32(uint32(scaled + doubleBias))
}

// AddPaddingBytes appends n zero filler bytes.
func (m *NetworkMessage) AddPaddingBytes(n int) {
	if n <= 0 {
		return
	}
	if !m.canAdd(n) {
		logger.Error().Str("op", "addPaddingBytes").Int("size", n).Int("position", m.position).Msg("write exceeds buffer capacity")
		return
	}
	for i := 0; i < n; i++ {
		m.buf[m.position+i] = 0
	}
	m.position += n
	m.length += n
}

// Append copies other's payload (from the reserved-prefix offset, for
// other's length) at the cursor, advancing length and position. The
// caller guarantees capacity; buffers are always distinct.
func (m *NetworkMessage) Append(other *NetworkMessage) {
	n := other.length
	copy(m.buf[m.position:], other.buf[HeaderLength:HeaderLength+n])
	m.position += n
	m.length += n
}

// Length returns the number of valid payload bytes.
func (m *NetworkMessage) Length() int {
	return m.length
}

// SetLength overrides the valid payload byte count.
func (m *NetworkMessage) SetLength(n int) {
	m.length = n
}

// BufferPosition returns the cursor.
func (m *NetworkMessage) BufferPosition() int {
	return m.position
}

// SetBufferPosition moves the cursor.
func (m *NetworkMessage) SetBufferPosition(pos int) {
	m.position = pos
}

// IsOverrun reports whether any read ran past the valid payload. Once
// set, values read afterwards must not be trusted.
func (m *NetworkMessage) IsOverrun() bool {
	return m.overrun
}

// Buffer exposes the full backing array. The cipher and checksum
// transforms operate on sub-slices of it in place.
func (m *NetworkMessage) Buffer() []byte {
	return m.buf[:]
}

// Body returns the payload region, offset 7 through length.
func (m *NetworkMessage) Body() []byte {
	return m.buf[HeaderLength : HeaderLength+m.length]
}
