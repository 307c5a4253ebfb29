package netmsg

import (
	"math"
	"testing"
)

func TestUint16LittleEndianLayout(t *testing.T) {
	msg := NewMessage()
	msg.AddUint16(0x0102)

	if msg.Length() != 2 {
		t.Fatalf("length = %d, want 2", msg.Length())
	}
	buf := msg.Buffer()
	if buf[7] != 0x02 || buf[8] != 0x01 {
		t.Fatalf("layout = [%#x %#x], want [0x02 0x01]", buf[7], buf[8])
	}
}

func TestPrimitiveRoundTrip(t *testing.T) {
	msg := NewMessage()
	msg.AddByte(0xAB)
	msg.AddUint16(0xBEEF)
	msg.AddUint32(0xDEADBEEF)
	msg.AddUint64(0x0102030405060708)
	msg.AddString("knight")
	msg.AddPosition(Position{X: 100, Y: 200, Z: 7})

	msg.SetBufferPosition(HeaderLength)

	if got := msg.GetByte(); got != 0xAB {
		t.Errorf("GetByte = %#x, want 0xAB", got)
	}
	if got := msg.GetUint16(); got != 0xBEEF {
		t.Errorf("GetUint16 = %#x, want 0xBEEF", got)
	}
	if got := msg.GetUint32(); got != 0xDEADBEEF {
		t.Errorf("GetUint32 = %#x, want 0xDEADBEEF", got)
	}
	if got := msg.GetUint64(); got != 0x0102030405060708 {
		t.Errorf("GetUint64 = %#x", got)
	}
	if got := msg.GetString(); got != "knight" {
		t.Errorf("GetString = %q, want %q", got, "knight")
	}
	if got := msg.GetPosition(); got != (Position{X: 100, Y: 200, Z: 7}) {
		t.Errorf("GetPosition = %+v", got)
	}
	if msg.IsOverrun() {
		t.Fatal("overrun set after in-bounds reads")
	}
}

func TestDoubleFixedPointRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		precision uint8
	}{
		{"positive", 1234.5678, DefaultDoublePrecision},
		{"negative", -987.6543, DefaultDoublePrecision},
		{"zero", 0, DefaultDoublePrecision},
		{"coarse", 42.5, 1},
		{"small fraction", 0.0001, DefaultDoublePrecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewMessage()
			msg.AddDouble(tt.value, tt.precision)
			msg.SetBufferPosition(HeaderLength)

			got := msg.GetDouble()
			tolerance := math.Pow10(-int(tt.precision))
			if math.Abs(got-tt.value) > tolerance {
				t.Fatalf("GetDouble = %v, want %v within %v", got, tt.value, tolerance)
			}
		})
	}
}

func TestReadOverrunReturnsZeroValue(t *testing.T) {
	msg := NewMessage()
	msg.AddUint16(7) // two valid bytes only
	msg.SetBufferPosition(HeaderLength)

	if got := msg.GetUint32(); got != 0 {
		t.Fatalf("GetUint32 past payload = %#x, want 0", got)
	}
	if !msg.IsOverrun() {
		t.Fatal("overrun flag not set")
	}
	if msg.BufferPosition() != HeaderLength {
		t.Fatalf("cursor advanced past buffer edge: %d", msg.BufferPosition())
	}
}

func TestReadOverrunAtCapacityEdge(t *testing.T) {
	msg := NewMessage()
	msg.SetLength(MaxMessageSize)
	msg.SetBufferPosition(MaxMessageSize - 2)

	if got := msg.GetUint32(); got != 0 {
		t.Fatalf("GetUint32 at capacity edge = %#x, want 0", got)
	}
	if !msg.IsOverrun() {
		t.Fatal("overrun flag not set at capacity edge")
	}
}

func TestStringReadBeyondDeclaredLength(t *testing.T) {
	msg := NewMessage()
	msg.AddUint16(10) // prefix declares more bytes than follow
	msg.AddBytes([]byte("abc"))
	msg.SetBufferPosition(HeaderLength)

	if got := msg.GetString(); got != "" {
		t.Fatalf("GetString = %q, want empty", got)
	}
	if !msg.IsOverrun() {
		t.Fatal("overrun flag not set")
	}
}

func TestWriteOverflowLeavesBufferIntact(t *testing.T) {
	msg := NewMessage()
	msg.AddUint32(0xCAFEBABE)
	length := msg.Length()

	msg.SetBufferPosition(MaxMessageSize - 1)
	msg.AddUint32(0x11111111)

	if msg.Length() != length {
		t.Fatalf("length changed on overflowing write: %d", msg.Length())
	}
	msg.SetBufferPosition(HeaderLength)
	if got := msg.GetUint32(); got != 0xCAFEBABE {
		t.Fatalf("prior contents corrupted: %#x", got)
	}
}

func TestAppendNonDestructive(t *testing.T) {
	a := NewMessage()
	a.AddString("first")
	before := make([]byte, a.Length())
	copy(before, a.Body())

	b := NewMessage()
	b.AddBytes([]byte("xyz"))

	wantLen := a.Length() + b.Length()
	a.Append(b)

	if a.Length() != wantLen {
		t.Fatalf("length = %d, want %d", a.Length(), wantLen)
	}
	body := a.Body()
	for i, v := range before {
		if body[i] != v {
			t.Fatalf("byte %d altered by append: %#x != %#x", i, body[i], v)
		}
	}
	if got := string(body[len(before):]); got != "xyz" {
		t.Fatalf("appended payload = %q, want %q", got, "xyz")
	}
}

func TestSkipBytesAndPreviousByte(t *testing.T) {
	msg := NewMessage()
	msg.AddByte(0x01)
	msg.AddByte(0x02)
	msg.AddByte(0x03)
	msg.SetBufferPosition(HeaderLength)

	msg.SkipBytes(2)
	if got := msg.GetByte(); got != 0x03 {
		t.Fatalf("byte after skip = %#x, want 0x03", got)
	}
	if got := msg.GetPreviousByte(); got != 0x03 {
		t.Fatalf("previous byte = %#x, want 0x03", got)
	}
}

func TestDecodeHeader(t *testing.T) {
	msg := NewMessage()
	buf := msg.Buffer()
	buf[0] = 0x03 // three 8-byte blocks
	buf[1] = 0x00

	if got := msg.DecodeHeader(); got != 3*8+ChecksumSize {
		t.Fatalf("DecodeHeader = %d, want %d", got, 3*8+ChecksumSize)
	}
	if got := msg.LengthHeader(); got != 3 {
		t.Fatalf("LengthHeader = %d, want 3", got)
	}
}

func TestResetClearsState(t *testing.T) {
	msg := NewMessage()
	msg.AddUint64(1)
	msg.SetBufferPosition(MaxMessageSize)
	msg.GetByte() // force overrun

	msg.Reset()

	if msg.Length() != 0 || msg.BufferPosition() != HeaderLength || msg.IsOverrun() {
		t.Fatalf("reset state: length=%d position=%d overrun=%v",
			msg.Length(), msg.BufferPosition(), msg.IsOverrun())
	}
}
