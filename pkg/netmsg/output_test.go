package netmsg

import (
	"bytes"
	"testing"
)

func TestPaddingInvariant(t *testing.T) {
	for payloadLen := 0; payloadLen <= 40; payloadLen++ {
		msg := NewOutputMessage()
		msg.AddPaddingBytes(payloadLen) // any payload of that size

		msg.WritePaddingAmount()

		padding := 8 - payloadLen%8 - 1
		if got := msg.Frame()[0]; int(got) != padding {
			t.Fatalf("L=%d: padding count = %d, want %d", payloadLen, got, padding)
		}
		if total := 1 + padding + payloadLen; total%8 != 0 {
			t.Fatalf("L=%d: padded region %d not 8-aligned", payloadLen, total)
		}
		if msg.Length()%8 != 0 {
			t.Fatalf("L=%d: message length %d not 8-aligned", payloadLen, msg.Length())
		}
	}
}

func TestUnencryptedFrameLayout(t *testing.T) {
	// A 4-byte payload pads out to one 8-byte region: count byte +
	// 3 filler + payload. Without a checksum the block-length field
	// computes to zero.
	msg := NewOutputMessage()
	msg.AddBytes([]byte("PING"))

	msg.WritePaddingAmount()
	msg.AddCryptoHeader(false, 0)

	frame := msg.Frame()
	want := []byte{0x00, 0x00, 0x03, 'P', 'I', 'N', 'G', 0x00, 0x00, 0x00}
	if !bytes.Equal(frame, want) {
		t.Fatalf("frame = % x, want % x", frame, want)
	}
}

func TestChecksummedFrameLayout(t *testing.T) {
	msg := NewOutputMessage()
	msg.AddBytes([]byte("PING"))

	msg.WritePaddingAmount()
	msg.AddCryptoHeader(true, 0xDEADBEEF)

	frame := msg.Frame()
	if len(frame) != 14 {
		t.Fatalf("frame length = %d, want 14", len(frame))
	}
	// offset 0..1: block count of the encrypted region, excluding the
	// 4 checksum bytes: (12 - 4) / 8 = 1.
	if frame[0] != 0x01 || frame[1] != 0x00 {
		t.Fatalf("block length = [% x], want [01 00]", frame[0:2])
	}
	// offset 2..5: checksum, little-endian.
	if !bytes.Equal(frame[2:6], []byte{0xEF, 0xBE, 0xAD, 0xDE}) {
		t.Fatalf("checksum bytes = [% x]", frame[2:6])
	}
	// offset 6: padding count; offset 7..: payload then filler.
	if frame[6] != 0x03 {
		t.Fatalf("padding count = %d, want 3", frame[6])
	}
	if !bytes.Equal(frame[7:11], []byte("PING")) {
		t.Fatalf("payload = %q", frame[7:11])
	}
}

func TestRawLengthHeader(t *testing.T) {
	msg := NewOutputMessage()
	msg.AddString("status")
	payloadLen := msg.Length()

	msg.WriteRawLength()

	frame := msg.Frame()
	if got := int(frame[0]) | int(frame[1])<<8; got != payloadLen {
		t.Fatalf("raw length = %d, want %d", got, payloadLen)
	}
	if len(frame) != payloadLen+2 {
		t.Fatalf("frame length = %d, want %d", len(frame), payloadLen+2)
	}
}

func TestHeaderReserveExhaustionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("prepending past the header reserve did not panic")
		}
	}()

	msg := NewOutputMessage()
	msg.AddByte(0x01)
	// 4 + 2 + 2 > 7: the third prepend violates the fixed budget.
	msg.AddCryptoHeader(true, 0)
	msg.WriteMessageLength()
}

func TestAppendOutputCopiesPayloadOnly(t *testing.T) {
	a := NewOutputMessage()
	a.AddBytes([]byte("reply-a:"))

	b := NewOutputMessage()
	b.AddBytes([]byte("reply-b"))

	a.AppendOutput(b)

	if a.Length() != len("reply-a:")+len("reply-b") {
		t.Fatalf("length = %d", a.Length())
	}
	if got := string(a.Body()); got != "reply-a:reply-b" {
		t.Fatalf("merged payload = %q", got)
	}
}
