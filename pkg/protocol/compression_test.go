package protocol

import (
	"bytes"
	"compress/flate"
	"io"
	"strings"
	"testing"

	"github.com/openmmo/realmd/pkg/netmsg"
)

func TestCompressShrinksAndInflatesBack(t *testing.T) {
	comp, err := newCompressor(6)
	if err != nil {
		t.Fatalf("newCompressor: %v", err)
	}

	payload := strings.Repeat("the realm has fallen. ", 64)
	msg := netmsg.NewOutputMessage()
	msg.AddBytes([]byte(payload))
	originalLen := msg.Length()

	if !comp.compress(msg) {
		t.Fatal("highly repetitive payload did not compress")
	}
	if msg.Length() >= originalLen {
		t.Fatalf("compressed length %d >= original %d", msg.Length(), originalLen)
	}

	// The wire carries a raw deflate stream.
	r := flate.NewReader(bytes.NewReader(msg.Body()))
	inflated, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if string(inflated) != payload {
		t.Fatal("inflated payload does not match original")
	}
}

func TestCompressLeavesIncompressibleAlone(t *testing.T) {
	comp, err := newCompressor(6)
	if err != nil {
		t.Fatalf("newCompressor: %v", err)
	}

	// Pseudo-random bytes do not deflate.
	payload := make([]byte, 256)
	state := uint32(0x12345678)
	for i := range payload {
		state = state*1664525 + 1013904223
		payload[i] = byte(state >> 24)
	}

	msg := netmsg.NewOutputMessage()
	msg.AddBytes(payload)
	before := make([]byte, len(msg.Body()))
	copy(before, msg.Body())

	if comp.compress(msg) {
		t.Fatal("incompressible payload reported as compressed")
	}
	if !bytes.Equal(msg.Body(), before) {
		t.Fatal("payload mutated by failed compression")
	}
}

func TestNewCompressorRejectsBadLevel(t *testing.T) {
	if _, err := newCompressor(99); err == nil {
		t.Fatal("level 99 accepted")
	}
}
