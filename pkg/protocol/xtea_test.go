package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// refEncryptBlock is the legacy cipher written out longhand: standard
// XTEA, 32 cycles, over two little-endian words. The wrapped x/crypto
// cipher must produce identical wire bytes.
func refEncryptBlock(key [4]uint32, block []byte) {
	v0 := binary.LittleEndian.Uint32(block[0:4])
	v1 := binary.LittleEndian.Uint32(block[4:8])
	const delta = 0x9E3779B9
	var sum uint32
	for i := 0; i < 32; i++ {
		v0 += (((v1 << 4) ^ (v1 >> 5)) + v1) ^ (sum + key[sum&3])
		sum += delta
		v1 += (((v0 << 4) ^ (v0 >> 5)) + v0) ^ (sum + key[(sum>>11)&3])
	}
	binary.LittleEndian.PutUint32(block[0:4], v0)
	binary.LittleEndian.PutUint32(block[4:8], v1)
}

func TestXTEAMatchesLegacyCipher(t *testing.T) {
	key := [4]uint32{0x11111111, 0x22222222, 0x33333333, 0x44444444}
	block, err := newXTEABlock(key)
	if err != nil {
		t.Fatalf("newXTEABlock: %v", err)
	}

	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA, 0x99, 0x88}
	want := make([]byte, len(data))
	copy(want, data)
	refEncryptBlock(key, want[0:8])
	refEncryptBlock(key, want[8:16])

	got := make([]byte, len(data))
	copy(got, data)
	xteaTransform(block, got, true)

	if !bytes.Equal(got, want) {
		t.Fatalf("ciphertext diverges from legacy cipher:\n got % x\nwant % x", got, want)
	}
}

func TestXTEARoundTrip(t *testing.T) {
	keys := [][4]uint32{
		{0, 0, 0, 0},
		{1, 2, 3, 4},
		{0xDEADBEEF, 0xCAFEBABE, 0x01234567, 0x89ABCDEF},
	}

	for _, key := range keys {
		block, err := newXTEABlock(key)
		if err != nil {
			t.Fatalf("newXTEABlock(%v): %v", key, err)
		}

		payload := make([]byte, 64)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		original := make([]byte, len(payload))
		copy(original, payload)

		xteaTransform(block, payload, true)
		if bytes.Equal(payload, original) {
			t.Fatal("encryption left payload unchanged")
		}
		xteaTransform(block, payload, false)
		if !bytes.Equal(payload, original) {
			t.Fatalf("key %v: decrypt(encrypt(p)) != p", key)
		}
	}
}
