package protocol

import (
	"encoding/binary"

	"golang.org/x/crypto/xtea"
)

// The legacy cipher is XTEA over 8-byte blocks, keyed once per session
// with four 32-bit words and never rotated. The wire treats each block
// as two little-endian uint32 words; x/crypto/xtea speaks big-endian,
// so blocks and key words are byte-swapped on the way in and out.
// The composition is exactly the legacy transform.

// newXTEABlock builds the session cipher from the handshake key words.
func newXTEABlock(key [4]uint32) (*xtea.Cipher, error) {
	var kb [16]byte
	for i, w := range key {
		binary.BigEndian.PutUint32(kb[i*4:], w)
	}
	return xtea.NewCipher(kb[:])
}

// swapWords reverses the bytes within each of the two 32-bit words of
// an 8-byte block.
func swapWords(dst, src []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
	dst[4], dst[5], dst[6], dst[7] = src[7], src[6], src[5], src[4]
}

// xteaTransform en- or decrypts data in place, 8 bytes at a time.
// len(data) must be a multiple of 8.
func xteaTransform(block *xtea.Cipher, data []byte, encrypt bool) {
	var tmp [8]byte
	for i := 0; i+8 <= len(data); i += 8 {
		chunk := data[i : i+8]
		swapWords(tmp[:], chunk)
		if encrypt {
			block.Encrypt(tmp[:], tmp[:])
		} else {
			block.Decrypt(tmp[:], tmp[:])
		}
		swapWords(chunk, tmp[:])
	}
}
