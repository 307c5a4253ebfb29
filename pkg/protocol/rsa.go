package protocol

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
)

const rsaBlockSize = 128

var (
	ErrRSAKeyPEM    = errors.New("no RSA private key in PEM data")
	ErrRSABlockSize = errors.New("handshake key blob is not 128 bytes")
)

// RSAKey is the server private key that unwraps the handshake key
// blob. The legacy client encrypts with unpadded (textbook) RSA, which
// crypto/rsa deliberately does not expose, so decryption is the plain
// modular exponentiation m = c^d mod n.
type RSAKey struct {
	priv *rsa.PrivateKey
}

// GenerateRSAKey creates a fresh 1024-bit key, the legacy blob size.
func GenerateRSAKey() (*RSAKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaBlockSize*8)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}
	return &RSAKey{priv: priv}, nil
}

// LoadRSAKey reads a PKCS#1 or PKCS#8 PEM private key from disk.
func LoadRSAKey(path string) (*RSAKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read RSA key file: %w", err)
	}
	return ParseRSAKey(data)
}

// ParseRSAKey parses a PEM-encoded RSA private key.
func ParseRSAKey(data []byte) (*RSAKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrRSAKeyPEM
	}
	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &RSAKey{priv: priv}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse RSA key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrRSAKeyPEM
	}
	return &RSAKey{priv: priv}, nil
}

// MarshalPEM serializes the key in PKCS#1 PEM form.
func (k *RSAKey) MarshalPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(k.priv),
	})
}

// Public returns the public key clients encrypt against.
func (k *RSAKey) Public() *rsa.PublicKey {
	return &k.priv.PublicKey
}

// decryptBlock replaces the 128-byte blob with its plaintext in place.
func (k *RSAKey) decryptBlock(blob []byte) error {
	if len(blob) != rsaBlockSize {
		return ErrRSABlockSize
	}
	c := new(big.Int).SetBytes(blob)
	m := c.Exp(c, k.priv.D, k.priv.N)
	m.FillBytes(blob)
	return nil
}
