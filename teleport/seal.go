package teleport

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// Version is the first byte of every payload.
	Version = 1

	NonceSize  = chacha20poly1305.NonceSizeX
	headerSize = 1 + NonceSize
)

// Seal encrypts ptext for host.
// The payload is version || nonce || ciphertext, and the host id is authenticated as additional data.
func Seal(key *[32]byte, host string, ptext []byte) []byte {
	nonce := randomNonce()
	out := make([]byte, 0, headerSize+len(ptext)+chacha20poly1305.Overhead)
	out = append(out, Version)
	out = append(out, nonce[:]...)
	return newAEAD(key).Seal(out, nonce[:], ptext, []byte(host))
}

// Unseal reverses Seal.
func Unseal(key *[32]byte, host string, payload []byte) ([]byte, error) {
	if len(payload) < headerSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("payload too short (%d bytes)", len(payload))
	}
	if payload[0] != Version {
		return nil, fmt.Errorf("unknown payload version %d", payload[0])
	}
	nonce := payload[1:headerSize]
	return newAEAD(key).Open(nil, nonce, payload[headerSize:], []byte(host))
}

func newAEAD(key *[32]byte) cipher.AEAD {
	ciph, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		panic(err)
	}
	return ciph
}

func randomNonce() *[NonceSize]byte {
	nonce := new([NonceSize]byte)
	if _, err := rand.Read(nonce[:]); err != nil {
		panic(err)
	}
	return nonce
}
