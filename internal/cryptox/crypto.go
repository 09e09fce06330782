// Package cryptox provides the AES-GCM implementation of the cache
// encryption hook and passphrase-based key derivation.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length produced by DeriveKey.
const KeySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveKey stretches a passphrase into a KeySize key with argon2id.
// The same passphrase and salt always give the same key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// AESGCM encrypts cache payloads with AES-GCM.
//
// Output layout is nonce || sealed, where the nonce is freshly random for
// every call. Zero-length plaintexts are valid and round-trip to an empty,
// non-nil slice.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a hook from a 16, 24 or 32 byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

func (a *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return a.aead.Seal(out, out, plaintext, nil), nil
}

func (a *AESGCM) Decrypt(data []byte) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	if len(data) < nonceSize+a.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]

	plaintext, err := a.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
