// Package aeadio implements the framed AEAD layer: a streaming
// ChaCha20-Poly1305 record format layered over an arbitrary io.Reader or
// io.Writer, plus the path-encryption helper used for EntryHeader contents.
package aeadio

import (
	"crypto/cipher"
	"crypto/sha512"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the ChaCha20-Poly1305 key size in bytes (256 bits).
const KeySize = chacha20poly1305.KeySize

// NonceSize is the ChaCha20-Poly1305 nonce size in bytes (96 bits).
const NonceSize = chacha20poly1305.NonceSize

// Overhead is the Poly1305 authentication tag size in bytes (128 bits).
const Overhead = chacha20poly1305.Overhead

// DeriveKey reduces a user passphrase to a 256-bit ChaCha20-Poly1305 key.
//
// This is a passphrase-to-key reducer, not a KDF: it is a single SHA-512
// digest of the passphrase bytes, truncated to the first 32 bytes. It
// performs no stretching whatsoever, so a weak passphrase yields weak
// confidentiality regardless of how the key is subsequently used.
func DeriveKey(passphrase string) [KeySize]byte {
	sum := sha512.Sum512([]byte(passphrase))
	var key [KeySize]byte
	copy(key[:], sum[:KeySize])
	return key
}

// NewAEAD constructs the ChaCha20-Poly1305 engine for key.
func NewAEAD(key [KeySize]byte) (cipher.AEAD, error) {
	return chacha20poly1305.New(key[:])
}
