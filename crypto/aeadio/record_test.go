package aeadio

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	key := DeriveKey("s3cret")
	sendAEAD, err := NewAEAD(key)
	if err != nil {
		t.Fatalf("NewAEAD: %v", err)
	}
	recvAEAD, err := NewAEAD(key)
	if err != nil {
		t.Fatalf("NewAEAD: %v", err)
	}

	var wire bytes.Buffer
	w := NewWriter(&wire, sendAEAD)

	chunks := [][]byte{
		[]byte("hello\n"),
		{},
		bytes.Repeat([]byte{0xAB}, MaxPlaintextLen),
	}
	for _, c := range chunks {
		if _, err := w.Write(c); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	r := NewReader(&wire, recvAEAD)
	for i, want := range chunks {
		got := make([]byte, len(want))
		if _, err := io.ReadFull(r, got); err != nil && len(want) > 0 {
			t.Fatalf("chunk %d: ReadFull: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("chunk %d: got %v, want %v", i, got, want)
		}
	}
}

func TestReaderWrongKeyFailsClosed(t *testing.T) {
	var wire bytes.Buffer
	sendAEAD, _ := NewAEAD(DeriveKey("k1"))
	w := NewWriter(&wire, sendAEAD)
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	recvAEAD, _ := NewAEAD(DeriveKey("k2"))
	r := NewReader(&wire, recvAEAD)
	buf := make([]byte, 7)
	if _, err := io.ReadFull(r, buf); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestReaderDetectsBitFlip(t *testing.T) {
	var wire bytes.Buffer
	key := DeriveKey("shared")
	sendAEAD, _ := NewAEAD(key)
	w := NewWriter(&wire, sendAEAD)
	if _, err := w.Write([]byte("tamper me")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw := wire.Bytes()
	raw[len(raw)-1] ^= 0x01 // flip a bit inside the tag

	recvAEAD, _ := NewAEAD(key)
	r := NewReader(bytes.NewReader(raw), recvAEAD)
	buf := make([]byte, 9)
	if _, err := io.ReadFull(r, buf); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestNonceUniquenessAcrossRecords(t *testing.T) {
	var wire bytes.Buffer
	aead, _ := NewAEAD(DeriveKey("nonces"))
	w := NewWriter(&wire, aead)
	for i := 0; i < 64; i++ {
		if _, err := w.Write([]byte{byte(i)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	seen := make(map[string]bool)
	raw := wire.Bytes()
	for len(raw) > 0 {
		nonce := string(raw[:NonceSize])
		if seen[nonce] {
			t.Fatalf("duplicate nonce observed: %x", nonce)
		}
		seen[nonce] = true
		n := int(raw[NonceSize])<<24 | int(raw[NonceSize+1])<<16 | int(raw[NonceSize+2])<<8 | int(raw[NonceSize+3])
		raw = raw[NonceSize+4+n:]
	}
	if len(seen) != 64 {
		t.Fatalf("expected 64 distinct nonces, got %d", len(seen))
	}
}

func TestPathEncryptDecryptRoundTrip(t *testing.T) {
	aead, _ := NewAEAD(DeriveKey("path-key"))
	blob, err := EncryptPath(aead, "a/b/c.txt")
	if err != nil {
		t.Fatalf("EncryptPath: %v", err)
	}
	if bytes.Contains(blob, []byte("a/b/c.txt")) {
		t.Fatal("ciphertext must not contain the plaintext path")
	}
	got, err := DecryptPath(aead, blob)
	if err != nil {
		t.Fatalf("DecryptPath: %v", err)
	}
	if got != "a/b/c.txt" {
		t.Fatalf("got %q, want %q", got, "a/b/c.txt")
	}
}
