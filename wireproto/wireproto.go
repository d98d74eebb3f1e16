// Package wireproto implements the length-prefixed message codec and the
// control-plane message types exchanged outside the AEAD/compression
// pipeline: Handshake, HandshakeAck, EntryHeader, FileDigest, and FileAck.
//
// Every message is a self-delimited JSON blob behind the same 4-byte
// length-prefix framing the control plane already uses elsewhere, kept in
// the clear even when a session key is set — only path_bytes and file
// bodies are independently encrypted.
package wireproto

import (
	"encoding/json"
	"io"

	"github.com/fluxfile/fluxfile/framing/msgframe"
)

// ProtocolVersion is the exact-match version string exchanged in Handshake.
const ProtocolVersion = "fluxfile/1"

// MaxMessageBytes bounds any single control message, guarding against a
// hostile or corrupted peer driving an oversized allocation.
const MaxMessageBytes = msgframe.DefaultMaxJSONFrameBytes

// Handshake is the client's opening message.
type Handshake struct {
	ProtocolVersion       string   `json:"protocol_version"`
	ResumeSet             [][]byte `json:"resume_set,omitempty"`
	ClientWantsCompression bool    `json:"client_wants_compression"`
}

// HandshakeAck is the host's reply to Handshake.
type HandshakeAck struct {
	AdvertisedTotalBytes uint64 `json:"advertised_total_bytes"`
	CompressionOn        bool   `json:"compression_on"`
}

// EntryKind distinguishes the EntryHeader tagged-union variants.
type EntryKind string

const (
	EntryDir  EntryKind = "dir"
	EntryFile EntryKind = "file"
)

// EntryHeader is the tagged union the host sends ahead of each FileSetEntry.
// PathBytes is either the UTF-8 relative path or its AEAD ciphertext with an
// appended nonce (§4.1); Size is only meaningful when Kind is EntryFile.
type EntryHeader struct {
	Kind      EntryKind `json:"kind"`
	PathBytes []byte    `json:"path_bytes"`
	Size      uint64    `json:"size,omitempty"`
}

// FileDigestMsg carries the little-endian 16-byte content digest computed
// by the sender of a file's body.
type FileDigestMsg struct {
	Value []byte `json:"value"`
}

// FileAck is the client's verdict on a received file body.
type FileAck struct {
	Matches bool `json:"matches"`
}

// WriteHandshake, ReadHandshake, and the remaining Write*/Read* pairs below
// encode/decode one message as a length-prefixed JSON frame.

func WriteHandshake(w io.Writer, m Handshake) error { return msgframe.WriteJSONFrame(w, m) }

func ReadHandshake(r io.Reader) (Handshake, error) {
	var m Handshake
	b, err := msgframe.ReadJSONFrame(r, MaxMessageBytes)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func WriteHandshakeAck(w io.Writer, m HandshakeAck) error { return msgframe.WriteJSONFrame(w, m) }

func ReadHandshakeAck(r io.Reader) (HandshakeAck, error) {
	var m HandshakeAck
	b, err := msgframe.ReadJSONFrame(r, MaxMessageBytes)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func WriteEntryHeader(w io.Writer, m EntryHeader) error { return msgframe.WriteJSONFrame(w, m) }

func ReadEntryHeader(r io.Reader) (EntryHeader, error) {
	var m EntryHeader
	b, err := msgframe.ReadJSONFrame(r, MaxMessageBytes)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func WriteFileDigest(w io.Writer, m FileDigestMsg) error { return msgframe.WriteJSONFrame(w, m) }

func ReadFileDigest(r io.Reader) (FileDigestMsg, error) {
	var m FileDigestMsg
	b, err := msgframe.ReadJSONFrame(r, MaxMessageBytes)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func WriteFileAck(w io.Writer, m FileAck) error { return msgframe.WriteJSONFrame(w, m) }

func ReadFileAck(r io.Reader) (FileAck, error) {
	var m FileAck
	b, err := msgframe.ReadJSONFrame(r, MaxMessageBytes)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
