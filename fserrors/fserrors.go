package fserrors

import "fmt"

// Side identifies which peer observed the error.
type Side string

const (
	SideHost   Side = "host"
	SideClient Side = "client"
)

// Stage identifies which layer of the streaming pipeline failed.
type Stage string

const (
	StageHandshake Stage = "handshake"
	StageTransport Stage = "transport"
	StageCrypto    Stage = "crypto"
	StageCompress  Stage = "compress"
	StageHash      Stage = "hash"
	StageDisk      Stage = "disk"
	StageProtocol  Stage = "protocol"
)

// Code is a stable, programmatic error identifier. It mirrors the error kinds
// enumerated by the session protocol: every kind is distinct and, aside from
// HashMismatch, terminates the session.
type Code string

const (
	// CodeVersionMismatch: peer announced an incompatible protocol version.
	CodeVersionMismatch Code = "version_mismatch"
	// CodeWrongKey: AEAD authentication failed on a record.
	CodeWrongKey Code = "wrong_key"
	// CodeTransport: I/O error on the byte stream itself.
	CodeTransport Code = "transport"
	// CodeLocalIO: filesystem error (open/read/write/mkdir/remove).
	CodeLocalIO Code = "local_io"
	// CodeProtocolDecode: malformed structured message or header.
	CodeProtocolDecode Code = "protocol_decode"
	// CodeHashMismatch: recoverable, triggers a retransmit until the retry bound.
	CodeHashMismatch Code = "hash_mismatch"
	// CodeRetryExhausted: HashMismatch recurred past the configured retry bound.
	CodeRetryExhausted Code = "retry_exhausted"
)

// Error is a structured, programmatically classifiable session error.
type Error struct {
	Side  Side
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Side, e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Side, e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a classified Error for the given side/stage/code.
func Wrap(side Side, stage Stage, code Code, err error) error {
	return &Error{Side: side, Stage: stage, Code: code, Err: err}
}

// Fatal reports whether code terminates the session outright. Only
// CodeHashMismatch is locally recoverable (it surfaces as FileAck{false}
// and triggers a retransmit); every other kind propagates and closes
// the connection.
func Fatal(code Code) bool {
	return code != CodeHashMismatch
}
