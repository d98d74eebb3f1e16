package fserrors

import (
	"errors"
	"io"

	"github.com/fluxfile/fluxfile/crypto/aeadio"
)

// ClassifyTransportErr maps a transport read/write error to a stable Code.
//
// io.EOF and io.ErrUnexpectedEOF on a connection that was expected to keep
// streaming are ordinary transport failures, not protocol errors: the peer
// went away mid-record.
func ClassifyTransportErr(err error) Code {
	switch {
	case errors.Is(err, aeadio.ErrAuthFailed):
		return CodeWrongKey
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CodeTransport
	default:
		return CodeTransport
	}
}

// ClassifyErr inspects err and returns the most specific Code it can
// identify, defaulting to fallback when nothing more specific matches.
func ClassifyErr(err error, fallback Code) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, aeadio.ErrAuthFailed) {
		return CodeWrongKey
	}
	return fallback
}
