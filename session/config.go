package session

import (
	"log"
	"time"

	"github.com/fluxfile/fluxfile/internal/defaults"
	"github.com/fluxfile/fluxfile/metrics"
	"github.com/fluxfile/fluxfile/progress"
)

// HostConfig configures a Host. Zero-valued fields are filled in by
// DefaultHostConfig; the caller only needs to override what matters.
type HostConfig struct {
	ListenAddr string // TCP address to bind, e.g. "0.0.0.0:9443".

	Passphrase       string // Empty disables encryption entirely.
	ForceCompression bool   // Effective compression = this OR the client's request.
	CompressionLevel int    // 0 selects compressio.DefaultLevel.

	RetryBound int // Hash-mismatch retries per file before the session fails.

	ReadTimeout      time.Duration // Per-read deadline on the accepted connection (0 disables).
	WriteTimeout     time.Duration // Per-write deadline on the accepted connection (0 disables).
	HandshakeTimeout time.Duration // Deadline covering Handshake read through HandshakeAck write.

	Logger   *log.Logger          // Defaults to log.Default() if nil.
	Metrics  *metrics.Metrics     // Optional; nil disables instrumentation.
	Progress *progress.Dispatcher // Optional; nil disables progress events.
}

// DefaultRetryBound is the suggested hash-mismatch retry bound before a
// file transfer is abandoned and the session fails.
const DefaultRetryBound = 3

// DefaultHostConfig returns conservative defaults for a host.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		ListenAddr:       "127.0.0.1:9443",
		CompressionLevel: 0,
		RetryBound:       DefaultRetryBound,
		ReadTimeout:      0,
		WriteTimeout:     0,
		HandshakeTimeout: defaults.HandshakeTimeout,
		Logger:           log.Default(),
	}
}

// ClientConfig configures a Client.
type ClientConfig struct {
	ServerAddr string // TCP address to dial.
	DestRoot   string // Destination directory root.

	Passphrase      string // Must match the host's for decryption to succeed.
	WantCompression bool   // Requested in Handshake; the host may force it on regardless.

	// Overwrite permits clobbering a file already present under DestRoot.
	// DefaultClientConfig sets this true: re-running against a DestRoot
	// that already holds a prior session's output is the expected use of
	// this protocol. Set false to refuse instead, for callers that want
	// the destination treated as append-only.
	Overwrite bool

	RetryBound int // Hash-mismatch retries per file before the session fails.

	DialTimeout      time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration // Deadline covering Handshake write through HandshakeAck read.

	Logger   *log.Logger
	Progress *progress.Dispatcher
}

// DefaultClientConfig returns conservative defaults for a client.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RetryBound:       DefaultRetryBound,
		Overwrite:        true,
		DialTimeout:      defaults.ConnectTimeout,
		HandshakeTimeout: defaults.HandshakeTimeout,
		Logger:           log.Default(),
	}
}
