package session

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fluxfile/fluxfile/crypto/aeadio"
	"github.com/fluxfile/fluxfile/fserrors"
	"github.com/fluxfile/fluxfile/hashio"
	"github.com/fluxfile/fluxfile/internal/cmdutil"
	"github.com/fluxfile/fluxfile/progress"
	"github.com/fluxfile/fluxfile/resumeset"
	"github.com/fluxfile/fluxfile/wireproto"
)

// Client dials a single host, negotiates a session, and mirrors the file
// set into cfg.DestRoot, resuming from a prior session's .resume record
// when one is present.
type Client struct {
	cfg  ClientConfig
	aead cipher.AEAD
}

// NewClient validates cfg and derives the AEAD key if a passphrase is set.
func NewClient(cfg ClientConfig) (*Client, error) {
	d := DefaultClientConfig()
	if cfg.RetryBound <= 0 {
		cfg.RetryBound = d.RetryBound
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = d.DialTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}
	if cfg.DestRoot == "" {
		return nil, errors.New("session: ClientConfig.DestRoot is required")
	}

	c := &Client{cfg: cfg}
	if cfg.Passphrase != "" {
		key := aeadio.DeriveKey(cfg.Passphrase)
		aead, err := aeadio.NewAEAD(key)
		if err != nil {
			return nil, err
		}
		c.aead = aead
	}
	return c, nil
}

// Run dials cfg.ServerAddr and drives the client side of one session to
// completion, deleting the resume record on clean termination.
func (c *Client) Run(ctx context.Context) error {
	start := time.Now()

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.cfg.ServerAddr)
	if err != nil {
		return fserrors.Wrap(fserrors.SideClient, fserrors.StageTransport, fserrors.CodeTransport, err)
	}
	defer rawConn.Close()
	conn := withDeadlines(rawConn, c.cfg.ReadTimeout, c.cfg.WriteTimeout)

	if err := os.MkdirAll(c.cfg.DestRoot, 0o755); err != nil {
		return fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}

	resume, err := resumeset.Load(c.cfg.DestRoot)
	if err != nil {
		return fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}

	resumeSetBytes := make([][]byte, 0, len(resume.Digests()))
	for _, d := range resume.Digests() {
		resumeSetBytes = append(resumeSetBytes, d.Bytes())
	}

	if c.cfg.HandshakeTimeout > 0 {
		deadline := time.Now().Add(c.cfg.HandshakeTimeout)
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := wireproto.WriteHandshake(conn, wireproto.Handshake{
		ProtocolVersion:        wireproto.ProtocolVersion,
		ResumeSet:              resumeSetBytes,
		ClientWantsCompression: c.cfg.WantCompression,
	}); err != nil {
		return fserrors.Wrap(fserrors.SideClient, fserrors.StageHandshake, fserrors.CodeTransport, err)
	}

	ack, err := wireproto.ReadHandshakeAck(conn)
	if err != nil {
		return fserrors.Wrap(fserrors.SideClient, fserrors.StageHandshake, fserrors.CodeVersionMismatch, err)
	}
	if c.cfg.HandshakeTimeout > 0 {
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
	}

	if c.cfg.Progress != nil {
		c.cfg.Progress.Send(progress.Event{
			Kind:                 progress.EventHandshakeAck,
			AdvertisedTotalBytes: ack.AdvertisedTotalBytes,
			CompressionOn:        ack.CompressionOn,
		})
	}

	rp := newReadPipeline(conn, c.aead, ack.CompressionOn)

	if err := c.receiveEntries(conn, rp, resume); err != nil {
		return err
	}

	if err := resume.Delete(); err != nil {
		return fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}

	if c.cfg.Progress != nil {
		c.cfg.Progress.Send(progress.Event{Kind: progress.EventCompleted, Duration: time.Since(start)})
	}
	return nil
}

func (c *Client) receiveEntries(conn net.Conn, rp *readPipeline, resume *resumeset.Set) error {
	for {
		hdr, err := wireproto.ReadEntryHeader(rp.controlReader())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil // transport closed cleanly: the entry stream is exhausted
			}
			return fserrors.Wrap(fserrors.SideClient, fserrors.StageProtocol, fserrors.CodeProtocolDecode, err)
		}

		rel, err := c.decodePath(hdr.PathBytes)
		if err != nil {
			return fserrors.Wrap(fserrors.SideClient, fserrors.StageCrypto, fserrors.CodeWrongKey, err)
		}
		destPath := filepath.Join(c.cfg.DestRoot, filepath.FromSlash(rel))

		switch hdr.Kind {
		case wireproto.EntryDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
			}
		case wireproto.EntryFile:
			if err := c.receiveFile(conn, rp, resume, destPath, rel, hdr.Size); err != nil {
				return err
			}
		default:
			return fserrors.Wrap(fserrors.SideClient, fserrors.StageProtocol, fserrors.CodeProtocolDecode,
				fmt.Errorf("unknown entry kind %q", hdr.Kind))
		}
	}
}

// receiveRetransmitHeader reads the EntryHeader the host re-emits ahead of
// each retransmission, per §4.5 step (c)/(f): every retry carries its own
// header, with the same path_bytes and size the host sent the first time.
func (c *Client) receiveRetransmitHeader(rp *readPipeline) (uint64, error) {
	hdr, err := wireproto.ReadEntryHeader(rp.controlReader())
	if err != nil {
		return 0, fserrors.Wrap(fserrors.SideClient, fserrors.StageProtocol, fserrors.CodeProtocolDecode, err)
	}
	if hdr.Kind != wireproto.EntryFile {
		return 0, fserrors.Wrap(fserrors.SideClient, fserrors.StageProtocol, fserrors.CodeProtocolDecode,
			fmt.Errorf("expected a file retransmit header, got %q", hdr.Kind))
	}
	return hdr.Size, nil
}

func (c *Client) decodePath(pathBytes []byte) (string, error) {
	if c.aead == nil {
		return string(pathBytes), nil
	}
	return aeadio.DecryptPath(c.aead, pathBytes)
}

func (c *Client) receiveFile(conn net.Conn, rp *readPipeline, resume *resumeset.Set, destPath, rel string, size uint64) error {
	// Checked once per logical file, not per retransmit attempt: a
	// hash-mismatch retry recreates destPath itself (receiveFileAttempt's
	// os.Create), so checking on every attempt would refuse the second
	// attempt against the first attempt's own output.
	if err := cmdutil.RefuseOverwrite(destPath, c.cfg.Overwrite); err != nil {
		return fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}

	if c.cfg.Progress != nil {
		c.cfg.Progress.Send(progress.Event{Kind: progress.EventFileStarted, Path: rel, Size: size})
	}

	attempts := 0
	for {
		matches, err := c.receiveFileAttempt(conn, rp, resume, destPath, size)
		if err != nil {
			return err
		}
		if c.cfg.Progress != nil {
			c.cfg.Progress.Send(progress.Event{Kind: progress.EventFileFinished, Matched: matches})
		}
		if matches {
			return nil
		}

		attempts++
		if attempts > c.cfg.RetryBound {
			return fserrors.Wrap(fserrors.SideClient, fserrors.StageHash, fserrors.CodeRetryExhausted,
				fmt.Errorf("%s: exceeded %d retries", rel, c.cfg.RetryBound))
		}
		// The host loops back to re-emit File{path_bytes, size} before
		// resending the same bytes; consume that header before retrying.
		next, err := c.receiveRetransmitHeader(rp)
		if err != nil {
			return err
		}
		size = next
	}
}

func (c *Client) receiveFileAttempt(conn net.Conn, rp *readPipeline, resume *resumeset.Set, destPath string, size uint64) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}
	defer out.Close()

	r, finish := rp.startFile(size)
	if _, err := io.Copy(out, r); err != nil {
		return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}
	localDigest, err := finish()
	if err != nil {
		return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageCompress, fserrors.CodeLocalIO, err)
	}

	remote, err := wireproto.ReadFileDigest(rp.controlReader())
	if err != nil {
		return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageTransport, fserrors.CodeTransport, err)
	}
	remoteDigest, ok := hashio.DigestFromBytes(remote.Value)
	if !ok {
		return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageProtocol, fserrors.CodeProtocolDecode,
			errors.New("malformed FileDigest"))
	}

	matches := localDigest == remoteDigest
	if err := wireproto.WriteFileAck(conn, wireproto.FileAck{Matches: matches}); err != nil {
		return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageTransport, fserrors.CodeTransport, err)
	}
	if matches {
		if err := resume.Append(localDigest); err != nil {
			return false, fserrors.Wrap(fserrors.SideClient, fserrors.StageDisk, fserrors.CodeLocalIO, err)
		}
	}
	return matches, nil
}
