package session

import (
	"context"
	"crypto/cipher"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/fluxfile/fluxfile/crypto/aeadio"
	"github.com/fluxfile/fluxfile/fileset"
	"github.com/fluxfile/fluxfile/fserrors"
	"github.com/fluxfile/fluxfile/hashcache"
	"github.com/fluxfile/fluxfile/hashio"
	"github.com/fluxfile/fluxfile/progress"
	"github.com/fluxfile/fluxfile/wireproto"
	"github.com/google/uuid"
)

// Host accepts connections on a single TCP listener and runs one session
// handler per accepted connection, goroutine-per-connection, each owning
// its transport exclusively. The file set and hash cache are process-wide
// and shared read-mostly across every session.
type Host struct {
	cfg   HostConfig
	files fileset.Provider
	cache *hashcache.Cache
	aead  cipher.AEAD
}

// NewHost validates cfg, derives the AEAD key if a passphrase is set, and
// returns a Host ready to serve files.
func NewHost(cfg HostConfig, files fileset.Provider) (*Host, error) {
	d := DefaultHostConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = d.ListenAddr
	}
	if cfg.RetryBound <= 0 {
		cfg.RetryBound = d.RetryBound
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}

	h := &Host{cfg: cfg, files: files, cache: hashcache.New()}
	if cfg.Passphrase != "" {
		key := aeadio.DeriveKey(cfg.Passphrase)
		aead, err := aeadio.NewAEAD(key)
		if err != nil {
			return nil, err
		}
		h.aead = aead
	}
	return h, nil
}

// ListenAndServe binds cfg.ListenAddr and accepts connections until ctx is
// canceled or the listener fails. Each accepted connection is handled on
// its own goroutine.
func (h *Host) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return h.serveListener(ctx, ln)
}

// serveListener runs the accept loop over an already-bound listener,
// handling each accepted connection on its own goroutine until ctx is
// canceled or Accept fails.
func (h *Host) serveListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	h.cfg.Logger.Printf("fluxfile host listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go h.handleConn(conn)
	}
}

func (h *Host) handleConn(conn net.Conn) {
	defer conn.Close()
	sessionID := uuid.NewString()

	if h.cfg.Metrics != nil {
		h.cfg.Metrics.ActiveSessions.Inc()
		defer h.cfg.Metrics.ActiveSessions.Dec()
	}

	wire := withDeadlines(conn, h.cfg.ReadTimeout, h.cfg.WriteTimeout)
	err := h.serve(wire, sessionID)

	outcome := "success"
	if err != nil {
		outcome = "error"
		h.cfg.Logger.Printf("[host %s] session ended: %v", sessionID, err)
	} else {
		h.cfg.Logger.Printf("[host %s] session completed", sessionID)
	}
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.SessionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Host) serve(conn net.Conn, sessionID string) error {
	if h.cfg.HandshakeTimeout > 0 {
		deadline := time.Now().Add(h.cfg.HandshakeTimeout)
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	hs, err := wireproto.ReadHandshake(conn)
	if err != nil {
		return fserrors.Wrap(fserrors.SideHost, fserrors.StageHandshake, fserrors.CodeProtocolDecode, err)
	}
	if hs.ProtocolVersion != wireproto.ProtocolVersion {
		return fserrors.Wrap(fserrors.SideHost, fserrors.StageHandshake, fserrors.CodeVersionMismatch,
			fmt.Errorf("client protocol_version %q", hs.ProtocolVersion))
	}

	resumeSet := make(map[hashio.Digest]bool, len(hs.ResumeSet))
	for _, raw := range hs.ResumeSet {
		if d, ok := hashio.DigestFromBytes(raw); ok {
			resumeSet[d] = true
		}
	}

	compressionOn := h.cfg.ForceCompression || hs.ClientWantsCompression
	total := totalBytes(h.files)

	if err := wireproto.WriteHandshakeAck(conn, wireproto.HandshakeAck{
		AdvertisedTotalBytes: total,
		CompressionOn:        compressionOn,
	}); err != nil {
		return fserrors.Wrap(fserrors.SideHost, fserrors.StageHandshake, fserrors.CodeTransport, err)
	}
	if h.cfg.HandshakeTimeout > 0 {
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
	}

	if h.cfg.Progress != nil {
		h.cfg.Progress.Send(progress.Event{
			Kind:                 progress.EventHandshakeAck,
			AdvertisedTotalBytes: total,
			CompressionOn:        compressionOn,
		})
	}

	wp, err := newWritePipeline(conn, h.aead, compressionOn, h.cfg.CompressionLevel)
	if err != nil {
		return fserrors.Wrap(fserrors.SideHost, fserrors.StageCompress, fserrors.CodeLocalIO, err)
	}

	for _, entry := range h.files.Entries() {
		pathBytes, err := h.encodePath(entry.RelativePath)
		if err != nil {
			return fserrors.Wrap(fserrors.SideHost, fserrors.StageCrypto, fserrors.CodeLocalIO, err)
		}

		if entry.Kind == fileset.KindDir {
			if err := wireproto.WriteEntryHeader(conn, wireproto.EntryHeader{Kind: wireproto.EntryDir, PathBytes: pathBytes}); err != nil {
				return fserrors.Wrap(fserrors.SideHost, fserrors.StageTransport, fserrors.CodeTransport, err)
			}
			continue
		}

		if err := h.sendFile(conn, wp, entry, resumeSet); err != nil {
			return err
		}
	}

	return nil
}

func (h *Host) encodePath(rel string) ([]byte, error) {
	if h.aead == nil {
		return []byte(rel), nil
	}
	return aeadio.EncryptPath(h.aead, rel)
}

func (h *Host) sendFile(conn net.Conn, wp *writePipeline, entry fileset.Entry, resumeSet map[hashio.Digest]bool) error {
	info, err := os.Stat(entry.AbsolutePath)
	if err != nil {
		return fserrors.Wrap(fserrors.SideHost, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}
	mtime := info.ModTime()

	var precomputed *hashio.Digest
	if d, ok := h.cache.Lookup(entry.AbsolutePath, mtime); ok {
		if resumeSet[d] {
			return nil // client already holds this exact file; skip entirely
		}
		precomputed = &d
	}

	pathBytes, err := h.encodePath(entry.RelativePath)
	if err != nil {
		return fserrors.Wrap(fserrors.SideHost, fserrors.StageCrypto, fserrors.CodeLocalIO, err)
	}
	size := uint64(info.Size())

	attempts := 0
	for {
		if err := wireproto.WriteEntryHeader(conn, wireproto.EntryHeader{
			Kind: wireproto.EntryFile, PathBytes: pathBytes, Size: size,
		}); err != nil {
			return fserrors.Wrap(fserrors.SideHost, fserrors.StageTransport, fserrors.CodeTransport, err)
		}
		if h.cfg.Progress != nil {
			h.cfg.Progress.Send(progress.Event{Kind: progress.EventFileStarted, Path: entry.RelativePath, Size: size})
		}

		digest, err := h.streamFile(entry.AbsolutePath, wp, precomputed)
		if err != nil {
			return err
		}

		if err := wireproto.WriteFileDigest(conn, wireproto.FileDigestMsg{Value: digest.Bytes()}); err != nil {
			return fserrors.Wrap(fserrors.SideHost, fserrors.StageTransport, fserrors.CodeTransport, err)
		}

		ack, err := wireproto.ReadFileAck(conn)
		if err != nil {
			return fserrors.Wrap(fserrors.SideHost, fserrors.StageTransport, fserrors.CodeTransport, err)
		}
		if h.cfg.Progress != nil {
			h.cfg.Progress.Send(progress.Event{Kind: progress.EventFileFinished, Matched: ack.Matches})
		}

		if ack.Matches {
			h.cache.Insert(entry.AbsolutePath, digest, mtime)
			if h.cfg.Metrics != nil {
				h.cfg.Metrics.FilesTransferred.Inc()
			}
			return nil
		}

		if h.cfg.Metrics != nil {
			h.cfg.Metrics.FileAckMismatchTotal.Inc()
		}
		attempts++
		if attempts > h.cfg.RetryBound {
			if h.cfg.Metrics != nil {
				h.cfg.Metrics.RetriesExhaustedTotal.Inc()
			}
			return fserrors.Wrap(fserrors.SideHost, fserrors.StageHash, fserrors.CodeRetryExhausted,
				fmt.Errorf("%s: exceeded %d retries", entry.RelativePath, h.cfg.RetryBound))
		}
		// Loop back and retransmit the identical file: same path_bytes, same size.
	}
}

func (h *Host) streamFile(absPath string, wp *writePipeline, precomputed *hashio.Digest) (hashio.Digest, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return hashio.Digest{}, fserrors.Wrap(fserrors.SideHost, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}
	defer f.Close()

	before := wp.bytesOnWire()
	w, finish := wp.startFile(precomputed)
	if _, err := io.Copy(w, f); err != nil {
		return hashio.Digest{}, fserrors.Wrap(fserrors.SideHost, fserrors.StageDisk, fserrors.CodeLocalIO, err)
	}
	digest, err := finish()
	if err != nil {
		return hashio.Digest{}, fserrors.Wrap(fserrors.SideHost, fserrors.StageCompress, fserrors.CodeLocalIO, err)
	}
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.BytesTransferred.Add(float64(wp.bytesOnWire() - before))
	}
	return digest, nil
}

// totalBytes sums the on-disk length of every file entry; directories and
// unreadable entries contribute 0, matching HandshakeAck.advertised_total_bytes.
func totalBytes(files fileset.Provider) uint64 {
	var total uint64
	for _, e := range files.Entries() {
		if e.Kind == fileset.KindFile {
			total += uint64(e.Size)
		}
	}
	return total
}
