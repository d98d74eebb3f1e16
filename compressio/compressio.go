// Package compressio implements the compression layer: a framed, streaming,
// DEFLATE-based compressor/decompressor that sits below the hash layer and
// above the AEAD layer on the write side.
//
// Each file gets its own self-terminated DEFLATE stream (flate's final-block
// bit marks the end), so a Reader positioned at the start of a file's
// compressed bytes stops decoding at that file's boundary without needing
// the plaintext size up front — this is the same multistream property
// compress/gzip relies on to concatenate members back to back. Only a
// source that implements io.ByteReader is read no further than the
// boundary; any other source is read ahead through a private buffer.
package compressio

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// DefaultLevel sits near the middle of flate's supported range.
const DefaultLevel = 6

// Writer compresses one file's plaintext into a self-terminated DEFLATE
// stream. Call Reset before each new file and Close to terminate it.
type Writer struct {
	fw    *flate.Writer
	level int
}

// NewWriter wraps w, ready to compress the first file at the given level.
// A level of 0 selects DefaultLevel.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	if level == 0 {
		level = DefaultLevel
	}
	fw, err := flate.NewWriter(w, level)
	if err != nil {
		return nil, err
	}
	return &Writer{fw: fw, level: level}, nil
}

func (w *Writer) Write(p []byte) (int, error) { return w.fw.Write(p) }

// Close finalizes the current file's DEFLATE stream without closing w.
func (w *Writer) Close() error { return w.fw.Close() }

// Reset starts a fresh DEFLATE stream for the next file, writing to dst.
func (w *Writer) Reset(dst io.Writer) { w.fw.Reset(dst) }

// Reader decompresses one file's self-terminated DEFLATE stream. Read
// returns io.EOF exactly at that file's boundary; call Reset to move on to
// the next file. When the source implements io.ByteReader no byte past the
// boundary is consumed; otherwise bytes read ahead into the private buffer
// are dropped by Reset.
type Reader struct {
	fr io.ReadCloser
}

// NewReader wraps r, ready to decompress the first file.
func NewReader(r io.Reader) *Reader {
	return &Reader{fr: flate.NewReader(r)}
}

func (r *Reader) Read(p []byte) (int, error) { return r.fr.Read(p) }

// Close releases decoder resources. It does not affect the underlying
// reader.
func (r *Reader) Close() error { return r.fr.Close() }

// Reset positions the decompressor at the start of the next file's DEFLATE
// stream, read from src.
func (r *Reader) Reset(src io.Reader) error {
	if resetter, ok := r.fr.(flate.Resetter); ok {
		return resetter.Reset(src, nil)
	}
	_ = r.fr.Close()
	r.fr = flate.NewReader(src)
	return nil
}
