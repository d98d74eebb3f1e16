// Package countio implements the outermost ByteCounter layer of the write
// pipeline: a transparent wrapper that tracks how many bytes have crossed
// the wire, independent of the plaintext size reported in EntryHeader.File.
package countio

import "io"

// Writer counts bytes written to the wrapped writer.
type Writer struct {
	w io.Writer
	n int64
}

// NewWriter wraps w, counting every byte forwarded.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (cw *Writer) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Count reports the number of bytes written so far.
func (cw *Writer) Count() int64 { return cw.n }

// Reader counts bytes read from the wrapped reader.
type Reader struct {
	r io.Reader
	n int64
}

// NewReader wraps r, counting every byte observed.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (cr *Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// Count reports the number of bytes read so far.
func (cr *Reader) Count() int64 { return cr.n }
