package session

import (
	"bufio"
	"crypto/cipher"
	"io"

	"github.com/fluxfile/fluxfile/compressio"
	"github.com/fluxfile/fluxfile/countio"
	"github.com/fluxfile/fluxfile/crypto/aeadio"
	"github.com/fluxfile/fluxfile/hashio"
)

// writePipeline is the host-side tagged pipeline variant chosen once at
// session start: Hasher → Compressor → AEAD → ByteCounter → transport. The
// encryption-on/off and compression-on/off decisions are fixed at
// construction so the per-file hot path never branches on them.
type writePipeline struct {
	counter *countio.Writer
	sink    io.Writer // counter, or an AEAD writer wrapping it
	comp    *compressio.Writer
}

func newWritePipeline(transport io.Writer, aead cipher.AEAD, compressionOn bool, level int) (*writePipeline, error) {
	p := &writePipeline{counter: countio.NewWriter(transport)}
	p.sink = p.sink0(aead)

	if compressionOn {
		comp, err := compressio.NewWriter(p.sink, level)
		if err != nil {
			return nil, err
		}
		p.comp = comp
	}
	return p, nil
}

func (p *writePipeline) sink0(aead cipher.AEAD) io.Writer {
	if aead == nil {
		return p.counter
	}
	return aeadio.NewWriter(p.counter, aead)
}

// bodyWriter returns the writer a file's compressed-or-plain bytes land on.
func (p *writePipeline) bodyWriter() io.Writer {
	if p.comp != nil {
		return p.comp
	}
	return p.sink
}

// startFile returns the writer a file's plaintext bytes should be written
// to, and a finish function that must be called exactly once after the
// file's bytes are fully written (and before the next startFile call).
//
// When precomputed is non-nil, the hasher is skipped per §4.3's
// precomputed-hash mode: bytes are still streamed and counted, but no
// digest is recomputed.
func (p *writePipeline) startFile(precomputed *hashio.Digest) (io.Writer, func() (hashio.Digest, error)) {
	body := p.bodyWriter()

	if precomputed != nil {
		pw := hashio.NewPassthroughWriter(body)
		return pw, func() (hashio.Digest, error) {
			if err := p.finishFile(); err != nil {
				return hashio.Digest{}, err
			}
			return *precomputed, nil
		}
	}

	hw := hashio.NewWriter(body)
	return hw, func() (hashio.Digest, error) {
		d := hw.Sum()
		if err := p.finishFile(); err != nil {
			return hashio.Digest{}, err
		}
		return d, nil
	}
}

// finishFile terminates the current file's compression stream (if any) and
// resets the compressor for the next file, without touching the AEAD or
// transport layers, which remain open for the rest of the connection.
func (p *writePipeline) finishFile() error {
	if p.comp == nil {
		return nil
	}
	if err := p.comp.Close(); err != nil {
		return err
	}
	p.comp.Reset(p.sink)
	return nil
}

// bytesOnWire reports the total bytes written to the transport so far.
func (p *writePipeline) bytesOnWire() int64 { return p.counter.Count() }

// readPipeline mirrors writePipeline on the client: transport → AEAD →
// Decompressor → Hasher → destination file.
//
// shared is the single bufio.Reader over the transport, kept for the whole
// connection, not just one file. The control-plane messages (FileDigest,
// the next EntryHeader) travel in the clear between file bodies on the
// same byte stream, so they are read straight from shared, while file
// bodies are read through the AEAD layer when a key is set, which in turn
// reads its records from shared. flate.NewReader wraps any source that
// doesn't implement io.ByteReader in its own private read-ahead buffer.
// Without a key the decompressor reads from shared itself (an
// io.ByteReader, the same technique compress/gzip uses for multistream
// members), so bytes it did not consume are still sitting in shared for
// the next ReadEntryHeader/ReadFileDigest call. With a key its private
// buffer holds only decrypted body bytes, and the AEAD reader takes a new
// record from shared only once the current one is used up.
type readPipeline struct {
	counter *countio.Reader
	source  io.Reader // shared, or an AEAD reader wrapping it
	shared  *bufio.Reader
	comp    *compressio.Reader
}

func newReadPipeline(transport io.Reader, aead cipher.AEAD, compressionOn bool) *readPipeline {
	p := &readPipeline{counter: countio.NewReader(transport)}
	p.shared = bufio.NewReader(p.counter)
	if aead == nil {
		p.source = p.shared
	} else {
		p.source = aeadio.NewReader(p.shared, aead)
	}
	if compressionOn {
		p.comp = compressio.NewReader(p.source)
	}
	return p
}

func (p *readPipeline) bodyReader() io.Reader {
	if p.comp != nil {
		return p.comp
	}
	return p.source
}

// controlReader returns the reader every control-plane message
// (EntryHeader, FileDigest) must be read through once the pipeline
// exists: shared, the transport-level buffer the body layers also read
// from, so no bytes buffered ahead of a file body are lost to the
// control messages around it.
func (p *readPipeline) controlReader() io.Reader { return p.shared }

// startFile returns a reader bounded to exactly one file's plaintext bytes,
// and a finish function that must be called exactly once after the file's
// bytes are fully consumed (and before the next startFile call). When
// compression is on, the bound is the decompressor's own end-of-stream
// marker; otherwise it is the declared plaintext size, which is the
// authoritative boundary per §4.2.
func (p *readPipeline) startFile(size uint64) (*hashio.Reader, func() (hashio.Digest, error)) {
	body := p.bodyReader()
	var hr *hashio.Reader
	if p.comp != nil {
		hr = hashio.NewReader(body)
	} else {
		hr = hashio.NewReader(io.LimitReader(body, int64(size)))
	}

	return hr, func() (hashio.Digest, error) {
		d := hr.Sum()
		if p.comp != nil {
			if err := p.comp.Reset(p.source); err != nil {
				return hashio.Digest{}, err
			}
		}
		return d, nil
	}
}
