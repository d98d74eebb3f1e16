// Package resumeset implements the client-side ResumeRecord: the on-disk
// <destination>/.resume file, a flat concatenation of 16-byte digests for
// every file the client has already verified.
package resumeset

import (
	"os"
	"path/filepath"

	"github.com/fluxfile/fluxfile/hashio"
	"github.com/fluxfile/fluxfile/internal/securefile"
)

const fileName = ".resume"
const filePerm = 0o600

// Set tracks the digests recorded in one destination's resume file. Every
// mutation persists the whole record atomically (temp file + rename), so a
// crash between two Appends never leaves a partially-written file on disk;
// any trailing partial entry found on Load can only come from a foreign or
// pre-existing file and is simply ignored.
type Set struct {
	path    string
	digests map[hashio.Digest]bool
}

// Path returns the resume file path used under destRoot.
func Path(destRoot string) string {
	return filepath.Join(destRoot, fileName)
}

// Load reads <destRoot>/.resume if present and builds the resume set. A
// missing file is not an error; it yields an empty set. Trailing bytes that
// do not form a complete 16-byte digest are ignored.
func Load(destRoot string) (*Set, error) {
	path := Path(destRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Set{path: path, digests: make(map[hashio.Digest]bool)}, nil
		}
		return nil, err
	}

	digests := make(map[hashio.Digest]bool)
	n := len(data) / hashio.Size
	for i := 0; i < n; i++ {
		d, _ := hashio.DigestFromBytes(data[i*hashio.Size : (i+1)*hashio.Size])
		digests[d] = true
	}
	return &Set{path: path, digests: digests}, nil
}

// Contains reports whether digest has already been verified in this
// destination.
func (s *Set) Contains(d hashio.Digest) bool {
	return s.digests[d]
}

// Digests returns every digest currently recorded, for inclusion in the
// outgoing Handshake.resume_set.
func (s *Set) Digests() []hashio.Digest {
	out := make([]hashio.Digest, 0, len(s.digests))
	for d := range s.digests {
		out = append(out, d)
	}
	return out
}

// Append records digest as verified and rewrites the resume file
// atomically. It is a no-op if digest is already recorded.
func (s *Set) Append(d hashio.Digest) error {
	if s.digests[d] {
		return nil
	}
	if err := securefile.MkdirAllOwnerOnly(filepath.Dir(s.path)); err != nil {
		return err
	}
	s.digests[d] = true

	buf := make([]byte, 0, len(s.digests)*hashio.Size)
	for digest := range s.digests {
		buf = append(buf, digest.Bytes()...)
	}
	return securefile.WriteFileAtomic(s.path, buf, filePerm)
}

// Delete removes the resume file on successful session completion. A
// missing file is not an error.
func (s *Set) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
