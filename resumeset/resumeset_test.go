package resumeset

import (
	"os"
	"testing"

	"github.com/fluxfile/fluxfile/hashio"
)

func digestOf(b byte) hashio.Digest {
	var d hashio.Digest
	for i := range d {
		d[i] = b
	}
	return d
}

func TestLoadMissingFileYieldsEmptySet(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Contains(digestOf(0x01)) {
		t.Fatal("expected empty set")
	}
}

func TestAppendThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d1, d2 := digestOf(0x01), digestOf(0x02)
	if err := s.Append(d1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(d2); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load (reload): %v", err)
	}
	if !reloaded.Contains(d1) || !reloaded.Contains(d2) {
		t.Fatal("expected both digests to survive reload")
	}
	if len(reloaded.Digests()) != 2 {
		t.Fatalf("got %d digests, want 2", len(reloaded.Digests()))
	}
}

func TestTrailingPartialEntryIsIgnored(t *testing.T) {
	dir := t.TempDir()
	full := digestOf(0x03).Bytes()
	partial := append(full, 0x01, 0x02, 0x03)
	if err := os.WriteFile(Path(dir), partial, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Contains(digestOf(0x03)) {
		t.Fatal("expected the complete leading digest to be recognized")
	}
	if len(s.Digests()) != 1 {
		t.Fatalf("got %d digests, want 1 (partial trailing bytes must be ignored)", len(s.Digests()))
	}
}

func TestDeleteRemovesFileAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Append(digestOf(0x09)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Fatalf("expected resume file to exist: %v", err)
	}

	if err := s.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(Path(dir)); !os.IsNotExist(err) {
		t.Fatal("expected resume file to be gone after Delete")
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("Delete (again): %v", err)
	}
}

func TestAppendIsNoOpForAlreadyRecordedDigest(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := digestOf(0x07)
	if err := s.Append(d); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(d); err != nil {
		t.Fatalf("Append (again): %v", err)
	}
	if len(s.Digests()) != 1 {
		t.Fatalf("got %d digests, want 1", len(s.Digests()))
	}
}
