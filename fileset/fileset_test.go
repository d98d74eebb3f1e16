package fileset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildWalksDeterministically(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a", "b.txt"), "x")
	mustWriteFile(t, filepath.Join(root, "a", "c", "d.txt"), "")
	mustWriteFile(t, filepath.Join(root, "top.txt"), "hello\n")

	set, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	entries := set.Entries()
	if len(entries) == 0 {
		t.Fatal("expected at least one entry")
	}
	for _, e := range entries {
		if filepath.IsAbs(e.RelativePath) {
			t.Fatalf("relative path must not be absolute: %q", e.RelativePath)
		}
		if containsDotDot(e.RelativePath) {
			t.Fatalf("relative path must not contain ..: %q", e.RelativePath)
		}
	}

	set2, err := Build(root)
	if err != nil {
		t.Fatalf("Build (second): %v", err)
	}
	if len(set2.Entries()) != len(entries) {
		t.Fatal("repeated build over the same tree must yield the same entry count")
	}
	for i := range entries {
		if entries[i].RelativePath != set2.Entries()[i].RelativePath {
			t.Fatalf("walk order not stable: %q vs %q", entries[i].RelativePath, set2.Entries()[i].RelativePath)
		}
	}
}

func TestTotalBytesCountsFilesOnly(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.txt"), "12345")
	mustWriteFile(t, filepath.Join(root, "sub", "b.txt"), "1234567")
	if err := os.MkdirAll(filepath.Join(root, "emptydir"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	set, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := set.TotalBytes(), uint64(5+7); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func mustWriteFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func containsDotDot(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
