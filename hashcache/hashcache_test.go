package hashcache

import (
	"sync"
	"testing"
	"time"

	"github.com/fluxfile/fluxfile/hashio"
)

func digestOf(b byte) hashio.Digest {
	var d hashio.Digest
	for i := range d {
		d[i] = b
	}
	return d
}

func TestLookupMissOnEmptyCache(t *testing.T) {
	c := New()
	if _, ok := c.Lookup("/a/b", time.Now()); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestInsertThenLookupHit(t *testing.T) {
	c := New()
	mtime := time.Now()
	want := digestOf(0xAB)
	c.Insert("/a/b", want, mtime)

	got, ok := c.Lookup("/a/b", mtime)
	if !ok {
		t.Fatal("expected hit")
	}
	if got != want {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestLookupMissOnStaleMTime(t *testing.T) {
	c := New()
	mtime := time.Now()
	c.Insert("/a/b", digestOf(0x01), mtime)

	if _, ok := c.Lookup("/a/b", mtime.Add(time.Second)); ok {
		t.Fatal("expected miss when mtime has advanced")
	}
}

func TestInsertOverwritesOnFresherMTime(t *testing.T) {
	c := New()
	oldMTime := time.Now()
	newMTime := oldMTime.Add(time.Minute)

	c.Insert("/a/b", digestOf(0x01), oldMTime)
	c.Insert("/a/b", digestOf(0x02), newMTime)

	if _, ok := c.Lookup("/a/b", oldMTime); ok {
		t.Fatal("stale mtime must no longer hit after overwrite")
	}
	got, ok := c.Lookup("/a/b", newMTime)
	if !ok {
		t.Fatal("expected hit on the fresher mtime")
	}
	if got != digestOf(0x02) {
		t.Fatalf("got %x, want %x", got, digestOf(0x02))
	}
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	c := New()
	mtime := time.Now()
	c.Insert("/shared", digestOf(0x42), mtime)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Lookup("/shared", mtime)
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Insert("/other", digestOf(byte(n)), mtime)
		}(i)
	}
	wg.Wait()
}
