package progress

import (
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Progress(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcherDeliversEventsInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink)

	d.Send(Event{Kind: EventFileStarted, Path: "a.txt", Size: 10})
	d.Send(Event{Kind: EventBytesProgressed, BytesDelta: 10})
	d.Send(Event{Kind: EventFileFinished, Matched: true})
	d.Send(Event{Kind: EventCompleted, Duration: time.Second})
	d.Close()

	got := sink.snapshot()
	if len(got) != 4 {
		t.Fatalf("got %d events, want 4", len(got))
	}
	if got[0].Kind != EventFileStarted || got[0].Path != "a.txt" {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[3].Kind != EventCompleted || got[3].Duration != time.Second {
		t.Fatalf("unexpected last event: %+v", got[3])
	}
}

func TestDispatcherSendNeverBlocksWhenFull(t *testing.T) {
	blockUntil := make(chan struct{})
	sink := blockingSink{blockUntil: blockUntil}
	d := NewDispatcher(sink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < DefaultCapacity+100; i++ {
			d.Send(Event{Kind: EventBytesProgressed, BytesDelta: 1})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked instead of dropping events once the channel filled")
	}
	close(blockUntil)
	d.Close()
}

type blockingSink struct {
	blockUntil chan struct{}
}

func (s blockingSink) Progress(Event) {
	<-s.blockUntil
}
