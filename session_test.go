package main

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionCatchUpWhenFresh(t *testing.T) {
	clock := newFakeClock()
	r := newRelay(testConfig(), clock)
	r.store.Replace([]byte("frame-a"))
	clock.Advance(9 * time.Second)

	client := newFakeClient("v1")
	session := NewViewerSession(client, r.registry, r.store, 10*time.Second)
	if err := session.OnOpen(); err != nil {
		t.Fatal(err)
	}
	if session.State() != SessionOpen {
		t.Errorf("Expected open, got %s", session.State())
	}
	if r.registry.Size() != 1 {
		t.Errorf("Expected registered client, got size %d", r.registry.Size())
	}
	if got := client.received(); len(got) != 1 || string(got[0]) != "frame-a" {
		t.Errorf("Expected catch-up frame, got %q", got)
	}
}

func TestSessionNoCatchUpWhenStale(t *testing.T) {
	clock := newFakeClock()
	r := newRelay(testConfig(), clock)
	r.store.Replace([]byte("old"))
	clock.Advance(11 * time.Second)

	client := newFakeClient("v1")
	NewViewerSession(client, r.registry, r.store, 10*time.Second).OnOpen()
	if len(client.received()) != 0 {
		t.Error("Stale frame must not be sent on join")
	}
}

func TestSessionNoCatchUpWithoutFrame(t *testing.T) {
	r := newRelay(testConfig(), newFakeClock())
	client := newFakeClient("v1")
	NewViewerSession(client, r.registry, r.store, 10*time.Second).OnOpen()
	if len(client.received()) != 0 {
		t.Error("No frame should be sent before the first ingest")
	}
	if r.registry.Size() != 1 {
		t.Error("Viewer should still be registered")
	}
}

func TestSessionCatchUpFailureCloses(t *testing.T) {
	r := newRelay(testConfig(), newFakeClock())
	r.store.Replace([]byte("frame"))

	client := newFakeClient("v1")
	client.fail(ErrSendFailed)
	session := NewViewerSession(client, r.registry, r.store, 10*time.Second)
	if err := session.OnOpen(); !errors.Is(err, ErrSendFailed) {
		t.Errorf("Expected ErrSendFailed, got %v", err)
	}
	if session.State() != SessionClosed {
		t.Errorf("Expected closed, got %s", session.State())
	}
	if r.registry.Size() != 0 {
		t.Error("Failed viewer must be removed")
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	r := newRelay(testConfig(), newFakeClock())
	client := newFakeClient("v1")
	session := NewViewerSession(client, r.registry, r.store, 10*time.Second)
	session.OnOpen()

	session.OnClose()
	session.OnError(errors.New("reset"))
	session.OnClose()
	if session.State() != SessionClosed {
		t.Errorf("Expected closed, got %s", session.State())
	}
	if r.registry.Size() != 0 {
		t.Errorf("Expected empty registry, got %d", r.registry.Size())
	}

	session.OnOpen()
	if r.registry.Size() != 0 {
		t.Error("Closed session must not register again")
	}
}

// raceClock runs hook once, from inside the next Now call after arming.
type raceClock struct {
	*fakeClock

	mu   sync.Mutex
	hook func()
}

func (c *raceClock) arm(hook func()) {
	c.mu.Lock()
	c.hook = hook
	c.mu.Unlock()
}

func (c *raceClock) Now() time.Time {
	c.mu.Lock()
	hook := c.hook
	c.hook = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return c.fakeClock.Now()
}

func TestSessionCatchUpNeverRewindsViewer(t *testing.T) {
	clock := &raceClock{fakeClock: newFakeClock()}
	r := newRelay(testConfig(), clock)
	r.ingest.Ingest([]byte("frame-1"), 7)

	// A broadcast lands between reading the catch-up frame and sending it.
	clock.arm(func() { r.ingest.Ingest([]byte("frame-2"), 7) })

	client := newFakeClient("v1")
	session := NewViewerSession(client, r.registry, r.store, 10*time.Second)
	if err := session.OnOpen(); err != nil {
		t.Fatal(err)
	}
	got := client.received()
	if len(got) != 1 || string(got[0]) != "frame-2" {
		t.Errorf("Expected only the newer frame, got %q", got)
	}
	if session.State() != SessionOpen {
		t.Errorf("Expected open, got %s", session.State())
	}
}

func TestOrderedClientSkipsOlderFrames(t *testing.T) {
	inner := newFakeClient("v1")
	c := &orderedClient{ClientHandle: inner}

	if err := c.Send(&Frame{Bytes: []byte("f2"), Seq: 2}); err != nil {
		t.Fatal(err)
	}
	for _, seq := range []uint64{1, 2} {
		if err := c.Send(&Frame{Bytes: []byte("old"), Seq: seq}); !errors.Is(err, ErrClientBusy) {
			t.Errorf("Seq %d: expected ErrClientBusy, got %v", seq, err)
		}
	}
	if err := c.Send(&Frame{Bytes: []byte("f3"), Seq: 3}); err != nil {
		t.Fatal(err)
	}
	if got := inner.received(); len(got) != 2 || string(got[1]) != "f3" {
		t.Errorf("Expected f2 then f3, got %q", got)
	}

	// A rejected frame does not advance the high-water mark.
	inner.fail(ErrClientBusy)
	c.Send(&Frame{Bytes: []byte("f4"), Seq: 4})
	inner.fail(nil)
	if err := c.Send(&Frame{Bytes: []byte("f4"), Seq: 4}); err != nil {
		t.Errorf("Expected retry of seq 4 to pass, got %v", err)
	}
}
