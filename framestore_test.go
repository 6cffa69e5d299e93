package main

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFrameStoreEmpty(t *testing.T) {
	store := NewFrameStore(newFakeClock())
	if _, ok := store.Current(); ok {
		t.Error("Expected no current frame")
	}
	if store.IsFresh(time.Hour) {
		t.Error("Empty store should not be fresh")
	}
	if _, err := store.Age(); !errors.Is(err, ErrNoFrameYet) {
		t.Errorf("Expected ErrNoFrameYet, got %v", err)
	}
}

func TestFrameStoreRejectsEmptyPayload(t *testing.T) {
	store := NewFrameStore(newFakeClock())
	if _, err := store.Replace(nil); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
	if _, err := store.Replace([]byte{}); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
	if _, ok := store.Current(); ok {
		t.Error("Rejected payload must not be stored")
	}
}

func TestFrameStoreReplaceReturnsLatest(t *testing.T) {
	clock := newFakeClock()
	store := NewFrameStore(clock)

	first, err := store.Replace([]byte("frame-1"))
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	second, err := store.Replace([]byte("frame-2"))
	if err != nil {
		t.Fatal(err)
	}

	current, ok := store.Current()
	if !ok {
		t.Fatal("Expected a current frame")
	}
	if current != second {
		t.Errorf("Expected second frame, got seq %d", current.Seq)
	}
	if string(first.Bytes) != "frame-1" {
		t.Errorf("Replaced frame was modified: %q", first.Bytes)
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("Expected seq 1 and 2, got %d and %d", first.Seq, second.Seq)
	}
	if !second.ReceivedAt.Equal(clock.Now()) {
		t.Errorf("Expected timestamp %v, got %v", clock.Now(), second.ReceivedAt)
	}
}

func TestFrameStoreFreshness(t *testing.T) {
	clock := newFakeClock()
	store := NewFrameStore(clock)
	store.Replace([]byte("frame"))

	clock.Advance(10 * time.Second)
	if !store.IsFresh(10 * time.Second) {
		t.Error("Frame exactly at the window should be fresh")
	}
	if store.IsFresh(5 * time.Second) {
		t.Error("Frame older than the window should not be fresh")
	}
	clock.Advance(time.Millisecond)
	if _, ok := store.FreshFrame(10 * time.Second); ok {
		t.Error("Frame past the window should not be returned")
	}
	age, err := store.Age()
	if err != nil {
		t.Fatal(err)
	}
	if age != 10*time.Second+time.Millisecond {
		t.Errorf("Expected age 10.001s, got %v", age)
	}
}

func TestFrameStoreConcurrentReaders(t *testing.T) {
	store := NewFrameStore(nil)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			store.Replace([]byte(fmt.Sprintf("frame-%d", i)))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastSeq uint64
			for i := 0; i < 500; i++ {
				frame, ok := store.Current()
				if !ok {
					continue
				}
				if frame.Seq < lastSeq {
					t.Errorf("Observed seq %d after %d", frame.Seq, lastSeq)
					return
				}
				if want := fmt.Sprintf("frame-%d", frame.Seq); string(frame.Bytes) != want {
					t.Errorf("Expected %q, got %q", want, frame.Bytes)
					return
				}
				lastSeq = frame.Seq
			}
		}()
	}
	wg.Wait()
}
