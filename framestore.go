package main

import (
	"sync"
	"time"
)

// Clock supplies the current time. time.Now carries a monotonic reading,
// so ages computed from it are not affected by wall clock steps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FrameStore holds the most recently received frame.
type FrameStore struct {
	clock Clock

	mu      sync.RWMutex
	current *Frame
	seq     uint64
}

// NewFrameStore creates an empty store. A nil clock uses the system clock.
func NewFrameStore(clock Clock) *FrameStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &FrameStore{clock: clock}
}

// Replace stores data as the new current frame and returns it.
// The caller must not modify data afterwards.
func (s *FrameStore) Replace(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrInvalidFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	frame := &Frame{
		Bytes:      data,
		ReceivedAt: s.clock.Now(),
		Seq:        s.seq,
	}
	s.current = frame
	return frame, nil
}

// Current returns the latest frame, or false if none has arrived.
func (s *FrameStore) Current() (*Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// FreshFrame returns the current frame if it is at most maxAge old.
func (s *FrameStore) FreshFrame(maxAge time.Duration) (*Frame, bool) {
	frame, ok := s.Current()
	if !ok || frame.Age(s.clock.Now()) > maxAge {
		return nil, false
	}
	return frame, true
}

// IsFresh reports whether a frame exists and is at most maxAge old.
func (s *FrameStore) IsFresh(maxAge time.Duration) bool {
	_, ok := s.FreshFrame(maxAge)
	return ok
}

// Age returns the age of the current frame, or ErrNoFrameYet.
func (s *FrameStore) Age() (time.Duration, error) {
	frame, ok := s.Current()
	if !ok {
		return 0, ErrNoFrameYet
	}
	return frame.Age(s.clock.Now()), nil
}
