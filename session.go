package main

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// SessionState is the lifecycle of one viewer connection.
type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionOpen
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionOpen:
		return "open"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// orderedClient hands frames to a viewer in Seq order. A frame no newer than
// one already accepted is skipped, so a catch-up send that loses a race with a
// broadcast cannot rewind the viewer's picture.
type orderedClient struct {
	ClientHandle

	mu   sync.Mutex
	last uint64
}

func (c *orderedClient) Send(frame *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frame.Seq <= c.last {
		return ErrClientBusy
	}
	if err := c.ClientHandle.Send(frame); err != nil {
		return err
	}
	c.last = frame.Seq
	return nil
}

// ViewerSession drives registration and catch-up delivery for one viewer.
// Reconnecting viewers get a new session.
type ViewerSession struct {
	client        *orderedClient
	registry      *ClientRegistry
	store         *FrameStore
	catchUpWindow time.Duration

	mu    sync.Mutex
	state SessionState
}

func NewViewerSession(client ClientHandle, registry *ClientRegistry, store *FrameStore, catchUpWindow time.Duration) *ViewerSession {
	return &ViewerSession{
		client:        &orderedClient{ClientHandle: client},
		registry:      registry,
		store:         store,
		catchUpWindow: catchUpWindow,
		state:         SessionConnecting,
	}
}

// OnOpen registers the viewer and sends the current frame if it is fresh.
// It only acts on a connecting session; a closed session is never reopened.
// A catch-up frame already overtaken by a broadcast is skipped.
// A failed catch-up send closes the session and returns the error.
func (s *ViewerSession) OnOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionConnecting {
		return nil
	}
	s.state = SessionOpen
	s.registry.Add(s.client)

	frame, ok := s.store.FreshFrame(s.catchUpWindow)
	if !ok {
		return nil
	}
	err := s.client.Send(frame)
	if err == nil || errors.Is(err, ErrClientBusy) {
		return nil
	}
	s.registry.Remove(s.client)
	s.state = SessionClosed
	return fmt.Errorf("catch-up frame %d: %w", frame.Seq, err)
}

// OnClose deregisters the viewer. Safe to call more than once.
func (s *ViewerSession) OnClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.Remove(s.client)
	s.state = SessionClosed
}

// OnError is OnClose for transport failures.
func (s *ViewerSession) OnError(err error) {
	debugLog("Viewer %s error: %v", s.client.ID(), err)
	s.OnClose()
}

func (s *ViewerSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
