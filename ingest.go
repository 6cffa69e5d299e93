package main

import "sync"

// IngestObserver is notified after each successful broadcast, in Seq order.
// Observers run on the ingest path under its lock and must not block.
type IngestObserver func(frame *Frame, result BroadcastResult)

// IngestEndpoint accepts frames from the producer.
type IngestEndpoint struct {
	store  *FrameStore
	engine *BroadcastEngine

	// mu serializes replace, broadcast and observers so frames fan out and
	// telemetry is reported in arrival order even when several producer paths are active.
	mu        sync.Mutex
	observers []IngestObserver
}

func NewIngestEndpoint(store *FrameStore, engine *BroadcastEngine) *IngestEndpoint {
	return &IngestEndpoint{store: store, engine: engine}
}

// AddObserver registers fn to receive fan-out telemetry.
func (e *IngestEndpoint) AddObserver(fn IngestObserver) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// Ingest stores raw as the current frame and broadcasts it.
// Empty payloads are rejected with ErrInvalidFrame and change nothing.
func (e *IngestEndpoint) Ingest(raw []byte, contentLength int64) (IngestResult, error) {
	if contentLength <= 0 || len(raw) == 0 {
		return IngestResult{}, ErrInvalidFrame
	}

	e.mu.Lock()
	frame, err := e.store.Replace(raw)
	if err != nil {
		e.mu.Unlock()
		return IngestResult{}, err
	}
	result := e.engine.Broadcast(frame)
	for _, observe := range e.observers {
		observe(frame, result)
	}
	e.mu.Unlock()

	debugLog("Received frame: %d bytes, clients: %d, delivered: %d", len(raw), result.Attempted, result.Delivered)

	return IngestResult{
		Delivered: result.Delivered,
		Attempted: result.Attempted,
		Seq:       frame.Seq,
	}, nil
}
