package main

import (
	"errors"
	"time"
)

var (
	// ErrInvalidFrame is returned for empty ingest payloads.
	ErrInvalidFrame = errors.New("invalid frame: empty payload")

	// ErrSendFailed means the viewer connection is closing or its transport failed.
	ErrSendFailed = errors.New("send to client failed")

	// ErrClientBusy means the viewer has not written its previous frame yet.
	// The frame is skipped for that viewer only.
	ErrClientBusy = errors.New("client not ready for next frame")

	// ErrNoFrameYet is returned by queries made before the first frame arrived.
	ErrNoFrameYet = errors.New("no frame received yet")
)

// Frame is one JPEG image received from the producer.
// A stored Frame is never modified; replacing it creates a new value.
type Frame struct {
	Bytes      []byte
	ReceivedAt time.Time
	Seq        uint64
}

// Age returns how old the frame is at now.
func (f *Frame) Age(now time.Time) time.Duration {
	return now.Sub(f.ReceivedAt)
}

// ClientHandle is one open viewer connection.
// Send must not block: it either accepts the frame for delivery or fails.
type ClientHandle interface {
	ID() string
	Send(frame *Frame) error
}

// BroadcastResult counts the outcome of one fan-out cycle.
type BroadcastResult struct {
	Attempted int
	Delivered int
	Skipped   int // viewers still busy with an earlier frame
	Dropped   int // viewers pruned after a failed send
}

// IngestResult is reported back to the producer.
type IngestResult struct {
	Delivered int    `json:"delivered"`
	Attempted int    `json:"attempted"`
	Seq       uint64 `json:"seq"`
}

// HealthReport is served on /health.
type HealthReport struct {
	Status       string  `json:"status"`
	Clients      int     `json:"clients"`
	HasFrame     bool    `json:"hasFrame"`
	LastFrameAge *int64  `json:"lastFrameAge"`
	Uptime       float64 `json:"uptime"`
}

// StatusReport is served on /api/status.
type StatusReport struct {
	IsStreaming      bool   `json:"isStreaming"`
	ConnectedClients int    `json:"connectedClients"`
	LastFrameTime    *int64 `json:"lastFrameTime"`
	ServerTime       int64  `json:"serverTime"`
}

// telemetryMessage is published to Redis after every broadcast.
type telemetryMessage struct {
	Seq        uint64 `json:"seq"`
	Bytes      int    `json:"bytes"`
	Attempted  int    `json:"attempted"`
	Delivered  int    `json:"delivered"`
	Skipped    int    `json:"skipped"`
	Dropped    int    `json:"dropped"`
	ReceivedAt int64  `json:"received_at"`
}
