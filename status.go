package main

import "time"

// StatusReporter answers health and status queries. It only reads.
type StatusReporter struct {
	store           *FrameStore
	registry        *ClientRegistry
	clock           Clock
	startedAt       time.Time
	streamingWindow time.Duration
}

func NewStatusReporter(store *FrameStore, registry *ClientRegistry, clock Clock, streamingWindow time.Duration) *StatusReporter {
	if clock == nil {
		clock = systemClock{}
	}
	return &StatusReporter{
		store:           store,
		registry:        registry,
		clock:           clock,
		startedAt:       clock.Now(),
		streamingWindow: streamingWindow,
	}
}

func (r *StatusReporter) Health() HealthReport {
	report := HealthReport{
		Status:  "ok",
		Clients: r.registry.Size(),
		Uptime:  r.clock.Now().Sub(r.startedAt).Seconds(),
	}
	if age, err := r.store.Age(); err == nil {
		ms := age.Milliseconds()
		report.HasFrame = true
		report.LastFrameAge = &ms
	}
	return report
}

func (r *StatusReporter) Status() StatusReport {
	report := StatusReport{
		IsStreaming:      r.store.IsFresh(r.streamingWindow),
		ConnectedClients: r.registry.Size(),
		ServerTime:       r.clock.Now().UnixMilli(),
	}
	if frame, ok := r.store.Current(); ok {
		ts := frame.ReceivedAt.UnixMilli()
		report.LastFrameTime = &ts
	}
	return report
}
