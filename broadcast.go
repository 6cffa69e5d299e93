package main

import "errors"

// BroadcastEngine pushes frames to every registered viewer.
type BroadcastEngine struct {
	registry *ClientRegistry
}

func NewBroadcastEngine(registry *ClientRegistry) *BroadcastEngine {
	return &BroadcastEngine{registry: registry}
}

// Broadcast sends frame to a snapshot of the registry. Viewers still busy with
// an earlier frame miss this one; viewers whose send fails are removed.
// Nothing is queued or retried.
func (e *BroadcastEngine) Broadcast(frame *Frame) BroadcastResult {
	clients := e.registry.Snapshot()
	result := BroadcastResult{Attempted: len(clients)}

	for _, client := range clients {
		err := client.Send(frame)
		switch {
		case err == nil:
			result.Delivered++
		case errors.Is(err, ErrClientBusy):
			result.Skipped++
		default:
			if e.registry.Remove(client) {
				debugLog("Dropping client %s: %v", client.ID(), err)
			}
			result.Dropped++
		}
	}
	return result
}
