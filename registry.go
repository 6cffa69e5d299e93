package main

import "sync"

// ClientRegistry tracks the connected viewers.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]ClientHandle
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]ClientHandle)}
}

// Add registers a client. Adding the same client twice is a no-op.
func (r *ClientRegistry) Add(client ClientHandle) {
	r.mu.Lock()
	r.clients[client.ID()] = client
	r.mu.Unlock()
}

// Remove deregisters a client and reports whether it was present.
func (r *ClientRegistry) Remove(client ClientHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client.ID()]; !ok {
		return false
	}
	delete(r.clients, client.ID())
	return true
}

// Snapshot copies the current membership. Callers may iterate it
// while other goroutines add or remove clients.
func (r *ClientRegistry) Snapshot() []ClientHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]ClientHandle, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

func (r *ClientRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
