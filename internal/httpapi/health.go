// v0
// internal/httpapi/health.go
package httpapi

import "sync"

// HealthState tracks readiness. Liveness is implied by the process
// answering; readiness is flipped on once the server listens and off when
// shutdown begins.
type HealthState struct {
	mu    sync.RWMutex
	ready bool
}

// NewHealthState starts not ready.
func NewHealthState() *HealthState {
	return &HealthState{}
}

func (h *HealthState) SetReady(value bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = value
}

func (h *HealthState) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}
