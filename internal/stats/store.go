// v0
// internal/stats/store.go
// Package stats holds the process-wide publication counters.
package stats

import (
	"strings"
	"sync"
	"time"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

// Topic roles used to break attempt failures down.
const (
	RoleEvents = "events"
	RoleAlerts = "alerts"
)

// LastError records the most recent publish failure.
type LastError struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Statistics is a read-only copy of the counters.
type Statistics struct {
	ReadingsGenerated uint64                 `json:"totalReadingsGenerated"`
	EventsPublished   uint64                 `json:"totalEventsPublished"`
	AlertsPublished   uint64                 `json:"totalAlertsPublished"`
	PublishFailures   uint64                 `json:"totalPublishFailures"`
	FailuresByTopic   map[string]uint64      `json:"failuresByTopic"`
	AlertsByKind      map[sensor.Kind]uint64 `json:"alertsByClassification"`
	LastPublishAt     *time.Time             `json:"lastPublishAt"`
	LastError         *LastError             `json:"lastError"`
	Since             time.Time              `json:"since"`
}

// Store owns the counters. Every mutation and every snapshot goes through
// the same lock, so snapshots never observe a partial update.
type Store struct {
	mu    sync.RWMutex
	now   func() time.Time
	state Statistics
}

// New creates a zeroed store. A nil clock defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{now: now}
	s.state = s.zero()
	return s
}

func (s *Store) zero() Statistics {
	byKind := make(map[sensor.Kind]uint64, len(sensor.AllKinds()))
	for _, k := range sensor.AllKinds() {
		byKind[k] = 0
	}
	return Statistics{
		FailuresByTopic: map[string]uint64{RoleEvents: 0, RoleAlerts: 0},
		AlertsByKind:    byKind,
		Since:           s.now().UTC(),
	}
}

// Snapshot returns a deep copy of the current counters.
func (s *Store) Snapshot() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Reset zeroes every counter and returns the values held just before.
func (s *Store) Reset() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state.clone()
	s.state = s.zero()
	return prev
}

// RecordReading counts one successfully generated reading.
func (s *Store) RecordReading() {
	s.mu.Lock()
	s.state.ReadingsGenerated++
	s.mu.Unlock()
}

// RecordEventPublished counts a delivered event.
func (s *Store) RecordEventPublished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.EventsPublished++
	s.touch()
}

// RecordAlertPublished counts a delivered alert once per classification it carries.
func (s *Store) RecordAlertPublished(kinds []sensor.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AlertsPublished++
	for _, k := range kinds {
		s.state.AlertsByKind[k]++
	}
	s.touch()
}

// RecordAttemptFailure records a single failed publish attempt for a topic role.
func (s *Store) RecordAttemptFailure(role, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role = strings.TrimSpace(role)
	if role == "" {
		role = "unknown"
	}
	s.state.FailuresByTopic[role]++
	s.state.LastError = &LastError{Reason: reason, At: s.now().UTC()}
}

// RecordOutcomeFailure counts one dispatch that had at least one failed attempt.
func (s *Store) RecordOutcomeFailure() {
	s.mu.Lock()
	s.state.PublishFailures++
	s.mu.Unlock()
}

func (s *Store) touch() {
	ts := s.now().UTC()
	s.state.LastPublishAt = &ts
}

func (st Statistics) clone() Statistics {
	out := st
	out.FailuresByTopic = make(map[string]uint64, len(st.FailuresByTopic))
	for k, v := range st.FailuresByTopic {
		out.FailuresByTopic[k] = v
	}
	out.AlertsByKind = make(map[sensor.Kind]uint64, len(st.AlertsByKind))
	for k, v := range st.AlertsByKind {
		out.AlertsByKind[k] = v
	}
	if st.LastPublishAt != nil {
		ts := *st.LastPublishAt
		out.LastPublishAt = &ts
	}
	if st.LastError != nil {
		le := *st.LastError
		out.LastError = &le
	}
	return out
}
