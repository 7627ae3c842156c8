package importer

import (
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle state of one import.
type Status string

const (
	// StatusPending means the import was accepted but not started.
	StatusPending Status = "pending"

	// StatusParsing means the source is being read and parsed.
	StatusParsing Status = "parsing"

	// StatusParsed means the outline tree was built.
	StatusParsed Status = "parsed"

	// StatusMaterialized means backlog records were created from the tree.
	StatusMaterialized Status = "materialized"

	// StatusFailed means the import stopped with an error.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusMaterialized || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusPending: {StatusParsing, StatusFailed},
	StatusParsing: {StatusParsed, StatusFailed},
	StatusParsed:  {StatusMaterialized, StatusFailed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusReport is a single status observation for an import.
type StatusReport struct {
	ImportID  string    `json:"import_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// StatusTracker tracks the current status and history for a single import.
// It is thread-safe for concurrent reads and writes.
type StatusTracker struct {
	mu         sync.RWMutex
	importID   string
	source     string
	current    Status
	message    string
	started    time.Time
	lastUpdate time.Time
	history    []StatusReport
	maxHistory int
}

// NewStatusTracker creates a tracker in the pending state.
// maxHistory limits the number of reports kept (0 = unlimited).
func NewStatusTracker(importID, source string, maxHistory int) *StatusTracker {
	now := time.Now()
	st := &StatusTracker{
		importID:   importID,
		source:     source,
		current:    StatusPending,
		started:    now,
		lastUpdate: now,
		maxHistory: maxHistory,
	}
	st.history = []StatusReport{{ImportID: importID, Status: StatusPending, Timestamp: now}}
	return st
}

// Update moves the import to status. Illegal transitions are ignored and
// reported as false, so a terminal status sticks.
func (st *StatusTracker) Update(status Status, message string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !CanTransition(st.current, status) {
		return false
	}

	now := time.Now()
	st.current = status
	st.message = message
	st.lastUpdate = now

	st.history = append(st.history, StatusReport{
		ImportID:  st.importID,
		Status:    status,
		Timestamp: now,
		Message:   message,
	})
	if st.maxHistory > 0 && len(st.history) > st.maxHistory {
		st.history = st.history[len(st.history)-st.maxHistory:]
	}
	return true
}

// GetStatus returns the current status and when it was last updated.
func (st *StatusTracker) GetStatus() (Status, time.Time) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current, st.lastUpdate
}

// GetStatusReport returns a report for the current state.
func (st *StatusTracker) GetStatusReport() StatusReport {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return StatusReport{
		ImportID:  st.importID,
		Status:    st.current,
		Timestamp: st.lastUpdate,
		Message:   st.message,
	}
}

// GetHistory returns a copy of the status history.
func (st *StatusTracker) GetHistory() []StatusReport {
	st.mu.RLock()
	defer st.mu.RUnlock()

	history := make([]StatusReport, len(st.history))
	copy(history, st.history)
	return history
}

// Elapsed returns the time between creation and the last update.
func (st *StatusTracker) Elapsed() time.Duration {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.lastUpdate.Sub(st.started)
}

// ImportID returns the import this tracker is for.
func (st *StatusTracker) ImportID() string {
	return st.importID
}

// Source returns the path being imported.
func (st *StatusTracker) Source() string {
	return st.source
}

// Registry manages StatusTrackers for many imports.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*StatusTracker
	order    []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		trackers: make(map[string]*StatusTracker),
	}
}

// GetOrCreate returns the tracker for an import, creating it if needed.
func (r *Registry) GetOrCreate(importID, source string, maxHistory int) *StatusTracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tracker, exists := r.trackers[importID]; exists {
		return tracker
	}

	tracker := NewStatusTracker(importID, source, maxHistory)
	r.trackers[importID] = tracker
	r.order = append(r.order, importID)
	return tracker
}

// Get returns the tracker for an import, or nil if not found.
func (r *Registry) Get(importID string) *StatusTracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trackers[importID]
}

// All returns the current report of every import in registration order.
func (r *Registry) All() []StatusReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := make([]StatusReport, 0, len(r.order))
	for _, id := range r.order {
		reports = append(reports, r.trackers[id].GetStatusReport())
	}
	return reports
}

// CountByStatus returns how many imports are in each status.
func (r *Registry) CountByStatus() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int)
	for _, tracker := range r.trackers {
		status, _ := tracker.GetStatus()
		counts[status]++
	}
	return counts
}

// Remove removes the tracker for an import.
func (r *Registry) Remove(importID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trackers[importID]; !ok {
		return
	}
	delete(r.trackers, importID)
	for i, id := range r.order {
		if id == importID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Prune removes terminal imports last updated before cutoff and returns
// the removed IDs, sorted.
func (r *Registry) Prune(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	kept := r.order[:0]
	for _, id := range r.order {
		status, updated := r.trackers[id].GetStatus()
		if status.Terminal() && updated.Before(cutoff) {
			delete(r.trackers, id)
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	sort.Strings(removed)
	return removed
}

// Count returns the number of tracked imports.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
