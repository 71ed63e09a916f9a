package progress

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrUnknownRun is returned when a run id has no tracker.
var ErrUnknownRun = eris.New("progress: unknown run")

// Registry maps run ids to trackers. One registry is owned by the process
// and handed to both the code that starts runs and the code that polls them.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*Tracker)}
}

// Create registers a new pending tracker under id.
func (r *Registry) Create(id string) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trackers[id]; ok {
		return nil, eris.Errorf("progress: run %q already registered", id)
	}
	t := NewTracker()
	r.trackers[id] = t
	return t, nil
}

// Get returns the tracker for id.
func (r *Registry) Get(id string) (*Tracker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.trackers[id]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownRun, "run %s", id)
	}
	return t, nil
}

// Remove disposes of the tracker for id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, id)
}

// Evict removes id only while it still maps to t, so a late eviction never
// drops a tracker registered afterwards under the same id.
func (r *Registry) Evict(id string, t *Tracker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.trackers[id]; !ok || cur != t {
		return false
	}
	delete(r.trackers, id)
	return true
}

// Len returns the number of tracked runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
