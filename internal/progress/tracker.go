// Package progress tracks pipeline runs so a separate poller can observe
// them while they execute.
package progress

import (
	"sync"
	"time"

	"github.com/sells-group/lead-pipeline/internal/model"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// globalSource is the source name used for run-level failures.
const globalSource = "global"

// Snapshot is a point-in-time copy of a tracker's state.
type Snapshot struct {
	Status           Status              `json:"status"`
	Percentage       int                 `json:"percentage"`
	CurrentSource    string              `json:"current_source"`
	CompletedSources int                 `json:"completed_sources"`
	TotalSources     int                 `json:"total_sources"`
	LeadsFound       int                 `json:"leads_found"`
	Errors           []model.SourceError `json:"errors"`
	ElapsedSeconds   float64             `json:"elapsed_seconds"`
	Result           *model.RunResult    `json:"results,omitempty"`
}

// Tracker holds the mutable progress of one run. The orchestrator is the
// only writer; any number of goroutines may call Snapshot concurrently.
type Tracker struct {
	mu sync.RWMutex

	status     Status
	total      int
	completed  int
	current    string
	leadsFound int
	errors     []model.SourceError
	startTime  time.Time
	endTime    time.Time
	result     *model.RunResult

	nowFunc func() time.Time
}

// NewTracker returns a tracker in the pending state.
func NewTracker() *Tracker {
	return &Tracker{
		status:  StatusPending,
		nowFunc: time.Now,
	}
}

// Start moves a pending run to running with the given number of sources.
// It returns false if the run already started.
func (t *Tracker) Start(totalSources int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPending {
		return false
	}
	if totalSources < 0 {
		totalSources = 0
	}
	t.status = StatusRunning
	t.total = totalSources
	t.startTime = t.nowFunc()
	return true
}

// BeginSource marks source as the one being consulted. It only applies while
// the run is running.
func (t *Tracker) BeginSource(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRunning {
		return false
	}
	t.current = source
	return true
}

// RecordSourceOutcome registers the result of one consulted source. It must
// be called once per source; calls past the total are ignored so the
// completed count never overshoots. A non-nil err is appended to the error
// list instead of counting leads.
func (t *Tracker) RecordSourceOutcome(source string, leadsFound int, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRunning || t.completed >= t.total {
		return false
	}
	t.current = source
	t.completed++
	if err != nil {
		t.errors = append(t.errors, model.SourceError{Source: source, Error: err.Error()})
		return true
	}
	if leadsFound > 0 {
		t.leadsFound += leadsFound
	}
	return true
}

// Complete marks the run as completed and attaches its result.
func (t *Tracker) Complete(result *model.RunResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Terminal() {
		return false
	}
	t.status = StatusCompleted
	t.endTime = t.nowFunc()
	t.result = result
	return true
}

// Fail marks the run as failed with a run-level error message.
func (t *Tracker) Fail(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Terminal() {
		return false
	}
	if t.startTime.IsZero() {
		t.startTime = t.nowFunc()
	}
	t.status = StatusError
	t.endTime = t.nowFunc()
	t.errors = append(t.errors, model.SourceError{Source: globalSource, Error: message})
	return true
}

// Status returns the current lifecycle state.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Snapshot returns a consistent copy of the tracker state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Status:           t.status,
		CurrentSource:    t.current,
		CompletedSources: t.completed,
		TotalSources:     t.total,
		LeadsFound:       t.leadsFound,
		Errors:           make([]model.SourceError, len(t.errors)),
		Result:           t.result,
	}
	copy(s.Errors, t.errors)

	switch {
	case t.total > 0:
		s.Percentage = min(t.completed*100/t.total, 100)
	case t.status == StatusCompleted:
		s.Percentage = 100
	}

	if !t.startTime.IsZero() {
		end := t.endTime
		if end.IsZero() {
			end = t.nowFunc()
		}
		s.ElapsedSeconds = end.Sub(t.startTime).Seconds()
	}
	return s
}
