package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/progress"
)

// DefaultRetention is how long a finished run stays pollable when nobody
// collects its terminal snapshot.
const DefaultRetention = time.Hour

// Runner starts runs in the background and answers progress queries
// against the shared registry.
type Runner struct {
	orch      *Orchestrator
	registry  *progress.Registry
	newID     func() string
	retention time.Duration
	wg        sync.WaitGroup
}

// NewRunner creates a Runner publishing to registry.
func NewRunner(orch *Orchestrator, registry *progress.Registry) *Runner {
	return &Runner{orch: orch, registry: registry, newID: uuid.NewString, retention: DefaultRetention}
}

// WithRetention sets how long finished runs are kept; non-positive values
// keep the default.
func (r *Runner) WithRetention(d time.Duration) *Runner {
	if d > 0 {
		r.retention = d
	}
	return r
}

// Start registers a tracker and launches the run without blocking. The run
// outlives ctx's cancellation but keeps its values.
func (r *Runner) Start(ctx context.Context, req Request) (string, error) {
	id := r.newID()
	tracker, err := r.registry.Create(id)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: register run")
	}

	runCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.orch.Run(runCtx, req, tracker) // outcome is published through the tracker
		time.AfterFunc(r.retention, func() {
			if r.registry.Evict(id, tracker) {
				zap.L().Debug("pipeline: expired unpolled run", zap.String("run_id", id))
			}
		})
	}()
	return id, nil
}

// RunSync executes a run in the caller's goroutine.
func (r *Runner) RunSync(ctx context.Context, req Request) (*model.RunResult, error) {
	return r.orch.Run(ctx, req, progress.NewTracker())
}

// Progress returns the snapshot for run id. Once a terminal snapshot has
// been handed out the tracker is disposed of; unpolled runs expire after the
// retention period.
func (r *Runner) Progress(id string) (progress.Snapshot, error) {
	tracker, err := r.registry.Get(id)
	if err != nil {
		return progress.Snapshot{}, err
	}
	snap := tracker.Snapshot()
	if snap.Status.Terminal() {
		r.registry.Remove(id)
	}
	return snap, nil
}

// Wait blocks until every started run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
