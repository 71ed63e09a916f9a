package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/progress"
	"github.com/sells-group/lead-pipeline/internal/source"
)

func TestRunner_StartAndPoll(t *testing.T) {
	reg := source.NewRegistry()
	reg.Register(source.NewExamples(clock))
	orch, _ := newTestOrchestrator(t, reg, nil, nil)
	runs := progress.NewRegistry()
	r := NewRunner(orch, runs)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := r.Start(ctx, Request{Countries: []string{"Maroc"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	cancel() // the run must not depend on the caller's context
	r.Wait()

	snap, err := r.Progress(id)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Percentage)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 2, snap.Result.TotalFound)

	// A terminal snapshot disposes of the tracker.
	_, err = r.Progress(id)
	assert.ErrorIs(t, err, progress.ErrUnknownRun)
	assert.Equal(t, 0, runs.Len())
}

func TestRunner_ProgressUnknownRun(t *testing.T) {
	r := NewRunner(nil, progress.NewRegistry())
	_, err := r.Progress("missing")
	assert.ErrorIs(t, err, progress.ErrUnknownRun)
}

func TestRunner_FailedRunIsObservable(t *testing.T) {
	orch, _ := newTestOrchestrator(t, fakeSources{err: errors.New("bad config")}, nil, nil)
	r := NewRunner(orch, progress.NewRegistry())

	id, err := r.Start(context.Background(), Request{})
	require.NoError(t, err)
	r.Wait()

	snap, err := r.Progress(id)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusError, snap.Status)
	require.NotEmpty(t, snap.Errors)
	assert.Contains(t, snap.Errors[0].Error, "bad config")
}

func TestRunner_DuplicateIDRejected(t *testing.T) {
	orch, _ := newTestOrchestrator(t, fakeSources{}, nil, nil)
	r := NewRunner(orch, progress.NewRegistry())
	r.newID = func() string { return "same" }

	_, err := r.Start(context.Background(), Request{})
	require.NoError(t, err)
	_, err = r.Start(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: register run")
	r.Wait()
}

func TestRunner_RunSync(t *testing.T) {
	c := &fakeConnector{name: "boamp", records: []model.RawLeadRecord{raw("Lot 9")}}
	orch, st := newTestOrchestrator(t, fakeSources{connectors: []source.Connector{c}}, nil, nil)
	r := NewRunner(orch, progress.NewRegistry())

	res, err := r.RunSync(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, st.Len())
}

func TestRunner_UnpolledRunExpires(t *testing.T) {
	orch, _ := newTestOrchestrator(t, fakeSources{}, nil, nil)
	runs := progress.NewRegistry()
	r := NewRunner(orch, runs).WithRetention(20 * time.Millisecond)

	id, err := r.Start(context.Background(), Request{})
	require.NoError(t, err)
	r.Wait()

	assert.Eventually(t, func() bool { return runs.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	_, err = r.Progress(id)
	assert.ErrorIs(t, err, progress.ErrUnknownRun)
}

func TestRunner_RetentionDefaults(t *testing.T) {
	r := NewRunner(nil, progress.NewRegistry())
	assert.Equal(t, DefaultRetention, r.retention)
	assert.Equal(t, DefaultRetention, r.WithRetention(0).retention)
	assert.Equal(t, time.Minute, r.WithRetention(time.Minute).retention)
}
