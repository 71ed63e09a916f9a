package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-pipeline/internal/catalog"
	"github.com/sells-group/lead-pipeline/internal/enrich"
	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/pipeline"
	"github.com/sells-group/lead-pipeline/internal/progress"
	"github.com/sells-group/lead-pipeline/internal/resilience"
	"github.com/sells-group/lead-pipeline/internal/scorer"
	"github.com/sells-group/lead-pipeline/internal/source"
	"github.com/sells-group/lead-pipeline/internal/store"
)

// newTestEnv wires an offline environment: memory store, the examples
// source and no website inspection.
func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	st := store.NewMemory()
	reg := source.NewRegistry()
	reg.Register(source.NewExamples(nil))

	enricher := enrich.New(nil, nil, enrich.DefaultOptions())
	sc := scorer.New(nil)
	breakers := resilience.NewBreakers(resilience.DefaultCircuitConfig())
	orch := pipeline.New(pipeline.Config{MaxConcurrentSources: 2, SourceTimeout: 5 * time.Second},
		reg, enricher, sc, catalog.New(st), breakers)

	runs := progress.NewRegistry()
	env := &appEnv{
		Store:    st,
		Sources:  reg,
		Runs:     runs,
		Breakers: breakers,
		Runner:   pipeline.NewRunner(orch, runs),
		Service:  pipeline.NewService(st, enricher, sc),
	}
	t.Cleanup(env.Runner.Wait)
	return env
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newRouter(newTestEnv(t), nil)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartRun_PollUntilComplete(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, nil)

	rec := doRequest(t, h, http.MethodPost, "/runs", `{"countries":["Maroc","France"],"max_per_source":10}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	runID := started["run_id"]
	require.NotEmpty(t, runID)
	assert.Equal(t, "pending", started["status"])

	var final progress.Snapshot
	require.Eventually(t, func() bool {
		rec := doRequest(t, h, http.MethodGet, "/runs/"+runID+"/progress", "")
		if rec.Code != http.StatusOK {
			return false
		}
		var snap progress.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		final = snap
		return snap.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, progress.StatusCompleted, final.Status)
	assert.Equal(t, 100, final.Percentage)
	require.NotNil(t, final.Result)
	assert.Equal(t, 3, final.Result.Created)

	// The terminal snapshot disposes of the tracker.
	rec = doRequest(t, h, http.MethodGet, "/runs/"+runID+"/progress", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/leads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var leads []model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leads))
	assert.Len(t, leads, 3)
	for i := 1; i < len(leads); i++ {
		assert.GreaterOrEqual(t, leads[i-1].Score, leads[i].Score)
	}

	rec = doRequest(t, h, http.MethodGet, "/leads?country=France", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leads))
	assert.Len(t, leads, 1)
}

func TestStartRun_EmptyBodyUsesDefaults(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, nil)

	rec := doRequest(t, h, http.MethodPost, "/runs", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestStartRun_BadRequests(t *testing.T) {
	h := newRouter(newTestEnv(t), nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"countries":`},
		{name: "max per source too high", body: `{"max_per_source":101}`},
		{name: "negative max per source", body: `{"max_per_source":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestRunProgress_Unknown(t *testing.T) {
	h := newRouter(newTestEnv(t), nil)

	rec := doRequest(t, h, http.MethodGet, "/runs/nope/progress", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"run not found"}`, rec.Body.String())
}

func TestListLeads_EmptyIsArray(t *testing.T) {
	h := newRouter(newTestEnv(t), nil)

	rec := doRequest(t, h, http.MethodGet, "/leads?temperature=hot&min_score=10&limit=5&offset=0", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListLeads_InvalidQuery(t *testing.T) {
	h := newRouter(newTestEnv(t), nil)

	for _, q := range []string{"limit=abc", "min_score=-5", "offset=1.5"} {
		rec := doRequest(t, h, http.MethodGet, "/leads?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListSources(t *testing.T) {
	h := newRouter(newTestEnv(t), nil)

	rec := doRequest(t, h, http.MethodGet, "/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sources  []sourceInfo `json:"sources"`
		Circuits []any        `json:"circuits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "examples", body.Sources[0].Name)
	assert.Empty(t, body.Circuits)
}

func TestRouter_CORS(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"https://crm.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://crm.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newRouter(newTestEnv(t), nil)
	rec := doRequest(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
