package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:         "test-agent",
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		RequestsPerSecond: 1000,
		Burst:             100,
		BackoffBase:       time.Millisecond,
	})
}

func TestFetch_GetWithParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "GTB", r.URL.Query().Get("q"))
		assert.Equal(t, "marche", r.URL.Query().Get("type"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte("results")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := Get(context.Background(), f, srv.URL+"/avis?page=1", url.Values{"q": {"GTB"}, "type": {"marche"}})
	require.NoError(t, err)
	assert.Equal(t, "results", string(body))
}

func TestFetch_PostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "[out:json];", r.PostForm.Get("data"))
		w.Write([]byte(`{"elements":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Fetch(context.Background(), Request{URL: srv.URL, Form: url.Values{"data": {"[out:json];"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"elements":[]}`, string(body))
}

func TestFetch_PostFormRetriedBodyIsResent(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "q", r.PostForm.Get("data"))
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Fetch(context.Background(), Request{URL: srv.URL, Form: url.Values{"data": {"q"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := Get(context.Background(), f, srv.URL+"/missing", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetch_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("success")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := Get(context.Background(), f, srv.URL+"/retry", nil)
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetch_RetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := Get(context.Background(), f, srv.URL+"/fail", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
}

func TestFetch_TimeoutIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := newTestFetcher()
	start := time.Now()
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetch_MaxBodyBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789")) //nolint:errcheck
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxBodyBytes: 4, RequestsPerSecond: 100})
	body, err := Get(context.Background(), f, srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(body))
}

func TestFetch_InvalidURL(t *testing.T) {
	f := newTestFetcher()
	_, err := Get(context.Background(), f, "not a url", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid url")
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("<rss></rss>")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL+"/feed")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "<rss></rss>", string(data))
}

func TestDownload_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late")) //nolint:errcheck
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher()
	_, err := f.Download(ctx, srv.URL)
	require.Error(t, err)
}

func TestRateLimiting_PerHost(t *testing.T) {
	var (
		mu       sync.Mutex
		reqTimes []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqTimes = append(reqTimes, time.Now())
		mu.Unlock()
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	f := NewHTTPFetcher(HTTPOptions{
		MaxRetries:        1,
		RequestsPerSecond: 1000,
		HostRates:         map[string]float64{u.Host: 4},
	})

	for range 3 {
		_, err := Get(context.Background(), f, srv.URL, nil)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reqTimes, 3)
	// 4 req/s with burst 1: three requests span at least ~500ms minus the
	// adaptive speed-up after each success.
	assert.GreaterOrEqual(t, reqTimes[2].Sub(reqTimes[0]).Milliseconds(), int64(300))
}

func TestLimiterFor_SharedPerHost(t *testing.T) {
	f := newTestFetcher()
	a := f.limiterFor("https://www.boamp.fr/avis?q=1")
	b := f.limiterFor("https://www.boamp.fr/other")
	c := f.limiterFor("https://overpass-api.de/api/interpreter")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.NotNil(t, f.limiterFor("::bad::"))
}

func TestLimiterFor_HostRateOverride(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{HostRates: DefaultHostRates()})
	assert.InDelta(t, 0.5, float64(f.limiterFor("https://overpass-api.de/api/interpreter").Limit()), 0.001)
	assert.InDelta(t, 1.0, float64(f.limiterFor("https://example.com").Limit()), 0.001)
}

func TestFetch_429_AdaptiveBackoff(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	lim := f.limiterFor(srv.URL)
	initialRate := lim.Limit()

	body, err := Get(context.Background(), f, srv.URL+"/data", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), attempts.Load())

	// 1000 → 500 → 250 → 300
	assert.Less(t, float64(lim.Limit()), float64(initialRate))
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 15*time.Second, f.opts.Timeout)
	assert.Equal(t, 2, f.opts.MaxRetries)
	assert.Equal(t, "lead-pipeline/1.0", f.opts.UserAgent)
	assert.Equal(t, int64(5<<20), f.opts.MaxBodyBytes)

	transport, ok := f.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 10, transport.MaxIdleConnsPerHost)
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)
	for range 10 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.01)

	for range 10 {
		lim.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.01)
}

func TestAdaptiveLimiter_WaitCancelled(t *testing.T) {
	lim := NewAdaptiveLimiter(rate.Limit(0.001), 1)
	require.NoError(t, lim.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, lim.Wait(ctx))
}
