// Package fetcher is the shared HTTP client used by source connectors and
// the enricher: per-host rate limiting, bounded timeouts and retry on
// transient upstream failures.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request describes one outbound call.
type Request struct {
	Method  string        // defaults to GET
	URL     string
	Params  url.Values    // appended to the query string
	Form    url.Values    // sent as an urlencoded body; implies POST when Method is empty
	Header  http.Header
	Timeout time.Duration // overrides the client timeout when > 0
}

// Fetcher is the HTTP fetch capability.
type Fetcher interface {
	// Fetch performs req and returns the response body. Non-2xx responses
	// are returned as *StatusError.
	Fetch(ctx context.Context, req Request) ([]byte, error)

	// Download performs a GET and returns the body for streaming.
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}
