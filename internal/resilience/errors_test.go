package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input"), false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped explicit", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 429)), true},
		{"eris wrapped explicit", eris.Wrap(NewTransientError(errors.New("x"), 429), "call"), true},
		{"status 503", eris.Wrap(&statusErr{503}, "fetch"), true},
		{"status 429", &statusErr{429}, true},
		{"status 404", eris.Wrap(&statusErr{404}, "fetch"), false},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"pattern", errors.New("read tcp: i/o timeout"), true},
		{"pattern case", errors.New("net/http: TLS handshake timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "root cause", te.Error())
	assert.Equal(t, 500, te.StatusCode)
}

func TestGuard_RecoversPanic(t *testing.T) {
	_, err := Guard(context.Background(), nil, func(_ context.Context) (int, error) {
		panic("selector exploded")
	})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "selector exploded", pe.Value)
	assert.Equal(t, "panic: selector exploded", err.Error())
}

func TestGuard_PanicCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker("board", CircuitConfig{FailureThreshold: 1})
	_, _ = Guard(context.Background(), cb, func(_ context.Context) ([]string, error) {
		panic("boom")
	})
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestGuard_PassesValue(t *testing.T) {
	cb := NewCircuitBreaker("board", DefaultCircuitConfig())
	v, err := Guard(context.Background(), cb, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
