package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagehook/internal/infrastructure/resilience"
)

func get(target string) func(*resty.Request) (*resty.Response, error) {
	return func(r *resty.Request) (*resty.Response, error) { return r.Get(target) }
}

func TestExecuteReturnsServerErrorsWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(DefaultOptions(), nil)
	resp, err := c.Execute(context.Background(), "", srv.URL, get(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, int32(1), hits.Load())
}

func TestExecuteRetriesWhenConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.Retries = 2
	opts.RetryWait = time.Millisecond
	opts.RetryMaxWait = 5 * time.Millisecond

	resp, err := New(opts, nil).Execute(context.Background(), "", srv.URL, get(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.String())
	assert.Equal(t, int32(3), hits.Load())
}

func TestExecuteOpensBreakerPerHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var transitions []resilience.State
	opts := DefaultOptions()
	opts.Breaker = resilience.Settings{
		Cooldown: time.Minute,
		Trip:     func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 },
		OnStateChange: func(_ string, _, to resilience.State) {
			transitions = append(transitions, to)
		},
	}
	c := New(opts, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Execute(context.Background(), "", srv.URL, get(srv.URL))
		require.NoError(t, err)
	}

	_, err := c.Execute(context.Background(), "", srv.URL, get(srv.URL))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, []resilience.State{resilience.StateOpen}, transitions)
}

func TestBreakersAreScoped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.Breaker = resilience.Settings{
		Cooldown: time.Minute,
		Trip:     func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 },
	}
	c := New(opts, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Execute(context.Background(), ScopeDownload, srv.URL, get(srv.URL))
		require.NoError(t, err)
	}
	_, err := c.Execute(context.Background(), ScopeDownload, srv.URL, get(srv.URL))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	resp, err := c.Execute(context.Background(), ScopeUpload, srv.URL, get(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
}

func TestBreakerKey(t *testing.T) {
	assert.Equal(t, "example.com", BreakerKey("", "example.com"))
	assert.Equal(t, "upload@example.com", BreakerKey(ScopeUpload, "example.com"))
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := New(DefaultOptions(), nil).Execute(context.Background(), "", target, get(target))
	assert.Error(t, err)
}

func TestExecuteInvalidURL(t *testing.T) {
	_, err := New(DefaultOptions(), nil).Execute(context.Background(), "", "http://[::1", get("x"))
	assert.Error(t, err)
}

func TestRequestHonorsContext(t *testing.T) {
	c := New(DefaultOptions(), nil)
	c.SetRateLimit(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// first token is available; drain it so Wait must block
	_, _ = c.Request(context.Background())
	req, err := c.Request(ctx)
	assert.Error(t, err)
	assert.Nil(t, req)
}

func TestUserAgentHeader(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
	}))
	defer srv.Close()

	_, err := New(DefaultOptions(), nil).Execute(context.Background(), "", srv.URL, get(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "pagehook/1.0", ua.Load())
}
