package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/pagehook/internal/infrastructure/resilience"
)

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64
	UserAgent string
	Breaker   resilience.Settings
}

// DefaultOptions returns the options used by the interceptor: a 30s timeout
// and no automatic retries.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		RetryWait:    time.Second,
		RetryMaxWait: 10 * time.Second,
		UserAgent:    "pagehook/1.0",
		Breaker: resilience.Settings{
			Cooldown: 30 * time.Second,
			Trip: func(c resilience.Counts) bool {
				return c.ConsecutiveFailures >= 5 ||
					(c.Calls >= 20 && float64(c.Failures)/float64(c.Calls) > 0.7)
			},
		},
	}
}

// Client wraps resty with a retrying transport, a rate limiter and one
// circuit breaker per scope and host.
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breakers *resilience.Group

	mu  sync.RWMutex
	log *zap.Logger
}

// New creates a client logging to logger as given; callers name it. A nil
// logger discards transport diagnostics.
func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger

	retry := retryablehttp.NewClient()
	retry.RetryMax = opts.Retries
	retry.RetryWaitMin = opts.RetryWait
	retry.RetryWaitMax = opts.RetryMaxWait
	retry.Logger = leveled{log.Sugar()}
	// Hand the last response back instead of a "giving up" error so callers
	// see the real status.
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.NewWithClient(retry.StandardClient()).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetLogger(leveled{log.Sugar()})
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	breaker := opts.Breaker
	userHook := breaker.OnStateChange
	breaker.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("circuit breaker state change",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if userHook != nil {
			userHook(name, from, to)
		}
	}

	return &Client{
		Resty:    client,
		Limiter:  limiter(opts.RateLimit),
		Breakers: resilience.NewGroup(breaker),
		log:      log,
	}
}

// SetRateLimit replaces the request rate limit. Zero or less is unlimited.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Limiter = limiter(rps)
}

// SetHeader sets a default header on every request.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetHeader(key, value)
}

// Request waits for the rate limiter and returns a request bound to ctx.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	c.mu.RLock()
	lim := c.Limiter
	c.mu.RUnlock()

	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Breaker scopes. Each flow trips its own breakers, so failing download
// fetches never short-circuit uploads to the same host.
const (
	ScopeDownload = "download"
	ScopeUpload   = "upload"
)

var errServerStatus = errors.New("server error status")

// BreakerKey names the breaker guarding requests of scope to host.
func BreakerKey(scope, host string) string {
	if scope == "" {
		return host
	}
	return scope + "@" + host
}

// Execute runs send through the breaker of scope and target's host.
// Transport errors and 5xx responses count as breaker failures, but a 5xx
// response is still returned to the caller with a nil error.
func (c *Client) Execute(ctx context.Context, scope, target string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", target, err)
	}

	var resp *resty.Response
	err = c.Breakers.Get(BreakerKey(scope, u.Host)).Do(ctx, func(ctx context.Context) error {
		req, err := c.Request(ctx)
		if err != nil {
			return err
		}
		resp, err = send(req)
		if err != nil {
			return err
		}
		if resp.StatusCode() >= 500 {
			return errServerStatus
		}
		return nil
	})

	switch {
	case errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.log.Debug("request short-circuited", zap.String("scope", scope), zap.String("host", u.Host))
		return nil, fmt.Errorf("%s unavailable: %w", u.Host, err)
	case err != nil:
		return nil, err
	}
	return resp, nil
}

func limiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// leveled adapts zap to retryablehttp.LeveledLogger and resty.Logger.
type leveled struct{ s *zap.SugaredLogger }

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

func (l leveled) Errorf(format string, v ...interface{}) { l.s.Errorf(format, v...) }
func (l leveled) Warnf(format string, v ...interface{})  { l.s.Warnf(format, v...) }
func (l leveled) Debugf(format string, v ...interface{}) { l.s.Debugf(format, v...) }
