// Package resilience wraps outbound HTTP calls to the environmental
// data feeds with circuit breaking, bounded retries and per-call
// timeouts, so one flaky upstream cannot stall a fusion pass.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the feed's circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for a resilient feed client.
type ClientConfig struct {
	// Name identifies the feed for circuit breaker naming and health.
	Name string

	// Timeout is the per-request timeout (default: 10s).
	Timeout time.Duration

	// MaxRetries is the retry budget per call (default: 3).
	MaxRetries uint64

	// InitialInterval is the first retry backoff delay (default: 100ms).
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff delay (default: 5s).
	MaxInterval time.Duration

	// BreakerTimeout is how long an open circuit stays open before a
	// half-open probe (default: 60s).
	BreakerTimeout time.Duration

	// ReadyToTrip overrides the default trip condition (5+ requests with
	// a failure rate of at least 50%).
	ReadyToTrip func(counts gobreaker.Counts) bool

	// Health, when set, receives the final outcome of every call so the
	// ops status endpoint can report last success/failure per feed.
	Health *HealthBoard
}

// DefaultClientConfig returns the defaults used by every feed client.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		BreakerTimeout:  60 * time.Second,
	}
}

func defaultReadyToTrip(counts gobreaker.Counts) bool {
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && failureRatio >= 0.5
}

// Client is a resilient HTTP client for one upstream feed.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a resilient feed client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = defaultReadyToTrip
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: readyToTrip,
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		config:     cfg,
	}
}

// Do executes a request with circuit breaking and exponential-backoff
// retries. Network errors and 5xx responses are retried; an open
// circuit fails fast with ErrCircuitOpen. When a 5xx survives the retry
// budget the last response is returned so callers can inspect it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retry budget enforced via WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if lastResp != nil {
			// A 5xx that survived the retry budget still counts as a
			// feed failure even though the response is handed back.
			c.recordOutcome(&ServerError{StatusCode: lastResp.StatusCode})
			return lastResp, nil
		}
		c.recordOutcome(err)
		return nil, err
	}
	c.recordOutcome(nil)
	return lastResp, nil
}

// recordOutcome reports the final result of a call to the health board,
// when one is configured.
func (c *Client) recordOutcome(err error) {
	if c.config.Health == nil {
		return
	}
	if err != nil {
		c.config.Health.RecordFailure(c.config.Name, err)
		return
	}
	c.config.Health.RecordSuccess(c.config.Name)
}

// DoWithContext executes a request under an overriding context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Do(req.WithContext(ctx))
}

// ServerError represents an HTTP 5xx response from a feed.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// State returns the feed's circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the feed's circuit breaker statistics.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
