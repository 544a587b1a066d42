package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// FeedHealth is the observable health of one upstream feed.
type FeedHealth struct {
	Name          string           `json:"name"`
	CircuitState  string           `json:"circuit_state"`
	Requests      uint32           `json:"requests"`
	Failures      uint32           `json:"failures"`
	LastSuccessAt *time.Time       `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time       `json:"last_failure_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	state         gobreaker.State
}

// Healthy reports whether the feed's circuit is closed.
func (h *FeedHealth) Healthy() bool {
	return h.state == gobreaker.StateClosed
}

// HealthBoard tracks every registered feed client for the ops surface.
type HealthBoard struct {
	mu    sync.RWMutex
	feeds map[string]*trackedFeed
}

type trackedFeed struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewHealthBoard creates an empty board.
func NewHealthBoard() *HealthBoard {
	return &HealthBoard{feeds: make(map[string]*trackedFeed)}
}

// Register adds a feed client to the board.
func (b *HealthBoard) Register(name string, client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feeds[name] = &trackedFeed{client: client}
}

// RecordSuccess marks a successful feed call.
func (b *HealthBoard) RecordSuccess(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.feeds[name]; ok {
		now := time.Now()
		f.lastSuccessAt = &now
	}
}

// RecordFailure marks a failed feed call.
func (b *HealthBoard) RecordFailure(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.feeds[name]; ok {
		now := time.Now()
		f.lastFailureAt = &now
		if err != nil {
			f.lastError = err.Error()
		}
	}
}

// Health returns the health of one feed, or nil if unregistered.
func (b *HealthBoard) Health(name string) *FeedHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f, ok := b.feeds[name]
	if !ok {
		return nil
	}
	return snapshotFeed(name, f)
}

// All returns the health of every registered feed.
func (b *HealthBoard) All() []*FeedHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*FeedHealth, 0, len(b.feeds))
	for name, f := range b.feeds {
		out = append(out, snapshotFeed(name, f))
	}
	return out
}

func snapshotFeed(name string, f *trackedFeed) *FeedHealth {
	state := f.client.State()
	counts := f.client.Counts()
	return &FeedHealth{
		Name:          name,
		CircuitState:  state.String(),
		Requests:      counts.Requests,
		Failures:      counts.TotalFailures,
		LastSuccessAt: f.lastSuccessAt,
		LastFailureAt: f.lastFailureAt,
		LastError:     f.lastError,
		state:         state,
	}
}
