package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/route"
)

// RegistryConfig holds configuration for the session registry.
type RegistryConfig struct {
	// Logger for registry operations.
	Logger zerolog.Logger

	// TickInterval is the cadence of the stepping loop (default: 500ms).
	TickInterval time.Duration

	// PathSteps is the interpolation step count for computed paths
	// (default: 20, giving 21-point paths).
	PathSteps int

	// Seed overrides the exposure sampler seed, for deterministic tests.
	Seed int64
}

// Registry owns every live simulation session. Sessions are created by
// Start, mutated only by their single Run loop, and read through
// copy-out snapshots.
type Registry struct {
	logger       zerolog.Logger
	tickInterval time.Duration
	pathSteps    int
	seed         func() int64

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewRegistry creates a session registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	tick := cfg.TickInterval
	if tick == 0 {
		tick = 500 * time.Millisecond
	}
	steps := cfg.PathSteps
	if steps == 0 {
		steps = 20
	}

	seed := func() int64 { return time.Now().UnixNano() }
	if cfg.Seed != 0 {
		fixed := cfg.Seed
		seed = func() int64 { return fixed }
	}

	return &Registry{
		logger:       cfg.Logger,
		tickInterval: tick,
		pathSteps:    steps,
		seed:         seed,
		sessions:     make(map[string]*session),
	}
}

// Start computes both route candidates between the endpoints, selects
// one by routeType ("safe" picks the offset path, anything else the
// direct one) and registers a running session for it.
func (r *Registry) Start(start, end geo.Coordinate, routeType string) Snapshot {
	direct := route.DirectPath(start, end, r.pathSteps)

	path := direct
	if routeType == RouteSafe {
		path = route.SafePath(direct)
	} else {
		routeType = RouteDirect
	}

	s := &session{
		id:         uuid.New().String(),
		start:      start,
		end:        end,
		routeType:  routeType,
		path:       path,
		totalSteps: len(path),
		active:     true,
		createdAt:  time.Now().UTC(),
		rng:        rand.New(rand.NewSource(r.seed())),
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	snap := s.snapshot()
	r.mu.Unlock()

	r.logger.Info().
		Str("session_id", s.id).
		Str("route_type", routeType).
		Int("total_steps", s.totalSteps).
		Msg("simulation started")

	return snap
}

// Status returns a point-in-time snapshot of a session.
func (r *Registry) Status(id string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Run drives a session's stepping loop, emitting messages on the
// returned channel: one init frame, an update per tick, and a terminal
// completed frame. The channel is closed when the traversal finishes or
// ctx is cancelled; cancellation marks the session inactive but leaves
// already-emitted samples intact. Only one Run may own a session.
func (r *Registry) Run(ctx context.Context, id string) (<-chan Message, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.streaming {
		r.mu.Unlock()
		return nil, ErrAlreadyStreaming
	}
	s.streaming = true
	initMsg := s.initMessage()
	r.mu.Unlock()

	out := make(chan Message, 1)
	out <- initMsg

	go r.loop(ctx, s, out)
	return out, nil
}

func (r *Registry) loop(ctx context.Context, s *session, out chan<- Message) {
	defer close(out)

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.cancel(s)
			return
		case <-ticker.C:
			msg, done := r.step(s)
			if msg != nil {
				select {
				case out <- *msg:
				case <-ctx.Done():
					r.cancel(s)
					return
				}
			}
			if done {
				r.remove(s.id)
				return
			}
		}
	}
}

// step runs one tick under the registry lock and builds the frame to
// emit, if any.
func (r *Registry) step(s *session) (*Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch s.tick() {
	case tickAdvanced:
		msg := s.updateMessage()
		return &msg, false
	case tickCompleted:
		msg := s.completedMessage()
		return &msg, true
	default:
		return nil, true
	}
}

// cancel marks a session inactive after a consumer disconnect. The
// session stays in the registry for status polling until torn down.
func (r *Registry) cancel(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.active {
		s.active = false
		s.streaming = false
		r.logger.Info().Str("session_id", s.id).Msg("simulation cancelled")
	}
}

// Remove tears a session down explicitly.
func (r *Registry) Remove(id string) {
	r.remove(id)
}

// remove deletes a session. Deleting an already-removed id is a no-op.
func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		r.logger.Debug().Str("session_id", id).Msg("simulation removed")
	}
}

// Count reports how many sessions are registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
