// Package sim runs simulated route traversals, sampling synthetic
// exposure at a fixed cadence and emitting typed progress messages.
package sim

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/airlens/airlens/internal/geo"
)

// Simulation errors.
var (
	// ErrSessionNotFound is returned for an unknown session identifier.
	ErrSessionNotFound = errors.New("simulation session not found")

	// ErrAlreadyStreaming is returned when a second consumer tries to
	// drive a session that already has a stepping loop.
	ErrAlreadyStreaming = errors.New("simulation session already streaming")
)

// Synthetic exposure model: per-tick samples are drawn uniformly from
// base±jitter. Simulations never re-query live sources while running.
const (
	exposureBase   = 150.0
	exposureJitter = 20.0
)

// Route types accepted by Start.
const (
	RouteSafe   = "safe"
	RouteDirect = "direct"
)

// session holds the mutable traversal state. Only the owning stepping
// loop writes to it; everything else reads copy-out snapshots.
type session struct {
	id        string
	start     geo.Coordinate
	end       geo.Coordinate
	routeType string
	path      []geo.Coordinate

	stepIndex  int
	totalSteps int
	samples    []float64
	avg        float64
	active     bool
	completed  bool
	streaming  bool
	createdAt  time.Time

	rng *rand.Rand
}

// Snapshot is a consistent point-in-time view of a session.
type Snapshot struct {
	ID              string         `json:"id"`
	Start           geo.Coordinate `json:"start"`
	End             geo.Coordinate `json:"end"`
	RouteType       string         `json:"route_type"`
	Position        geo.Coordinate `json:"position"`
	StepIndex       int            `json:"step_index"`
	TotalSteps      int            `json:"total_steps"`
	Progress        int            `json:"progress"`
	AverageExposure float64        `json:"average_exposure"`
	SampleCount     int            `json:"sample_count"`
	Active          bool           `json:"active"`
	Completed       bool           `json:"completed"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Message types on the streaming channel.
const (
	MessageInit      = "init"
	MessageUpdate    = "update"
	MessageCompleted = "completed"
	MessageError     = "error"
)

// Message is one typed frame on the streaming channel. Fields are
// populated per type: init carries endpoints and step count, update
// carries per-tick progress, completed carries the final summary.
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`

	Start      *geo.Coordinate `json:"start,omitempty"`
	End        *geo.Coordinate `json:"end,omitempty"`
	RouteType  string          `json:"route_type,omitempty"`
	TotalSteps int             `json:"total_steps,omitempty"`

	Position        *geo.Coordinate `json:"position,omitempty"`
	StepIndex       int             `json:"step_index,omitempty"`
	Progress        int             `json:"progress,omitempty"`
	CurrentExposure float64         `json:"current_exposure,omitempty"`
	AverageExposure float64         `json:"average_exposure,omitempty"`
	SampleCount     int             `json:"sample_count,omitempty"`

	Samples []float64 `json:"samples,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// snapshot copies the session state out. Caller holds the registry lock.
func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:              s.id,
		Start:           s.start,
		End:             s.end,
		RouteType:       s.routeType,
		Position:        s.path[s.stepIndex],
		StepIndex:       s.stepIndex,
		TotalSteps:      s.totalSteps,
		Progress:        s.progress(),
		AverageExposure: s.avg,
		SampleCount:     len(s.samples),
		Active:          s.active,
		Completed:       s.completed,
		CreatedAt:       s.createdAt,
	}
}

func (s *session) progress() int {
	if s.totalSteps <= 1 {
		return 100
	}
	return int(math.Round(float64(s.stepIndex) / float64(s.totalSteps-1) * 100))
}

// tickResult tells the stepping loop what a tick produced.
type tickResult int

const (
	tickNoop tickResult = iota
	tickAdvanced
	tickCompleted
)

// tick is the step-transition function. Caller holds the registry lock.
func (s *session) tick() tickResult {
	if !s.active || s.completed {
		return tickNoop
	}

	if s.stepIndex >= s.totalSteps-1 {
		s.completed = true
		s.active = false
		return tickCompleted
	}

	s.stepIndex++
	sample := exposureBase + (s.rng.Float64()*2-1)*exposureJitter
	s.samples = append(s.samples, sample)

	total := 0.0
	for _, v := range s.samples {
		total += v
	}
	s.avg = total / float64(len(s.samples))

	return tickAdvanced
}

// initMessage announces a new stream. Caller holds the registry lock.
func (s *session) initMessage() Message {
	start, end := s.start, s.end
	return Message{
		Type:       MessageInit,
		SessionID:  s.id,
		Start:      &start,
		End:        &end,
		RouteType:  s.routeType,
		TotalSteps: s.totalSteps,
	}
}

// updateMessage reports the current step. Caller holds the registry lock.
func (s *session) updateMessage() Message {
	pos := s.path[s.stepIndex]
	current := 0.0
	if len(s.samples) > 0 {
		current = s.samples[len(s.samples)-1]
	}
	return Message{
		Type:            MessageUpdate,
		SessionID:       s.id,
		Position:        &pos,
		StepIndex:       s.stepIndex,
		Progress:        s.progress(),
		CurrentExposure: current,
		AverageExposure: s.avg,
		SampleCount:     len(s.samples),
	}
}

// completedMessage summarizes a finished traversal. Caller holds the
// registry lock.
func (s *session) completedMessage() Message {
	pos := s.path[s.stepIndex]
	samples := append([]float64(nil), s.samples...)
	return Message{
		Type:            MessageCompleted,
		SessionID:       s.id,
		Position:        &pos,
		StepIndex:       s.stepIndex,
		Progress:        100,
		AverageExposure: s.avg,
		SampleCount:     len(s.samples),
		Samples:         samples,
	}
}

// ErrorMessage is the frame sent to a consumer whose session id is
// unknown at connect time.
func ErrorMessage(id string, err error) Message {
	return Message{Type: MessageError, SessionID: id, Error: err.Error()}
}
