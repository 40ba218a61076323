package orchestrator

import (
	"errors"
	"time"

	"github.com/maastricht-university/interview-pipeline/observation"
	"github.com/maastricht-university/interview-pipeline/results"
)

var (
	ErrResourceUnavailable = errors.New("camera or microphone unavailable")
	ErrInvalidState        = errors.New("invalid session state")
	ErrSessionNotFound     = errors.New("session not found")
)

type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateEnded     State = "ended"
)

// Utterance is one transcript result from the speech listener.
type Utterance struct {
	Start float64 `json:"start,omitempty"` // sec, set by replayed transcripts
	End   float64 `json:"end,omitempty"`   // sec
	Text  string  `json:"text"`
	Final bool    `json:"final"`
}

type EventType string

const (
	EventObservation EventType = "observation"
	EventTimer       EventType = "timer"
	EventEnded       EventType = "ended"
)

// Event is pushed to live subscribers of a session.
type Event struct {
	Type        EventType                `json:"type"`
	SessionID   string                   `json:"session_id"`
	Elapsed     string                   `json:"elapsed,omitempty"`
	Observation *observation.Observation `json:"observation,omitempty"`
	Record      *results.Record          `json:"record,omitempty"`
}

// Status is a point-in-time view of a session for the timer display.
type Status struct {
	ID             string     `json:"id"`
	State          State      `json:"state"`
	Elapsed        string     `json:"elapsed"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	Observations   int        `json:"observations"`
	Analysis       bool       `json:"analysis"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}
