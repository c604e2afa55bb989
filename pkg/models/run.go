package models

import "time"

type RunStatus string

const (
	RunningRunStatus   RunStatus = "RUNNING"
	CompletedRunStatus RunStatus = "COMPLETED"
	FailedRunStatus    RunStatus = "FAILED"
	CancelledRunStatus RunStatus = "CANCELLED"
)

// Run is one sequential pass over the roster.
type Run struct {
	ID           string     `json:"id" db:"id"`
	Status       RunStatus  `json:"status" db:"status"`
	Processed    int        `json:"processed" db:"processed"`         // Participants that reached the terminal statuses
	MessagesSent int        `json:"messages_sent" db:"messages_sent"` // Request + confirmation messages delivered
	ErrorMsg     string     `json:"error,omitempty" db:"error_msg"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// RunSummary is what a finished run reports back to its caller.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Status       RunStatus     `json:"status"`
	Processed    int           `json:"processed"`
	MessagesSent int           `json:"messages_sent"`
	Duration     time.Duration `json:"duration"`
}

type EngineState string

const (
	IdleEngineState    EngineState = "IDLE"
	RunningEngineState EngineState = "RUNNING"
)

// Snapshot is a point-in-time view of the engine for observers.
type Snapshot struct {
	State        EngineState   `json:"state"`
	Current      int           `json:"current"` // 1-based position of the participant being processed, 0 when none
	RunID        string        `json:"run_id,omitempty"`
	Participants []Participant `json:"participants"`
	Log          []string      `json:"log"`
}
