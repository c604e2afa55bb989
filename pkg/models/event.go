package models

import "time"

type NotificationLevel string

const (
	SuccessNotification NotificationLevel = "success"
	WarningNotification NotificationLevel = "warning"
	ErrorNotification   NotificationLevel = "error"
)

// Notification is a transient, user-visible message distinct from the run log.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

type EventType string

const (
	RunStartedEvent         EventType = "run_started"
	RunFinishedEvent        EventType = "run_finished"
	ParticipantUpdatedEvent EventType = "participant_updated"
	CurrentChangedEvent     EventType = "current_changed"
	LogResetEvent           EventType = "log_reset"
	LogAppendedEvent        EventType = "log_appended"
	NotificationEvent       EventType = "notification"
)

// Event is pushed to observers while a run progresses.
type Event struct {
	Type         EventType     `json:"type"`
	RunID        string        `json:"run_id"`
	At           time.Time     `json:"at"`
	Participant  *Participant  `json:"participant,omitempty"`
	Current      int           `json:"current,omitempty"`
	Line         string        `json:"line,omitempty"`
	Lines        []string      `json:"lines,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Run          *Run          `json:"run,omitempty"`
}
