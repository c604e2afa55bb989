package models

type MessageKind string

const (
	RequestMessage      MessageKind = "request"
	ConfirmationMessage MessageKind = "confirmation"
)

// Message is an outbound notification for a single participant.
type Message struct {
	Kind        MessageKind
	To          string
	Name        string
	ScheduledAt string
}
