package models

type RequestStatus string

const (
	PendingRequestStatus   RequestStatus = "PENDING"
	SentRequestStatus      RequestStatus = "SENT"
	ConfirmedRequestStatus RequestStatus = "CONFIRMED"
)

type ConfirmationStatus string

const (
	PendingConfirmationStatus   ConfirmationStatus = "PENDING"
	SentConfirmationStatus      ConfirmationStatus = "SENT"
	CompletedConfirmationStatus ConfirmationStatus = "COMPLETED"
)

// Participant is a person tracked through the request/confirmation workflow.
type Participant struct {
	ID                 int64              `json:"id" db:"id"`                                   // Unique key
	Position           int                `json:"position" db:"roster_position"`                // 1-based order in the roster
	Name               string             `json:"name" db:"name"`                               // Display name
	Email              string             `json:"email" db:"email"`                             // Contact address
	ScheduledAt        string             `json:"scheduled_at" db:"scheduled_at"`               // Descriptive label, e.g. "11/06/2025 às 14:30"
	RequestStatus      RequestStatus      `json:"request_status" db:"request_status"`           // PENDING -> SENT -> CONFIRMED
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status" db:"confirmation_status"` // PENDING -> SENT -> COMPLETED
}

// Done reports whether the participant reached the terminal pair of statuses.
func (p Participant) Done() bool {
	return p.RequestStatus == ConfirmedRequestStatus && p.ConfirmationStatus == CompletedConfirmationStatus
}
