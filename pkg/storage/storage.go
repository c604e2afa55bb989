package storage

import (
	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// Store defines the storage operations for agendaflow.
type Store interface {
	// Transaction operations
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Participant operations
	SaveParticipant(p models.Participant) error
	GetParticipant(id int64) (models.Participant, error)
	ListParticipants() ([]models.Participant, error)
	UpdateParticipantStatus(id int64, req models.RequestStatus, conf models.ConfirmationStatus) error
	ResetParticipantStatuses() error
	DeleteParticipants() error

	// Run log operations
	ReplaceLog(lines []string) error
	AppendLog(line string) error
	GetLog() ([]string, error)

	// Run operations
	SaveRun(r models.Run) error
	UpdateRun(r models.Run) error
	GetRun(id string) (models.Run, error)
	ListRuns() ([]models.Run, error)
	DeleteRuns() error
}
