package service

import (
	"context"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/pkg/errors"
)

var (
	// ErrRunInProgress is returned when a run is requested while another one is active.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrMailerUnavailable is returned when the mailer connection check fails before a run.
	ErrMailerUnavailable = errors.New("mailer unavailable")

	// ErrDeliveryFailed wraps a message that could not be delivered during a run.
	ErrDeliveryFailed = errors.New("message delivery failed")

	// ErrInvalidTransition is returned when a status change breaks the status order.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Logger defines the logging interface used by the services
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Mailer delivers the request and confirmation messages of a run.
type Mailer interface {
	// Check verifies the mailer can reach its backend.
	Check(ctx context.Context) error
	Send(ctx context.Context, msg models.Message) error
}
