package mailer

import (
	"context"
	"sync"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
)

// MaxRecorded bounds the number of messages a Simulated mailer keeps.
const MaxRecorded = 1000

// Simulated renders every message and records it instead of delivering it.
// It never fails, which makes it the default for demonstration runs. Only the
// latest MaxRecorded messages are kept.
type Simulated struct {
	logger service.Logger

	mu   sync.Mutex
	sent []Rendered
}

func NewSimulated(logger service.Logger) *Simulated {
	return &Simulated{logger: logger}
}

func (s *Simulated) Check(ctx context.Context) error {
	return ctx.Err()
}

func (s *Simulated) Send(ctx context.Context, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, rendered)
	if over := len(s.sent) - MaxRecorded; over > 0 {
		s.sent = append(s.sent[:0], s.sent[over:]...)
	}
	s.mu.Unlock()
	s.logger.Infof("Simulated %s message to %s: %s", msg.Kind, msg.To, rendered.Subject)
	return nil
}

// Sent returns the recorded messages, oldest first.
func (s *Simulated) Sent() []Rendered {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Rendered(nil), s.sent...)
}
