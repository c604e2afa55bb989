package mailer

import (
	"context"
	"fmt"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the server and credentials used for delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP delivers messages through an SMTP server with STARTTLS. Every call
// dials its own connection.
type SMTP struct {
	cfg    SMTPConfig
	logger service.Logger
}

func NewSMTP(cfg SMTPConfig, logger service.Logger) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	s := &SMTP{cfg: cfg, logger: logger}
	// Fail fast on options the client would reject
	if _, err := s.client(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SMTP) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}

// Check opens and closes an authenticated connection.
func (s *SMTP) Check(ctx context.Context) error {
	c, err := s.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return err
	}
	return c.Close()
}

func (s *SMTP) Send(ctx context.Context, msg models.Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("sender %q: %w", s.cfg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("recipient %q: %w", msg.To, err)
	}
	m.Subject(rendered.Subject)
	m.SetBodyString(mail.TypeTextHTML, rendered.Body)

	c, err := s.client()
	if err != nil {
		return err
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return err
	}
	s.logger.Infof("Sent %s message to %s", msg.Kind, msg.To)
	return nil
}
