package mailer_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ignatij/agendaflow/internal/mailer"
	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct{}

func (logger) Infof(string, ...interface{})  {}
func (logger) Errorf(string, ...interface{}) {}

func message(kind models.MessageKind) models.Message {
	return models.Message{Kind: kind, To: "joao@email.com", Name: "João Silva", ScheduledAt: "11/06/2025 às 14:30"}
}

func TestRender(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		r, err := mailer.Render(message(models.RequestMessage))
		require.NoError(t, err)
		assert.Equal(t, "🔔 Solicitação de Agendamento - João Silva", r.Subject)
		assert.Contains(t, r.Body, "<h3>Olá, João Silva!</h3>")
		assert.Contains(t, r.Body, "11/06/2025 às 14:30")
		assert.Contains(t, r.Body, "Aguardando confirmação")
		assert.Contains(t, r.Body, "Sistema de Agendamentos DevOps v2.0")
	})

	t.Run("confirmation", func(t *testing.T) {
		r, err := mailer.Render(message(models.ConfirmationMessage))
		require.NoError(t, err)
		assert.Equal(t, "✅ Agendamento Confirmado - João Silva", r.Subject)
		assert.Contains(t, r.Body, "<h3>Agendamento Confirmado!</h3>")
		assert.Contains(t, r.Body, "<strong>confirmado</strong>")
	})

	t.Run("escapes names in the body", func(t *testing.T) {
		msg := message(models.RequestMessage)
		msg.Name = "<b>Ana</b>"
		r, err := mailer.Render(msg)
		require.NoError(t, err)
		assert.NotContains(t, r.Body, "<b>Ana</b>")
		assert.Contains(t, r.Body, "&lt;b&gt;Ana&lt;/b&gt;")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := mailer.Render(message("reminder"))
		assert.Error(t, err)
	})
}

func TestSimulated(t *testing.T) {
	m := mailer.NewSimulated(logger{})
	ctx := context.Background()

	require.NoError(t, m.Check(ctx))
	require.NoError(t, m.Send(ctx, message(models.RequestMessage)))
	require.NoError(t, m.Send(ctx, message(models.ConfirmationMessage)))

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Subject, "Solicitação")
	assert.Contains(t, sent[1].Subject, "Confirmado")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, m.Send(cancelled, message(models.RequestMessage)), context.Canceled)
	assert.Len(t, m.Sent(), 2)
}

func TestSimulatedKeepsLatestMessages(t *testing.T) {
	m := mailer.NewSimulated(logger{})
	ctx := context.Background()

	for i := 0; i < mailer.MaxRecorded+5; i++ {
		msg := message(models.RequestMessage)
		msg.Name = fmt.Sprintf("Participante %d", i)
		require.NoError(t, m.Send(ctx, msg))
	}

	sent := m.Sent()
	require.Len(t, sent, mailer.MaxRecorded)
	assert.Contains(t, sent[0].Subject, "Participante 5")
	assert.Contains(t, sent[len(sent)-1].Subject, fmt.Sprintf("Participante %d", mailer.MaxRecorded+4))
}

func TestSMTP(t *testing.T) {
	t.Run("requires host and sender", func(t *testing.T) {
		_, err := mailer.NewSMTP(mailer.SMTPConfig{Port: 587, From: "a@b.com"}, logger{})
		assert.Error(t, err)
		_, err = mailer.NewSMTP(mailer.SMTPConfig{Host: "localhost", Port: 587}, logger{})
		assert.Error(t, err)
	})

	t.Run("rejects invalid recipient", func(t *testing.T) {
		m, err := mailer.NewSMTP(mailer.SMTPConfig{Host: "localhost", Port: 587, From: "a@b.com"}, logger{})
		require.NoError(t, err)
		msg := message(models.RequestMessage)
		msg.To = "not an address"
		assert.Error(t, m.Send(context.Background(), msg))
	})

	t.Run("check fails when the server is unreachable", func(t *testing.T) {
		// Reserve a port and close it so nothing is listening there
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		require.NoError(t, ln.Close())

		m, err := mailer.NewSMTP(mailer.SMTPConfig{Host: "127.0.0.1", Port: port, From: "a@b.com"}, logger{})
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.Error(t, m.Check(ctx))
	})
}
