package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignatij/agendaflow/internal/config"
	"github.com/ignatij/agendaflow/internal/mailer"
	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Pacing = config.PacingConfig{}
	return cfg
}

func TestSetupCLI(t *testing.T) {
	root := &cobra.Command{Use: "agendaflow"}
	SetupCLI(root)

	for _, name := range []string{"run", "serve", "participants"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestNewEngine(t *testing.T) {
	engine, store, err := newEngine(fastConfig())
	require.NoError(t, err)
	defer store.Close()

	participants, err := engine.Participants().List()
	require.NoError(t, err)
	require.Len(t, participants, 5)
	assert.Equal(t, "Carlos Ferreira", participants[4].Name)

	cfg := fastConfig()
	cfg.Storage.Driver = "mysql"
	_, _, err = newEngine(cfg)
	assert.Error(t, err)
}

func TestNewMailer(t *testing.T) {
	m, err := newMailer(fastConfig())
	require.NoError(t, err)
	assert.IsType(t, &mailer.Simulated{}, m)

	cfg := fastConfig()
	cfg.SMTP.Enabled = true
	cfg.SMTP.From = "agendamentos@email.com"
	m, err = newMailer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &mailer.SMTP{}, m)
}

func TestRunOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		posts []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		posts = append(posts, body.Text)
		mu.Unlock()
	}))
	defer hook.Close()

	cfg := fastConfig()
	cfg.Slack.WebhookURL = hook.URL
	require.NoError(t, runOnce(context.Background(), cfg, io.Discard))

	mu.Lock()
	defer mu.Unlock()
	// one toast per phase of each participant plus the completion toast
	assert.Len(t, posts, 11)
	assert.Equal(t, ":white_check_mark: Processamento concluído com sucesso!", posts[len(posts)-1])
}

// slowWriter stalls on every write, like a terminal or a pipe that cannot
// keep up with the run.
type slowWriter struct {
	mu    sync.Mutex
	delay time.Duration
	buf   strings.Builder
}

func (w *slowWriter) Write(p []byte) (int, error) {
	time.Sleep(w.delay)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *slowWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestRunOnceSlowOutputKeepsEveryLine(t *testing.T) {
	const n = 400
	cfg := fastConfig()
	cfg.Participants = nil
	for i := 1; i <= n; i++ {
		cfg.Participants = append(cfg.Participants, config.ParticipantConfig{
			ID:          int64(i),
			Name:        fmt.Sprintf("Participante %d", i),
			Email:       fmt.Sprintf("p%d@email.com", i),
			ScheduledAt: "11/06/2025 às 14:30",
		})
	}

	out := &slowWriter{delay: 200 * time.Microsecond}
	require.NoError(t, runOnce(context.Background(), cfg, out))

	var logLines, toasts int
	for _, line := range strings.Split(out.String(), "\n") {
		switch {
		case line == "" || strings.HasPrefix(line, "Run "):
		case strings.HasPrefix(line, "   ["):
			toasts++
		default:
			logLines++
		}
	}
	assert.Equal(t, service.ExpectedLogLines(n), logLines)
	assert.Equal(t, 2*n+1, toasts)
	assert.Contains(t, out.String(), fmt.Sprintf("Participante %d", n))
	assert.Contains(t, out.String(), "🎉 SISTEMA FINALIZADO")
}

func TestPrintEvents(t *testing.T) {
	events := make(chan models.Event, 3)
	events <- models.Event{Type: models.LogResetEvent, Lines: []string{"a", "b"}}
	events <- models.Event{Type: models.LogAppendedEvent, Line: "c"}
	events <- models.Event{Type: models.NotificationEvent, Notification: &models.Notification{Level: models.SuccessNotification, Message: "d"}}
	close(events)

	var out bytes.Buffer
	printEvents(&out, events)
	assert.Equal(t, "a\nb\nc\n   [success] d\n", out.String())
}
