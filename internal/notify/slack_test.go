package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ignatij/agendaflow/internal/notify"
	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct {
	mu     sync.Mutex
	errors int
}

func (l *logger) Infof(string, ...interface{}) {}
func (l *logger) Errorf(string, ...interface{}) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func (l *logger) Errors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors
}

type webhook struct {
	mu    sync.Mutex
	texts []string
}

func (w *webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	w.mu.Lock()
	w.texts = append(w.texts, body.Text)
	w.mu.Unlock()
	rw.WriteHeader(http.StatusOK)
}

func (w *webhook) Texts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.texts...)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, ":white_check_mark: ok", notify.Format(models.Notification{Level: models.SuccessNotification, Message: "ok"}))
	assert.Equal(t, ":x: boom", notify.Format(models.Notification{Level: models.ErrorNotification, Message: "boom"}))
	assert.Equal(t, ":warning: hm", notify.Format(models.Notification{Level: models.WarningNotification, Message: "hm"}))
	assert.Equal(t, "plain", notify.Format(models.Notification{Message: "plain"}))
}

func TestSlackForwarder(t *testing.T) {
	t.Run("posts notification events only", func(t *testing.T) {
		hook := &webhook{}
		srv := httptest.NewServer(hook)
		defer srv.Close()

		f := notify.NewSlackForwarder(srv.URL, &logger{})
		events := make(chan models.Event, 4)
		events <- models.Event{Type: models.LogAppendedEvent, Line: "ignored"}
		events <- models.Event{Type: models.NotificationEvent, Notification: &models.Notification{
			Level: models.SuccessNotification, Message: "E-mail de solicitação enviado para João Silva",
		}}
		events <- models.Event{Type: models.NotificationEvent, Notification: &models.Notification{
			Level: models.SuccessNotification, Message: "Processamento concluído com sucesso!",
		}}
		close(events)

		f.Forward(context.Background(), events)
		assert.Equal(t, []string{
			":white_check_mark: E-mail de solicitação enviado para João Silva",
			":white_check_mark: Processamento concluído com sucesso!",
		}, hook.Texts())
	})

	t.Run("logs failed posts and keeps going", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		log := &logger{}
		f := notify.NewSlackForwarder(srv.URL, log)
		events := make(chan models.Event, 2)
		for i := 0; i < 2; i++ {
			events <- models.Event{Type: models.NotificationEvent, Notification: &models.Notification{Message: "x"}}
		}
		close(events)

		f.Forward(context.Background(), events)
		assert.Equal(t, 2, log.Errors())
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		f := notify.NewSlackForwarder("http://127.0.0.1:0", &logger{})
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			f.Forward(ctx, make(chan models.Event))
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			require.Fail(t, "forwarder did not stop")
		}
	})
}
