package service

import (
	"context"
	"testing"
	"time"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{}) {}

type okMailer struct{}

func (okMailer) Check(context.Context) error { return nil }
func (okMailer) Send(context.Context, models.Message) error { return nil }

func TestMetricsRegistered(t *testing.T) {
	tests := []struct {
		name      string
		collector prometheus.Collector
	}{
		{"runsTotal", runsTotal},
		{"messagesSentTotal", messagesSentTotal},
		{"deliveryFailuresTotal", deliveryFailuresTotal},
		{"runDurationSeconds", runDurationSeconds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tt.collector.Describe(ch)
			close(ch)
			if len(ch) == 0 {
				t.Errorf("expected at least one descriptor for %s", tt.name)
			}
		})
	}
}

func TestRunUpdatesMetrics(t *testing.T) {
	completedBefore := testutil.ToFloat64(runsTotal.WithLabelValues(string(models.CompletedRunStatus)))
	requestsBefore := testutil.ToFloat64(messagesSentTotal.WithLabelValues(string(models.RequestMessage)))
	confirmationsBefore := testutil.ToFloat64(messagesSentTotal.WithLabelValues(string(models.ConfirmationMessage)))

	engine := NewEngine(storage.NewMemoryStore(), okMailer{}, nopLogger{}, WithPacing(Pacing{}))
	require.NoError(t, engine.Participants().Seed([]models.Participant{
		{ID: 1, Name: "A", Email: "a@email.com"},
		{ID: 2, Name: "B", Email: "b@email.com"},
	}))
	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, completedBefore+1, testutil.ToFloat64(runsTotal.WithLabelValues(string(models.CompletedRunStatus))))
	assert.Equal(t, requestsBefore+2, testutil.ToFloat64(messagesSentTotal.WithLabelValues(string(models.RequestMessage))))
	assert.Equal(t, confirmationsBefore+2, testutil.ToFloat64(messagesSentTotal.WithLabelValues(string(models.ConfirmationMessage))))
}

func TestPause(t *testing.T) {
	t.Run("ZeroDurationReturnsImmediately", func(t *testing.T) {
		assert.NoError(t, pause(context.Background(), 0))
	})

	t.Run("CancelledContextInterrupts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		assert.ErrorIs(t, pause(ctx, time.Hour), context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("Elapses", func(t *testing.T) {
		assert.NoError(t, pause(context.Background(), 5*time.Millisecond))
	})
}

func TestRunStep(t *testing.T) {
	t.Run("ReturnsStepError", func(t *testing.T) {
		err := runStep(context.Background(), time.Second, func(ctx context.Context) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("StepThatIgnoresContextTimesOut", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		err := runStep(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
			<-release
			return nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestExpectedLogLines(t *testing.T) {
	assert.Equal(t, 10, ExpectedLogLines(0))
	assert.Equal(t, 30, ExpectedLogLines(5))
	assert.Len(t, HeaderLines(), 5)
	assert.Equal(t, "📧 Total de e-mails enviados: 10", FooterLines(5, 10)[1])
}
