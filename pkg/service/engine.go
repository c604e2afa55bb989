package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/storage"
	"github.com/pkg/errors"
)

type EngineOption func(*Engine)

// WithPacing overrides the pauses between run steps.
func WithPacing(p Pacing) EngineOption {
	return func(e *Engine) { e.pacing = p }
}

// WithStepTimeout bounds every mailer call made during a run.
func WithStepTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.stepTimeout = d }
}

// WithBroadcaster lets several components share one event stream.
func WithBroadcaster(b *Broadcaster) EngineOption {
	return func(e *Engine) { e.events = b }
}

// Engine walks the roster through the request and confirmation phases, one
// participant at a time, and keeps the run log. Only one run can be active.
type Engine struct {
	store        storage.Store
	participants *ParticipantService
	mailer       Mailer
	logger       Logger
	events       *Broadcaster
	pacing       Pacing
	stepTimeout  time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	state   models.EngineState
	current int
	runID   string
	done    chan struct{} // closed when the active run is released
}

func NewEngine(store storage.Store, mailer Mailer, logger Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:        store,
		participants: NewParticipantService(store, logger),
		mailer:       mailer,
		logger:       logger,
		pacing:       DefaultPacing(),
		stepTimeout:  DefaultStepTimeout,
		now:          time.Now,
		state:        models.IdleEngineState,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.events == nil {
		e.events = NewBroadcaster()
	}
	return e
}

// Participants exposes the roster operations backed by the engine's store.
func (e *Engine) Participants() *ParticipantService {
	return e.participants
}

// Subscribe returns a stream of run events and a func to stop receiving them.
func (e *Engine) Subscribe(buffer int) (<-chan models.Event, func()) {
	return e.events.Subscribe(buffer)
}

// SubscribeLossless returns a stream that never drops events. The consumer
// must keep reading until the channel is closed.
func (e *Engine) SubscribeLossless() (<-chan models.Event, func()) {
	return e.events.SubscribeLossless()
}

// Run executes a full pass over the roster and blocks until it ends.
func (e *Engine) Run(ctx context.Context) (models.RunSummary, error) {
	runID, err := e.claim()
	if err != nil {
		return models.RunSummary{}, err
	}
	return e.execute(ctx, runID)
}

// Start claims the engine and runs the pass in the background. It returns the
// ID of the new run, or ErrRunInProgress when a run is already active.
func (e *Engine) Start(ctx context.Context) (string, error) {
	runID, err := e.claim()
	if err != nil {
		return "", err
	}
	go func() {
		if _, err := e.execute(ctx, runID); err != nil {
			e.logger.Errorf("Run %s ended with error: %v", runID, err)
		}
	}()
	return runID, nil
}

// Wait blocks until the active run, if any, has been released.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.RLock()
	running := e.state == models.RunningEngineState
	done := e.done
	e.mu.RUnlock()
	if !running {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the engine state together with the roster and the log.
func (e *Engine) Snapshot() (models.Snapshot, error) {
	e.mu.RLock()
	snap := models.Snapshot{
		State:   e.state,
		Current: e.current,
		RunID:   e.runID,
	}
	e.mu.RUnlock()

	participants, err := e.store.ListParticipants()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to list participants: %w", err)
	}
	lines, err := e.store.GetLog()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to get log: %w", err)
	}
	snap.Participants = participants
	snap.Log = lines
	return snap, nil
}

// SetParticipantStatus applies a manual status change. It is rejected with
// ErrRunInProgress while a run owns the roster.
func (e *Engine) SetParticipantStatus(id int64, req models.RequestStatus, conf models.ConfirmationStatus) (models.Participant, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == models.RunningEngineState {
		return models.Participant{}, ErrRunInProgress
	}
	updated, err := e.participants.SetStatus(id, req, conf)
	if err != nil {
		return models.Participant{}, err
	}
	e.publish(models.Event{Type: models.ParticipantUpdatedEvent, Participant: &updated})
	return updated, nil
}

func (e *Engine) ListRuns() ([]models.Run, error) {
	return e.store.ListRuns()
}

func (e *Engine) GetRun(id string) (models.Run, error) {
	run, err := e.store.GetRun(id)
	if err != nil {
		return models.Run{}, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

func (e *Engine) claim() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == models.RunningEngineState {
		e.logger.Errorf("Rejected run request: run %s is still active", e.runID)
		return "", ErrRunInProgress
	}
	e.state = models.RunningEngineState
	e.current = 0
	e.runID = uuid.NewString()
	e.done = make(chan struct{})
	return e.runID, nil
}

func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = models.IdleEngineState
	e.current = 0
	e.runID = ""
	close(e.done)
}

func (e *Engine) execute(ctx context.Context, runID string) (models.RunSummary, error) {
	run := models.Run{
		ID:        runID,
		Status:    models.RunningRunStatus,
		StartedAt: e.now(),
	}
	if err := e.store.SaveRun(run); err != nil {
		e.release()
		return models.RunSummary{}, fmt.Errorf("failed to save run %s: %w", runID, err)
	}
	e.logger.Infof("Run %s started", runID)
	e.publish(models.Event{Type: models.RunStartedEvent, RunID: runID, Run: &run})

	status, runErr := e.runPass(ctx, &run)

	finishedAt := e.now()
	run.Status = status
	run.FinishedAt = &finishedAt
	if runErr != nil {
		run.ErrorMsg = runErr.Error()
	}
	if err := e.store.UpdateRun(run); err != nil {
		e.logger.Errorf("Failed to update run %s to %s: %v", runID, status, err)
		if runErr == nil {
			runErr = fmt.Errorf("failed to update run %s: %w", runID, err)
		}
	}
	duration := finishedAt.Sub(run.StartedAt)
	runsTotal.WithLabelValues(string(status)).Inc()
	runDurationSeconds.WithLabelValues(string(status)).Observe(duration.Seconds())

	e.release()
	e.publish(models.Event{Type: models.CurrentChangedEvent, RunID: runID, Current: 0})
	e.publish(models.Event{Type: models.RunFinishedEvent, RunID: runID, Run: &run})
	e.logger.Infof("Run %s finished with status %s: %d processed, %d messages", runID, status, run.Processed, run.MessagesSent)

	return models.RunSummary{
		RunID:        runID,
		Status:       status,
		Processed:    run.Processed,
		MessagesSent: run.MessagesSent,
		Duration:     duration,
	}, runErr
}

// runPass performs the reset, the per-participant phases and the summary. It
// reports the final run status along with the error that ended the run early.
func (e *Engine) runPass(ctx context.Context, run *models.Run) (models.RunStatus, error) {
	if err := e.participants.ResetStatuses(); err != nil {
		return models.FailedRunStatus, err
	}
	roster, err := e.participants.List()
	if err != nil {
		return models.FailedRunStatus, fmt.Errorf("failed to list participants: %w", err)
	}
	for i := range roster {
		e.publish(models.Event{Type: models.ParticipantUpdatedEvent, RunID: run.ID, Participant: &roster[i]})
	}

	header := HeaderLines()
	if err := e.resetLog(run.ID, header[:len(header)-1]); err != nil {
		return models.FailedRunStatus, err
	}
	if err := runStep(ctx, e.stepTimeout, e.mailer.Check); err != nil {
		if ctx.Err() != nil {
			return e.cancelled(ctx, run.ID)
		}
		e.appendLog(run.ID, connectionFailedLine(err))
		e.notify(run.ID, models.Notification{Level: models.ErrorNotification, Message: connectionFailedLine(err)})
		return models.FailedRunStatus, fmt.Errorf("%w: %v", ErrMailerUnavailable, err)
	}
	e.appendLog(run.ID, header[len(header)-1])

	for i, p := range roster {
		e.setCurrent(run.ID, i+1)
		if err := e.requestPhase(ctx, run, p); err != nil {
			return e.abort(ctx, run.ID, err)
		}
		if err := e.confirmationPhase(ctx, run, p); err != nil {
			return e.abort(ctx, run.ID, err)
		}
		run.Processed++
		if err := pause(ctx, e.pacing.Between); err != nil {
			return e.abort(ctx, run.ID, err)
		}
	}

	for _, line := range FooterLines(run.Processed, run.MessagesSent) {
		e.appendLog(run.ID, line)
	}
	e.notify(run.ID, completedToast)
	return models.CompletedRunStatus, nil
}

func (e *Engine) requestPhase(ctx context.Context, run *models.Run, p models.Participant) error {
	e.appendLog(run.ID, requestSubmittedLine(p))
	if err := pause(ctx, e.pacing.Request); err != nil {
		return err
	}
	if err := e.send(ctx, run.ID, models.RequestMessage, p); err != nil {
		return err
	}
	run.MessagesSent++
	if err := e.setStatus(run.ID, p.ID, models.SentRequestStatus, models.PendingConfirmationStatus); err != nil {
		return err
	}
	e.appendLog(run.ID, requestSentLine(p))
	e.notify(run.ID, requestToast(p))
	if err := pause(ctx, e.pacing.Notice); err != nil {
		return err
	}
	e.appendLog(run.ID, processingLine(p))
	return pause(ctx, e.pacing.Processing)
}

func (e *Engine) confirmationPhase(ctx context.Context, run *models.Run, p models.Participant) error {
	if err := e.send(ctx, run.ID, models.ConfirmationMessage, p); err != nil {
		return err
	}
	run.MessagesSent++
	if err := e.setStatus(run.ID, p.ID, models.SentRequestStatus, models.SentConfirmationStatus); err != nil {
		return err
	}
	e.appendLog(run.ID, confirmationSentLine(p))
	e.notify(run.ID, confirmationToast(p))
	if err := pause(ctx, e.pacing.Confirmation); err != nil {
		return err
	}
	return e.setStatus(run.ID, p.ID, models.ConfirmedRequestStatus, models.CompletedConfirmationStatus)
}

// send delivers one message. Failures other than cancellation are reported
// in the log and as an error notification before being returned.
func (e *Engine) send(ctx context.Context, runID string, kind models.MessageKind, p models.Participant) error {
	msg := models.Message{Kind: kind, To: p.Email, Name: p.Name, ScheduledAt: p.ScheduledAt}
	err := runStep(ctx, e.stepTimeout, func(stepCtx context.Context) error {
		return e.mailer.Send(stepCtx, msg)
	})
	if err == nil {
		messagesSentTotal.WithLabelValues(string(kind)).Inc()
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	deliveryFailuresTotal.WithLabelValues(string(kind)).Inc()
	line := deliveryFailedLine(kind, p, err)
	e.appendLog(runID, line)
	e.notify(runID, models.Notification{Level: models.ErrorNotification, Message: line})
	return errors.Wrapf(ErrDeliveryFailed, "%s message to participant %d: %v", kind, p.ID, err)
}

// abort maps the error that stopped a run to its final status.
func (e *Engine) abort(ctx context.Context, runID string, err error) (models.RunStatus, error) {
	if ctx.Err() != nil {
		return e.cancelled(ctx, runID)
	}
	e.logger.Errorf("Run %s aborted: %v", runID, err)
	return models.FailedRunStatus, err
}

func (e *Engine) cancelled(ctx context.Context, runID string) (models.RunStatus, error) {
	e.appendLog(runID, cancelledLine)
	e.notify(runID, models.Notification{Level: models.WarningNotification, Message: cancelledLine})
	return models.CancelledRunStatus, errors.Wrap(ctx.Err(), "run cancelled")
}

func (e *Engine) setCurrent(runID string, position int) {
	e.mu.Lock()
	e.current = position
	e.mu.Unlock()
	e.publish(models.Event{Type: models.CurrentChangedEvent, RunID: runID, Current: position})
}

func (e *Engine) setStatus(runID string, id int64, req models.RequestStatus, conf models.ConfirmationStatus) error {
	updated, err := e.participants.SetStatus(id, req, conf)
	if err != nil {
		return err
	}
	e.publish(models.Event{Type: models.ParticipantUpdatedEvent, RunID: runID, Participant: &updated})
	return nil
}

func (e *Engine) resetLog(runID string, lines []string) error {
	if err := e.store.ReplaceLog(lines); err != nil {
		return fmt.Errorf("failed to reset log: %w", err)
	}
	for _, line := range lines {
		e.logger.Infof("[%s] %s", runID, line)
	}
	e.publish(models.Event{Type: models.LogResetEvent, RunID: runID, Lines: append([]string(nil), lines...)})
	return nil
}

// appendLog records a line. A store failure is logged but does not stop the run.
func (e *Engine) appendLog(runID, line string) {
	if err := e.store.AppendLog(line); err != nil {
		e.logger.Errorf("Failed to append log line for run %s: %v", runID, err)
	}
	e.logger.Infof("[%s] %s", runID, line)
	e.publish(models.Event{Type: models.LogAppendedEvent, RunID: runID, Line: line})
}

func (e *Engine) notify(runID string, n models.Notification) {
	e.publish(models.Event{Type: models.NotificationEvent, RunID: runID, Notification: &n})
}

func (e *Engine) publish(ev models.Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.events.Publish(ev)
}
