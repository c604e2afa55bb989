package storage_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	participant := func(id int64, pos int) models.Participant {
		return models.Participant{
			ID:                 id,
			Position:           pos,
			Name:               fmt.Sprintf("P%d", id),
			Email:              "p@email.com",
			ScheduledAt:        "11/06/2025 às 14:30",
			RequestStatus:      models.PendingRequestStatus,
			ConfirmationStatus: models.PendingConfirmationStatus,
		}
	}

	t.Run("ListParticipants orders by position", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveParticipant(participant(2, 2)))
		require.NoError(t, store.SaveParticipant(participant(1, 1)))

		list, err := store.ListParticipants()
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, int64(1), list[0].ID)
		assert.Equal(t, int64(2), list[1].ID)
	})

	t.Run("SaveParticipant rejects duplicates", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveParticipant(participant(1, 1)))
		assert.Error(t, store.SaveParticipant(participant(1, 2)))
	})

	t.Run("GetParticipant not found", func(t *testing.T) {
		store := storage.NewMemoryStore()
		_, err := store.GetParticipant(42)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Commit publishes staged writes", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveParticipant(participant(1, 1)))

		tx, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.UpdateParticipantStatus(1, models.SentRequestStatus, models.PendingConfirmationStatus))

		before, err := store.GetParticipant(1)
		require.NoError(t, err)
		assert.Equal(t, models.PendingRequestStatus, before.RequestStatus)

		require.NoError(t, tx.Commit())
		after, err := store.GetParticipant(1)
		require.NoError(t, err)
		assert.Equal(t, models.SentRequestStatus, after.RequestStatus)

		assert.Error(t, tx.Commit())
		assert.Error(t, tx.AppendLog("late"))
	})

	t.Run("Rollback discards staged writes", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.ReplaceLog([]string{"header"}))

		tx, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.AppendLog("discarded"))
		require.NoError(t, tx.Rollback())

		lines, err := store.GetLog()
		require.NoError(t, err)
		assert.Equal(t, []string{"header"}, lines)
	})

	t.Run("Commit rejects writes made after Begin", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.ReplaceLog([]string{"header"}))

		tx, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.AppendLog("from tx"))
		require.NoError(t, store.AppendLog("outside"))

		assert.ErrorIs(t, tx.Commit(), storage.ErrConflict)
		lines, err := store.GetLog()
		require.NoError(t, err)
		assert.Equal(t, []string{"header", "outside"}, lines)

		next, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, next.AppendLog("after"))
		require.NoError(t, next.Commit())
		lines, err = store.GetLog()
		require.NoError(t, err)
		assert.Equal(t, []string{"header", "outside", "after"}, lines)
	})

	t.Run("Commit outside a transaction fails", func(t *testing.T) {
		store := storage.NewMemoryStore()
		assert.Error(t, store.Commit())
		assert.Error(t, store.Rollback())
	})

	t.Run("ResetParticipantStatuses", func(t *testing.T) {
		store := storage.NewMemoryStore()
		p := participant(1, 1)
		p.RequestStatus = models.ConfirmedRequestStatus
		p.ConfirmationStatus = models.CompletedConfirmationStatus
		require.NoError(t, store.SaveParticipant(p))

		require.NoError(t, store.ResetParticipantStatuses())
		got, err := store.GetParticipant(1)
		require.NoError(t, err)
		assert.Equal(t, models.PendingRequestStatus, got.RequestStatus)
		assert.Equal(t, models.PendingConfirmationStatus, got.ConfirmationStatus)
	})

	t.Run("Runs are listed most recent first", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveRun(models.Run{ID: "a", Status: models.CompletedRunStatus, StartedAt: time.Now()}))
		require.NoError(t, store.SaveRun(models.Run{ID: "b", Status: models.RunningRunStatus, StartedAt: time.Now()}))

		run, err := store.GetRun("b")
		require.NoError(t, err)
		run.Status = models.FailedRunStatus
		require.NoError(t, store.UpdateRun(run))

		runs, err := store.ListRuns()
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "b", runs[0].ID)
		assert.Equal(t, models.FailedRunStatus, runs[0].Status)

		assert.ErrorIs(t, store.UpdateRun(models.Run{ID: "missing"}), storage.ErrNotFound)
		require.NoError(t, store.DeleteRuns())
		runs, err = store.ListRuns()
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}
