package service

import (
	"fmt"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/storage"
	"github.com/pkg/errors"
)

type ParticipantService struct {
	store  storage.Store
	logger Logger
}

func NewParticipantService(store storage.Store, logger Logger) *ParticipantService {
	return &ParticipantService{
		store:  store,
		logger: logger,
	}
}

// inTx runs fn inside a store transaction, committing on success and rolling back on error.
func (ps *ParticipantService) inTx(op string, fn func(tx storage.Store) error) (err error) {
	txStore, err := ps.store.Begin()
	if err != nil {
		ps.logger.Errorf("Failed to begin transaction for %s: %v", op, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ps.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			ps.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()
	return fn(txStore)
}

// Seed replaces the roster and clears the log and run history. It is called
// once per session so nothing from an earlier process leaks into this one.
func (ps *ParticipantService) Seed(roster []models.Participant) error {
	seen := make(map[int64]struct{}, len(roster))
	for _, p := range roster {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate participant id %d", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	err := ps.inTx("Seed", func(tx storage.Store) error {
		if err := tx.DeleteParticipants(); err != nil {
			return fmt.Errorf("failed to clear participants: %w", err)
		}
		if err := tx.DeleteRuns(); err != nil {
			return fmt.Errorf("failed to clear runs: %w", err)
		}
		if err := tx.ReplaceLog(nil); err != nil {
			return fmt.Errorf("failed to clear log: %w", err)
		}
		for i, p := range roster {
			p.Position = i + 1
			p.RequestStatus = models.PendingRequestStatus
			p.ConfirmationStatus = models.PendingConfirmationStatus
			if err := tx.SaveParticipant(p); err != nil {
				return fmt.Errorf("failed to save participant %d: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	ps.logger.Infof("Seeded %d participants", len(roster))
	return nil
}

func (ps *ParticipantService) List() ([]models.Participant, error) {
	return ps.store.ListParticipants()
}

// ResetStatuses puts every participant back to PENDING on both tracks.
func (ps *ParticipantService) ResetStatuses() error {
	return ps.inTx("ResetStatuses", func(tx storage.Store) error {
		if err := tx.ResetParticipantStatuses(); err != nil {
			ps.logger.Errorf("Failed to reset participant statuses: %v", err)
			return fmt.Errorf("failed to reset participant statuses: %w", err)
		}
		return nil
	})
}

// SetStatus moves a participant to the given pair of statuses and returns the
// updated record. Transitions must be monotonic on both tracks and the
// confirmation track may not get ahead of the request track.
func (ps *ParticipantService) SetStatus(id int64, req models.RequestStatus, conf models.ConfirmationStatus) (updated models.Participant, err error) {
	err = ps.inTx("SetStatus", func(tx storage.Store) error {
		current, err := tx.GetParticipant(id)
		if err != nil {
			return fmt.Errorf("failed to get participant %d: %w", id, err)
		}
		if err := validateTransition(current, req, conf); err != nil {
			return errors.Wrap(ErrInvalidTransition, err.Error())
		}
		if err := tx.UpdateParticipantStatus(id, req, conf); err != nil {
			ps.logger.Errorf("Failed to update participant %d status to %s/%s: %v", id, req, conf, err)
			return fmt.Errorf("failed to update participant %d status: %w", id, err)
		}
		updated = current
		updated.RequestStatus = req
		updated.ConfirmationStatus = conf
		return nil
	})
	return updated, err
}

var (
	requestRank = map[models.RequestStatus]int{
		models.PendingRequestStatus:   0,
		models.SentRequestStatus:      1,
		models.ConfirmedRequestStatus: 2,
	}
	confirmationRank = map[models.ConfirmationStatus]int{
		models.PendingConfirmationStatus:   0,
		models.SentConfirmationStatus:      1,
		models.CompletedConfirmationStatus: 2,
	}
)

func validateTransition(p models.Participant, req models.RequestStatus, conf models.ConfirmationStatus) error {
	fromReq, okFrom := requestRank[p.RequestStatus]
	toReq, okTo := requestRank[req]
	if !okFrom || !okTo {
		return fmt.Errorf("invalid request status %q", req)
	}
	fromConf, okFrom := confirmationRank[p.ConfirmationStatus]
	toConf, okTo := confirmationRank[conf]
	if !okFrom || !okTo {
		return fmt.Errorf("invalid confirmation status %q", conf)
	}
	if toReq < fromReq || toReq > fromReq+1 {
		return fmt.Errorf("participant %d: request status cannot move from %s to %s", p.ID, p.RequestStatus, req)
	}
	if toConf < fromConf || toConf > fromConf+1 {
		return fmt.Errorf("participant %d: confirmation status cannot move from %s to %s", p.ID, p.ConfirmationStatus, conf)
	}
	if toConf > 0 && toReq == 0 {
		return fmt.Errorf("participant %d: confirmation cannot start before the request is sent", p.ID)
	}
	if (conf == models.CompletedConfirmationStatus) != (req == models.ConfirmedRequestStatus) {
		return fmt.Errorf("participant %d: %s and %s must be reached together", p.ID, models.ConfirmedRequestStatus, models.CompletedConfirmationStatus)
	}
	return nil
}
