package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

// SQLStore implements storage.Store on top of sqlx. Queries are written with
// '?' placeholders and rebound for the active driver.
type SQLStore struct {
	db     DBInterface
	driver string
}

// OpenStore returns the store configured by driver: the in-memory store, or a
// migrated SQL store for sqlite and postgres.
func OpenStore(driver, dsn string) (storage.Store, error) {
	switch driver {
	case DriverMemory:
		return storage.NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return NewSQLStore(driver, dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

// NewSQLStore connects to dsn and brings the schema up to date.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// every connection to an in-memory database sees its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	switch driver {
	case DriverSQLite:
		err = applySchema(db)
	case DriverPostgres:
		err = MigratePostgres(dsn)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &SQLStore{db: tx, driver: s.driver}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *SQLStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *SQLStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *SQLStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

func (s *SQLStore) get(dest interface{}, query string, args ...interface{}) error {
	return s.db.Get(dest, s.db.Rebind(query), args...)
}

func (s *SQLStore) sel(dest interface{}, query string, args ...interface{}) error {
	return s.db.Select(dest, s.db.Rebind(query), args...)
}

func (s *SQLStore) exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(s.db.Rebind(query), args...)
}

// SaveParticipant inserts a participant row
func (s *SQLStore) SaveParticipant(p models.Participant) error {
	_, err := s.exec(`INSERT INTO participants
		(id, roster_position, name, email, scheduled_at, request_status, confirmation_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Position, p.Name, p.Email, p.ScheduledAt, p.RequestStatus, p.ConfirmationStatus)
	if err != nil {
		return fmt.Errorf("save participant %d: %w", p.ID, err)
	}
	return nil
}

func (s *SQLStore) GetParticipant(id int64) (models.Participant, error) {
	var p models.Participant
	err := s.get(&p, "SELECT * FROM participants WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return models.Participant{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Participant{}, err
	}
	return p, nil
}

// ListParticipants returns the roster in list order
func (s *SQLStore) ListParticipants() ([]models.Participant, error) {
	participants := []models.Participant{}
	if err := s.sel(&participants, "SELECT * FROM participants ORDER BY roster_position, id"); err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *SQLStore) UpdateParticipantStatus(id int64, req models.RequestStatus, conf models.ConfirmationStatus) error {
	res, err := s.exec("UPDATE participants SET request_status = ?, confirmation_status = ? WHERE id = ?", req, conf, id)
	if err != nil {
		return fmt.Errorf("update participant %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLStore) ResetParticipantStatuses() error {
	_, err := s.exec("UPDATE participants SET request_status = ?, confirmation_status = ?",
		models.PendingRequestStatus, models.PendingConfirmationStatus)
	return err
}

func (s *SQLStore) DeleteParticipants() error {
	_, err := s.exec("DELETE FROM participants")
	return err
}

// ReplaceLog swaps the whole run log for lines. Outside a transaction it
// opens one so observers never see a half written log.
func (s *SQLStore) ReplaceLog(lines []string) error {
	if _, ok := s.db.(*sqlx.Tx); !ok {
		tx, err := s.Begin()
		if err != nil {
			return err
		}
		if err := tx.ReplaceLog(lines); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	if _, err := s.exec("DELETE FROM run_log"); err != nil {
		return fmt.Errorf("clear log: %w", err)
	}
	for i, line := range lines {
		if _, err := s.exec("INSERT INTO run_log (seq, line) VALUES (?, ?)", i+1, line); err != nil {
			return fmt.Errorf("write log line %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLStore) AppendLog(line string) error {
	_, err := s.exec("INSERT INTO run_log (seq, line) SELECT COALESCE(MAX(seq), 0) + 1, CAST(? AS TEXT) FROM run_log", line)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

func (s *SQLStore) GetLog() ([]string, error) {
	lines := []string{}
	if err := s.sel(&lines, "SELECT line FROM run_log ORDER BY seq"); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *SQLStore) SaveRun(r models.Run) error {
	_, err := s.exec(`INSERT INTO runs (id, status, processed, messages_sent, error_msg, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.Processed, r.MessagesSent, r.ErrorMsg, r.StartedAt.UTC(), utcPtr(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateRun(r models.Run) error {
	res, err := s.exec(`
		UPDATE runs
		SET status = ?,
		processed = ?,
		messages_sent = ?,
		error_msg = ?,
		finished_at = ?
		WHERE id = ?`,
		r.Status, r.Processed, r.MessagesSent, r.ErrorMsg, utcPtr(r.FinishedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetRun(id string) (models.Run, error) {
	var r models.Run
	err := s.get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return models.Run{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Run{}, err
	}
	return r, nil
}

// ListRuns returns every run, most recent first
func (s *SQLStore) ListRuns() ([]models.Run, error) {
	runs := []models.Run{}
	if err := s.sel(&runs, "SELECT * FROM runs ORDER BY started_at DESC, id"); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *SQLStore) DeleteRuns() error {
	_, err := s.exec("DELETE FROM runs")
	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// splitStatements breaks a migration file into single statements for drivers
// that only accept one statement per Exec.
func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
