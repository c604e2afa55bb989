package storage

import (
	"sort"
	"sync"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/pkg/errors"
)

type memoryData struct {
	participants []models.Participant
	log          []string
	runs         []models.Run
	version      uint64 // bumped by every committed write
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		participants: append([]models.Participant(nil), d.participants...),
		log:          append([]string(nil), d.log...),
		runs:         append([]models.Run(nil), d.runs...),
		version:      d.version,
	}
}

// ErrConflict is returned by Commit when the data changed after Begin.
var ErrConflict = errors.New("transaction conflict: data changed since begin")

// memoryStore implements Store in memory. Transactions work on a copy of the
// data that replaces the shared data on Commit. A Commit fails with
// ErrConflict if another write landed after Begin.
type memoryStore struct {
	mu     *sync.RWMutex
	shared **memoryData
	staged *memoryData // nil outside a transaction
	base   uint64
	done   bool
}

func NewMemoryStore() Store {
	data := &memoryData{}
	return &memoryStore{mu: &sync.RWMutex{}, shared: &data}
}

func (m *memoryStore) Begin() (Store, error) {
	if m.staged != nil {
		return nil, errors.New("transaction already in progress")
	}
	m.mu.RLock()
	staged := (*m.shared).clone()
	m.mu.RUnlock()
	return &memoryStore{mu: m.mu, shared: m.shared, staged: staged, base: staged.version}, nil
}

func (m *memoryStore) Commit() error {
	if m.staged == nil {
		return errors.New("cannot commit: not a transaction")
	}
	if m.done {
		return errors.New("transaction already finished")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
	if (*m.shared).version != m.base {
		return ErrConflict
	}
	m.staged.version = m.base + 1
	*m.shared = m.staged
	return nil
}

func (m *memoryStore) Rollback() error {
	if m.staged == nil {
		return errors.New("cannot rollback: not a transaction")
	}
	if m.done {
		return errors.New("transaction already finished")
	}
	m.done = true
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}

// read runs fn against the data visible to this store.
func (m *memoryStore) read(fn func(d *memoryData) error) error {
	if m.staged != nil {
		return fn(m.staged)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(*m.shared)
}

func (m *memoryStore) write(fn func(d *memoryData) error) error {
	if m.staged != nil {
		if m.done {
			return errors.New("transaction already finished")
		}
		return fn(m.staged)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *m.shared
	if err := fn(d); err != nil {
		return err
	}
	d.version++
	return nil
}

func (m *memoryStore) SaveParticipant(p models.Participant) error {
	return m.write(func(d *memoryData) error {
		for _, existing := range d.participants {
			if existing.ID == p.ID {
				return errors.Errorf("participant %d already exists", p.ID)
			}
		}
		d.participants = append(d.participants, p)
		sort.SliceStable(d.participants, func(i, j int) bool {
			return d.participants[i].Position < d.participants[j].Position
		})
		return nil
	})
}

func (m *memoryStore) GetParticipant(id int64) (models.Participant, error) {
	var found models.Participant
	err := m.read(func(d *memoryData) error {
		for _, p := range d.participants {
			if p.ID == id {
				found = p
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

func (m *memoryStore) ListParticipants() ([]models.Participant, error) {
	participants := []models.Participant{}
	err := m.read(func(d *memoryData) error {
		participants = append(participants, d.participants...)
		return nil
	})
	return participants, err
}

func (m *memoryStore) UpdateParticipantStatus(id int64, req models.RequestStatus, conf models.ConfirmationStatus) error {
	return m.write(func(d *memoryData) error {
		for i := range d.participants {
			if d.participants[i].ID == id {
				d.participants[i].RequestStatus = req
				d.participants[i].ConfirmationStatus = conf
				return nil
			}
		}
		return ErrNotFound
	})
}

func (m *memoryStore) ResetParticipantStatuses() error {
	return m.write(func(d *memoryData) error {
		for i := range d.participants {
			d.participants[i].RequestStatus = models.PendingRequestStatus
			d.participants[i].ConfirmationStatus = models.PendingConfirmationStatus
		}
		return nil
	})
}

func (m *memoryStore) DeleteParticipants() error {
	return m.write(func(d *memoryData) error {
		d.participants = nil
		return nil
	})
}

func (m *memoryStore) ReplaceLog(lines []string) error {
	return m.write(func(d *memoryData) error {
		d.log = append([]string(nil), lines...)
		return nil
	})
}

func (m *memoryStore) AppendLog(line string) error {
	return m.write(func(d *memoryData) error {
		d.log = append(d.log, line)
		return nil
	})
}

func (m *memoryStore) GetLog() ([]string, error) {
	lines := []string{}
	err := m.read(func(d *memoryData) error {
		lines = append(lines, d.log...)
		return nil
	})
	return lines, err
}

func (m *memoryStore) SaveRun(r models.Run) error {
	return m.write(func(d *memoryData) error {
		for _, existing := range d.runs {
			if existing.ID == r.ID {
				return errors.Errorf("run %s already exists", r.ID)
			}
		}
		d.runs = append(d.runs, r)
		return nil
	})
}

func (m *memoryStore) UpdateRun(r models.Run) error {
	return m.write(func(d *memoryData) error {
		for i := range d.runs {
			if d.runs[i].ID == r.ID {
				d.runs[i] = r
				return nil
			}
		}
		return ErrNotFound
	})
}

func (m *memoryStore) GetRun(id string) (models.Run, error) {
	var found models.Run
	err := m.read(func(d *memoryData) error {
		for _, r := range d.runs {
			if r.ID == id {
				found = r
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

// ListRuns returns runs most recent first.
func (m *memoryStore) ListRuns() ([]models.Run, error) {
	runs := []models.Run{}
	err := m.read(func(d *memoryData) error {
		for i := len(d.runs) - 1; i >= 0; i-- {
			runs = append(runs, d.runs[i])
		}
		return nil
	})
	return runs, err
}

func (m *memoryStore) DeleteRuns() error {
	return m.write(func(d *memoryData) error {
		d.runs = nil
		return nil
	})
}
