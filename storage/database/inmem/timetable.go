package inmemdb

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core/timetable"
)

// TimetableRepository keeps generations as JSON, like the jsonb columns of the postgres store.
type TimetableRepository struct {
	mu     sync.RWMutex
	tables map[string][]byte
}

var _ timetable.Repository = (*TimetableRepository)(nil)

func NewTimetableRepository() *TimetableRepository {
	return &TimetableRepository{tables: make(map[string][]byte)}
}

func (repo *TimetableRepository) List(_ context.Context) ([]string, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	names := make([]string, 0, len(repo.tables))
	for name := range repo.tables {
		names = append(names, name)
	}
	return names, nil
}

func (repo *TimetableRepository) Save(_ context.Context, name string, tt *timetable.Timetable) error {
	data, err := json.Marshal(tt)
	if err != nil {
		return errors.Wrap(err, "encoding timetable")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.tables[name]; ok {
		return timetable.ErrExists
	}
	repo.tables[name] = data
	return nil
}

func (repo *TimetableRepository) Get(_ context.Context, name string) (*timetable.Timetable, error) {
	repo.mu.RLock()
	data, ok := repo.tables[name]
	repo.mu.RUnlock()
	if !ok {
		return nil, timetable.ErrNotFound
	}

	tt := new(timetable.Timetable)
	if err := json.Unmarshal(data, tt); err != nil {
		return nil, errors.Wrap(err, "decoding timetable")
	}
	return tt, nil
}

func (repo *TimetableRepository) Delete(_ context.Context, name string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.tables[name]; !ok {
		return timetable.ErrNotFound
	}
	delete(repo.tables, name)
	return nil
}
