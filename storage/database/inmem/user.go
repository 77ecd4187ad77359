package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/user"
)

type userRepository struct {
	mu    sync.RWMutex
	table map[string]user.User // keyed by username
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository() *userRepository {
	return &userRepository{table: make(map[string]user.User)}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.table[usr.Username]; ok {
		return user.User{}, user.ErrUsernameExists
	}
	usr.ID = uuid.New().String()
	repo.table[usr.Username] = usr
	return usr, nil
}

func (repo *userRepository) GetUserByUsername(_ context.Context, username string, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if usr, ok := repo.table[username]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	orig, ok := repo.table[usr.Username]
	if !ok || orig.ID != usr.ID {
		return user.User{}, user.ErrNotFound
	}
	usr.CreatedAt = orig.CreatedAt
	repo.table[usr.Username] = usr
	return usr, nil
}
