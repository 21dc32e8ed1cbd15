package storage

import (
	"context"
	"sync"
	"time"

	"github.com/sol1corejz/imgify/internal/models"
)

type MemoryStorage struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]models.User),
	}
}

func (ms *MemoryStorage) Save(_ context.Context, user models.User) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	user.Email = NormalizeEmail(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, ok := ms.users[user.Email]; ok {
		return ErrAlreadyExists
	}
	ms.users[user.Email] = user
	return nil
}

func (ms *MemoryStorage) Lookup(_ context.Context, email string) (models.User, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	user, found := ms.users[NormalizeEmail(email)]
	if !found {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (ms *MemoryStorage) Ping(context.Context) error {
	return nil
}
