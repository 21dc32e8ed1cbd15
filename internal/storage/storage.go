// Package storage хранит учётные записи пользователей.
// Реализации: в памяти, в JSON-файле и в PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sol1corejz/imgify/internal/models"
)

var (
	// ErrNotFound — пользователь с таким email не найден.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists — пользователь с таким email уже существует.
	ErrAlreadyExists = errors.New("user already exists")
)

// UserStorage — хранилище учётных записей.
type UserStorage interface {
	Lookup(ctx context.Context, email string) (models.User, error)
	Save(ctx context.Context, user models.User) error
	Ping(ctx context.Context) error
}

// NormalizeEmail приводит email к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Seed добавляет пользователя, если его ещё нет.
func Seed(ctx context.Context, s UserStorage, user models.User) error {
	err := s.Save(ctx, user)
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("seed user %s: %w", user.Email, err)
	}
	return nil
}
