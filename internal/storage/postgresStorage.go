package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sol1corejz/imgify/internal/models"
)

type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage создаёт таблицу users, если её нет.
func NewPostgresStorage(ctx context.Context, db *sql.DB) (*PostgresStorage, error) {
	query := `
        CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            email VARCHAR(255) UNIQUE NOT NULL,
            username VARCHAR(255) NOT NULL,
            role VARCHAR(32) NOT NULL DEFAULT 'user',
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `
	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create users table: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

func (p *PostgresStorage) Save(ctx context.Context, user models.User) error {
	query := `INSERT INTO users (email, username, role, password_hash) VALUES ($1, $2, $3, $4) ON CONFLICT (email) DO NOTHING`
	res, err := p.db.ExecContext(ctx, query, NormalizeEmail(user.Email), user.Username, user.Role, user.PasswordHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (p *PostgresStorage) Lookup(ctx context.Context, email string) (models.User, error) {
	var user models.User
	query := `SELECT email, username, role, password_hash, created_at FROM users WHERE email = $1`
	err := p.db.QueryRowContext(ctx, query, NormalizeEmail(email)).
		Scan(&user.Email, &user.Username, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
