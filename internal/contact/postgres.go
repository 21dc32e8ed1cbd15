package contact

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sol1corejz/imgify/internal/models"
)

// PostgresTransport сохраняет сообщения в таблицу contact_submissions.
type PostgresTransport struct {
	db *sql.DB
}

func NewPostgresTransport(ctx context.Context, db *sql.DB) (*PostgresTransport, error) {
	query := `
        CREATE TABLE IF NOT EXISTS contact_submissions (
            id UUID PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            email VARCHAR(255) NOT NULL,
            subject VARCHAR(255) NOT NULL DEFAULT '',
            message TEXT NOT NULL,
            ip_address VARCHAR(64) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
    `
	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create contact_submissions table: %w", err)
	}
	index := `CREATE INDEX IF NOT EXISTS contact_submissions_created_at_idx ON contact_submissions (created_at DESC)`
	if _, err := db.ExecContext(ctx, index); err != nil {
		return nil, fmt.Errorf("create contact_submissions index: %w", err)
	}
	return &PostgresTransport{db: db}, nil
}

func (t *PostgresTransport) Deliver(ctx context.Context, s models.ContactSubmission) error {
	query := `INSERT INTO contact_submissions (id, name, email, subject, message, ip_address, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.db.ExecContext(ctx, query, s.ID, s.Name, s.Email, s.Subject, s.Message, s.IPAddress, s.CreatedAt)
	return err
}

func (t *PostgresTransport) List(ctx context.Context, limit int) ([]models.ContactSubmission, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, name, email, subject, message, ip_address, created_at
              FROM contact_submissions ORDER BY created_at DESC LIMIT $1`
	rows, err := t.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ContactSubmission
	for rows.Next() {
		var s models.ContactSubmission
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Subject, &s.Message, &s.IPAddress, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
