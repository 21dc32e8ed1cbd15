package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Драйвер pgx для database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB открывает пул соединений с PostgreSQL через драйвер pgx и проверяет соединение.
// Пул общий для хранилища пользователей и транспорта сообщений обратной связи.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
