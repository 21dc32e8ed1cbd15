// Модуль main — входная точка сервиса Imgify: чтение конфигурации, подключение
// хранилищ, сборка обработчиков и запуск HTTP-сервера.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/sol1corejz/imgify/cmd/config"
	"github.com/sol1corejz/imgify/internal/auth"
	"github.com/sol1corejz/imgify/internal/batch"
	"github.com/sol1corejz/imgify/internal/cert"
	"github.com/sol1corejz/imgify/internal/contact"
	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/ratelimit"
	"github.com/sol1corejz/imgify/internal/stats"
	"github.com/sol1corejz/imgify/internal/storage"
	"github.com/sol1corejz/imgify/internal/transform"
	"github.com/sol1corejz/imgify/internal/validator"
	"github.com/sol1corejz/imgify/pkg/handlers"
)

// Глобальные переменные для информации о версии сборки.
var (
	buildVersion = "N/A" // Версия сборки, передается на этапе компиляции.
	buildDate    = "N/A" // Дата сборки, передается на этапе компиляции.
	buildCommit  = "N/A" // Коммит сборки, передается на этапе компиляции.
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Вывод информации о версии сборки.
	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	// Контекст отменяется по сигналу завершения.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Fatal("Failed to run server", zap.Error(err))
	}
	logger.Log.Info("Server Shutdown gracefully")
}

// app — собранные зависимости сервиса и функции их освобождения.
type app struct {
	handler http.Handler
	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Log.Warn("close failed", zap.Error(err))
		}
	}
}

// run собирает сервис и обслуживает запросы до отмены ctx.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.RunAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		defer close(idleConnsClosed)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("HTTP server Shutdown failed", zap.Error(err))
		}
	}()

	logger.Log.Info("Running server",
		zap.String("address", cfg.RunAddr),
		zap.Bool("https", cfg.EnableHTTPS),
		zap.String("version", buildVersion),
	)

	if cfg.EnableHTTPS {
		if err := cert.Ensure(cfg.CertFile, cfg.KeyFile); err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		err = srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-idleConnsClosed
	return nil
}

// build создаёт хранилища, сервисы и маршрутизатор по конфигурации.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		var err error
		db, err = storage.OpenDB(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, db)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = ratelimit.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, rdb)
	}

	users, err := newUserStorage(ctx, cfg, db)
	if err != nil {
		return fail(err)
	}
	if err := seedAdmin(ctx, cfg, users); err != nil {
		return fail(err)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Log.Warn("JWT secret is not set, using development default")
		secret = config.DefaultSecret
	}
	authService, err := auth.NewService(users, auth.NewTokens(secret, cfg.TokenTTL))
	if err != nil {
		return fail(err)
	}

	limiter := ratelimit.New(newRateStore(ctx, cfg, rdb), tiers(cfg.Limits), nil)

	transport, err := newContactTransport(ctx, cfg, db, rdb)
	if err != nil {
		return fail(err)
	}
	if c, ok := transport.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	collector := stats.New()
	v := validator.New(cfg.MaxFileSize())
	orchestrator := batch.New(v, limiter, transform.New(transform.DefaultMaxPixels), collector, batch.Options{
		Workers: cfg.Workers,
		Timeout: cfg.BatchTimeout,
		CPU:     semaphore.NewWeighted(int64(runtime.NumCPU())),
	})

	h := handlers.New(handlers.Deps{
		Batch:           orchestrator,
		Limiter:         limiter,
		Validator:       v,
		Auth:            authService,
		Contact:         contact.NewIntake(limiter, transport, collector),
		Stats:           collector,
		Users:           users,
		OptimizeQuality: cfg.OptimizeQuality,
		ConvertQuality:  cfg.ConvertQuality,
		BodyLimits:      bodyLimits(cfg),
	})
	a.handler = handlers.NewRouter(h, handlers.RouterOptions{
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		TrustedSubnet:  cfg.TrustedSubnet,
		EnablePprof:    cfg.EnablePprof,
	})
	return a, nil
}

// newUserStorage выбирает хранилище пользователей: PostgreSQL, JSON-файл или память.
func newUserStorage(ctx context.Context, cfg *config.Config, db *sql.DB) (storage.UserStorage, error) {
	switch {
	case db != nil:
		logger.Log.Info("Using PostgreSQL user storage")
		return storage.NewPostgresStorage(ctx, db)
	case cfg.UsersFile != "":
		logger.Log.Info("Using file user storage", zap.String("file", cfg.UsersFile))
		return storage.NewFileStorage(cfg.UsersFile)
	default:
		logger.Log.Info("Using in-memory user storage")
		return storage.NewMemoryStorage(), nil
	}
}

// seedAdmin создаёт администратора из конфигурации, если он ещё не заведён.
func seedAdmin(ctx context.Context, cfg *config.Config, users storage.UserStorage) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	hash, err := auth.HashPassword(cfg.AdminPassword, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	return storage.Seed(ctx, users, models.User{
		Email:        cfg.AdminEmail,
		Username:     cfg.AdminUsername,
		Role:         auth.RoleAdmin,
		PasswordHash: hash,
	})
}

// newRateStore возвращает общее хранилище счётчиков в Redis или локальное в памяти.
func newRateStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) ratelimit.Store {
	if rdb != nil {
		logger.Log.Info("Using Redis rate limit store", zap.String("addr", cfg.RedisAddr))
		return ratelimit.NewRedisStore(rdb, "")
	}

	store := ratelimit.NewMemoryStore()
	longest := max(cfg.Limits.Guest.Window, cfg.Limits.User.Window, cfg.Limits.Contact.Window)
	go store.RunSweeper(ctx, 10*time.Minute, longest)
	return store
}

func newContactTransport(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client) (contact.Transport, error) {
	switch cfg.ContactTransport {
	case "file":
		return contact.NewFileTransport(cfg.ContactOutbox)
	case "postgres":
		if db == nil {
			return nil, errors.New("contact transport postgres requires DATABASE_DSN")
		}
		return contact.NewPostgresTransport(ctx, db)
	case "redis":
		if rdb == nil {
			return nil, errors.New("contact transport redis requires REDIS_ADDR")
		}
		return contact.NewRedisTransport(rdb, cfg.ContactQueue), nil
	default:
		return contact.NewLogTransport(logger.Log), nil
	}
}

func tiers(l config.Limits) map[string]ratelimit.Tier {
	convert := func(t config.Tier) ratelimit.Tier {
		return ratelimit.Tier{
			BatchLimit:   t.BatchLimit,
			ImageQuota:   t.ImageQuota,
			RequestQuota: t.RequestQuota,
			Window:       t.Window,
		}
	}
	return map[string]ratelimit.Tier{
		ratelimit.TierGuest:   convert(l.Guest),
		ratelimit.TierUser:    convert(l.User),
		ratelimit.TierContact: convert(l.Contact),
	}
}

// bodyLimits ограничивает multipart-тело для каждого уровня: пакет из файлов
// максимального размера плюс запас на заголовки частей.
func bodyLimits(cfg *config.Config) map[string]int64 {
	limit := func(t config.Tier) int64 {
		return int64(t.BatchLimit)*cfg.MaxFileSize() + 1<<20
	}
	return map[string]int64{
		ratelimit.TierGuest: limit(cfg.Limits.Guest),
		ratelimit.TierUser:  limit(cfg.Limits.User),
	}
}
