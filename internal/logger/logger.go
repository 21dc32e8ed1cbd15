// Package logger предоставляет функции для инициализации и использования логирования
// в приложении, включая логирование HTTP-запросов с помощью библиотеки zap.
package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log является глобальной переменной для использования логгера. Изначально настроен на no-op логгер.
var Log = zap.NewNop()

// Initialize заменяет глобальный логгер на production-логгер уровня level
// ("debug", "info", "warn", "error"). Время пишется в ISO8601, логгер помечен
// именем сервиса.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	Log = zl.Named("imgify")
	return nil
}

// RequestLogger оборачивает HTTP-обработчик, логируя информацию о запросах:
// путь, метод, код ответа, размер тела ответа, длительность и идентификатор запроса.
func RequestLogger(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Обёртка запоминает статус и количество записанных байт.
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		h.ServeHTTP(ww, r)

		Log.Info("got incoming HTTP request",
			zap.String("path", r.RequestURI),
			zap.String("method", r.Method),
			zap.Int("status", ww.Status()),
			zap.Int("size", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr),
		)
	}

	return http.HandlerFunc(logFn)
}
