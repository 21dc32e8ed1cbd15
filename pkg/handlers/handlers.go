// Package handlers содержит HTTP-обработчики API сервиса Imgify.
package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/auth"
	"github.com/sol1corejz/imgify/internal/batch"
	"github.com/sol1corejz/imgify/internal/contact"
	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/middlewares"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/ratelimit"
	"github.com/sol1corejz/imgify/internal/stats"
	"github.com/sol1corejz/imgify/internal/storage"
	"github.com/sol1corejz/imgify/internal/validator"
)

// Значения по умолчанию для параметров запроса.
const (
	DefaultOptimizeQuality = 85
	DefaultConvertQuality  = 90
	DefaultMaxBodyBytes    = 64 << 20
	maxJSONBodyBytes       = 1 << 20
)

// Deps — зависимости обработчиков.
type Deps struct {
	Batch     *batch.Orchestrator
	Limiter   *ratelimit.Limiter
	Validator *validator.Validator
	Auth      *auth.Service
	Contact   *contact.Intake
	Stats     *stats.Collector
	Users     storage.UserStorage

	OptimizeQuality int
	ConvertQuality  int
	// MaxBodyBytes ограничивает размер multipart-тела целиком.
	MaxBodyBytes int64
	// BodyLimits уточняет MaxBodyBytes для уровней доступа, чтобы гость не мог
	// прислать тело под пакет пользователя.
	BodyLimits map[string]int64
}

// Handlers — набор HTTP-обработчиков.
type Handlers struct {
	deps Deps
}

// New создаёт обработчики и подставляет значения по умолчанию.
func New(deps Deps) *Handlers {
	if deps.OptimizeQuality <= 0 {
		deps.OptimizeQuality = DefaultOptimizeQuality
	}
	if deps.ConvertQuality <= 0 {
		deps.ConvertQuality = DefaultConvertQuality
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Stats == nil {
		deps.Stats = stats.New()
	}
	return &Handlers{deps: deps}
}

// identity определяет, чьи лимиты расходует запрос: пользователя с токеном или гостя по IP.
func identity(r *http.Request) ratelimit.Identity {
	if claims, ok := auth.FromContext(r.Context()); ok {
		return ratelimit.User(claims.Subject)
	}
	return ratelimit.Guest(middlewares.ClientIP(r))
}

// bodyLimit возвращает допустимый размер тела для уровня доступа id.
func (h *Handlers) bodyLimit(id ratelimit.Identity) int64 {
	if n := h.deps.BodyLimits[id.Tier]; n > 0 {
		return n
	}
	return h.deps.MaxBodyBytes
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError отображает ошибку на HTTP-ответ. Причины внутренних ошибок
// только логируются и не попадают клиенту.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal("", err)
	}

	body := models.ErrorResponse{
		Error:   string(appErr.Kind),
		Code:    appErr.Code,
		Message: appErr.Message,
		Errors:  appErr.Details,
		Limits:  appErr.Limits,
	}

	switch appErr.Kind {
	case apperrors.KindRateLimit:
		body.Error = appErr.Code
		body.Code = ""
		if appErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
		}
	case apperrors.KindInternal:
		logger.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", appErr.Code),
			zap.Error(errors.Unwrap(appErr)),
		)
	}

	writeJSON(w, appErr.Status(), body)
}

// decodeJSON читает тело запроса в v; ошибки разбора отдаются как 422.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.TooLarge(maxErr.Limit)
		}
		return apperrors.Validation("invalid_json", "Request body must be a valid JSON object.")
	}
	return nil
}
