package handlers

import (
	"net/http"
	"strconv"

	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/auth"
	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/transform"

	"go.uber.org/zap"
)

// HandleFormats возвращает поддерживаемые входные и выходные форматы.
func (h *Handlers) HandleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.FormatsResponse{
		Input:  h.deps.Validator.SupportedInput(),
		Output: transform.SupportedOutput(),
	})
}

// HandleLimits возвращает текущие лимиты клиента, не расходуя их.
func (h *Handlers) HandleLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.deps.Limiter.Peek(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, apperrors.Internal("rate_limit_unavailable", err))
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

// HandleMe возвращает данные пользователя из токена.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Auth("unauthenticated", "authentication required"))
		return
	}

	resp := models.MeResponse{
		UserInfo: models.UserInfo{Username: claims.Username, Role: claims.Role, Email: claims.Subject},
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleAdminContacts возвращает последние сообщения обратной связи.
// Параметр `limit` (по умолчанию 50, максимум 500). Если транспорт не умеет
// показывать сообщения, возвращается 501.
func (h *Handlers) HandleAdminContacts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, apperrors.Validation("invalid_request", "limit must be a positive integer.",
				models.FieldError{Field: "limit", Reason: "range"}))
			return
		}
		limit = min(n, 500)
	}

	list, supported, err := h.deps.Contact.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, apperrors.Internal("list_failed", err))
		return
	}
	if !supported {
		writeJSON(w, http.StatusNotImplemented, models.ErrorResponse{
			Error:   "not_supported",
			Message: "The configured contact transport does not support listing.",
		})
		return
	}
	if list == nil {
		list = []models.ContactSubmission{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandlePing проверяет доступность хранилища пользователей.
func (h *Handlers) HandlePing(w http.ResponseWriter, r *http.Request) {
	if h.deps.Users != nil {
		if err := h.deps.Users.Ping(r.Context()); err != nil {
			logger.Log.Error("storage ping failed", zap.Error(err))
			http.Error(w, "Storage connection error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
