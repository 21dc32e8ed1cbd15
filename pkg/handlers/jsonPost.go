package handlers

import (
	"errors"
	"net/http"

	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/auth"
	"github.com/sol1corejz/imgify/internal/contact"
	"github.com/sol1corejz/imgify/internal/middlewares"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/validator"
)

// HandleLogin обрабатывает вход по email и паролю.
//
// Поддерживаемые HTTP-методы: POST
// Тело запроса: JSON `{"email": "...", "password": "..."}`.
// Ответ:
//   - 200 OK: `{"token", "expires_at", "user": {"username", "role", "email"}}`.
//   - 401 Unauthorized: неверный email или пароль (ответ одинаков для обоих случаев).
//   - 422 Unprocessable Entity: тело не JSON или не заполнены поля.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validator.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, apperrors.Auth("invalid_credentials", "invalid credentials"))
			return
		}
		writeError(w, r, apperrors.Internal("login_failed", err))
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

// HandleContact принимает сообщение обратной связи.
//
// Поддерживаемые HTTP-методы: POST
// Тело запроса: JSON `{"name", "email", "subject", "message", "honeypot"}`.
// Ответ:
//   - 200 OK: сообщение принято (в том числе если заполнена ловушка).
//   - 422 Unprocessable Entity: ошибки полей.
//   - 429 Too Many Requests: больше трёх сообщений в час с одного IP.
//   - 500 Internal Server Error: `submission_failed`, сообщение не доставлено.
func (h *Handlers) HandleContact(w http.ResponseWriter, r *http.Request) {
	var msg models.ContactMessage
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.deps.Contact.Submit(r.Context(), msg, middlewares.ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ContactResponse{Success: true, Message: contact.SuccessMessage})
}
