// Package apperrors описывает типизированные ошибки сервиса и их отображение
// на HTTP-статусы. Ошибки уровня запроса (валидация, лимиты, авторизация)
// передаются обработчикам как *Error, а ошибки отдельных изображений остаются
// внутри результата пакета.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sol1corejz/imgify/internal/models"
)

// Kind — класс ошибки, возвращаемый клиенту в поле "error".
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindRateLimit  Kind = "rate_limit_error"
	KindAuth       Kind = "auth_error"
	KindTransform  Kind = "transform_error"
	KindTooLarge   Kind = "payload_too_large"
	KindInternal   Kind = "internal_error"
)

// Error — ошибка уровня запроса.
type Error struct {
	Kind Kind
	// Code — машиночитаемая причина, например "no_files_provided" или "quota_exceeded".
	Code    string
	Message string
	Details []models.FieldError
	// RetryAfter заполняется только для KindRateLimit.
	RetryAfter time.Duration
	// Limits — произвольный снимок лимитов для ответа 429.
	Limits any
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Status возвращает HTTP-статус, соответствующий классу ошибки.
func (e *Error) Status() int {
	return HTTPStatus(e.Kind)
}

// HTTPStatus отображает класс ошибки на HTTP-статус.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindAuth:
		return http.StatusUnauthorized
	case KindTransform:
		return http.StatusUnprocessableEntity
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Validation создаёт ошибку валидации с кодом и необязательным списком полей.
func Validation(code, message string, details ...models.FieldError) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Details: details}
}

// RateLimited создаёт ошибку превышения лимита.
func RateLimited(code, message string, retryAfter time.Duration, limits any) *Error {
	return &Error{Kind: KindRateLimit, Code: code, Message: message, RetryAfter: retryAfter, Limits: limits}
}

// TooLarge создаёт ошибку превышения размера тела запроса.
func TooLarge(limit int64) *Error {
	return &Error{
		Kind:    KindTooLarge,
		Code:    "request_too_large",
		Message: fmt.Sprintf("Request body exceeds %d bytes.", limit),
	}
}

// Auth создаёт ошибку авторизации.
func Auth(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

// Internal оборачивает неожиданную ошибку коллаборатора. Причина не попадает в ответ клиенту.
func Internal(code string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: "internal server error", cause: cause}
}

// As извлекает *Error из цепочки ошибок.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
