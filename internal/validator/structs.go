package validator

import (
	"errors"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/models"
)

var structs = newStructValidator()

func newStructValidator() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())
	// В ошибках используем имена полей из JSON.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct проверяет тело запроса по тегам validate. Возвращает nil или
// *apperrors.Error вида validation_error со списком полей.
func Struct(s any) error {
	err := structs.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Internal("validation_failed", err)
	}

	details := make([]models.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		details = append(details, models.FieldError{Field: fe.Field(), Reason: reason})
	}
	return apperrors.Validation("invalid_request", "Request validation failed.", details...)
}
