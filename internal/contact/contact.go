// Package contact принимает сообщения обратной связи: отсеивает ботов по
// полю-ловушке, проверяет поля, ограничивает частоту отправки с одного IP
// и передаёт сообщение транспорту доставки.
package contact

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/ratelimit"
	"github.com/sol1corejz/imgify/internal/stats"
	"github.com/sol1corejz/imgify/internal/validator"
)

// CodeSubmissionFailed — транспорт не смог доставить сообщение.
const CodeSubmissionFailed = "submission_failed"

// SuccessMessage возвращается клиенту при успешной отправке, в том числе ботам.
const SuccessMessage = "Thank you for your message. We will get back to you soon."

// Transport доставляет принятое сообщение.
type Transport interface {
	Deliver(ctx context.Context, s models.ContactSubmission) error
}

// Lister — транспорт, умеющий показать последние сообщения.
type Lister interface {
	List(ctx context.Context, limit int) ([]models.ContactSubmission, error)
}

// Admitter проверяет частоту отправки.
type Admitter interface {
	Admit(ctx context.Context, id ratelimit.Identity, batchSize int) (ratelimit.Decision, error)
}

// Intake — приём сообщений обратной связи.
type Intake struct {
	limiter   Admitter
	transport Transport
	stats     *stats.Collector
	clk       func() time.Time
}

// NewIntake создаёт приём. limiter и collector могут быть nil.
func NewIntake(limiter Admitter, transport Transport, collector *stats.Collector) *Intake {
	if collector == nil {
		collector = stats.New()
	}
	return &Intake{limiter: limiter, transport: transport, stats: collector, clk: time.Now}
}

// Submit принимает сообщение от клиента с адресом clientIP.
// Заполненная ловушка означает бота: ответ успешный, но сообщение отбрасывается без проверок.
func (in *Intake) Submit(ctx context.Context, msg models.ContactMessage, clientIP string) error {
	if strings.TrimSpace(msg.Honeypot) != "" {
		logger.Log.Info("contact honeypot triggered", zap.String("ip", clientIP))
		return nil
	}

	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Message = strings.TrimSpace(msg.Message)
	if err := validator.Struct(msg); err != nil {
		return err
	}

	if in.limiter != nil {
		decision, err := in.limiter.Admit(ctx, ratelimit.Contact(clientIP), 0)
		if err != nil {
			return apperrors.Internal("rate_limit_unavailable", err)
		}
		if !decision.Allowed {
			logger.Log.Info("contact rate limited", zap.String("ip", clientIP))
			return apperrors.RateLimited(decision.Reason, "Too many messages. Please try again later.", decision.RetryAfter, nil)
		}
	}

	submission := models.ContactSubmission{
		ID:        uuid.New().String(),
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Message:   msg.Message,
		IPAddress: clientIP,
		CreatedAt: in.clk().UTC(),
	}
	if err := in.transport.Deliver(ctx, submission); err != nil {
		logger.Log.Error("contact delivery failed", zap.String("id", submission.ID), zap.Error(err))
		return apperrors.Internal(CodeSubmissionFailed, err)
	}

	in.stats.ContactAccepted()
	logger.Log.Info("contact accepted", zap.String("id", submission.ID))
	return nil
}

// List возвращает последние сообщения, если транспорт это поддерживает.
func (in *Intake) List(ctx context.Context, limit int) ([]models.ContactSubmission, bool, error) {
	lister, ok := in.transport.(Lister)
	if !ok {
		return nil, false, nil
	}
	out, err := lister.List(ctx, limit)
	return out, true, err
}
