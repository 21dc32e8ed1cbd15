// Package ratelimit ограничивает число запросов и изображений на клиента
// в фиксированном окне времени. Проверка и увеличение счётчиков выполняются
// одной атомарной операцией хранилища.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sol1corejz/imgify/internal/models"
)

// Уровни доступа.
const (
	TierGuest   = "guest"
	TierUser    = "user"
	TierContact = "contact"
)

// Причины отказа.
const (
	ReasonBatchSizeExceeded = "batch_size_exceeded"
	ReasonQuotaExceeded     = "quota_exceeded"
)

// ErrUnknownTier — у идентичности указан неизвестный уровень.
var ErrUnknownTier = errors.New("unknown rate limit tier")

// Tier — лимиты одного уровня доступа. Нулевая квота отключает измерение.
type Tier struct {
	BatchLimit   int
	ImageQuota   int
	RequestQuota int
	Window       time.Duration
}

// Identity — клиент, которому принадлежат счётчики.
type Identity struct {
	Key  string
	Tier string
}

// Guest — гость, определяемый по IP.
func Guest(ip string) Identity {
	return Identity{Key: "ip:" + ip, Tier: TierGuest}
}

// User — авторизованный пользователь, определяемый по subject токена.
func User(subject string) Identity {
	return Identity{Key: "user:" + subject, Tier: TierUser}
}

// Contact — отправитель формы обратной связи.
func Contact(ip string) Identity {
	return Identity{Key: "contact:" + ip, Tier: TierContact}
}

// Usage — состояние счётчиков в текущем окне.
type Usage struct {
	Requests int
	Images   int
}

// Ask — запрос к хранилищу на атомарное увеличение счётчиков.
type Ask struct {
	Key          string
	WindowStart  time.Time
	Window       time.Duration
	Requests     int
	Images       int
	RequestQuota int
	ImageQuota   int
}

// Store хранит счётчики окон. Реализации должны быть безопасны для конкурентного использования.
type Store interface {
	// Take атомарно проверяет квоты и, если они не превышены, увеличивает счётчики.
	// Возвращает состояние после операции (или текущее при отказе) и признак успеха.
	Take(ctx context.Context, ask Ask) (Usage, bool, error)
	// Usage возвращает состояние счётчиков окна, не изменяя их.
	Usage(ctx context.Context, key string, windowStart time.Time) (Usage, error)
}

// Decision — результат проверки лимитов.
type Decision struct {
	Allowed    bool
	Reason     string
	Message    string
	Limits     models.Limits
	RetryAfter time.Duration
}

// Limiter применяет уровни доступа поверх хранилища.
type Limiter struct {
	store Store
	tiers map[string]Tier
	clk   func() time.Time
}

// New создаёт ограничитель; clk == nil означает time.Now.
func New(store Store, tiers map[string]Tier, clk func() time.Time) *Limiter {
	if clk == nil {
		clk = time.Now
	}
	return &Limiter{store: store, tiers: tiers, clk: clk}
}

// Admit проверяет пакет из batchSize изображений и при успехе учитывает его.
// Превышение размера пакета проверяется раньше квоты и ничего не расходует.
func (l *Limiter) Admit(ctx context.Context, id Identity, batchSize int) (Decision, error) {
	if batchSize < 0 {
		return Decision{}, fmt.Errorf("negative batch size %d", batchSize)
	}
	tier, ok := l.tiers[id.Tier]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownTier, id.Tier)
	}

	start, resetAt := l.window(tier)

	if batchSize > tier.BatchLimit {
		usage, err := l.store.Usage(ctx, id.Key, start)
		if err != nil {
			return Decision{}, fmt.Errorf("read usage: %w", err)
		}
		return Decision{
			Reason:  ReasonBatchSizeExceeded,
			Message: fmt.Sprintf("Batch limit exceeded. Maximum %d images per batch.", tier.BatchLimit),
			Limits:  limits(id, tier, usage, resetAt),
		}, nil
	}

	usage, ok, err := l.store.Take(ctx, Ask{
		Key:          id.Key,
		WindowStart:  start,
		Window:       tier.Window,
		Requests:     1,
		Images:       batchSize,
		RequestQuota: tier.RequestQuota,
		ImageQuota:   tier.ImageQuota,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("take quota: %w", err)
	}

	decision := Decision{Allowed: ok, Limits: limits(id, tier, usage, resetAt)}
	if !ok {
		decision.Reason = ReasonQuotaExceeded
		decision.Message = quotaMessage(tier, usage)
		decision.RetryAfter = resetAt.Sub(l.clk())
	}
	return decision, nil
}

// Peek возвращает текущие лимиты клиента без расхода квоты.
func (l *Limiter) Peek(ctx context.Context, id Identity) (models.Limits, error) {
	tier, ok := l.tiers[id.Tier]
	if !ok {
		return models.Limits{}, fmt.Errorf("%w: %s", ErrUnknownTier, id.Tier)
	}
	start, resetAt := l.window(tier)
	usage, err := l.store.Usage(ctx, id.Key, start)
	if err != nil {
		return models.Limits{}, fmt.Errorf("read usage: %w", err)
	}
	return limits(id, tier, usage, resetAt), nil
}

// Tier возвращает настройки уровня.
func (l *Limiter) Tier(name string) (Tier, bool) {
	tier, ok := l.tiers[name]
	return tier, ok
}

func (l *Limiter) window(tier Tier) (time.Time, time.Time) {
	start := l.clk().UTC().Truncate(tier.Window)
	return start, start.Add(tier.Window)
}

func quotaMessage(tier Tier, usage Usage) string {
	if tier.ImageQuota == 0 {
		return "Too many requests. Please try again later."
	}
	remaining := max(tier.ImageQuota-usage.Images, 0)
	if tier.Window == 24*time.Hour {
		return fmt.Sprintf("Daily limit exceeded. You have %d images remaining today.", remaining)
	}
	return fmt.Sprintf("Quota exceeded. You have %d images remaining in the current window.", remaining)
}

func limits(id Identity, tier Tier, usage Usage, resetAt time.Time) models.Limits {
	userType := "guest"
	if id.Tier == TierUser {
		userType = "registered"
	}
	quota, used := tier.ImageQuota, usage.Images
	if quota == 0 {
		quota, used = tier.RequestQuota, usage.Requests
	}
	return models.Limits{
		UserType:       userType,
		BatchLimit:     tier.BatchLimit,
		DailyLimit:     quota,
		DailyUsed:      used,
		DailyRemaining: max(quota-used, 0),
		ResetAt:        resetAt,
	}
}
