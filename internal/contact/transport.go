package contact

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/sol1corejz/imgify/internal/file"
	"github.com/sol1corejz/imgify/internal/models"
)

// LogTransport пишет сообщение в журнал.
type LogTransport struct {
	log *zap.Logger
}

func NewLogTransport(log *zap.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(_ context.Context, s models.ContactSubmission) error {
	t.log.Info("contact submission",
		zap.String("id", s.ID),
		zap.String("name", s.Name),
		zap.String("email", s.Email),
		zap.String("subject", s.Subject),
		zap.Int("message_length", len(s.Message)),
		zap.String("ip", s.IPAddress),
		zap.Time("created_at", s.CreatedAt),
	)
	return nil
}

// FileTransport дописывает сообщения в файл JSON Lines.
type FileTransport struct {
	path     string
	producer *file.Producer
}

func NewFileTransport(path string) (*FileTransport, error) {
	p, err := file.NewProducer(path)
	if err != nil {
		return nil, fmt.Errorf("open contact outbox: %w", err)
	}
	return &FileTransport{path: path, producer: p}, nil
}

func (t *FileTransport) Deliver(_ context.Context, s models.ContactSubmission) error {
	return t.producer.WriteSubmission(&s)
}

// List читает файл целиком и возвращает последние limit сообщений, новые первыми.
func (t *FileTransport) List(_ context.Context, limit int) ([]models.ContactSubmission, error) {
	all, err := file.ReadAll(t.path)
	if err != nil {
		return nil, err
	}
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (t *FileTransport) Close() error {
	return t.producer.Close()
}
