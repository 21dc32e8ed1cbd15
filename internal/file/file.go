// Package file пишет и читает сообщения обратной связи в файле формата JSON Lines.
package file

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/sol1corejz/imgify/internal/models"
)

type Producer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

type Consumer struct {
	file    *os.File
	decoder *json.Decoder
}

func NewProducer(fileName string) (*Producer, error) {
	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	return &Producer{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// WriteSubmission дописывает сообщение отдельной строкой.
func (p *Producer) WriteSubmission(s *models.ContactSubmission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(s)
}

func (p *Producer) Close() error {
	return p.file.Close()
}

func NewConsumer(fileName string) (*Consumer, error) {
	file, err := os.OpenFile(fileName, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		file:    file,
		decoder: json.NewDecoder(file),
	}, nil
}

// ReadSubmission читает следующее сообщение; в конце файла возвращает io.EOF.
func (c *Consumer) ReadSubmission() (*models.ContactSubmission, error) {
	s := &models.ContactSubmission{}
	if err := c.decoder.Decode(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Consumer) Close() error {
	return c.file.Close()
}

// ReadAll читает все сообщения из файла.
func ReadAll(fileName string) ([]models.ContactSubmission, error) {
	c, err := NewConsumer(fileName)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var out []models.ContactSubmission
	for {
		s, err := c.ReadSubmission()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, *s)
	}
}
