package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sol1corejz/imgify/internal/models"
)

// FileStorage хранит пользователей JSON-массивом в файле и держит копию в памяти.
type FileStorage struct {
	filename string
	mu       sync.Mutex
	data     []models.User
}

func NewFileStorage(filename string) (*FileStorage, error) {
	fs := &FileStorage{
		filename: filename,
		data:     make([]models.User, 0),
	}

	file, err := os.OpenFile(filename, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	err = json.NewDecoder(file).Decode(&fs.data)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return fs, nil
}

func (fs *FileStorage) saveToFile() error {
	file, err := os.OpenFile(fs.filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(fs.data)
}

func (fs *FileStorage) Save(_ context.Context, user models.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	user.Email = NormalizeEmail(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	for _, u := range fs.data {
		if u.Email == user.Email {
			return ErrAlreadyExists
		}
	}

	fs.data = append(fs.data, user)
	return fs.saveToFile()
}

func (fs *FileStorage) Lookup(_ context.Context, email string) (models.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	email = NormalizeEmail(email)
	for _, u := range fs.data {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (fs *FileStorage) Ping(context.Context) error {
	_, err := os.Stat(fs.filename)
	return err
}
