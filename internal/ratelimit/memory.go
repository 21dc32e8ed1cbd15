package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore хранит счётчики в памяти процесса. У каждого ключа своя блокировка,
// поэтому клиенты не блокируют друг друга.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	start    time.Time
	requests int
	images   int
	// dead выставляет Sweep, удаляя запись из карты. Такую запись нельзя менять.
	dead bool
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

func (s *MemoryStore) get(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// rollover обнуляет счётчики, если окно сменилось. Вызывается под e.mu.
func (e *entry) rollover(start time.Time) {
	if !e.start.Equal(start) {
		e.start = start
		e.requests = 0
		e.images = 0
	}
}

// lockLive блокирует e. Если Sweep успел удалить запись после того, как её
// нашли в карте, берётся актуальная запись key.
func (s *MemoryStore) lockLive(e *entry, key string) *entry {
	for {
		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
		e = s.get(key)
	}
}

// Take реализует Store.
func (s *MemoryStore) Take(_ context.Context, ask Ask) (Usage, bool, error) {
	e := s.lockLive(s.get(ask.Key), ask.Key)
	defer e.mu.Unlock()

	usage, ok := e.take(ask)
	return usage, ok, nil
}

// take проверяет и увеличивает счётчики. Вызывается под e.mu.
func (e *entry) take(ask Ask) (Usage, bool) {
	e.rollover(ask.WindowStart)

	if ask.RequestQuota > 0 && e.requests+ask.Requests > ask.RequestQuota {
		return Usage{Requests: e.requests, Images: e.images}, false
	}
	if ask.ImageQuota > 0 && e.images+ask.Images > ask.ImageQuota {
		return Usage{Requests: e.requests, Images: e.images}, false
	}

	e.requests += ask.Requests
	e.images += ask.Images
	return Usage{Requests: e.requests, Images: e.images}, true
}

// Usage реализует Store.
func (s *MemoryStore) Usage(_ context.Context, key string, windowStart time.Time) (Usage, error) {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		s.mu.Unlock()
		if !ok {
			return Usage{}, nil
		}

		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		var usage Usage
		if e.start.Equal(windowStart) {
			usage = Usage{Requests: e.requests, Images: e.images}
		}
		e.mu.Unlock()
		return usage, nil
	}
}

// Sweep удаляет записи окон, начавшихся раньше before. Возвращает число удалённых записей.
func (s *MemoryStore) Sweep(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		e.mu.Lock()
		if e.start.Before(before) {
			e.dead = true
			delete(s.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// RunSweeper периодически удаляет устаревшие записи до отмены ctx.
func (s *MemoryStore) RunSweeper(ctx context.Context, every, maxWindow time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now.Add(-maxWindow))
		}
	}
}
