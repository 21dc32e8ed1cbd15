// Package stats накапливает счётчики работы сервиса для внутреннего эндпоинта статистики.
package stats

import (
	"sync/atomic"

	"github.com/sol1corejz/imgify/internal/models"
)

// Collector — набор атомарных счётчиков. Нулевое значение готово к использованию.
type Collector struct {
	batches         atomic.Int64
	rejectedBatches atomic.Int64
	images          atomic.Int64
	failedImages    atomic.Int64
	bytesIn         atomic.Int64
	bytesOut        atomic.Int64
	contacts        atomic.Int64
}

// New создаёт пустой сборщик.
func New() *Collector {
	return &Collector{}
}

// BatchRejected учитывает пакет, отклонённый до обработки.
func (c *Collector) BatchRejected() {
	c.rejectedBatches.Add(1)
}

// BatchDone учитывает обработанный пакет по его результатам.
func (c *Collector) BatchDone(results []models.ItemResult) {
	c.batches.Add(1)
	for _, r := range results {
		if r.Failed() {
			c.failedImages.Add(1)
			continue
		}
		c.images.Add(1)
		c.bytesIn.Add(r.OriginalSize)
		c.bytesOut.Add(r.OptimizedSize)
	}
}

// ContactAccepted учитывает принятое сообщение обратной связи.
func (c *Collector) ContactAccepted() {
	c.contacts.Add(1)
}

// Snapshot возвращает текущие значения счётчиков.
func (c *Collector) Snapshot() models.InternalStatsResponse {
	in, out := c.bytesIn.Load(), c.bytesOut.Load()
	return models.InternalStatsResponse{
		Batches:         c.batches.Load(),
		RejectedBatches: c.rejectedBatches.Load(),
		Images:          c.images.Load(),
		FailedImages:    c.failedImages.Load(),
		BytesIn:         in,
		BytesOut:        out,
		BytesSaved:      max(in-out, 0),
		Contacts:        c.contacts.Load(),
	}
}
