package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sol1corejz/imgify/internal/models"
)

func TestCollector(t *testing.T) {
	c := New()

	c.BatchRejected()
	c.BatchDone([]models.ItemResult{
		models.Success("a.png", 1000, 400, 60),
		models.Failure("b.ttf", "unsupported_type", "not an image"),
		models.Success("c.jpg", 500, 500, 0),
	})
	c.ContactAccepted()

	assert.Equal(t, models.InternalStatsResponse{
		Batches:         1,
		RejectedBatches: 1,
		Images:          2,
		FailedImages:    1,
		BytesIn:         1500,
		BytesOut:        900,
		BytesSaved:      600,
		Contacts:        1,
	}, c.Snapshot())
}

func TestCollectorConcurrent(t *testing.T) {
	var c Collector
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.BatchDone([]models.ItemResult{models.Success("x.png", 10, 5, 50)})
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(50), snap.Batches)
	assert.Equal(t, int64(250), snap.BytesSaved)
}
