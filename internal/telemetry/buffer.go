package telemetry

import (
	"context"
	"sync"

	"github.com/netwatch/internal/metrics"
	"github.com/netwatch/internal/models"
)

const DefaultBufferSize = 10000

// Buffer queues samples between ingestion and the next evaluation cycle.
// When full, the oldest samples are dropped.
type Buffer struct {
	mutex    sync.Mutex
	samples  []models.MetricSample
	capacity int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{capacity: capacity}
}

// Push appends samples received from source and returns how many were
// dropped to make room.
func (b *Buffer) Push(source string, samples ...models.MetricSample) int {
	if len(samples) == 0 {
		return 0
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.samples = append(b.samples, samples...)
	dropped := 0
	if over := len(b.samples) - b.capacity; over > 0 {
		dropped = over
		b.samples = append(b.samples[:0:0], b.samples[over:]...)
	}

	metrics.SamplesIngested.WithLabelValues(source).Add(float64(len(samples)))
	if dropped > 0 {
		metrics.SamplesDropped.Add(float64(dropped))
	}
	return dropped
}

// PullMetricSamples drains the buffer.
func (b *Buffer) PullMetricSamples(ctx context.Context) ([]models.MetricSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	samples := b.samples
	b.samples = nil
	return samples, nil
}

func (b *Buffer) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.samples)
}
