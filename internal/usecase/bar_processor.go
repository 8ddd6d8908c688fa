package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// BarProcessor routes realtime bars to the configured backend.
type BarProcessor struct {
	pub     drepo.BarPublisher
	store   drepo.BarStore
	metrics drepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

// NewBarProcessor creates a new BarProcessor instance.
func NewBarProcessor(
	pub drepo.BarPublisher,
	store drepo.BarStore,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *BarProcessor {
	if batchSz <= 0 {
		batchSz = 100
	}
	return &BarProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process sends a single bar to the configured backend.
func (p *BarProcessor) Process(ctx context.Context, b *models.RawBar) error {
	if b == nil {
		return fmt.Errorf("bar is nil")
	}

	start := time.Now()
	var err error
	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			err = fmt.Errorf("kafka publisher not configured")
		} else {
			err = p.pub.Publish(ctx, b)
		}
	case BackendClickHouse:
		if p.store == nil {
			err = fmt.Errorf("clickhouse store not configured")
		} else {
			err = p.store.Store(ctx, b)
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process bar: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, b.Ticker)
	p.metrics.RecordLastClose(b.Ticker, b.Close)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch sends bars in chunks of the configured batch size. Each chunk
// gets its own timeout when one is configured.
func (p *BarProcessor) ProcessBatch(ctx context.Context, bars []*models.RawBar) error {
	for lo := 0; lo < len(bars); lo += p.batchSz {
		hi := lo + p.batchSz
		if hi > len(bars) {
			hi = len(bars)
		}
		if err := p.processChunk(ctx, bars[lo:hi]); err != nil {
			return err
		}
	}
	return nil
}

func (p *BarProcessor) processChunk(ctx context.Context, bars []*models.RawBar) error {
	if p.batchTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.batchTO)
		defer cancel()
	}

	start := time.Now()
	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, bars)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, bars)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, b := range bars {
		p.metrics.RecordMessageSent(p.backend, b.Ticker)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *BarProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
