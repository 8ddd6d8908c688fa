package usecase

import (
	"context"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	mid "TrendLab/internal/middleware"
	"TrendLab/pkg/logger"
)

// BarCollector reads the realtime bar stream and feeds the pipeline.
type BarCollector struct {
	stream  drepo.MarketStream
	proc    *BarProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
	log     *logger.Logger
	done    chan struct{}
}

// NewBarCollector creates a new BarCollector instance.
func NewBarCollector(stream drepo.MarketStream, proc *BarProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline, l *logger.Logger) *BarCollector {
	if l == nil {
		l = logger.Nop()
	}
	return &BarCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, log: l, done: make(chan struct{})}
}

// IsConnected returns true if the market stream is connected.
func (c *BarCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until ctx ends.
func (c *BarCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	go c.consume(ctx)
	return nil
}

// Done is closed when the consume loop exits.
func (c *BarCollector) Done() <-chan struct{} { return c.done }

func (c *BarCollector) consume(ctx context.Context) {
	defer close(c.done)
	barCh, errCh := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			c.metrics.RecordError("stream")
			c.log.Warn("market stream error, reconnecting", logger.Error(err))
			if !c.reconnect(ctx) {
				return
			}
			barCh, errCh = c.stream.Read(ctx)
		case b, ok := <-barCh:
			if !ok {
				barCh = nil
				if errCh == nil {
					return
				}
				continue
			}
			c.handle(ctx, b)
		}
	}
}

func (c *BarCollector) reconnect(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			c.log.Info("market stream reconnected", logger.Int("attempt", attempt))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.metrics.RecordError("stream_reconnect")
		c.log.Warn("reconnect failed", logger.Int("attempt", attempt), logger.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
}

func (c *BarCollector) handle(ctx context.Context, b *models.RawBar) {
	var err error
	if c.pipe != nil {
		err = c.pipe.Process(ctx, b)
	} else {
		err = c.proc.Process(ctx, b)
	}
	if err != nil {
		c.log.Debug("bar not processed", logger.String("ticker", b.Ticker), logger.Error(err))
	}
}

// Processor returns the underlying BarProcessor for lifecycle management.
func (c *BarCollector) Processor() *BarProcessor { return c.proc }

// Shutdown stops pipeline and closes stream.
func (c *BarCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
