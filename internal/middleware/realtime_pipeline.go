package middleware

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"TrendLab/internal/domain/models"
	domrepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/services/enrich"
	"TrendLab/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, b *models.RawBar) error
}

// RealtimePipeline sits between the market stream and the bar processor.
// It validates, throttles per ticker, and buffers bars while downstream is failing.
type RealtimePipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	log      *logger.Logger
	maxRPS   int
	bufSize  int
	bufCh    chan *models.RawBar
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max bars per second per ticker.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *RealtimePipeline) { p.log = l }
}

// WithClock injects the time source used for throttling.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *RealtimePipeline) { p.now = now }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		log:      logger.Nop(),
		maxRPS:   20,
		bufSize:  1000,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RawBar, p.bufSize)
	return p
}

// Start launches background flushing of buffered bars. A stopped pipeline
// can be started again.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go p.flushLoop(ctx, stop)
}

func (p *RealtimePipeline) flushLoop(ctx context.Context, stop <-chan struct{}) {
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case b := <-p.bufCh:
			if err := p.proc.Process(ctx, b); err == nil {
				backoff = 50 * time.Millisecond
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			if backoff < 2*time.Second {
				backoff *= 2
			}
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			select {
			case p.bufCh <- b:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
				p.log.Warn("pipeline buffer full, bar dropped", logger.String("ticker", b.Ticker))
			}
		}
	}
}

// Stop stops the background flushing. Extra calls are no-ops.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Buffered reports how many bars wait for downstream.
func (p *RealtimePipeline) Buffered() int { return len(p.bufCh) }

// Process validates, throttles, and forwards a bar downstream, buffering on errors.
// Throttled bars are dropped and reported as nil.
func (p *RealtimePipeline) Process(ctx context.Context, b *models.RawBar) error {
	start := p.now()
	if err := ValidateBar(b); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	b.Ticker = strings.ToUpper(b.Ticker)

	if !p.allow(b.Ticker, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, b); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- b:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	return nil
}

// ValidateBar rejects bars no later stage could use.
func ValidateBar(b *models.RawBar) error {
	if b == nil {
		return fmt.Errorf("bar nil")
	}
	if strings.TrimSpace(b.Ticker) == "" {
		return fmt.Errorf("ticker empty")
	}
	if _, err := enrich.ParseTimestamp(b.Time); err != nil {
		return err
	}
	if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close < 0 {
		return fmt.Errorf("close invalid: %v", b.Close)
	}
	if b.Volume != nil && *b.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

func (p *RealtimePipeline) allow(ticker string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[ticker]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[ticker] = now
	return true
}
