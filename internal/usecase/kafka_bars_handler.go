package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TrendLab/internal/domain/models"
	domrepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/services/enrich"
	pkgkafka "TrendLab/pkg/kafka"
)

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)

// KafkaBarsHandler consumes bar messages and writes them to the bar store.
type KafkaBarsHandler struct {
	topic   string
	store   domrepo.BarStore
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewKafkaBarsHandler(topic string, store domrepo.BarStore, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, store: store, metrics: metrics, now: time.Now}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// Handle decodes one RawBar JSON message and stores it.
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var bar models.RawBar
	if err := json.Unmarshal(b, &bar); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode bar: %w", err)
	}
	ts, err := enrich.ParseTimestamp(bar.Time)
	if err != nil {
		h.metrics.RecordError("consumer_timestamp")
		return err
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", h.now().Sub(ts).Seconds())

	start := time.Now()
	err = h.store.Store(ctx, &bar)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent(BackendClickHouse, bar.Ticker)
	h.metrics.RecordLastClose(bar.Ticker, bar.Close)
	return nil
}
