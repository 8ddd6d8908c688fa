package repository

import (
	"context"
	"strings"

	"TrendLab/internal/domain/models"
	domrepo "TrendLab/internal/domain/repository"
	pkgkafka "TrendLab/pkg/kafka"
)

// KafkaBarPublisher publishes raw bars keyed by ticker so one ticker stays on one partition.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.BarPublisher = (*KafkaBarPublisher)(nil)

func NewKafkaBarPublisher(p *pkgkafka.Producer, topic string) *KafkaBarPublisher {
	return &KafkaBarPublisher{producer: p, topic: topic}
}

func (k *KafkaBarPublisher) Publish(ctx context.Context, bar *models.RawBar) error {
	return k.producer.Publish(ctx, k.topic, tickerKey(bar.Ticker), bar)
}

func (k *KafkaBarPublisher) PublishBatch(ctx context.Context, bars []*models.RawBar) error {
	msgs := make([]pkgkafka.Message, 0, len(bars))
	for _, b := range bars {
		if b == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: tickerKey(b.Ticker), Value: b})
	}
	return k.producer.PublishBatch(ctx, k.topic, msgs)
}

func (k *KafkaBarPublisher) Close() error { return k.producer.Close() }

// KafkaEpisodePublisher publishes built episodes.
type KafkaEpisodePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.EpisodePublisher = (*KafkaEpisodePublisher)(nil)

func NewKafkaEpisodePublisher(p *pkgkafka.Producer, topic string) *KafkaEpisodePublisher {
	return &KafkaEpisodePublisher{producer: p, topic: topic}
}

func (k *KafkaEpisodePublisher) PublishEpisodes(ctx context.Context, episodes []models.Episode) error {
	msgs := make([]pkgkafka.Message, 0, len(episodes))
	for i := range episodes {
		msgs = append(msgs, pkgkafka.Message{Key: tickerKey(episodes[i].Ticker), Value: &episodes[i]})
	}
	return k.producer.PublishBatch(ctx, k.topic, msgs)
}

// Close is a no-op; the producer is shared with the bar publisher.
func (k *KafkaEpisodePublisher) Close() error { return nil }

func tickerKey(t string) []byte {
	return []byte(strings.ToUpper(t))
}
