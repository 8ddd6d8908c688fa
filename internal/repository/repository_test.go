package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendLab/internal/domain/models"
	pkgkafka "TrendLab/pkg/kafka"
)

type memWriter struct {
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func sampleEpisode() models.Episode {
	start := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	return models.Episode{
		Ticker:       "AAPL",
		EpisodeID:    "AAPL_20240301143000_20240301143300",
		StartTime:    start,
		EndTime:      start.Add(3 * time.Minute),
		Duration:     4,
		Direction:    models.DirectionUp,
		TrendQuality: models.TrendStrong,
		TotalReturn:  0.06,
		LRFitR2:      0.97,
		AvgVolume:    1200,
		PriceStart:   100,
		PriceEnd:     106,
		PriceDelta:   6,
		AvgRSI:       models.Float64Ptr(61.5),
		EMAEnd:       models.Float64Ptr(104.2),
		StartFeatures: &models.EnrichedBar{
			Ticker: "AAPL", Time: start, Close: 100, RSI: models.Float64Ptr(55),
		},
	}
}

func TestKafkaBarPublisher_KeysByTicker(t *testing.T) {
	w := &memWriter{}
	pub := NewKafkaBarPublisher(pkgkafka.NewProducerWithWriter(w, "snappy"), "bars")

	err := pub.PublishBatch(context.Background(), []*models.RawBar{
		{Ticker: "aapl", Time: "1700000000", Close: 1},
		nil,
		{Ticker: "MSFT", Time: "1700000060", Close: 2},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "AAPL", string(w.msgs[0].Key))
	assert.Equal(t, "MSFT", string(w.msgs[1].Key))

	var got models.RawBar
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &got))
	assert.Equal(t, 2.0, got.Close)
}

func TestKafkaEpisodePublisher(t *testing.T) {
	w := &memWriter{}
	pub := NewKafkaEpisodePublisher(pkgkafka.NewProducerWithWriter(w, "lz4"), "episodes")

	require.NoError(t, pub.PublishEpisodes(context.Background(), []models.Episode{sampleEpisode()}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "episodes", w.msgs[0].Topic)
	assert.Contains(t, string(w.msgs[0].Value), `"episode_id":"AAPL_20240301143000_20240301143300"`)
}

func TestParquetDataset_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "episodes.parquet")
	ds := NewParquetDataset()
	ep := sampleEpisode()

	require.NoError(t, ds.WriteEpisodes(context.Background(), path, []models.Episode{ep}))
	got, err := ds.ReadEpisodes(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, ep.EpisodeID, got[0].EpisodeID)
	assert.True(t, ep.StartTime.Equal(got[0].StartTime))
	assert.Equal(t, ep.Direction, got[0].Direction)
	assert.Equal(t, ep.TotalReturn, got[0].TotalReturn)
	require.NotNil(t, got[0].AvgRSI)
	assert.Equal(t, 61.5, *got[0].AvgRSI)
	assert.Nil(t, got[0].RSIStart)
	require.NotNil(t, got[0].StartFeatures)
	assert.Equal(t, 55.0, *got[0].StartFeatures.RSI)
	assert.Nil(t, got[0].EndFeatures)
}

func TestSQLiteScalerStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteScalerStore(ctx, filepath.Join(t.TempDir(), "scalers.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, store.Save(ctx, "1Min", []byte(`{"v":1}`)))
	require.NoError(t, store.Save(ctx, "1Min", []byte(`{"v":2}`)))

	blob, err := store.Load(ctx, "1Min")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(blob))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1Min"}, names)
}

func TestBarStore_InsertQuerySkipsBadRows(t *testing.T) {
	s, err := NewClickHouseBarStore(nil, "trendlab.bars", "alpaca", nil)
	require.NoError(t, err)

	q, args, skipped := s.insertQuery([]*models.RawBar{
		{Ticker: "aapl", Time: "2024-03-01T14:30:00Z", Close: 10},
		{Ticker: "AAPL", Time: "not-a-time", Close: 11},
		{Ticker: "", Time: "1700000000", Close: 12},
	})
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 1, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 8)
	assert.Equal(t, "AAPL", args[1])
	assert.Equal(t, 10.0, args[2], "missing open falls back to close")
	assert.Equal(t, 0.0, args[6])
	assert.Equal(t, "alpaca", args[7])
}

func TestCheckIdent(t *testing.T) {
	assert.NoError(t, checkIdent("bars"))
	assert.NoError(t, checkIdent("trendlab.bars"))
	assert.Error(t, checkIdent("bars; DROP TABLE x"))
	_, err := NewCHEpisodeStore(nil, "a b", nil)
	assert.Error(t, err)
}

func TestEpisodeStore_InsertQuery(t *testing.T) {
	s, err := NewCHEpisodeStore(nil, "episodes", nil)
	require.NoError(t, err)
	q, args, err := s.insertQuery([]models.Episode{sampleEpisode(), sampleEpisode()})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 20)
	assert.Equal(t, uint32(4), args[4])
	assert.Equal(t, "up", args[5])

	var back models.Episode
	require.NoError(t, json.Unmarshal([]byte(args[9].(string)), &back))
	assert.Equal(t, "AAPL", back.Ticker)
}
