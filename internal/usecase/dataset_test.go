package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendLab/internal/domain/models"
	"TrendLab/internal/services/features"
	"TrendLab/pkg/queue"
)

func newDatasetUC(t *testing.T, src *fakeBars) (*DatasetUseCase, *memScalers, *memDataset, *memEpisodePublisher) {
	t.Helper()
	scalers := newMemScalers()
	ds := &memDataset{}
	pub := &memEpisodePublisher{}
	uc := NewDatasetUseCase(src, NewPipelineUseCase(nil, nil, nil, 2, nil), scalers, ds, pub, t.TempDir(), 0, nil)
	uc.now = func() time.Time { return time.Unix(1800000000, 0) }
	return uc, scalers, ds, pub
}

func TestDataset_ExportWritesArtifacts(t *testing.T) {
	src := &fakeBars{
		bars: map[string][]models.RawBar{
			"AAPL": zigzag("AAPL", 4, 8),
			"MSFT": zigzag("MSFT", 5, 6),
		},
		errs: map[string]error{"TSLA": errors.New("upstream 503")},
	}
	uc, scalers, ds, pub := newDatasetUC(t, src)
	store := &memEpisodeStore{}
	uc.SetEpisodeStore(store)

	res, err := uc.Export(context.Background(), "job-1", &models.DatasetRequest{
		Tickers:   []string{"aapl", "MSFT", "TSLA"},
		Timeframe: "1Day",
		Strategy:  "mean",
		Mode:      "direction",
	})
	require.NoError(t, err)

	assert.Equal(t, "default", res.Scaler)
	assert.Equal(t, []string{"up", "down", "flat"}, res.Labels)
	assert.Contains(t, res.Failed, "TSLA")
	assert.Equal(t, res.Episodes, pub.published)
	assert.Len(t, store.saved, res.Episodes)

	blob, err := scalers.Load(context.Background(), "default")
	require.NoError(t, err)
	s, err := features.LoadScaler(blob)
	require.NoError(t, err)
	assert.Equal(t, features.NumFeatures, s.Width())
	assert.Equal(t, res.Labels, s.LabelNames())
	strategy, stats := s.Imputation()
	assert.Equal(t, features.ImputeMean, strategy)
	require.NotNil(t, stats)
	assert.Contains(t, stats.Mean, "duration")

	require.Len(t, ds.written, 1)
	for path, eps := range ds.written {
		assert.Equal(t, filepath.Join(res.Dir, "episodes.parquet"), path)
		assert.Len(t, eps, res.Episodes)
	}
	for _, f := range res.Files[1:] {
		_, err := os.Stat(f)
		assert.NoError(t, err, f)
	}
}

func TestDataset_NoEpisodes(t *testing.T) {
	uc, _, _, _ := newDatasetUC(t, &fakeBars{errs: map[string]error{"AAPL": errors.New("down")}})
	res, err := uc.Export(context.Background(), "job-2", &models.DatasetRequest{Tickers: []string{"AAPL"}})
	assert.ErrorIs(t, err, models.ErrEmptyBatch)
	require.NotNil(t, res)
	assert.Contains(t, res.Failed, "AAPL")
}

func TestDataset_RejectsUnknownStrategy(t *testing.T) {
	uc, _, _, _ := newDatasetUC(t, &fakeBars{})
	_, err := uc.Export(context.Background(), "job-3", &models.DatasetRequest{Tickers: []string{"AAPL"}, Strategy: "knn"})
	assert.Error(t, err)
}

func TestDatasetJob_RunsThroughQueue(t *testing.T) {
	uc, _, _, _ := newDatasetUC(t, &fakeBars{bars: map[string][]models.RawBar{"AAPL": zigzag("AAPL", 4, 8)}})
	job := NewDatasetJob(uc)
	q := queue.NewLocalQueue(nil, &queue.QueueConfig{Workers: 1}, job)
	job.AttachResults(q)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	id, err := q.Enqueue(context.Background(), DatasetJobType, &models.DatasetRequest{Tickers: []string{"AAPL"}})
	require.NoError(t, err)

	var st *queue.JobStatus
	require.Eventually(t, func() bool {
		st, err = q.Status(context.Background(), id)
		return err == nil && st.State == queue.StateDone
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(st.Result), `"id":"`+id+`"`)
}
