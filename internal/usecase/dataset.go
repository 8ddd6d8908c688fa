package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/services/features"
	"TrendLab/pkg/logger"
	"TrendLab/pkg/queue"
	"TrendLab/pkg/util"
)

// DatasetUseCase builds a training export: episodes, scaled features, labels and
// the fitted scaler.
type DatasetUseCase struct {
	bars      drepo.BarSource
	pipeline  *PipelineUseCase
	scalers   drepo.ScalerStore
	writer    drepo.DatasetWriter
	publisher drepo.EpisodePublisher
	episodes  drepo.EpisodeStore
	outputDir string
	lookback  time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewDatasetUseCase wires the export. publisher may be nil.
func NewDatasetUseCase(
	bars drepo.BarSource,
	p *PipelineUseCase,
	scalers drepo.ScalerStore,
	writer drepo.DatasetWriter,
	publisher drepo.EpisodePublisher,
	outputDir string,
	lookback time.Duration,
	l *logger.Logger,
) *DatasetUseCase {
	if lookback <= 0 {
		lookback = 365 * 24 * time.Hour
	}
	if l == nil {
		l = logger.Nop()
	}
	return &DatasetUseCase{
		bars: bars, pipeline: p, scalers: scalers, writer: writer, publisher: publisher,
		outputDir: outputDir, lookback: lookback, now: time.Now, log: l,
	}
}

// SetEpisodeStore makes every export also persist its episodes.
func (uc *DatasetUseCase) SetEpisodeStore(s drepo.EpisodeStore) { uc.episodes = s }

type DatasetResult struct {
	ID       string            `json:"id"`
	Dir      string            `json:"dir"`
	Episodes int               `json:"episodes"`
	Labels   []string          `json:"labels"`
	Scaler   string            `json:"scaler"`
	Files    []string          `json:"files"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Export runs the whole training export for req under directory id.
func (uc *DatasetUseCase) Export(ctx context.Context, id string, req *models.DatasetRequest) (*DatasetResult, error) {
	strategy, err := features.ParseImputeStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	mode, err := features.ParseLabelMode(req.Mode)
	if err != nil {
		return nil, err
	}
	tf := drepo.NormalizeTimeframe(req.Timeframe)
	from, to := util.ResolveRange(req.Start, req.End, uc.now(), uc.lookback)
	threshold := uc.pipeline.Threshold(tf, req.Threshold)
	scalerName := req.Scaler
	if scalerName == "" {
		scalerName = "default"
	}

	res := &DatasetResult{ID: id, Scaler: scalerName, Failed: map[string]string{}}
	batches := make(map[string][]models.RawBar, len(req.Tickers))
	for _, t := range util.SplitSymbols(strings.Join(req.Tickers, ",")) {
		raw, err := uc.bars.GetBars(ctx, t, tf, from, to, 10000)
		if err != nil {
			res.Failed[t] = err.Error()
			uc.log.Warn("dataset fetch failed", logger.String("ticker", t), logger.Error(err))
			continue
		}
		batches[t] = raw
	}

	var all []models.Episode
	for _, r := range uc.pipeline.Run(ctx, batches, threshold, strategy) {
		if r.Err != nil {
			res.Failed[r.Ticker] = r.Err.Error()
			continue
		}
		all = append(all, r.Episodes...)
	}
	if len(all) == 0 {
		return res, fmt.Errorf("dataset %s: %w", id, models.ErrEmptyBatch)
	}

	// Stats and the scaler are fitted over every ticker together.
	stats := features.ComputeColumnStats(all)
	matrix := features.BuildFeatureMatrix(all, strategy, stats)
	labels := features.BuildLabelMatrix(all, mode)
	res.Labels = features.LabelNames(mode)
	scaler := features.NewScaler(
		features.WithLabelNames(res.Labels),
		features.WithImputation(strategy, stats),
		features.WithScalerLogger(uc.log),
	)
	scaled, err := scaler.FitTransform(matrix)
	if err != nil {
		return res, fmt.Errorf("fit scaler: %w", err)
	}
	blob, err := json.Marshal(scaler)
	if err != nil {
		return res, err
	}
	if uc.scalers != nil {
		if err := uc.scalers.Save(ctx, scalerName, blob); err != nil {
			return res, err
		}
	}

	res.Dir = filepath.Join(uc.outputDir, id)
	res.Episodes = len(all)
	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		return res, err
	}
	if uc.writer != nil {
		p := filepath.Join(res.Dir, "episodes.parquet")
		if err := uc.writer.WriteEpisodes(ctx, p, all); err != nil {
			return res, err
		}
		res.Files = append(res.Files, p)
	}
	fp := filepath.Join(res.Dir, "features.csv")
	if err := writeMatrix(fp, scaled); err != nil {
		return res, err
	}
	lp := filepath.Join(res.Dir, "labels.json")
	if err := writeJSON(lp, labelFile{Names: res.Labels, Rows: labels}); err != nil {
		return res, err
	}
	sp := filepath.Join(res.Dir, "scaler.json")
	if err := os.WriteFile(sp, blob, 0o644); err != nil {
		return res, err
	}
	res.Files = append(res.Files, fp, lp, sp)

	if uc.episodes != nil {
		if err := uc.episodes.SaveEpisodes(ctx, all); err != nil {
			return res, fmt.Errorf("save episodes: %w", err)
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishEpisodes(ctx, all); err != nil {
			uc.log.Warn("dataset publish failed", logger.String("id", id), logger.Error(err))
		}
	}
	uc.log.Info("dataset exported",
		logger.String("id", id),
		logger.Int("episodes", len(all)),
		logger.Int("failed", len(res.Failed)),
		logger.String("dir", res.Dir),
	)
	return res, nil
}

type labelFile struct {
	Names []string    `json:"names"`
	Rows  [][]float64 `json:"rows"`
}

func writeMatrix(path string, m [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := features.WriteFeatureCSV(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

const DatasetJobType = "dataset.export"

// DatasetJob runs exports from the job queue and attaches the result to the job status.
type DatasetJob struct {
	uc      *DatasetUseCase
	results queue.ResultSetter
}

func NewDatasetJob(uc *DatasetUseCase) *DatasetJob {
	return &DatasetJob{uc: uc}
}

// AttachResults sets where results are written once the queue exists.
func (j *DatasetJob) AttachResults(rs queue.ResultSetter) { j.results = rs }

func (j *DatasetJob) Name() string { return "dataset-export" }

func (j *DatasetJob) Type() string { return DatasetJobType }

func (j *DatasetJob) Handle(ctx context.Context, msg queue.Message) error {
	req, err := queue.ParsePayload[models.DatasetRequest](msg)
	if err != nil {
		return err
	}
	res, err := j.uc.Export(ctx, msg.ID, req)
	if err != nil {
		return err
	}
	if j.results != nil {
		return j.results.SetResult(ctx, msg.ID, res)
	}
	return nil
}
