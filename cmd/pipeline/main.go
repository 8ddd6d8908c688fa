package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"TrendLab/internal/di"
	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	dsvc "TrendLab/internal/domain/service"
	internalrepo "TrendLab/internal/repository"
	"TrendLab/internal/services/analytics"
	"TrendLab/internal/services/enrich"
	"TrendLab/internal/services/features"
	"TrendLab/pkg/config"
	"TrendLab/pkg/logger"
)

type options struct {
	files      []string
	outDir     string
	timeframe  string
	threshold  float64
	strategy   string
	labels     string
	parquet    bool
	sqlitePath string
	scalerName string
	classifier string
	trainRatio float64
	seed       int64
}

func main() {
	var o options
	configPath := flag.String("config", "", "optional config file for pipeline and logger settings")
	flag.StringVar(&o.outDir, "out", "out", "output directory")
	flag.StringVar(&o.timeframe, "timeframe", "1Day", "bar timeframe, selects the default threshold")
	flag.Float64Var(&o.threshold, "threshold", 0, "swing threshold in (0,1); 0 uses the timeframe default")
	flag.StringVar(&o.strategy, "strategy", "", "imputation strategy: zero, mean, median or sentinel")
	flag.StringVar(&o.labels, "labels", "direction", "label mode: direction or trend_quality")
	flag.BoolVar(&o.parquet, "parquet", false, "also write episodes.parquet")
	flag.StringVar(&o.sqlitePath, "sqlite", "", "register the fitted scaler in this SQLite database")
	flag.StringVar(&o.scalerName, "scaler", "default", "scaler registry name")
	flag.StringVar(&o.classifier, "classifier", "", "classifier URL; evaluates a holdout split when set")
	flag.Float64Var(&o.trainRatio, "train-ratio", 0.8, "train fraction of the evaluation split")
	flag.Int64Var(&o.seed, "seed", 42, "evaluation split seed")
	flag.Parse()
	o.files = flag.Args()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if o.strategy == "" {
		o.strategy = cfg.Pipeline.Strategy
	}
	l, err := logger.New(&logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format, Output: cfg.Logger.Output})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	var clf dsvc.TrendClassifier
	if o.classifier != "" {
		clf = analytics.NewHTTPClassifier(o.classifier, cfg.Classifier.Timeout, cfg.Classifier.MaxRetries)
	}
	if err := run(context.Background(), cfg, o, clf, l); err != nil {
		l.Error("pipeline failed", logger.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.LoadWithEnv(path)
}

func run(ctx context.Context, cfg *config.Config, o options, clf dsvc.TrendClassifier, l *logger.Logger) error {
	if len(o.files) == 0 {
		return fmt.Errorf("no input files")
	}
	strategy, err := features.ParseImputeStrategy(o.strategy)
	if err != nil {
		return err
	}
	mode, err := features.ParseLabelMode(o.labels)
	if err != nil {
		return err
	}
	pipeline, err := di.ProvidePipeline(cfg, l)
	if err != nil {
		return err
	}

	batches := make(map[string][]models.RawBar, len(o.files))
	for _, path := range o.files {
		bars, err := readFile(path)
		if err != nil {
			return err
		}
		t := enrich.TickerFromFilename(path)
		batches[t] = append(batches[t], bars...)
		l.Info("loaded csv", logger.String("file", path), logger.String("ticker", t), logger.Int("rows", len(bars)))
	}

	threshold := pipeline.Threshold(drepo.NormalizeTimeframe(o.timeframe), o.threshold)
	var (
		enriched []models.EnrichedBar
		all      []models.Episode
	)
	for _, r := range pipeline.Run(ctx, batches, threshold, strategy) {
		if r.Err != nil {
			l.Error("ticker failed", logger.String("ticker", r.Ticker), logger.Error(r.Err))
			continue
		}
		enriched = append(enriched, r.Enriched...)
		all = append(all, r.Episodes...)
	}

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(o.outDir, "enriched.csv"), func(f *os.File) error {
		return features.WriteEnrichedCSV(f, enriched)
	}); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(o.outDir, "episodes.csv"), func(f *os.File) error {
		return features.WriteEpisodeCSV(f, all)
	}); err != nil {
		return err
	}
	if len(all) == 0 {
		return fmt.Errorf("no episodes at threshold %g: %w", threshold, models.ErrEmptyBatch)
	}

	stats := features.ComputeColumnStats(all)
	features.MissingValueReport(all, l)
	matrix := features.BuildFeatureMatrix(all, strategy, stats)
	labelNames := features.LabelNames(mode)
	scaler := features.NewScaler(
		features.WithLabelNames(labelNames),
		features.WithImputation(strategy, stats),
		features.WithScalerLogger(l),
	)
	scaled, err := scaler.FitTransform(matrix)
	if err != nil {
		return fmt.Errorf("fit scaler: %w", err)
	}
	if err := writeCSV(filepath.Join(o.outDir, "features.csv"), func(f *os.File) error {
		return features.WriteFeatureCSV(f, scaled)
	}); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(scaler, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(o.outDir, "scaler.json"), blob, 0o644); err != nil {
		return err
	}

	if o.parquet {
		p := filepath.Join(o.outDir, "episodes.parquet")
		if err := internalrepo.NewParquetDataset().WriteEpisodes(ctx, p, all); err != nil {
			return err
		}
	}
	if o.sqlitePath != "" {
		if err := registerScaler(ctx, o.sqlitePath, o.scalerName, blob); err != nil {
			return err
		}
		l.Info("scaler registered", logger.String("name", o.scalerName), logger.String("db", o.sqlitePath))
	}
	if clf != nil {
		labels := features.BuildLabelMatrix(all, mode)
		ev, err := evaluate(ctx, clf, scaled, labels, labelNames, o.trainRatio, o.seed)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(ev, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(o.outDir, "evaluation.json"), b, 0o644); err != nil {
			return err
		}
		for _, m := range ev.Metrics {
			l.Info("class metrics",
				logger.String("label", m.Label),
				logger.Float64("precision", m.Precision),
				logger.Float64("recall", m.Recall),
				logger.Float64("f1", m.F1),
				logger.Int("support", m.Support),
			)
		}
	}

	l.Info("pipeline done",
		logger.Int("tickers", len(batches)),
		logger.Int("bars", len(enriched)),
		logger.Int("episodes", len(all)),
		logger.Float64("threshold", threshold),
		logger.String("out", o.outDir),
	)
	return nil
}

func readFile(path string) ([]models.RawBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := enrich.ReadCSV(f, enrich.TickerFromFilename(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

func writeCSV(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func registerScaler(ctx context.Context, path, name string, blob []byte) error {
	store, err := internalrepo.NewSQLiteScalerStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, name, blob)
}

type evaluation struct {
	Labels    []string               `json:"labels"`
	TestRows  int                    `json:"test_rows"`
	Confusion [][]int                `json:"confusion"`
	Metrics   []features.ClassMetric `json:"metrics"`
}

// evaluate scores the classifier on the held-out part of a seeded split.
func evaluate(ctx context.Context, clf dsvc.TrendClassifier, scaled, labels [][]float64, names []string, ratio float64, seed int64) (*evaluation, error) {
	_, test := features.TrainTestSplit(len(scaled), ratio, seed)
	rows := make([][]float64, len(test))
	for i, idx := range test {
		rows[i] = scaled[idx]
	}
	probs, err := clf.Predict(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	if len(probs) != len(rows) {
		return nil, &models.DimensionMismatchError{Expected: len(rows), Got: len(probs), Row: -1}
	}

	trueIdx := make([]int, len(test))
	predIdx := make([]int, len(test))
	for i, idx := range test {
		trueIdx[i], _ = features.ArgMax(labels[idx])
		predIdx[i], _ = features.ArgMax(probs[i])
	}
	confusion, err := features.ConfusionMatrix(trueIdx, predIdx, len(names))
	if err != nil {
		return nil, err
	}
	return &evaluation{
		Labels:    names,
		TestRows:  len(test),
		Confusion: confusion,
		Metrics:   features.ClassMetrics(confusion, names),
	}, nil
}
