package di

import (
	"context"
	"fmt"
	"time"

	"TrendLab/internal/domain/repository"
	"TrendLab/internal/domain/service"
	"TrendLab/internal/handler/api"
	mid "TrendLab/internal/middleware"
	internalrepo "TrendLab/internal/repository"
	"TrendLab/internal/service/alpaca"
	pmetrics "TrendLab/internal/service/metrics"
	"TrendLab/internal/service/ratelimit"
	"TrendLab/internal/service/stream"
	"TrendLab/internal/services/analytics"
	"TrendLab/internal/services/enrich"
	"TrendLab/internal/services/episodes"
	"TrendLab/internal/usecase"
	"TrendLab/pkg/cache"
	pkgch "TrendLab/pkg/clickhouse"
	"TrendLab/pkg/config"
	pkgkafka "TrendLab/pkg/kafka"
	"TrendLab/pkg/logger"
	"TrendLab/pkg/metrics"
	"TrendLab/pkg/queue"
	"TrendLab/pkg/server"
)

// Disabled integrations are provided as nil and skipped by their consumers.

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder and registers the pipeline collectors.
func ProvideMetrics() repository.Metrics {
	pmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and its database.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, l *logger.Logger) (repository.BarStore, error) {
	if ch == nil {
		return nil, nil
	}
	store, err := internalrepo.NewClickHouseBarStore(ch.DB(), cfg.ClickHouse.Database+".bars", "alpaca", l)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func ProvideEpisodeStore(ch *pkgch.Client, cfg *config.Config, l *logger.Logger) (repository.EpisodeStore, error) {
	if ch == nil {
		return nil, nil
	}
	store, err := internalrepo.NewCHEpisodeStore(ch.DB(), cfg.ClickHouse.Database+".episodes", l)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideBarPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.BarPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.Topic)
}

func ProvideEpisodePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EpisodePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEpisodePublisher(producer, cfg.Kafka.EpisodesTopic)
}

// ProvideKafkaConsumer creates the bars consumer when it is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaBarsHandler stores consumed bars in ClickHouse.
func ProvideKafkaBarsHandler(store repository.BarStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	if store == nil {
		return nil
	}
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, store, m)
}

func ProvideAlpacaClient(cfg *config.Config, l *logger.Logger) *alpaca.Client {
	return alpaca.New(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
		alpaca.WithFeed(cfg.Alpaca.Feed),
		alpaca.WithLogger(l),
	)
}

// ProvideCache builds the response cache: an in-process LRU, layered over Redis when enabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	memOpts := []cache.MemoryOption{
		cache.WithMemoryMaxEntries(cfg.Cache.MaxEntries),
		cache.WithMemoryTTL(cfg.Cache.TTL),
	}
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(memOpts...), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemory(memOpts...)), nil
}

func ProvideMarketData(client *alpaca.Client, c cache.Service, cfg *config.Config) *usecase.MarketDataUseCase {
	return usecase.NewMarketDataUseCase(client, client, c, cfg.Cache.TTL)
}

// ProvidePipeline builds the enrich/segment/encode stages from the pipeline config.
func ProvidePipeline(cfg *config.Config, l *logger.Logger) (*usecase.PipelineUseCase, error) {
	policy, err := repository.DefaultThresholdPolicy().WithOverrides(cfg.Pipeline.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("pipeline thresholds: %w", err)
	}
	enr := enrich.New(
		enrich.WithEMAPeriod(cfg.Pipeline.EMAPeriod),
		enrich.WithRSIPeriod(cfg.Pipeline.RSIPeriod),
		enrich.WithBollinger(cfg.Pipeline.BollingerPeriod, cfg.Pipeline.BollingerMult),
		enrich.WithLogger(l),
	)
	return usecase.NewPipelineUseCase(enr, episodes.NewBuilder(episodes.WithLogger(l)), policy, cfg.Pipeline.Workers, l), nil
}

func ProvideScalerStore(cfg *config.Config) (repository.ScalerStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return internalrepo.NewSQLiteScalerStore(ctx, cfg.Dataset.SQLitePath)
}

func ProvideDatasetWriter() repository.DatasetWriter {
	return internalrepo.NewParquetDataset()
}

func ProvideClassifier(cfg *config.Config) service.TrendClassifier {
	if cfg.Classifier.URL == "" {
		return nil
	}
	return analytics.NewHTTPClassifier(cfg.Classifier.URL, cfg.Classifier.Timeout, cfg.Classifier.MaxRetries)
}

func ProvideOverlay(
	market *usecase.MarketDataUseCase,
	pipeline *usecase.PipelineUseCase,
	scalers repository.ScalerStore,
	classifier service.TrendClassifier,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.OverlayUseCase {
	uc := usecase.NewOverlayUseCase(market, pipeline, scalers, classifier, l)
	uc.SetMinConfidence(cfg.Pipeline.MinConfidence)
	return uc
}

func ProvideDataset(
	market *usecase.MarketDataUseCase,
	pipeline *usecase.PipelineUseCase,
	scalers repository.ScalerStore,
	writer repository.DatasetWriter,
	pub repository.EpisodePublisher,
	store repository.EpisodeStore,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.DatasetUseCase {
	uc := usecase.NewDatasetUseCase(market, pipeline, scalers, writer, pub, cfg.Dataset.OutputDir,
		time.Duration(cfg.Pipeline.HistoryDays)*24*time.Hour, l)
	if store != nil {
		uc.SetEpisodeStore(store)
	}
	return uc
}

// ProvideJobQueue runs dataset jobs on Redis when it is enabled, in process otherwise.
func ProvideJobQueue(uc *usecase.DatasetUseCase, cfg *config.Config, l *logger.Logger) (queue.Queue, error) {
	job := usecase.NewDatasetJob(uc)
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Dataset.Workers,
		QueueSize:  64,
		RetryLimit: 1,
		RetryDelay: 30 * time.Second,
	}
	if !cfg.Cache.Redis.Enabled {
		q := queue.NewLocalQueue(l, qcfg, job)
		job.AttachResults(q)
		return q, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis queue: %w", err)
	}
	q := queue.NewRedisQueue(l, qcfg, rc.Client(), queue.ModeProducerConsumer,
		queue.WithKeyPrefix("trendlab:"+cfg.Dataset.QueueName))
	q.RegisterJob(job)
	job.AttachResults(q)
	return q, nil
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.Server.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

func ProvideAPIHandler(
	l *logger.Logger,
	market *usecase.MarketDataUseCase,
	pipeline *usecase.PipelineUseCase,
	overlay *usecase.OverlayUseCase,
	jobs queue.Queue,
	bars repository.BarStore,
	eps repository.EpisodeStore,
	limiter *ratelimit.Limiter,
	cfg *config.Config,
) *api.APIHandler {
	opts := []api.Option{api.WithLookback(time.Duration(cfg.Pipeline.HistoryDays) * 24 * time.Hour)}
	if bars != nil {
		opts = append(opts, api.WithBarStore(bars))
	}
	if eps != nil {
		opts = append(opts, api.WithEpisodeStore(eps))
	}
	if limiter != nil {
		opts = append(opts, api.WithLimiter(limiter))
	}
	return api.NewAPIHandler(l, market, pipeline, overlay, jobs, opts...)
}

// ProvideMarketStream creates the Alpaca bar stream when streaming is enabled.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) repository.MarketStream {
	if !cfg.Alpaca.StreamEnabled {
		return nil
	}
	return stream.New(stream.Config{
		APIKey:         cfg.Alpaca.APIKey,
		APISecret:      cfg.Alpaca.APISecret,
		URL:            cfg.Alpaca.StreamURL,
		Symbols:        cfg.Alpaca.Symbols,
		ReconnectDelay: cfg.Alpaca.ReconnectDelay,
		PingInterval:   cfg.Alpaca.PingInterval,
	}, l)
}

func ProvideBarProcessor(
	pub repository.BarPublisher,
	store repository.BarStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.BarProcessor {
	return usecase.NewBarProcessor(pub, store, m, cfg.Backend.Type, cfg.Backend.BatchSize, cfg.Backend.BatchTimeout)
}

// ProvideBarCollector puts the realtime pipeline between the stream and the processor.
func ProvideBarCollector(
	s repository.MarketStream,
	proc *usecase.BarProcessor,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.BarCollector {
	if s == nil {
		return nil
	}
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
		mid.WithLogger(l),
	)
	return usecase.NewBarCollector(s, proc, m, pipe, l)
}

func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.BarCollector,
	proc *usecase.BarProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	ch *pkgch.Client,
	h *api.APIHandler,
	jobs queue.Queue,
	scalers repository.ScalerStore,
) *server.App {
	app := server.New(cfg, l, h, jobs)
	app.Collector = collector
	app.BarProc = proc
	app.ClickHouse = ch
	if consumer != nil && kh != nil {
		app.Consumer = consumer
		app.BarsHandler = kh
	}
	app.AddCloser("scalers", scalers)
	return app
}
