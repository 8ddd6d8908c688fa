package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"TrendLab/internal/usecase"
	pkgch "TrendLab/pkg/clickhouse"
	"TrendLab/pkg/config"
	xhttp "TrendLab/pkg/http"
	pkgkafka "TrendLab/pkg/kafka"
	applogger "TrendLab/pkg/logger"
	"TrendLab/pkg/queue"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	jobs       queue.Queue
	httpServer *xhttp.Server
	closers    []namedCloser

	// Optional components; nil when disabled in config.
	Collector   *usecase.BarCollector
	BarProc     *usecase.BarProcessor
	Consumer    *pkgkafka.Consumer
	BarsHandler *usecase.KafkaBarsHandler
	ClickHouse  *pkgch.Client
}

// New creates an App serving h and running jobs.
func New(cfg *config.Config, l *applogger.Logger, h xhttp.Handler, jobs queue.Queue) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, handler: h, jobs: jobs}
}

// AddCloser registers a resource closed on shutdown, in registration order.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	return a.Shutdown(context.Background())
}

// Start launches every configured component without blocking.
func (a *App) Start(ctx context.Context) error {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.log, []xhttp.Handler{a.handler},
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			return err
		}
		a.log.Info("job queue started", applogger.String("queue", a.cfg.Dataset.QueueName))
	}

	if a.Collector != nil {
		go func() {
			if err := a.Collector.Start(ctx); err != nil {
				a.log.Error("collector error", applogger.Error(err))
			}
		}()
		a.log.Info("collector started", applogger.Strings("symbols", a.cfg.Alpaca.Symbols))
	}

	if a.Consumer != nil && a.BarsHandler != nil {
		a.Consumer.RegisterHandler(a.BarsHandler)
		if err := a.Consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.BarsHandler.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Shutdown stops intake first, then drains workers and closes infrastructure clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down")

	if a.Collector != nil {
		if err := a.Collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.Consumer != nil {
		if err := a.Consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.jobs != nil {
		if err := a.jobs.Stop(stopCtx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Closes the Kafka producer and the bar store.
	if a.BarProc != nil {
		a.BarProc.Close()
	}
	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
