package api

import (
	"errors"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/service/ratelimit"
	"TrendLab/internal/usecase"
	xhttp "TrendLab/pkg/http"
	xlogger "TrendLab/pkg/logger"
	"TrendLab/pkg/queue"

	"github.com/labstack/echo/v4"
)

// APIHandler serves the market data, pipeline, overlay and dataset endpoints under /api.
type APIHandler struct {
	logger   *xlogger.Logger
	market   *usecase.MarketDataUseCase
	pipeline *usecase.PipelineUseCase
	overlay  *usecase.OverlayUseCase
	jobs     queue.Publisher

	bars     drepo.BarStore
	episodes drepo.EpisodeStore
	limiter  *ratelimit.Limiter
	lookback time.Duration
	now      func() time.Time
}

type Option func(*APIHandler)

// WithBarStore enables GET /api/warehouse/bars.
func WithBarStore(s drepo.BarStore) Option {
	return func(h *APIHandler) { h.bars = s }
}

// WithEpisodeStore enables GET /api/warehouse/episodes.
func WithEpisodeStore(s drepo.EpisodeStore) Option {
	return func(h *APIHandler) { h.episodes = s }
}

// WithLimiter rate limits every /api route per client IP.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(h *APIHandler) { h.limiter = l }
}

// WithLookback sets the window used when a request has no start.
func WithLookback(d time.Duration) Option {
	return func(h *APIHandler) {
		if d > 0 {
			h.lookback = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *APIHandler) { h.now = now }
}

func NewAPIHandler(
	logger *xlogger.Logger,
	market *usecase.MarketDataUseCase,
	pipeline *usecase.PipelineUseCase,
	overlay *usecase.OverlayUseCase,
	jobs queue.Publisher,
	opts ...Option,
) *APIHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &APIHandler{
		logger:   logger,
		market:   market,
		pipeline: pipeline,
		overlay:  overlay,
		jobs:     jobs,
		lookback: 365 * 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *APIHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(RateLimit(h.limiter))
	}
	g.GET("/bars", h.Bars)
	g.GET("/news", h.News)
	g.POST("/enrich", h.Enrich)
	g.POST("/episodes", h.BuildEpisodes)
	g.GET("/episodes", h.Episodes)
	g.POST("/features", h.Features)
	g.GET("/predict", h.Predict)
	g.POST("/datasets", h.CreateDataset)
	g.GET("/datasets/:id", h.DatasetStatus)
	if h.bars != nil {
		g.GET("/warehouse/bars", h.StoredBars)
	}
	if h.episodes != nil {
		g.GET("/warehouse/episodes", h.StoredEpisodes)
	}
}

// RateLimit rejects requests once the client IP has used up its bucket.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return xhttp.TooManyRequestsResponse(c)
			}
			return next(c)
		}
	}
}

// toAppError maps pipeline errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	var statusErr *xhttp.StatusError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrInvalidTimestamp):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrDimensionMismatch):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, queue.ErrStatusMissing):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrEmptyBatch), errors.Is(err, models.ErrNotFitted):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.As(err, &statusErr):
		return xhttp.BadGatewayError("upstream request failed").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}

func (h *APIHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" error", xlogger.Error(err))
	} else {
		h.logger.Warn(op+" rejected", xlogger.Int("status", appErr.Status), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
