package api

import (
	"strings"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/services/features"
	xhttp "TrendLab/pkg/http"

	"github.com/labstack/echo/v4"
)

type EpisodesResponse struct {
	Ticker    string           `json:"ticker"`
	Timeframe string           `json:"timeframe"`
	Threshold float64          `json:"threshold"`
	Bars      int              `json:"bars"`
	Episodes  []models.Episode `json:"episodes"`
}

type FeaturesResponse struct {
	FeatureNames []string              `json:"feature_names"`
	Strategy     string                `json:"strategy"`
	Scaler       string                `json:"scaler,omitempty"`
	Matrix       [][]float64           `json:"matrix"`
	Stats        *features.ColumnStats `json:"stats"`
}

func (h *APIHandler) Enrich(c echo.Context) error {
	req := &models.EnrichRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	bars, err := h.pipeline.EnrichBars(c.Request().Context(), req.Bars)
	if err != nil {
		return h.fail(c, "enrich", err)
	}
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}

// BuildEpisodes segments bars posted by the client.
func (h *APIHandler) BuildEpisodes(c echo.Context) error {
	req := &models.BuildEpisodesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	eps, err := h.pipeline.EpisodesFromRaw(c.Request().Context(), req.Bars, req.Threshold)
	if err != nil {
		return h.fail(c, "build episodes", err)
	}
	ticker := ""
	if len(req.Bars) > 0 {
		ticker = strings.ToUpper(req.Bars[0].Ticker)
	}
	return xhttp.SuccessResponse(c, &EpisodesResponse{
		Ticker:    ticker,
		Threshold: req.Threshold,
		Bars:      len(req.Bars),
		Episodes:  eps,
	})
}

// Episodes fetches bars for a ticker and segments them with the timeframe threshold.
func (h *APIHandler) Episodes(c echo.Context) error {
	req := &models.EpisodesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	tf := drepo.NormalizeTimeframe(req.Timeframe)
	from, to := xhttp.ResolveRange(req.Start, req.End, h.now(), h.lookback)
	threshold := h.pipeline.Threshold(tf, req.Threshold)

	raw, err := h.market.GetBars(ctx, req.Ticker, tf, from, to, 10000)
	if err != nil {
		return h.fail(c, "episodes", err)
	}
	eps, err := h.pipeline.EpisodesFromRaw(ctx, raw, threshold)
	if err != nil {
		return h.fail(c, "episodes", err)
	}
	return xhttp.SuccessResponse(c, &EpisodesResponse{
		Ticker:    strings.ToUpper(req.Ticker),
		Timeframe: string(tf),
		Threshold: threshold,
		Bars:      len(raw),
		Episodes:  eps,
	})
}

// Features encodes posted episodes. When a scaler is named its recorded
// imputation replaces the request strategy and the matrix is standardized.
func (h *APIHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Scaler != "" {
		sf, err := h.overlay.Scale(c.Request().Context(), req.Scaler, req.Episodes)
		if err != nil {
			return h.fail(c, "features", err)
		}
		return xhttp.SuccessResponse(c, &FeaturesResponse{
			FeatureNames: features.FeatureNames,
			Strategy:     string(sf.Strategy),
			Scaler:       req.Scaler,
			Matrix:       sf.Matrix,
			Stats:        sf.Stats,
		})
	}
	strategy, err := features.ParseImputeStrategy(req.Strategy)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	matrix, stats := h.pipeline.EncodeFeatures(req.Episodes, strategy)
	return xhttp.SuccessResponse(c, &FeaturesResponse{
		FeatureNames: features.FeatureNames,
		Strategy:     string(strategy),
		Matrix:       matrix,
		Stats:        stats,
	})
}

// StoredEpisodes lists persisted episodes whose start falls in the window.
func (h *APIHandler) StoredEpisodes(c echo.Context) error {
	req := &models.EpisodesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to := xhttp.ResolveRange(req.Start, req.End, h.now(), h.lookback)
	eps, err := h.episodes.ListEpisodes(c.Request().Context(), req.Ticker, from, to)
	if err != nil {
		return h.fail(c, "warehouse episodes", err)
	}
	return xhttp.ListResponse(c, eps, int64(len(eps)))
}
