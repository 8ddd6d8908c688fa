package api

import (
	"strings"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	xhttp "TrendLab/pkg/http"
	"TrendLab/pkg/util"

	"github.com/labstack/echo/v4"
)

func (h *APIHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := drepo.NormalizeTimeframe(req.Timeframe)
	from, to := xhttp.ResolveRange(req.Start, req.End, h.now(), h.lookback)

	bars, err := h.market.GetBars(c.Request().Context(), req.Ticker, tf, from, to, req.Limit)
	if err != nil {
		return h.fail(c, "bars", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}

func (h *APIHandler) News(c echo.Context) error {
	req := &models.NewsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tickers := util.SplitSymbols(req.Tickers)
	if len(tickers) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("tickers required"))
	}
	news, err := h.market.GetNews(c.Request().Context(), tickers, req.Limit)
	if err != nil {
		return h.fail(c, "news", err)
	}
	return xhttp.ListResponse(c, news, int64(len(news)))
}

// StoredBars reads bars back from the warehouse.
func (h *APIHandler) StoredBars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to := xhttp.ResolveRange(req.Start, req.End, h.now(), h.lookback)
	bars, err := h.bars.Query(c.Request().Context(), strings.ToUpper(req.Ticker), from, to, req.Limit)
	if err != nil {
		return h.fail(c, "warehouse bars", err)
	}
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}
