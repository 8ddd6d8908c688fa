package api

import (
	"strings"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/usecase"
	xhttp "TrendLab/pkg/http"

	"github.com/labstack/echo/v4"
)

func (h *APIHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to := xhttp.ResolveRange(req.Start, req.End, h.now(), h.lookback)
	res, err := h.overlay.Predict(c.Request().Context(), usecase.OverlayParams{
		Ticker:        strings.ToUpper(req.Ticker),
		Timeframe:     drepo.NormalizeTimeframe(req.Timeframe),
		Start:         from,
		End:           to,
		Scaler:        req.Scaler,
		MinConfidence: req.MinConfidence,
	})
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}
