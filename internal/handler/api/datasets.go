package api

import (
	"TrendLab/internal/domain/models"
	"TrendLab/internal/usecase"
	xhttp "TrendLab/pkg/http"
	xlogger "TrendLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CreateDataset queues a training export and returns its job id.
func (h *APIHandler) CreateDataset(c echo.Context) error {
	req := &models.DatasetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("dataset queue not configured"))
	}
	id, err := h.jobs.Enqueue(c.Request().Context(), usecase.DatasetJobType, req)
	if err != nil {
		return h.fail(c, "enqueue dataset", err)
	}
	h.logger.Info("dataset queued", xlogger.String("id", id), xlogger.Strings("tickers", req.Tickers))
	return xhttp.AcceptedResponse(c, map[string]string{"id": id})
}

func (h *APIHandler) DatasetStatus(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("dataset queue not configured"))
	}
	st, err := h.jobs.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "dataset status", err)
	}
	return xhttp.SuccessResponse(c, st)
}
