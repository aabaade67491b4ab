package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/forumport/internal/httputil"
)

// ReportHandler serves the run report.
type ReportHandler struct {
	source ReportSource
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(source ReportSource) *ReportHandler {
	return &ReportHandler{source: source}
}

// Get handles GET /api/v1/report. It returns 404 until a run has started.
func (h *ReportHandler) Get(c *gin.Context) {
	if h.source == nil {
		httputil.RespondError(c, http.StatusNotFound, httputil.ErrCodeNotFound, "no run in progress")

		return
	}

	report := h.source.Report()
	if report == nil {
		httputil.RespondError(c, http.StatusNotFound, httputil.ErrCodeNotFound, "no run in progress")

		return
	}

	c.JSON(http.StatusOK, report.Snapshot())
}
