package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"vending-reconciliation-service/internal/engine"
	"vending-reconciliation-service/internal/export"
	"vending-reconciliation-service/internal/notify"
	apperrors "vending-reconciliation-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Notifier delivers shortage alerts. Kept as a narrow interface so tests
// can capture deliveries without a live endpoint.
type Notifier interface {
	SendAlerts(ctx context.Context, alerts []*notify.Alert) error
}

// errorResponse is the uniform error body
type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := ""
	if appErr, ok := apperrors.As(err); ok {
		status = appErr.HTTPStatus()
		code = string(appErr.Code)
	}
	if status >= 500 {
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("handler error")
	}
	c.JSON(status, errorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: c.GetString("request_id"),
	})
}

// parseWindow reads the from/to query parameters. Both are required and
// accepted as RFC 3339 or bare dates; bare dates are taken as midnight UTC.
func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	from, err := parseTimeParam(c.Query("from"), "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeParam(c.Query("to"), "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseTimeParam(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, apperrors.ValidationError(name, raw, name+" query parameter is required")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperrors.ValidationError(name, raw, "unrecognized time format")
}

// parseLocation reads the optional tz query parameter (IANA name)
func parseLocation(c *gin.Context) (*time.Location, error) {
	name := c.Query("tz")
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperrors.ValidationError("tz", name, "unknown timezone")
	}
	return loc, nil
}

func (s *Server) computeReconciliation(c *gin.Context) (*engine.ReconciliationResult, error) {
	from, to, err := parseWindow(c)
	if err != nil {
		return nil, err
	}
	req := &engine.ReconciliationRequest{
		MachineCode: c.Query("machine_code"),
		From:        from,
		To:          to,
	}
	return s.eng.ComputeReconciliation(c.Request.Context(), req)
}

// handleReconciliation serves GET /sales/reconciliation
func (s *Server) handleReconciliation(c *gin.Context) {
	result, err := s.computeReconciliation(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleReconciliationExport serves GET /sales/reconciliation/export as an
// Excel workbook download
func (s *Server) handleReconciliationExport(c *gin.Context) {
	result, err := s.computeReconciliation(c)
	if err != nil {
		s.renderError(c, err)
		return
	}

	filename := fmt.Sprintf("reconciliation_%s.xlsx", result.To.Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := export.WriteExcel(c.Writer, result); err != nil {
		s.renderError(c, err)
	}
}

// notifyResponse reports what a notification sweep found and delivered
type notifyResponse struct {
	AlertCount int             `json:"alert_count"`
	Delivered  bool            `json:"delivered"`
	Alerts     []*notify.Alert `json:"alerts"`
}

// handleReconciliationNotify serves POST /sales/reconciliation/notify: it
// recomputes the window, filters shortages past the alert threshold and
// pushes them through the configured notifier.
func (s *Server) handleReconciliationNotify(c *gin.Context) {
	result, err := s.computeReconciliation(c)
	if err != nil {
		s.renderError(c, err)
		return
	}

	threshold, err := s.eng.Settings().ShortageAlertThreshold(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	alerts := notify.FilterShortageAlerts(result.Items, threshold)
	delivered := false
	if len(alerts) > 0 {
		if s.notifier == nil {
			s.renderError(c, apperrors.ConfigurationError(apperrors.CodeMissingConfig,
				"notify.webhook_url", "no notification gateway configured"))
			return
		}
		if err := s.notifier.SendAlerts(c.Request.Context(), alerts); err != nil {
			s.renderError(c, err)
			return
		}
		delivered = true
	}

	c.JSON(http.StatusOK, notifyResponse{
		AlertCount: len(alerts),
		Delivered:  delivered,
		Alerts:     alerts,
	})
}

// handleDailyStats serves GET /sales/daily-stats
func (s *Server) handleDailyStats(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	loc, err := parseLocation(c)
	if err != nil {
		s.renderError(c, err)
		return
	}

	stats, err := s.eng.ComputeDailyStats(c.Request.Context(), from, to, loc)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// handleTopMachines serves GET /sales/top-machines
func (s *Server) handleTopMachines(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		s.renderError(c, err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			s.renderError(c, apperrors.ValidationError("limit", raw, "limit must be an integer"))
			return
		}
	}

	rows, err := s.eng.ComputeTopMachines(c.Request.Context(), from, to, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// handleSummaryByMachine serves GET /sales/summary/by-machine
func (s *Server) handleSummaryByMachine(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	report, err := s.eng.ComputeSummaryByMachine(c.Request.Context(), from, to)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleSummaryByDate serves GET /sales/summary/by-date
func (s *Server) handleSummaryByDate(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	loc, err := parseLocation(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	report, err := s.eng.ComputeSummaryByDate(c.Request.Context(), from, to, loc)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleSummaryByOperator serves GET /sales/summary/by-operator
func (s *Server) handleSummaryByOperator(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	report, err := s.eng.ComputeSummaryByOperator(c.Request.Context(), from, to)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
