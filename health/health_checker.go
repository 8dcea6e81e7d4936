// Package health provides health checking functionality for the report service.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/giygas/tdm-reports/history"
	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
)

// Thresholds over the recent export window
const (
	recentWindow       = time.Hour
	minExportsForRatio = 4
	degradedRatio      = 0.1
	unhealthyRatio     = 0.5
)

// ExportStats is the part of the export history the checker reads
type ExportStats interface {
	Stats(ctx context.Context, since time.Time) (history.Stats, error)
}

// ConverterProbe reports whether the PDF converter can run
type ConverterProbe interface {
	Available() bool
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore    interfaces.DataStore
	exports      ExportStats
	converter    ConverterProbe // nil when PDF output is disabled
	scanInterval time.Duration
	now          func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(dataStore interfaces.DataStore, exports ExportStats, converter ConverterProbe, scanInterval time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore:    dataStore,
		exports:      exports,
		converter:    converter,
		scanInterval: scanInterval,
		now:          time.Now,
	}
}

// HealthCheck returns the service status for the /health endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	now := h.now()
	results := h.dataStore.GetResults()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	stats, err := h.exports.Stats(context.Background(), now.Add(-recentWindow))
	if err != nil {
		logging.Warn("Failed to read export statistics", "error", err)
	}
	ratio := stats.FailureRatio()

	converterOK := h.converter == nil || h.converter.Available()

	switch {
	case err != nil:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case stats.Total >= minExportsForRatio && ratio >= unhealthyRatio:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case !converterOK:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case stats.Failed > 0 && ratio > degradedRatio:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"results_loaded":    len(results),
		"is_updating":       isUpdating,
		"exports_last_hour": stats.Total,
		"failed_last_hour":  stats.Failed,
		"failure_ratio":     math.Round(ratio*1000) / 1000,
		"pdf_converter":     converterOK,
		"next_scan":         h.CalculateNextScan().Format(time.RFC3339),
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(now.Sub(lastUpdate).Hours()*10) / 10
	}

	return status, data, httpStatus
}

// CalculateNextScan returns the next inbox scan. Scans run every interval
// from server start.
func (h *HealthCheckerImpl) CalculateNextScan() time.Time {
	now := h.now()
	start := h.dataStore.GetServerStartTime()
	if start.IsZero() || h.scanInterval <= 0 || start.After(now) {
		return now
	}
	elapsed := now.Sub(start)
	ticks := elapsed/h.scanInterval + 1
	return start.Add(ticks * h.scanInterval)
}
