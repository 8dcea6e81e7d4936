package metrics

import (
	"context"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

// ObserveExport counts an export outcome. Its signature matches export.Hook.
func ObserveExport(_ context.Context, _ *entities.ComputedResult, outcome interfaces.ExportOutcome) {
	status := "success"
	if !outcome.OK() {
		status = "failed"
	}
	format := string(outcome.Format)
	if format == "" {
		format = "unknown"
	}
	ExportsTotal.WithLabelValues(format, status).Inc()
	ExportDuration.WithLabelValues(format).Observe(outcome.Duration.Seconds())
}
