package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveExport(t *testing.T) {
	okBefore := counterValue(t, ExportsTotal.WithLabelValues("pdf", "success"))
	failedBefore := counterValue(t, ExportsTotal.WithLabelValues("pdf", "failed"))

	ObserveExport(context.Background(), nil, interfaces.ExportOutcome{Format: entities.FormatPDF, Duration: time.Second})
	ObserveExport(context.Background(), nil, interfaces.ExportOutcome{Format: entities.FormatPDF, Err: errors.New("boom")})
	ObserveExport(context.Background(), nil, interfaces.ExportOutcome{Format: entities.FormatPDF, Err: errors.New("boom")})

	if got := counterValue(t, ExportsTotal.WithLabelValues("pdf", "success")) - okBefore; got != 1 {
		t.Errorf("success delta = %v", got)
	}
	if got := counterValue(t, ExportsTotal.WithLabelValues("pdf", "failed")) - failedBefore; got != 2 {
		t.Errorf("failed delta = %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/v1/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := counterValue(t, HTTPRequestTotals.WithLabelValues("GET", "/v1/results/{id}", "404"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/results/abc", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := counterValue(t, HTTPRequestTotals.WithLabelValues("GET", "/v1/results/{id}", "404")) - before; got != 1 {
		t.Errorf("request not counted under its route pattern, delta = %v", got)
	}
}
