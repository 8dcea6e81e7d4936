// Package handlers provides HTTP request handlers for the report service endpoints.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/tdm-reports/history"
	"github.com/giygas/tdm-reports/ingest"
	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

const (
	defaultExportsLimit = 50
	maxExportsLimit     = 500
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	parser        interfaces.Parser
	pipeline      *ingest.Pipeline
	exports       history.Store
	healthChecker interfaces.HealthChecker
	outputDir     string
}

// Dependencies groups what the handlers need
type Dependencies struct {
	DataStore     interfaces.DataStore
	Validator     interfaces.DataValidator
	Parser        interfaces.Parser
	Pipeline      *ingest.Pipeline
	Exports       history.Store
	HealthChecker interfaces.HealthChecker
	OutputDir     string
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(deps Dependencies) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     deps.DataStore,
		validator:     deps.Validator,
		parser:        deps.Parser,
		pipeline:      deps.Pipeline,
		exports:       deps.Exports,
		healthChecker: deps.HealthChecker,
		outputDir:     deps.OutputDir,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Uptime        string         `json:"uptime"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// lookupResult resolves the {id} URL parameter, answering the error itself
func (h *HTTPHandlerImpl) lookupResult(w http.ResponseWriter, r *http.Request) (*entities.ComputedResult, bool) {
	id, err := h.validator.ValidateResultID(chi.URLParam(r, "id"))
	if err != nil {
		logging.Warn("Unusual user input", "id", chi.URLParam(r, "id"))
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	result, ok := h.dataStore.GetResult(id)
	if !ok {
		h.RespondWithError(w, http.StatusNotFound, "Result not found")
		return nil, false
	}
	return result, true
}

// ListResults returns every loaded result, optionally filtered by ?drug=
func (h *HTTPHandlerImpl) ListResults(w http.ResponseWriter, r *http.Request) {
	drug := r.URL.Query().Get("drug")
	if drug != "" {
		if err := h.validator.ValidateInput(drug); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	summaries := []resultSummary{}
	for _, res := range h.dataStore.GetResults() {
		if drug != "" && !strings.EqualFold(res.Request.DrugID, drug) {
			continue
		}
		summaries = append(summaries, summarize(res))
	}
	h.RespondWithJSON(w, http.StatusOK, summaries)
}

// GetResult returns one result with its validation warnings
func (h *HTTPHandlerImpl) GetResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookupResult(w, r)
	if !ok {
		return
	}
	h.RespondWithJSON(w, http.StatusOK, detail(result))
}

// UploadResult imports a computed result document. With ?export=true every
// admitted result is exported right away.
func (h *HTTPHandlerImpl) UploadResult(w http.ResponseWriter, r *http.Request) {
	results, err := h.parser.Parse(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.RespondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		logging.Warn("Rejected result upload", "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	admitted, rejected := h.pipeline.Admit(results)
	if len(admitted) == 0 {
		message := "Document contains no results"
		if rejected != nil {
			message = rejected.Error()
		}
		h.RespondWithError(w, http.StatusUnprocessableEntity, message)
		return
	}

	response := map[string]any{
		"accepted": summariesOf(admitted),
	}
	if rejected != nil {
		response["rejected"] = rejected.Error()
	}

	if export, _ := strconv.ParseBool(r.URL.Query().Get("export")); export {
		outcomes := h.pipeline.ExportAll(r.Context(), admitted)
		response["exports"] = outcomeViews(outcomes)
		// summaries again, now with their reports
		response["accepted"] = summariesOf(admitted)
	}

	h.RespondWithJSON(w, http.StatusCreated, response)
}

func summariesOf(results []*entities.ComputedResult) []resultSummary {
	out := make([]resultSummary, 0, len(results))
	for _, r := range results {
		out = append(out, summarize(r))
	}
	return out
}

type outcomeView struct {
	ResultID   string                `json:"result_id"`
	Format     entities.OutputFormat `json:"format"`
	File       string                `json:"file,omitempty"`
	Error      string                `json:"error,omitempty"`
	DurationMS int64                 `json:"duration_ms"`
}

func outcomeViews(outcomes []interfaces.ExportOutcome) []outcomeView {
	out := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := outcomeView{ResultID: o.ResultID, Format: o.Format, DurationMS: o.Duration.Milliseconds()}
		if o.Path != "" {
			v.File = filepath.Base(o.Path)
		}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

// exportStatus maps an export failure to an HTTP status
func exportStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusCreated
	case errors.Is(err, entities.ErrNoTreatment), errors.Is(err, entities.ErrNoDrugModel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExportResult renders a result now, in ?format= or its requested format,
// and answers with the export record
func (h *HTTPHandlerImpl) ExportResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookupResult(w, r)
	if !ok {
		return
	}

	format := result.Request.OutputFormat
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := h.validator.ValidateFormat(q)
		if err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	outcome := h.pipeline.Exporter().ExportAs(r.Context(), result, format)

	record := history.NewRecord(result, outcome, time.Now())
	if h.exports != nil {
		// the export hooks have already stored it
		if recs, err := h.exports.List(r.Context(), history.Filter{ResultID: result.ID, Limit: 1}); err == nil && len(recs) == 1 {
			record = recs[0]
		}
	}

	h.RespondWithJSON(w, exportStatus(outcome.Err), record)
}

// ListExports returns the export history, newest first.
// Filters: ?result_id=, ?status=success|failed, ?limit=
func (h *HTTPHandlerImpl) ListExports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := history.Filter{Limit: defaultExportsLimit}

	if id := q.Get("result_id"); id != "" {
		valid, err := h.validator.ValidateResultID(id)
		if err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.ResultID = valid
	}

	switch status := history.Status(q.Get("status")); status {
	case "", history.StatusSuccess, history.StatusFailed:
		filter.Status = status
	default:
		h.RespondWithError(w, http.StatusBadRequest, "status must be success or failed")
		return
	}

	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 || limit > maxExportsLimit {
			h.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxExportsLimit))
			return
		}
		filter.Limit = limit
	}

	records, err := h.exports.List(r.Context(), filter)
	if err != nil {
		logging.Error("Failed to list exports", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to read export history")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, records)
}

// DownloadReport serves a produced report file by name
func (h *HTTPHandlerImpl) DownloadReport(w http.ResponseWriter, r *http.Request) {
	name, err := h.validator.ValidateReportName(chi.URLParam(r, "file"))
	if err != nil {
		logging.Warn("Unusual user input", "file", chi.URLParam(r, "file"))
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := os.Open(filepath.Join(h.outputDir, name))
	if errors.Is(err, os.ErrNotExist) {
		h.RespondWithError(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		logging.Error("Failed to open report", "file", name, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to open report")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to open report")
		return
	}

	format := entities.OutputFormat(strings.TrimPrefix(filepath.Ext(name), "."))
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.healthChecker.HealthCheck()

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	response := HealthResponse{
		Status:        status,
		UptimeSeconds: uptime.Seconds(),
		Uptime:        formatUptimeHuman(uptime),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}
