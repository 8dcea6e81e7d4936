// Package ingest admits parsed results into the service: structural
// validation, warning annotation, storage and export.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

// Pipeline is shared by the inbox scanner and the upload endpoint
type Pipeline struct {
	validator    interfaces.DataValidator
	translations translation.Provider
	store        interfaces.DataStore
	exporter     interfaces.ReportExporter
}

// NewPipeline wires the ingest steps
func NewPipeline(validator interfaces.DataValidator, translations translation.Provider, store interfaces.DataStore, exporter interfaces.ReportExporter) *Pipeline {
	return &Pipeline{
		validator:    validator,
		translations: translations,
		store:        store,
		exporter:     exporter,
	}
}

// Admit validates and annotates results, then adds the valid ones to the
// store. Annotation happens here, before any export can read the result.
// Results that cannot be annotated (no treatment or drug model) are still
// admitted; their exports fail and are recorded as such.
func (p *Pipeline) Admit(results []*entities.ComputedResult) (admitted []*entities.ComputedResult, rejected error) {
	var errs []error
	for _, r := range results {
		if err := p.validator.ValidateResult(r); err != nil {
			errs = append(errs, err)
			continue
		}
		tr := p.translations.For(r.Request.OutputLang)
		if err := p.validator.Annotate(r, tr); err != nil {
			logging.Warn("Result admitted without validation warnings", "result_id", r.ID, "error", err)
		}
		admitted = append(admitted, r)
	}

	p.store.AddResults(admitted)

	if len(errs) > 0 {
		rejected = fmt.Errorf("%d result(s) rejected: %w", len(errs), errors.Join(errs...))
	}
	return admitted, rejected
}

// ExportAll exports every result in its requested format, one after the
// other. It stops early when ctx is done.
func (p *Pipeline) ExportAll(ctx context.Context, results []*entities.ComputedResult) []interfaces.ExportOutcome {
	outcomes := make([]interfaces.ExportOutcome, 0, len(results))
	for _, r := range results {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, p.exporter.Export(ctx, r))
	}
	return outcomes
}

// Exporter returns the exporter used by ExportAll
func (p *Pipeline) Exporter() interfaces.ReportExporter {
	return p.exporter
}
