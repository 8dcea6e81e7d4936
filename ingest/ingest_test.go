package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/giygas/tdm-reports/data"
	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser"
	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
	"github.com/giygas/tdm-reports/validation"
)

type fakeExporter struct {
	mu       sync.Mutex
	exported []string
}

func (f *fakeExporter) Export(ctx context.Context, r *entities.ComputedResult) interfaces.ExportOutcome {
	return f.ExportAs(ctx, r, r.Request.OutputFormat)
}

func (f *fakeExporter) ExportAs(ctx context.Context, r *entities.ComputedResult, format entities.OutputFormat) interfaces.ExportOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exported = append(f.exported, r.ID)
	return interfaces.ExportOutcome{ResultID: r.ID, Format: format, Path: "/out/" + r.ID + "." + string(format)}
}

func newPipeline(t *testing.T) (*Pipeline, *data.DataContainer, *fakeExporter) {
	t.Helper()
	logging.InitLogger("")
	reg, err := translation.NewRegistry("en")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	store := data.NewDataContainer()
	exp := &fakeExporter{}
	return NewPipeline(validation.NewDataValidator(), reg, store, exp), store, exp
}

func fixture(t *testing.T) []*entities.ComputedResult {
	t.Helper()
	results, err := resultparser.NewResultParser().ParseFile("../resultparser/testdata/rifampicin.json")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return results
}

func TestAdmitAnnotatesAndStores(t *testing.T) {
	p, store, _ := newPipeline(t)
	results := fixture(t)

	admitted, err := p.Admit(results)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if len(admitted) != len(results) {
		t.Fatalf("admitted %d of %d", len(admitted), len(results))
	}
	for _, r := range results {
		if _, ok := store.GetResult(r.ID); !ok {
			t.Errorf("result %s not stored", r.ID)
		}
		if r.DoseValidations == nil || r.CovariateValidations == nil || r.SampleValidations == nil {
			t.Errorf("result %s was not annotated", r.ID)
		}
	}
}

func TestAdmitRejectsInvalidResults(t *testing.T) {
	p, store, _ := newPipeline(t)
	results := fixture(t)
	results[0].Request.DrugID = ""

	admitted, err := p.Admit(results)
	if err == nil || !strings.Contains(err.Error(), "1 result(s) rejected") {
		t.Fatalf("expected one rejection, got %v", err)
	}
	if len(admitted) != len(results)-1 {
		t.Errorf("admitted %d", len(admitted))
	}
	if _, ok := store.GetResult(results[0].ID); ok {
		t.Error("invalid result was stored")
	}
}

func TestAdmitKeepsResultsWithoutTreatment(t *testing.T) {
	p, store, _ := newPipeline(t)
	results := fixture(t)
	results[0].Treatment = nil

	if _, err := p.Admit(results[:1]); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, ok := store.GetResult(results[0].ID); !ok {
		t.Error("result without treatment should be stored so its export failure is recorded")
	}
	if err := results[0].CheckPreconditions(); !errors.Is(err, entities.ErrNoTreatment) {
		t.Errorf("unexpected precondition %v", err)
	}
}

func TestExportAll(t *testing.T) {
	p, _, exp := newPipeline(t)
	results := fixture(t)

	outcomes := p.ExportAll(context.Background(), results)
	if len(outcomes) != len(results) || len(exp.exported) != len(results) {
		t.Fatalf("expected %d exports, got %d", len(results), len(outcomes))
	}
	if outcomes[0].Format != entities.FormatXML || outcomes[1].Format != entities.FormatHTML {
		t.Errorf("requested formats not honoured: %+v", outcomes)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := p.ExportAll(ctx, results); len(got) != 0 {
		t.Errorf("cancelled context should stop exporting, got %d", len(got))
	}
}
