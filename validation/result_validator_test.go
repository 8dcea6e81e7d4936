package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

var labels = translation.Map{
	"min_dose_reached":        "Minimum recommended dosage reached",
	"max_dose_reached":        "Maximum recommended dosage reached",
	"covariate_out_of_bounds": "Covariate out of bounds",
	"sample_percentile_low":   "Sample percentile low",
	"sample_percentile_high":  "Sample percentile high",
}

func newResult() *entities.ComputedResult {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return &entities.ComputedResult{
		ID:      "r1",
		Request: entities.Request{ID: "q1", DrugID: "rifampicin", OutputFormat: entities.FormatXML, OutputLang: "en"},
		DrugModel: &entities.DrugModel{
			ID:             "ch.tucuxi.rifampicin",
			AvailableDoses: entities.AvailableDoses{Unit: "mg", Fixed: []float64{100, 200, 400}},
			Covariates: []entities.CovariateDefinition{
				{ID: "bodyweight", Unit: "kg", Validation: &entities.Bounds{Min: 30, Max: 120}},
			},
		},
		Treatment: &entities.Treatment{
			DosageHistory: entities.DosageHistory{{
				Start: start,
				End:   start.Add(48 * time.Hour),
				Dosage: entities.DosageSequence{Children: []entities.DosageNode{
					entities.SingleDose{ID: 0, Amount: 1, Unit: "mg"},
					entities.SingleDose{ID: 1, Amount: 200, Unit: "mg"},
					entities.SingleDose{ID: 2, Amount: 10000000, Unit: "mg"},
				}},
			}},
		},
	}
}

func TestAnnotateDoseLimits(t *testing.T) {
	r := newResult()
	if err := NewDataValidator().Annotate(r, labels); err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	if got := r.DoseValidations[0]; got.Warning != "Minimum recommended dosage reached (100.00 mg)" || got.Level != entities.WarningNormal {
		t.Errorf("Unexpected minimum warning %+v", got)
	}
	if got := r.DoseValidations[2]; got.Warning != "Maximum recommended dosage reached (400.00 mg)" || got.Level != entities.WarningCritical {
		t.Errorf("Unexpected maximum warning %+v", got)
	}
	got, ok := r.DoseValidations[1]
	if !ok {
		t.Fatal("Expected an entry for the dose within range")
	}
	if got.Warning != "" {
		t.Errorf("Sibling dose must not be warned, got %q", got.Warning)
	}
}

func TestAnnotateConvertsUnits(t *testing.T) {
	r := newResult()
	r.Treatment.DosageHistory[0].Dosage = entities.DosageSequence{Children: []entities.DosageNode{
		entities.SingleDose{ID: 0, Amount: 0.2, Unit: "g"},
		entities.SingleDose{ID: 1, Amount: 50000, Unit: "ug"},
		entities.SingleDose{ID: 2, Amount: 3, Unit: "ml"},
	}}

	if err := NewDataValidator().Annotate(r, labels); err != nil {
		t.Fatal(err)
	}
	if w := r.DoseValidations[0].Warning; w != "" {
		t.Errorf("0.2 g is within range, got %q", w)
	}
	if w := r.DoseValidations[1].Warning; w != "Minimum recommended dosage reached (100.00 mg)" {
		t.Errorf("50000 ug is 50 mg, got %q", w)
	}
	if w := r.DoseValidations[2].Warning; w != "" {
		t.Errorf("Incompatible units are not checked, got %q", w)
	}
}

func TestAnnotateAdjustmentDoses(t *testing.T) {
	r := newResult()
	r.Adjustments = []entities.AdjustmentCandidate{{
		DosageHistory: entities.DosageHistory{{
			Dosage: entities.DosageLoop{Child: entities.LastingDose{
				SingleDose: entities.SingleDose{ID: 3, Amount: 800, Unit: "mg"},
				Interval:   24 * time.Hour,
			}},
		}},
	}}

	if err := NewDataValidator().Annotate(r, labels); err != nil {
		t.Fatal(err)
	}
	if w := r.DoseValidations[3].Warning; w != "Maximum recommended dosage reached (400.00 mg)" {
		t.Errorf("Unexpected adjustment warning %q", w)
	}
}

func TestAnnotatePreconditions(t *testing.T) {
	r := newResult()
	r.Treatment = nil
	err := NewDataValidator().Annotate(r, labels)
	if !errors.Is(err, entities.ErrNoTreatment) {
		t.Errorf("Expected ErrNoTreatment, got %v", err)
	}
	if len(r.DoseValidations) != 0 {
		t.Errorf("Expected no dose validations, got %d", len(r.DoseValidations))
	}

	r = newResult()
	r.DrugModel = nil
	if err := NewDataValidator().Annotate(r, labels); !errors.Is(err, entities.ErrNoDrugModel) {
		t.Errorf("Expected ErrNoDrugModel, got %v", err)
	}
}

func TestAnnotateCovariatesAndSamples(t *testing.T) {
	r := newResult()
	r.Treatment.Covariates = []entities.PatientCovariate{
		{ID: 0, CovariateID: "bodyweight", Value: "150", Unit: "kg"},
		{ID: 1, CovariateID: "bodyweight", Value: "70", Unit: "kg"},
		{ID: 2, CovariateID: "sex", Value: "1"},
	}
	p := func(v float64) *float64 { return &v }
	r.Treatment.Samples = []entities.Sample{
		{ID: 0, Percentile: p(3)},
		{ID: 1, Percentile: p(50)},
		{ID: 2, Percentile: p(92)},
		{ID: 3},
	}

	if err := NewDataValidator().Annotate(r, labels); err != nil {
		t.Fatal(err)
	}

	if got := r.CovariateValidations[0]; got.Warning != "Covariate out of bounds (30.00 - 120.00 kg)" || got.Level != entities.WarningCritical {
		t.Errorf("Unexpected covariate warning %+v", got)
	}
	if w := r.CovariateValidations[1].Warning; w != "" {
		t.Errorf("Expected no warning, got %q", w)
	}
	if w := r.CovariateValidations[2].Warning; w != "" {
		t.Errorf("Covariates without bounds are not checked, got %q", w)
	}

	if got := r.SampleValidations[0]; got.Warning != "Sample percentile low (3.00)" || got.Level != entities.WarningCritical {
		t.Errorf("Unexpected sample warning %+v", got)
	}
	if w := r.SampleValidations[1].Warning; w != "" {
		t.Errorf("Expected no warning, got %q", w)
	}
	if got := r.SampleValidations[2]; got.Warning != "Sample percentile high (92.00)" || got.Level != entities.WarningNormal {
		t.Errorf("Unexpected sample warning %+v", got)
	}
	if _, ok := r.SampleValidations[3]; !ok {
		t.Error("Every sample must have an entry")
	}
}

func TestValidateResult(t *testing.T) {
	validator := NewDataValidator()

	if err := validator.ValidateResult(newResult()); err != nil {
		t.Errorf("Expected valid result, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *entities.ComputedResult)
	}{
		{"missing id", func(r *entities.ComputedResult) { r.ID = "" }},
		{"missing drug", func(r *entities.ComputedResult) { r.Request.DrugID = "" }},
		{"bad format", func(r *entities.ComputedResult) { r.Request.OutputFormat = "docx" }},
		{"reversed range", func(r *entities.ComputedResult) {
			r.Treatment.DosageHistory[0].End = r.Treatment.DosageHistory[0].Start.Add(-time.Hour)
		}},
		{"parallel length mismatch", func(r *entities.ComputedResult) {
			r.Treatment.DosageHistory[0].Dosage = entities.ParallelDosageSequence{
				Children: []entities.DosageNode{entities.SingleDose{Amount: 1, Unit: "mg"}},
			}
		}},
		{"zero repeat", func(r *entities.ComputedResult) {
			r.Treatment.DosageHistory[0].Dosage = entities.DosageRepeat{Child: entities.SingleDose{Amount: 1, Unit: "mg"}}
		}},
		{"cycle length mismatch", func(r *entities.ComputedResult) {
			r.Adjustments = []entities.AdjustmentCandidate{{Cycles: []entities.CycleData{{Times: []float64{0, 1}, Concentrations: []float64{1}}}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResult()
			tt.mutate(r)
			if err := validator.ValidateResult(r); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestReportDataQuality(t *testing.T) {
	a := newResult()
	b := newResult()
	b.Treatment = nil
	c := newResult()
	c.ID = "r2"
	c.DrugModel = nil
	c.Adjustments = []entities.AdjustmentCandidate{{}}

	validator := NewDataValidator()
	if err := validator.Annotate(a, labels); err != nil {
		t.Fatal(err)
	}

	report := validator.ReportDataQuality([]*entities.ComputedResult{a, b, c})
	if len(report.DuplicateResultIDs) != 1 || report.DuplicateResultIDs[0] != "r1" {
		t.Errorf("Unexpected duplicates %v", report.DuplicateResultIDs)
	}
	if report.ResultsWithoutTreatment != 1 {
		t.Errorf("Expected 1 result without treatment, got %d", report.ResultsWithoutTreatment)
	}
	if report.ResultsWithoutDrugModel != 1 {
		t.Errorf("Expected 1 result without drug model, got %d", report.ResultsWithoutDrugModel)
	}
	if report.ResultsWithoutSamples != 2 {
		t.Errorf("Expected 2 results without samples, got %d", report.ResultsWithoutSamples)
	}
	if report.DosesWithWarnings != 2 {
		t.Errorf("Expected 2 doses with warnings, got %d", report.DosesWithWarnings)
	}
	if report.CandidatesWithoutTargets != 1 {
		t.Errorf("Expected 1 candidate without targets, got %d", report.CandidatesWithoutTargets)
	}
}
