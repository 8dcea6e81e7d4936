package projection

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/giygas/tdm-reports/resultparser"
	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
	"github.com/giygas/tdm-reports/validation"
)

func loadResult(t *testing.T) *entities.ComputedResult {
	t.Helper()
	results, err := resultparser.NewResultParser().ParseFile(filepath.Join("..", "resultparser", "testdata", "rifampicin.json"))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	return results[0]
}

func english(t *testing.T) translation.Translator {
	t.Helper()
	reg, err := translation.NewRegistry("en")
	if err != nil {
		t.Fatal(err)
	}
	return reg.For("en")
}

func TestBuildPreconditions(t *testing.T) {
	r := loadResult(t)
	r.Treatment = nil
	if _, err := Build(BuildContext{Result: r, Translator: english(t)}); !errors.Is(err, entities.ErrNoTreatment) {
		t.Errorf("Expected ErrNoTreatment, got %v", err)
	}

	r = loadResult(t)
	r.DrugModel = nil
	if _, err := Build(BuildContext{Result: r, Translator: english(t)}); !errors.Is(err, entities.ErrNoDrugModel) {
		t.Errorf("Expected ErrNoDrugModel, got %v", err)
	}
}

func TestBuildHeaderAndDrug(t *testing.T) {
	report, err := Build(BuildContext{Result: loadResult(t), Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	if report.Header.Title != "Dosage adjustment report" {
		t.Errorf("Unexpected title %q", report.Header.Title)
	}
	if report.Header.Language != "en" {
		t.Errorf("Expected language en, got %q", report.Header.Language)
	}
	if report.Header.ComputedOn != "05.03.2024 10:00" || report.Header.GeneratedOn != report.Header.ComputedOn {
		t.Errorf("Unexpected header dates %+v", report.Header)
	}
	if report.Drug.Name != "Rifampicin" || report.Drug.Brands != "Rimactan, Rifadin" {
		t.Errorf("Unexpected drug %+v", report.Drug)
	}
}

func TestBuildContactsPlaceholders(t *testing.T) {
	report, err := Build(BuildContext{Result: loadResult(t), Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	m := report.Mandator
	if m == nil {
		t.Fatal("Expected a mandator")
	}
	if m.FullName != "Dr Ana Duarte" {
		t.Errorf("Unexpected name %q", m.FullName)
	}
	if m.Email != nil || m.EmailText != Placeholder {
		t.Errorf("Missing email must be nil with placeholder text, got %v %q", m.Email, m.EmailText)
	}
	if m.AddressText != Placeholder {
		t.Errorf("Expected address placeholder, got %q", m.AddressText)
	}
	if m.PhoneText != "+41 21 314 11 11" {
		t.Errorf("Unexpected phone %q", m.PhoneText)
	}
	if m.Institute == nil || m.Institute.AddressText != "Rue du Bugnon 46, 1011 Lausanne, Switzerland" {
		t.Errorf("Unexpected institute %+v", m.Institute)
	}

	p := report.Patient
	if p.PhoneText != Placeholder || p.EmailText != Placeholder || p.Phone != nil {
		t.Errorf("Unexpected patient contact %+v", p)
	}
}

func TestBuildAgeCovariate(t *testing.T) {
	report, err := Build(BuildContext{Result: loadResult(t), Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	var age *CovariateRow
	for i := range report.Covariates {
		if report.Covariates[i].ID == "age" {
			age = &report.Covariates[i]
		}
	}
	if age == nil {
		t.Fatal("Expected an age covariate")
	}
	if age.DisplayValue != "43" || age.Unit != "years" {
		t.Errorf("Expected 43 years, got %q %q", age.DisplayValue, age.Unit)
	}
	if report.Covariates[0].DisplayValue != "62.00" || report.Covariates[0].Name != "Total body weight" {
		t.Errorf("Unexpected bodyweight row %+v", report.Covariates[0])
	}
}

func TestBuildNumericAgeCovariate(t *testing.T) {
	r := loadResult(t)
	found := false
	for i := range r.Treatment.Covariates {
		if r.Treatment.Covariates[i].CovariateID == "age" {
			r.Treatment.Covariates[i].Value = "45"
			r.Treatment.Covariates[i].Unit = ""
			found = true
		}
	}
	if !found {
		t.Fatal("Expected an age covariate in the fixture")
	}

	report, err := Build(BuildContext{Result: r, Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range report.Covariates {
		if row.ID != "age" {
			continue
		}
		if row.DisplayValue != "45" || row.Unit != "years" {
			t.Errorf("Expected 45 years, got %q %q", row.DisplayValue, row.Unit)
		}
	}
}

func TestAgeInYears(t *testing.T) {
	at := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	cases := map[string]int{
		"1980-06-15":           43,
		"1980-03-05":           44,
		"2000-03-06T00:00:00Z": 23,
	}
	for in, want := range cases {
		got, ok := AgeInYears(in, at)
		if !ok || got != want {
			t.Errorf("AgeInYears(%q) = %d, %v, want %d", in, got, ok, want)
		}
	}
	if _, ok := AgeInYears("43", at); ok {
		t.Error("Numbers are not birth dates")
	}
	if _, ok := AgeInYears("2030-01-01", at); ok {
		t.Error("Birth dates after the computation are rejected")
	}
}

func TestBuildTreatment(t *testing.T) {
	report, err := Build(BuildContext{Result: loadResult(t), Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	tr := report.Treatment
	if len(tr.TimeRanges) != 1 {
		t.Fatalf("Expected 1 time range, got %d", len(tr.TimeRanges))
	}
	rng := tr.TimeRanges[0]
	if rng.RegimenLabel != "continually" {
		t.Errorf("Expected continually, got %q", rng.RegimenLabel)
	}
	if len(rng.Leaves) != 1 || rng.Leaves[0].DisplayChain != "interval 24:00, 600.00 mg (oral)" {
		t.Errorf("Unexpected leaves %+v", rng.Leaves)
	}
	if rng.StartText != "01.03.2024 08:00" {
		t.Errorf("Unexpected start %q", rng.StartText)
	}
	if tr.LastDoseText != "600.00 mg (oral), 01.03.2024 08:00" {
		t.Errorf("Unexpected last dose %q", tr.LastDoseText)
	}
}

func TestBuildTreatmentWithoutDoses(t *testing.T) {
	r := loadResult(t)
	r.Treatment = &entities.Treatment{}
	report, err := Build(BuildContext{Result: r, Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}
	if report.Treatment.LastDose != nil || report.Treatment.LastDoseText != Placeholder {
		t.Errorf("Expected last dose placeholder, got %+v", report.Treatment)
	}
	if len(report.Samples) != 0 || len(report.Covariates) != 0 {
		t.Error("Expected empty sections")
	}
}

func TestBuildWarningsReachLeaves(t *testing.T) {
	r := loadResult(t)
	r.DrugModel.AvailableDoses.Fixed = []float64{100, 400}
	if err := validation.NewDataValidator().Annotate(r, english(t)); err != nil {
		t.Fatal(err)
	}

	report, err := Build(BuildContext{Result: r, Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	leaf := report.Treatment.TimeRanges[0].Leaves[0]
	if leaf.Warning != "Maximum recommended dosage reached (400.00 mg)" || leaf.WarningLevel != entities.WarningCritical {
		t.Errorf("Unexpected treatment warning %+v", leaf)
	}
	best := report.Adjustments[0].TimeRanges[0].Leaves[0]
	if !best.HasWarning() {
		t.Error("Expected a warning on the 900 mg candidate")
	}
}

func TestBuildAdjustmentsAndTargets(t *testing.T) {
	report, err := Build(BuildContext{Result: loadResult(t), Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	if report.BestAdjustment != 0 || !report.Adjustments[0].Best || report.Adjustments[1].Best {
		t.Errorf("Unexpected best candidate %d", report.BestAdjustment)
	}
	if report.Adjustments[0].ScoreText != "0.82" {
		t.Errorf("Unexpected score %q", report.Adjustments[0].ScoreText)
	}
	if label := report.Adjustments[0].TimeRanges[0].RegimenLabel; label != "at steady state 05.03.2024 08:00" {
		t.Errorf("Unexpected regimen label %q", label)
	}

	if len(report.Targets) != 2 {
		t.Fatalf("Expected the 2 targets of the best candidate, got %d", len(report.Targets))
	}
	peak := report.Targets[0]
	if peak.InefficacyText != "4.00" || peak.ToxicityText != "35.00" {
		t.Errorf("Alarms must come from the drug model, got %q %q", peak.InefficacyText, peak.ToxicityText)
	}
	if peak.TypeLabel != "Peak" || peak.ActiveMoiety != "Rifampicin" {
		t.Errorf("Unexpected labels %q %q", peak.TypeLabel, peak.ActiveMoiety)
	}

	own := report.Adjustments[1].Targets[0]
	if own.InefficacyText != "5.00" || own.ToxicityText != "30.00" {
		t.Errorf("Evaluation alarms take precedence, got %q %q", own.InefficacyText, own.ToxicityText)
	}
}

func TestBuildTargetWithoutDefinition(t *testing.T) {
	r := loadResult(t)
	r.Adjustments[0].Targets = []entities.TargetEvaluation{{Type: entities.TargetResidual, ActiveMoietyID: "rifampicin", Value: 0.5}}

	report, err := Build(BuildContext{Result: r, Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}
	target := report.Targets[0]
	if target.InefficacyText != "unknown" || target.ToxicityText != "unknown" {
		t.Errorf("Expected unknown alarms, got %q %q", target.InefficacyText, target.ToxicityText)
	}
}

func TestBuildParametersAndPredictions(t *testing.T) {
	r := loadResult(t)
	r.Parameters.Aposteriori = r.Parameters.Aposteriori[:1]
	report, err := Build(BuildContext{Result: r, Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Parameters) != 2 {
		t.Fatalf("Expected 2 parameters, got %d", len(report.Parameters))
	}
	cl, v := report.Parameters[0], report.Parameters[1]
	if cl.ID != "CL" || cl.TypicalText != "10.50" || cl.AposterioriText != "8.90" {
		t.Errorf("Unexpected CL row %+v", cl)
	}
	if v.AposterioriText != Placeholder || v.Aposteriori != nil {
		t.Errorf("Missing a posteriori value must be a placeholder, got %+v", v)
	}

	if report.Predictions.AUC24Text != "71.30" || report.Predictions.ResidualText != "0.60" {
		t.Errorf("Unexpected predictions %+v", report.Predictions)
	}
	if len(report.ComputationCovariates) != 1 || report.ComputationCovariates[0].Name != "Total body weight" {
		t.Errorf("Unexpected computation covariates %+v", report.ComputationCovariates)
	}
}

func TestBuildGraph(t *testing.T) {
	report, err := Build(BuildContext{Result: loadResult(t), Translator: english(t)})
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Graph) != 2 {
		t.Fatalf("Expected one series per cycle, got %d", len(report.Graph))
	}
	g := report.Graph[0]
	if g.Times != "0,2,6,12,24" || g.Concentrations != "0,14.1,8.2,3.5,0.6" {
		t.Errorf("Unexpected series %q / %q", g.Times, g.Concentrations)
	}
	if !g.Best || report.Graph[1].Best {
		t.Error("Only the best candidate series is flagged")
	}
	if g.Label != "Adjustment 1" {
		t.Errorf("Unexpected label %q", g.Label)
	}
}

func TestBuildFrench(t *testing.T) {
	reg, err := translation.NewRegistry("en")
	if err != nil {
		t.Fatal(err)
	}
	report, err := Build(BuildContext{Result: loadResult(t), Translator: reg.For("fr")})
	if err != nil {
		t.Fatal(err)
	}
	if report.Drug.Name != "Rifampicine" {
		t.Errorf("Expected the French drug name, got %q", report.Drug.Name)
	}
	if report.Header.Language != "fr" {
		t.Errorf("Expected fr, got %q", report.Header.Language)
	}
}
