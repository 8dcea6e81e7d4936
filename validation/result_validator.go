package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

// Percentile thresholds for sample warnings
const (
	percentileLow          = 10.0
	percentileHigh         = 90.0
	percentileCriticalLow  = 5.0
	percentileCriticalHigh = 95.0
)

// factors to milligrams
var massUnits = map[string]float64{
	"g":   1000,
	"mg":  1,
	"ug":  0.001,
	"µg":  0.001,
	"mcg": 0.001,
}

// convertMass converts v between two mass units
func convertMass(v float64, from, to string) (float64, bool) {
	from, to = strings.ToLower(from), strings.ToLower(to)
	if from == to {
		return v, true
	}
	f, ok1 := massUnits[from]
	t, ok2 := massUnits[to]
	if !ok1 || !ok2 {
		return 0, false
	}
	return v * f / t, true
}

// ValidateResult checks the structural integrity of a parsed result
func (v *DataValidatorImpl) ValidateResult(r *entities.ComputedResult) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("result has no id")
	}
	if strings.TrimSpace(r.Request.DrugID) == "" {
		return fmt.Errorf("result %s: request has no drug id", r.ID)
	}
	if _, err := entities.ParseOutputFormat(string(r.Request.OutputFormat)); err != nil {
		return fmt.Errorf("result %s: %w", r.ID, err)
	}

	if r.Treatment != nil {
		if err := validateHistory(r.Treatment.DosageHistory); err != nil {
			return fmt.Errorf("result %s: treatment: %w", r.ID, err)
		}
	}

	for i, c := range r.Adjustments {
		if err := validateHistory(c.DosageHistory); err != nil {
			return fmt.Errorf("result %s: adjustment %d: %w", r.ID, i, err)
		}
		for j, cycle := range c.Cycles {
			if len(cycle.Times) != len(cycle.Concentrations) {
				return fmt.Errorf("result %s: adjustment %d cycle %d: %d times for %d concentrations",
					r.ID, i, j, len(cycle.Times), len(cycle.Concentrations))
			}
		}
	}
	return nil
}

func validateHistory(h entities.DosageHistory) error {
	for i, tr := range h {
		if tr.End.Before(tr.Start) {
			return fmt.Errorf("time range %d ends before it starts", i)
		}
		if err := validateNode(tr.Dosage); err != nil {
			return fmt.Errorf("time range %d: %w", i, err)
		}
	}
	return nil
}

func validateNode(node entities.DosageNode) error {
	switch n := node.(type) {
	case nil:
		return fmt.Errorf("missing dosage")
	case entities.SingleDose:
		return validateDose(n)
	case entities.LastingDose:
		if n.Interval <= 0 {
			return fmt.Errorf("lasting dose with non-positive interval")
		}
		return validateDose(n.SingleDose)
	case entities.DailyDose:
		return validateDose(n.SingleDose)
	case entities.WeeklyDose:
		return validateDose(n.SingleDose)
	case entities.DosageRepeat:
		if n.Iterations <= 0 {
			return fmt.Errorf("repeat with %d iterations", n.Iterations)
		}
		return validateNode(n.Child)
	case entities.DosageSequence:
		for _, c := range n.Children {
			if err := validateNode(c); err != nil {
				return err
			}
		}
		return nil
	case entities.ParallelDosageSequence:
		if len(n.Children) != len(n.Offsets) {
			return fmt.Errorf("parallel sequence has %d children and %d offsets", len(n.Children), len(n.Offsets))
		}
		for _, c := range n.Children {
			if err := validateNode(c); err != nil {
				return err
			}
		}
		return nil
	case entities.DosageLoop:
		return validateNode(n.Child)
	case entities.DosageSteadyState:
		return validateNode(n.Child)
	default:
		panic(fmt.Sprintf("validation: unhandled dosage node %T", node))
	}
}

func validateDose(d entities.SingleDose) error {
	if d.Amount < 0 {
		return fmt.Errorf("dose %d has a negative amount", d.ID)
	}
	if strings.TrimSpace(d.Unit) == "" {
		return fmt.Errorf("dose %d has no unit", d.ID)
	}
	return nil
}

// Annotate computes the dose, covariate and sample warnings of a result.
// Without treatment or drug model nothing is touched.
func (v *DataValidatorImpl) Annotate(r *entities.ComputedResult, tr translation.Translator) error {
	if err := r.CheckPreconditions(); err != nil {
		return err
	}
	r.EnsureValidationMaps()

	min, max, hasLimits := r.DrugModel.AvailableDoses.Limits()
	unit := r.DrugModel.AvailableDoses.Unit

	checkDose := func(d entities.SingleDose) {
		val := entities.Validation{}
		if hasLimits {
			amount, ok := convertMass(d.Amount, d.Unit, unit)
			switch {
			case !ok:
				logging.Debug("Skipping dose range check, incompatible units", "result_id", r.ID, "dose_unit", d.Unit, "model_unit", unit)
			case amount < min:
				val = entities.Validation{
					Warning: fmt.Sprintf("%s (%.2f %s)", tr.Translate("min_dose_reached"), min, unit),
					Level:   entities.WarningNormal,
				}
			case amount > max:
				val = entities.Validation{
					Warning: fmt.Sprintf("%s (%.2f %s)", tr.Translate("max_dose_reached"), max, unit),
					Level:   entities.WarningCritical,
				}
			}
		}
		r.DoseValidations[d.ID] = val
	}

	for _, d := range r.Treatment.DosageHistory.Doses() {
		checkDose(d)
	}
	for _, c := range r.Adjustments {
		for _, d := range c.DosageHistory.Doses() {
			checkDose(d)
		}
	}

	for _, c := range r.Treatment.Covariates {
		r.CovariateValidations[c.ID] = covariateValidation(r.DrugModel, c, tr)
	}

	for _, s := range r.Treatment.Samples {
		r.SampleValidations[s.ID] = sampleValidation(s, tr)
	}

	return nil
}

func covariateValidation(m *entities.DrugModel, c entities.PatientCovariate, tr translation.Translator) entities.Validation {
	def, ok := m.Covariate(c.CovariateID)
	if !ok || def.Validation == nil {
		return entities.Validation{}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
	if err != nil {
		return entities.Validation{}
	}
	if value < def.Validation.Min || value > def.Validation.Max {
		return entities.Validation{
			Warning: fmt.Sprintf("%s (%.2f - %.2f %s)", tr.Translate("covariate_out_of_bounds"), def.Validation.Min, def.Validation.Max, def.Unit),
			Level:   entities.WarningCritical,
		}
	}
	return entities.Validation{}
}

func sampleValidation(s entities.Sample, tr translation.Translator) entities.Validation {
	if s.Percentile == nil {
		return entities.Validation{}
	}
	p := *s.Percentile
	switch {
	case p < percentileLow:
		level := entities.WarningNormal
		if p < percentileCriticalLow {
			level = entities.WarningCritical
		}
		return entities.Validation{Warning: fmt.Sprintf("%s (%.2f)", tr.Translate("sample_percentile_low"), p), Level: level}
	case p > percentileHigh:
		level := entities.WarningNormal
		if p > percentileCriticalHigh {
			level = entities.WarningCritical
		}
		return entities.Validation{Warning: fmt.Sprintf("%s (%.2f)", tr.Translate("sample_percentile_high"), p), Level: level}
	}
	return entities.Validation{}
}

// ReportDataQuality generates a quality report over all results
func (v *DataValidatorImpl) ReportDataQuality(results []*entities.ComputedResult) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{DuplicateResultIDs: []string{}}
	seen := make(map[string]bool, len(results))

	for _, r := range results {
		if seen[r.ID] {
			report.DuplicateResultIDs = append(report.DuplicateResultIDs, r.ID)
		}
		seen[r.ID] = true

		if r.Treatment == nil {
			report.ResultsWithoutTreatment++
		} else if len(r.Treatment.Samples) == 0 {
			report.ResultsWithoutSamples++
		}
		if r.DrugModel == nil {
			report.ResultsWithoutDrugModel++
		}
		for _, c := range r.Adjustments {
			if len(c.Targets) == 0 {
				report.CandidatesWithoutTargets++
			}
		}
		for _, val := range r.DoseValidations {
			if val.Warning != "" {
				report.DosesWithWarnings++
			}
		}
		for _, val := range r.SampleValidations {
			if val.Warning != "" {
				report.SamplesWithWarnings++
			}
		}
		for _, val := range r.CovariateValidations {
			if val.Warning != "" {
				report.CovariatesWithWarnings++
			}
		}
	}

	if len(report.DuplicateResultIDs) > 0 {
		logging.Warn("Duplicate result ids found", "count", len(report.DuplicateResultIDs), "ids", report.DuplicateResultIDs)
	}
	return report
}
