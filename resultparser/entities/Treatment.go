package entities

import "time"

// SampleID identifies a sample inside a result
type SampleID int

// CovariateID identifies a patient covariate entry inside a result
type CovariateID int

// Sample is one measured concentration
type Sample struct {
	ID         SampleID  `json:"-"`
	ExternalID string    `json:"id"`
	Date       time.Time `json:"date"`
	AnalyteID  string    `json:"analyteId"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	// Percentile of the measure in the a priori population, when computed
	Percentile *float64 `json:"percentile,omitempty"`
}

// PatientCovariate is one covariate observation. Value keeps the raw text
// because dates and booleans travel as strings.
type PatientCovariate struct {
	ID          CovariateID `json:"-"`
	CovariateID string      `json:"covariateId"`
	Date        time.Time   `json:"date"`
	Value       string      `json:"value"`
	Unit        string      `json:"unit"`
	DataType    string      `json:"dataType"`
}

// Treatment is what the patient received and what was measured
type Treatment struct {
	DosageHistory DosageHistory
	Samples       []Sample
	Covariates    []PatientCovariate
}

// LatestCovariate returns the most recent observation of a covariate
func (t *Treatment) LatestCovariate(covariateID string) (PatientCovariate, bool) {
	var found PatientCovariate
	ok := false
	for _, c := range t.Covariates {
		if c.CovariateID != covariateID {
			continue
		}
		if !ok || c.Date.After(found.Date) {
			found, ok = c, true
		}
	}
	return found, ok
}
