package entities

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoTreatment = errors.New("No treatment set.")
	ErrNoDrugModel = errors.New("No drug model set.")

	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// OutputFormat is the deliverable requested for a result
type OutputFormat string

const (
	FormatXML  OutputFormat = "xml"
	FormatHTML OutputFormat = "html"
	FormatPDF  OutputFormat = "pdf"
)

// ParseOutputFormat is case-insensitive
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXML, FormatHTML, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnsupportedFormat, s)
}

// Extension is the file extension without the dot
func (f OutputFormat) Extension() string {
	return string(f)
}

// ContentType is the MIME type of the report file
func (f OutputFormat) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Request is the part of the originating query that drives the export
type Request struct {
	ID           string       `json:"requestId"`
	Index        int          `json:"index"`
	DrugID       string       `json:"drugId"`
	DrugModelID  string       `json:"drugModelId"`
	OutputFormat OutputFormat `json:"outputFormat"`
	OutputLang   string       `json:"outputLang"`
}

// WarningLevel grades a validation warning
type WarningLevel int

const (
	WarningNormal WarningLevel = iota
	WarningCritical
)

func (l WarningLevel) String() string {
	if l == WarningCritical {
		return "critical"
	}
	return "normal"
}

// Validation is an advisory attached to a dose, sample or covariate.
// An empty Warning means the entity was checked and is fine.
type Validation struct {
	Warning string       `json:"warning,omitempty"`
	Level   WarningLevel `json:"level"`
}

// TargetEvaluation compares one predicted quantity with a target
type TargetEvaluation struct {
	Type           TargetType `json:"type"`
	ActiveMoietyID string     `json:"activeMoietyId"`
	Unit           string     `json:"unit"`
	Value          float64    `json:"value"`
	Score          float64    `json:"score"`
	Min            float64    `json:"min"`
	Best           float64    `json:"best"`
	Max            float64    `json:"max"`
	// Alarms are not always provided by the engine, see DrugModel.FindTarget
	InefficacyAlarm *float64 `json:"inefficacyAlarm,omitempty"`
	ToxicityAlarm   *float64 `json:"toxicityAlarm,omitempty"`
}

// CycleData is one predicted concentration curve. Times are hours since Start.
type CycleData struct {
	Start          time.Time `json:"start"`
	Times          []float64 `json:"times"`
	Concentrations []float64 `json:"concentrations"`
	Unit           string    `json:"unit"`
}

// CovariateValue is a covariate as used by the computation
type CovariateValue struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// AdjustmentCandidate is one proposed regimen
type AdjustmentCandidate struct {
	DosageHistory         DosageHistory
	Score                 float64
	Targets               []TargetEvaluation
	Cycles                []CycleData
	ComputationCovariates []CovariateValue
}

type ParameterValue struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// ParameterSet holds the PK parameters for the three computation regimes
type ParameterSet struct {
	Typical     []ParameterValue `json:"typical"`
	Apriori     []ParameterValue `json:"apriori"`
	Aposteriori []ParameterValue `json:"aposteriori"`
}

// Statistics summarise the predicted concentrations of the best candidate
type Statistics struct {
	AUC24    float64 `json:"auc24"`
	Peak     float64 `json:"peak"`
	Residual float64 `json:"residual"`
	Unit     string  `json:"unit"`
	AUCUnit  string  `json:"aucUnit"`
}

// ComputedResult is everything needed to produce one report. It is read-only
// during export except for the error slot.
type ComputedResult struct {
	ID              string
	Request         Request
	DrugModel       *DrugModel
	Treatment       *Treatment
	Admin           *AdminData
	Adjustments     []AdjustmentCandidate
	Parameters      ParameterSet
	Statistics      Statistics
	ComputationTime time.Time

	DoseValidations      map[DoseID]Validation
	CovariateValidations map[CovariateID]Validation
	SampleValidations    map[SampleID]Validation

	mu      sync.Mutex
	errMsg  string
	outputs []string
}

// CheckPreconditions reports what prevents any export
func (r *ComputedResult) CheckPreconditions() error {
	if r.Treatment == nil {
		return ErrNoTreatment
	}
	if r.DrugModel == nil {
		return ErrNoDrugModel
	}
	return nil
}

// SetError records the last export failure
func (r *ComputedResult) SetError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errMsg = msg
}

// ErrorMessage returns the last export failure, empty when none
func (r *ComputedResult) ErrorMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errMsg
}

// AddOutput records a produced file
func (r *ComputedResult) AddOutput(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, path)
}

// Outputs returns the files produced so far
func (r *ComputedResult) Outputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outputs...)
}

// BestCandidate returns the index of the highest scoring candidate, first on ties
func (r *ComputedResult) BestCandidate() (int, bool) {
	best := -1
	for i, c := range r.Adjustments {
		if best < 0 || c.Score > r.Adjustments[best].Score {
			best = i
		}
	}
	return best, best >= 0
}

// EnsureValidationMaps makes sure the three validation maps are allocated
func (r *ComputedResult) EnsureValidationMaps() {
	if r.DoseValidations == nil {
		r.DoseValidations = map[DoseID]Validation{}
	}
	if r.CovariateValidations == nil {
		r.CovariateValidations = map[CovariateID]Validation{}
	}
	if r.SampleValidations == nil {
		r.SampleValidations = map[SampleID]Validation{}
	}
}
