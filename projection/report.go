package projection

import (
	"time"

	"github.com/giygas/tdm-reports/posology"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

// Placeholder replaces every absent optional value in rendered text
const Placeholder = "-"

// Report is the format-agnostic view of one computed result. Text fields
// are translated and formatted, structured fields keep raw values for XML.
type Report struct {
	Header                Header
	Drug                  DrugInfo
	Mandator              *Contact
	Patient               *Contact
	ClinicalData          []KeyValue
	Covariates            []CovariateRow
	Treatment             TreatmentView
	Samples               []SampleRow
	Adjustments           []AdjustmentView
	BestAdjustment        int // -1 without candidates
	Targets               []TargetView
	Parameters            []ParameterRow
	Predictions           PredictionView
	ComputationCovariates []ComputationCovariateRow
	Graph                 []GraphSeries
}

// HasAdjustments reports whether at least one candidate was proposed
func (r *Report) HasAdjustments() bool {
	return len(r.Adjustments) > 0
}

type Header struct {
	Title           string
	Intro           string
	Language        string
	GeneratedAt     time.Time
	GeneratedOn     string
	ComputationTime time.Time
	ComputedOn      string
}

type DrugInfo struct {
	DrugID          string
	DrugModelID     string
	Name            string
	ActiveSubstance string
	ATC             string
	Brands          string
	BrandList       []string
	Description     string
	Author          string
}

// Contact is a mandator or a patient. Structured parts are nil when absent,
// their text counterparts hold Placeholder.
type Contact struct {
	ID        string
	Title     string
	FirstName string
	LastName  string
	FullName  string

	Address *entities.Address
	Phone   *entities.Phone
	Email   *entities.Email

	AddressText string
	PhoneText   string
	EmailText   string

	Institute *InstituteView
}

type InstituteView struct {
	ID          string
	Name        string
	Address     *entities.Address
	Phone       *entities.Phone
	Email       *entities.Email
	AddressText string
	PhoneText   string
	EmailText   string
}

type KeyValue struct {
	Key   string
	Value string
}

// CovariateRow is one patient covariate observation
type CovariateRow struct {
	ID           string
	Name         string
	Date         time.Time
	DateText     string
	Value        string // raw input value
	DisplayValue string
	Unit         string
	DataType     string
	Warning      string
	WarningLevel entities.WarningLevel
}

type TreatmentView struct {
	LastDose     *LastDoseView
	LastDoseText string
	TimeRanges   []TimeRangeView
}

type LastDoseView struct {
	Amount     float64
	Unit       string
	Route      entities.Route
	RouteLabel string
	Date       time.Time
	Text       string
}

// TimeRangeView is a flattened time range with its displayed bounds
type TimeRangeView struct {
	posology.TimeRangeRecord
	StartText string
	EndText   string
}

type SampleRow struct {
	ID             entities.SampleID
	ExternalID     string
	Date           time.Time
	DateText       string
	AnalyteID      string
	Value          float64
	ValueText      string
	Unit           string
	Percentile     *float64
	PercentileText string
	Warning        string
	WarningLevel   entities.WarningLevel
}

type AdjustmentView struct {
	Index      int
	Best       bool
	Score      float64
	ScoreText  string
	TimeRanges []TimeRangeView
	Targets    []TargetView
}

// TargetView is one target evaluation with its bounds and alarms
type TargetView struct {
	ActiveMoietyID  string
	ActiveMoiety    string
	Type            entities.TargetType
	TypeLabel       string
	Unit            string
	Value           float64
	ValueText       string
	Score           float64
	ScoreText       string
	Min             float64
	MinText         string
	Best            float64
	BestText        string
	Max             float64
	MaxText         string
	InefficacyAlarm *float64
	InefficacyText  string
	ToxicityAlarm   *float64
	ToxicityText    string
}

// ParameterRow holds one PK parameter across the three regimes. Text
// fields hold Placeholder where a regime has no value.
type ParameterRow struct {
	ID          string
	Unit        string
	Typical     *float64
	Apriori     *float64
	Aposteriori *float64

	TypicalText     string
	AprioriText     string
	AposterioriText string
}

type PredictionView struct {
	AUC24        float64
	Peak         float64
	Residual     float64
	Unit         string
	AUCUnit      string
	AUC24Text    string
	PeakText     string
	ResidualText string
}

type ComputationCovariateRow struct {
	ID        string
	Name      string
	Value     float64
	ValueText string
	Unit      string
}

// GraphSeries is one predicted curve. Times and Concentrations are comma
// joined numbers injected as-is into the chart script.
type GraphSeries struct {
	Label          string
	Adjustment     int
	Cycle          int
	Best           bool
	Start          time.Time
	Unit           string
	Times          string
	Concentrations string
}
