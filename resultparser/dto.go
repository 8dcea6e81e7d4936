package resultparser

import (
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"
)

// document is the wire form of one computed result file. Several requests
// share the drug model, treatment and administrative data.
type document struct {
	ComputationTime time.Time           `json:"computationTime"`
	DrugModel       *entities.DrugModel `json:"drugModel"`
	Admin           *entities.AdminData `json:"admin"`
	Treatment       *treatmentDTO       `json:"treatment"`
	Requests        []requestDTO        `json:"requests"`
}

type treatmentDTO struct {
	DosageHistory []timeRangeDTO              `json:"dosageHistory"`
	Samples       []entities.Sample           `json:"samples"`
	Covariates    []entities.PatientCovariate `json:"covariates"`
}

type timeRangeDTO struct {
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Dosage *dosageDTO `json:"dosage"`
}

// dosageDTO is a tagged dosage node. Type selects which fields apply.
type dosageDTO struct {
	Type string `json:"type"`

	// single, lasting, daily, weekly
	Amount          float64 `json:"amount"`
	Unit            string  `json:"unit"`
	Route           string  `json:"route"`
	InfusionMinutes int     `json:"infusionMinutes"`
	Interval        string  `json:"interval"`
	Time            string  `json:"time"`
	Day             *int    `json:"day"`

	// repeat, loop, steadyState
	Iterations   int        `json:"iterations"`
	Child        *dosageDTO `json:"child"`
	LastDoseTime time.Time  `json:"lastDoseTime"`

	// sequence, parallel
	Children []dosageDTO `json:"children"`
	Offsets  []string    `json:"offsets"`
}

type requestDTO struct {
	ID           string `json:"id"`
	RequestID    string `json:"requestId"`
	Index        *int   `json:"index"`
	DrugID       string `json:"drugId"`
	DrugModelID  string `json:"drugModelId"`
	OutputFormat string `json:"outputFormat"`
	OutputLang   string `json:"outputLang"`

	Adjustments []adjustmentDTO       `json:"adjustments"`
	Parameters  entities.ParameterSet `json:"parameters"`
	Statistics  entities.Statistics   `json:"statistics"`
}

type adjustmentDTO struct {
	Score                 float64                     `json:"score"`
	DosageHistory         []timeRangeDTO              `json:"dosageHistory"`
	Targets               []entities.TargetEvaluation `json:"targets"`
	Cycles                []entities.CycleData        `json:"cycles"`
	ComputationCovariates []entities.CovariateValue   `json:"computationCovariates"`
}
