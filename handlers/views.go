package handlers

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"
)

// resultSummary is the list view of a loaded result
type resultSummary struct {
	ID              string                `json:"id"`
	RequestID       string                `json:"request_id"`
	DrugID          string                `json:"drug_id"`
	Index           int                   `json:"index"`
	Format          entities.OutputFormat `json:"format"`
	Language        string                `json:"language"`
	ComputationTime time.Time             `json:"computation_time"`
	Exportable      bool                  `json:"exportable"`
	Adjustments     int                   `json:"adjustments"`
	Reports         []string              `json:"reports"`
	LastError       string                `json:"last_error,omitempty"`
}

// warningView is one validation warning attached to a result
type warningView struct {
	Kind    string `json:"kind"` // dose, sample or covariate
	ID      int    `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// resultDetail adds the model and the validation warnings
type resultDetail struct {
	resultSummary
	DrugModelID string        `json:"drug_model_id,omitempty"`
	Samples     int           `json:"samples"`
	Covariates  int           `json:"covariates"`
	BestScore   *float64      `json:"best_score,omitempty"`
	Warnings    []warningView `json:"warnings"`
}

func summarize(r *entities.ComputedResult) resultSummary {
	reports := []string{}
	for _, p := range r.Outputs() {
		reports = append(reports, filepath.Base(p))
	}
	return resultSummary{
		ID:              r.ID,
		RequestID:       r.Request.ID,
		DrugID:          r.Request.DrugID,
		Index:           r.Request.Index,
		Format:          r.Request.OutputFormat,
		Language:        r.Request.OutputLang,
		ComputationTime: r.ComputationTime,
		Exportable:      r.CheckPreconditions() == nil,
		Adjustments:     len(r.Adjustments),
		Reports:         reports,
		LastError:       r.ErrorMessage(),
	}
}

func detail(r *entities.ComputedResult) resultDetail {
	d := resultDetail{resultSummary: summarize(r), Warnings: []warningView{}}
	if r.DrugModel != nil {
		d.DrugModelID = r.DrugModel.ID
	}
	if r.Treatment != nil {
		d.Samples = len(r.Treatment.Samples)
		d.Covariates = len(r.Treatment.Covariates)
	}
	if best, ok := r.BestCandidate(); ok {
		score := r.Adjustments[best].Score
		d.BestScore = &score
	}

	for id, v := range r.DoseValidations {
		if v.Warning != "" {
			d.Warnings = append(d.Warnings, warningView{"dose", int(id), v.Level.String(), v.Warning})
		}
	}
	for id, v := range r.SampleValidations {
		if v.Warning != "" {
			d.Warnings = append(d.Warnings, warningView{"sample", int(id), v.Level.String(), v.Warning})
		}
	}
	for id, v := range r.CovariateValidations {
		if v.Warning != "" {
			d.Warnings = append(d.Warnings, warningView{"covariate", int(id), v.Level.String(), v.Warning})
		}
	}
	sort.Slice(d.Warnings, func(i, j int) bool {
		if d.Warnings[i].Kind != d.Warnings[j].Kind {
			return d.Warnings[i].Kind < d.Warnings[j].Kind
		}
		return d.Warnings[i].ID < d.Warnings[j].ID
	})
	return d
}
