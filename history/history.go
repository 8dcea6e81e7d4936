// Package history keeps an audit trail of report exports.
package history

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

// Status of an export attempt
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ErrRecordNotFound is returned when no record matches
var ErrRecordNotFound = errors.New("export record not found")

// Record is one export attempt
type Record struct {
	ID         string                `json:"id"`
	ResultID   string                `json:"result_id"`
	DrugID     string                `json:"drug_id"`
	Index      int                   `json:"index"`
	Format     entities.OutputFormat `json:"format"`
	File       string                `json:"file,omitempty"`
	Status     Status                `json:"status"`
	Error      string                `json:"error,omitempty"`
	DurationMS int64                 `json:"duration_ms"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Filter narrows List. Zero values match everything; Limit 0 means no limit.
type Filter struct {
	ResultID string
	Status   Status
	Since    time.Time
	Limit    int
}

// Stats counts exports
type Stats struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

// FailureRatio is Failed/Total, 0 without exports
func (s Stats) FailureRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// Store persists export records. List returns the newest first.
type Store interface {
	Add(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
	Close() error
}

// NewRecord describes an export outcome
func NewRecord(result *entities.ComputedResult, outcome interfaces.ExportOutcome, at time.Time) Record {
	rec := Record{
		ID:         uuid.NewString(),
		ResultID:   result.ID,
		DrugID:     result.Request.DrugID,
		Index:      result.Request.Index,
		Format:     outcome.Format,
		Status:     StatusSuccess,
		DurationMS: outcome.Duration.Milliseconds(),
		CreatedAt:  at.UTC(),
	}
	if outcome.Path != "" {
		rec.File = filepath.Base(outcome.Path)
	}
	if outcome.Err != nil {
		rec.Status = StatusFailed
		rec.Error = outcome.Err.Error()
	}
	return rec
}

func (f Filter) matches(rec Record) bool {
	if f.ResultID != "" && rec.ResultID != f.ResultID {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
