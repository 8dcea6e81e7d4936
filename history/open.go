package history

import (
	"context"
	"strings"
	"time"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

// Open picks a store from the DSN: empty or "memory" keeps records in
// memory, postgres:// URLs use Postgres, anything else is a SQLite path.
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := NewPostgresStore(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Recorder writes one record per export
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder returns a recorder backed by store
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record stores the outcome. Storage errors are logged only.
func (r *Recorder) Record(ctx context.Context, result *entities.ComputedResult, outcome interfaces.ExportOutcome) {
	rec := NewRecord(result, outcome, r.now())
	// the export may have been cancelled, the record is still wanted
	if err := r.store.Add(context.WithoutCancel(ctx), rec); err != nil {
		logging.Warn("Failed to record export", "result_id", result.ID, "error", err)
	}
}
