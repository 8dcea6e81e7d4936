package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

// ReportPrefix is the key prefix of published reports
const ReportPrefix = "reports/"

// Publisher copies every produced report into a Store
type Publisher struct {
	store Store
}

// NewPublisher returns a publisher writing into store
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// KeyFor is the object key of a report file
func KeyFor(reportPath string) string {
	return path.Join(ReportPrefix, filepath.Base(reportPath))
}

// Publish uploads the report of a successful export. Failed exports and
// publishing errors are logged and never affect the export itself.
func (p *Publisher) Publish(ctx context.Context, result *entities.ComputedResult, outcome interfaces.ExportOutcome) {
	if !outcome.OK() || outcome.Path == "" {
		return
	}
	info, err := p.upload(ctx, result, outcome)
	if err != nil {
		logging.Warn("Failed to publish report", "result_id", result.ID, "file", filepath.Base(outcome.Path), "driver", p.store.Driver(), "error", err)
		return
	}
	logging.Debug("Report published", "key", info.Key, "size", info.Size, "driver", p.store.Driver())
}

func (p *Publisher) upload(ctx context.Context, result *entities.ComputedResult, outcome interfaces.ExportOutcome) (Info, error) {
	f, err := os.Open(outcome.Path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	return p.store.Put(ctx, KeyFor(outcome.Path), f, PutOptions{
		ContentType: outcome.Format.ContentType(),
		Metadata: map[string]string{
			"result-id": result.ID,
			"drug-id":   result.Request.DrugID,
			"index":     strconv.Itoa(result.Request.Index),
			"format":    string(outcome.Format),
		},
	})
}
