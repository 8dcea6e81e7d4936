// Package interfaces defines the core abstractions of the report service
// to keep the packages testable and loosely coupled.
package interfaces

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

// DataQualityReport summarises issues found across the loaded results
type DataQualityReport struct {
	DuplicateResultIDs       []string
	ResultsWithoutTreatment  int
	ResultsWithoutDrugModel  int
	ResultsWithoutSamples    int
	DosesWithWarnings        int
	SamplesWithWarnings      int
	CovariatesWithWarnings   int
	CandidatesWithoutTargets int
}

// DataStore defines the contract for the in-memory result store.
// Reads are lock-free snapshots, writers replace whole snapshots.
type DataStore interface {
	GetResults() []*entities.ComputedResult
	GetResult(id string) (*entities.ComputedResult, bool)
	GetLastUpdated() time.Time
	GetServerStartTime() time.Time
	IsUpdating() bool

	// AddResults merges results into the store, replacing those with the same ID
	AddResults(results []*entities.ComputedResult)
	RemoveResult(id string) bool
	BeginUpdate() bool
	EndUpdate()
}

// Parser defines the contract for reading computed result documents
type Parser interface {
	// Parse decodes one document. It may contain several requests, each
	// becoming one result.
	Parse(r io.Reader) ([]*entities.ComputedResult, error)

	// ParseFile is Parse on a file path
	ParseFile(path string) ([]*entities.ComputedResult, error)
}

// Scheduler defines the contract for background jobs
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler defines the contract for the HTTP endpoints
type HTTPHandler interface {
	ListResults(w http.ResponseWriter, r *http.Request)
	GetResult(w http.ResponseWriter, r *http.Request)
	UploadResult(w http.ResponseWriter, r *http.Request)
	ExportResult(w http.ResponseWriter, r *http.Request)
	ListExports(w http.ResponseWriter, r *http.Request)
	DownloadReport(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health reporting
type HealthChecker interface {
	// HealthCheck returns the status, its details and the HTTP code to answer with
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextScan() time.Time
}

// DataValidator defines the contract for result validation and input checks
type DataValidator interface {
	// ValidateResult checks the structural integrity of a parsed result
	ValidateResult(r *entities.ComputedResult) error

	// Annotate fills the dose, covariate and sample validation maps
	Annotate(r *entities.ComputedResult, tr translation.Translator) error

	// ReportDataQuality generates a quality report over all results
	ReportDataQuality(results []*entities.ComputedResult) *DataQualityReport

	// ValidateInput validates free-form user input
	ValidateInput(input string) error

	// ValidateResultID validates a result identifier from a URL
	ValidateResultID(input string) (string, error)

	// ValidateFormat validates a requested output format
	ValidateFormat(input string) (entities.OutputFormat, error)

	// ValidateReportName validates a report file name from a URL
	ValidateReportName(input string) (string, error)
}

// ReportExporter defines the contract for producing report files
type ReportExporter interface {
	// Export renders result in its requested format. Failures are recorded
	// on the result and returned as an ExportOutcome, never panics.
	Export(ctx context.Context, result *entities.ComputedResult) ExportOutcome

	// ExportAs renders result in format, ignoring the requested one
	ExportAs(ctx context.Context, result *entities.ComputedResult, format entities.OutputFormat) ExportOutcome
}

// ExportOutcome is the result of one export call
type ExportOutcome struct {
	ResultID string
	Format   entities.OutputFormat
	Path     string // empty on failure
	Duration time.Duration
	Err      error
}

// OK reports a successful export
func (o ExportOutcome) OK() bool {
	return o.Err == nil
}
