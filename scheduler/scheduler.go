// Package scheduler runs the background jobs of the report service: the
// inbox scan that imports and exports computed results, and the cleanup of
// expired report files.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/tdm-reports/ingest"
	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Options configure the jobs
type Options struct {
	InputDir      string
	OutputDir     string
	ScanInterval  time.Duration
	RetentionDays int // 0 keeps reports forever
}

// ScanReport summarises one inbox scan
type ScanReport struct {
	Files         int
	BadFiles      int
	Results       int
	Rejected      int
	Exported      int
	ExportsFailed int
}

// Scheduler handles inbox scans and report cleanup using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	parser    interfaces.Parser
	validator interfaces.DataValidator
	pipeline  *ingest.Pipeline
	opts      Options
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, parser interfaces.Parser, validator interfaces.DataValidator, pipeline *ingest.Pipeline, opts Options) *Scheduler {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		dataStore: dataStore,
		parser:    parser,
		validator: validator,
		pipeline:  pipeline,
		opts:      opts,
		scheduler: gocron.NewScheduler(time.Local),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Start runs a first scan, then schedules the periodic jobs
func (s *Scheduler) Start() error {
	for _, dir := range []string{s.opts.InputDir, s.processedPath(""), s.failedPath("")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if _, err := s.scanInbox(s.ctx); err != nil {
		logging.Error("Failed to perform initial inbox scan", "error", err)
		return fmt.Errorf("initial inbox scan failed: %w", err)
	}

	_, err := s.scheduler.Every(s.opts.ScanInterval).WaitForSchedule().Do(func() {
		if _, err := s.scanInbox(s.ctx); err != nil {
			logging.Error("Failed to scan inbox", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule inbox scans", "error", err)
		return fmt.Errorf("failed to schedule inbox scans: %w", err)
	}

	if s.opts.RetentionDays > 0 {
		// Daily cleanup at 03:00
		_, err = s.scheduler.Every(1).Day().At("03:00").Do(func() {
			if _, err := s.cleanupReports(); err != nil {
				logging.Error("Failed to clean up reports", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule report cleanup: %w", err)
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and aborts a running scan between exports
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

func (s *Scheduler) processedPath(name string) string {
	return filepath.Join(s.opts.InputDir, processedDir, name)
}

func (s *Scheduler) failedPath(name string) string {
	return filepath.Join(s.opts.InputDir, failedDir, name)
}

// pendingFiles lists the JSON documents waiting in the inbox, oldest name first
func (s *Scheduler) pendingFiles() ([]string, error) {
	entries, err := os.ReadDir(s.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// scanInbox imports every pending document, exports its results and moves it
// out of the inbox
func (s *Scheduler) scanInbox(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	// Prevent concurrent scans
	if !s.dataStore.BeginUpdate() {
		logging.Info("Inbox scan already in progress, skipping...")
		return report, nil
	}
	defer s.dataStore.EndUpdate()

	files, err := s.pendingFiles()
	if err != nil {
		return report, err
	}
	if len(files) == 0 {
		return report, nil
	}

	start := s.now()
	logging.Info("Starting inbox scan", "files", len(files))

	for _, name := range files {
		if ctx.Err() != nil {
			logging.Warn("Inbox scan interrupted", "remaining", len(files)-report.Files)
			break
		}
		report.Files++
		path := filepath.Join(s.opts.InputDir, name)

		results, err := s.parser.ParseFile(path)
		if err != nil {
			report.BadFiles++
			logging.Error("Failed to parse result document", "file", name, "error", err)
			s.move(path, s.failedPath(name))
			continue
		}
		report.Results += len(results)

		admitted, err := s.pipeline.Admit(results)
		if err != nil {
			report.Rejected += len(results) - len(admitted)
			logging.Warn("Some results were rejected", "file", name, "error", err)
		}

		for _, outcome := range s.pipeline.ExportAll(ctx, admitted) {
			if outcome.OK() {
				report.Exported++
			} else {
				report.ExportsFailed++
			}
		}

		s.move(path, s.processedPath(name))
	}

	s.logDataQuality()

	logging.Info("Inbox scan completed",
		"duration", s.now().Sub(start).String(),
		"files", report.Files,
		"bad_files", report.BadFiles,
		"results", report.Results,
		"rejected", report.Rejected,
		"exported", report.Exported,
		"export_failures", report.ExportsFailed,
	)
	return report, nil
}

// move renames src to dst, suffixing dst when the name is taken
func (s *Scheduler) move(src, dst string) {
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(dst)
		dst = fmt.Sprintf("%s.%s%s", strings.TrimSuffix(dst, ext), s.now().Format("20060102T150405.000000"), ext)
	}
	if err := os.Rename(src, dst); err != nil {
		logging.Error("Failed to move result document", "from", src, "to", dst, "error", err)
	}
}

func (s *Scheduler) logDataQuality() {
	report := s.validator.ReportDataQuality(s.dataStore.GetResults())

	if report.ResultsWithoutTreatment > 0 || report.ResultsWithoutDrugModel > 0 {
		logging.Warn("Results that cannot be exported",
			"without_treatment", report.ResultsWithoutTreatment,
			"without_drug_model", report.ResultsWithoutDrugModel,
		)
	}

	if report.ResultsWithoutSamples > 0 {
		logging.Info("Results computed without samples", "count", report.ResultsWithoutSamples)
	}

	if report.CandidatesWithoutTargets > 0 {
		logging.Warn("Adjustment candidates without target evaluations", "count", report.CandidatesWithoutTargets)
	}

	if n := report.DosesWithWarnings + report.SamplesWithWarnings + report.CovariatesWithWarnings; n > 0 {
		logging.Info("Validation warnings attached to results",
			"doses", report.DosesWithWarnings,
			"samples", report.SamplesWithWarnings,
			"covariates", report.CovariatesWithWarnings,
		)
	}
}

// cleanupReports deletes report files older than the retention period
func (s *Scheduler) cleanupReports() (int, error) {
	if s.opts.RetentionDays <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(s.opts.OutputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.opts.RetentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.opts.OutputDir, e.Name())
			if err := os.Remove(path); err != nil {
				logging.Warn("Failed to remove expired report", "file", e.Name(), "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		logging.Info("Expired reports removed", "count", removed, "retention_days", s.opts.RetentionDays)
	}
	return removed, nil
}
