// Package export renders computed results as XML, HTML or PDF report files.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/projection"
	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

// Compile-time check to ensure Printer implements ReportExporter interface
var _ interfaces.ReportExporter = (*Printer)(nil)

// Hook observes every export, successful or not
type Hook func(ctx context.Context, result *entities.ComputedResult, outcome interfaces.ExportOutcome)

// Options configure a Printer
type Options struct {
	OutputDir    string
	TempDir      string // defaults to OutputDir
	Translations translation.Provider
	Converter    Converter
	Hooks        []Hook
}

// Printer dispatches a result to the renderer of its output format. It holds
// no per-export state and may be used concurrently.
type Printer struct {
	namer        *FileNamer
	tmpDir       string
	translations translation.Provider
	converter    Converter
	hooks        []Hook
	now          func() time.Time
}

// NewPrinter creates a printer writing into opts.OutputDir
func NewPrinter(opts Options) (*Printer, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Translations == nil {
		return nil, fmt.Errorf("translations are required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmpDir := opts.TempDir
	if tmpDir == "" {
		tmpDir = opts.OutputDir
	}
	return &Printer{
		namer:        NewFileNamer(opts.OutputDir),
		tmpDir:       tmpDir,
		translations: opts.Translations,
		converter:    opts.Converter,
		hooks:        opts.Hooks,
		now:          time.Now,
	}, nil
}

// AddHook registers an observer. Not safe once exports are running.
func (p *Printer) AddHook(h Hook) {
	p.hooks = append(p.hooks, h)
}

// OutputDir is where reports are written
func (p *Printer) OutputDir() string {
	return p.namer.Dir()
}

// Export implements ReportExporter
func (p *Printer) Export(ctx context.Context, result *entities.ComputedResult) interfaces.ExportOutcome {
	return p.ExportAs(ctx, result, result.Request.OutputFormat)
}

// ExportAs implements ReportExporter. Failures are recorded on the result
// and leave no file behind.
func (p *Printer) ExportAs(ctx context.Context, result *entities.ComputedResult, format entities.OutputFormat) (outcome interfaces.ExportOutcome) {
	start := time.Now()
	outcome = interfaces.ExportOutcome{ResultID: result.ID, Format: format}

	var path string
	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("report rendering panicked: %v", r)
		}
		outcome.Duration = time.Since(start)

		if outcome.Err != nil {
			if path != "" {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					logging.Warn("Failed to remove partial report", "path", path, "error", err)
				}
			}
			outcome.Path = ""
			result.SetError(outcome.Err.Error())
			logging.Error("Report export failed", "result_id", result.ID, "format", format, "error", outcome.Err)
		} else {
			// a success supersedes an earlier failure
			result.SetError("")
			result.AddOutput(outcome.Path)
			logging.Info("Report exported", "result_id", result.ID, "format", format, "file", filepath.Base(outcome.Path), "duration", outcome.Duration)
		}

		for _, h := range p.hooks {
			h(ctx, result, outcome)
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}
	if err := result.CheckPreconditions(); err != nil {
		outcome.Err = err
		return outcome
	}
	if _, err := entities.ParseOutputFormat(string(format)); err != nil {
		outcome.Err = err
		return outcome
	}

	tr := p.translations.For(result.Request.OutputLang)

	report, err := projection.Build(projection.BuildContext{
		Result:      result,
		Translator:  tr,
		GeneratedAt: p.now(),
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	path = p.namer.Path(result.Request.DrugID, result.Request.Index, format)

	switch format {
	case entities.FormatXML:
		outcome.Err = p.writeXML(report, path)
	case entities.FormatHTML:
		outcome.Err = p.writeHTML(report, tr, path)
	case entities.FormatPDF:
		outcome.Err = p.writePDF(ctx, report, tr, path)
	}
	if outcome.Err == nil {
		outcome.Path = path
	}
	return outcome
}

func (p *Printer) writeXML(report *projection.Report, path string) error {
	data, err := RenderXML(report)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func (p *Printer) writeHTML(report *projection.Report, tr translation.Translator, path string) error {
	data, err := RenderHTML(report, tr)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func (p *Printer) writePDF(ctx context.Context, report *projection.Report, tr translation.Translator, path string) error {
	if p.converter == nil {
		return errors.New("no PDF converter configured")
	}
	data, err := RenderHTML(report, tr)
	if err != nil {
		return err
	}
	return writePDF(ctx, p.converter, data, path, p.tmpDir)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
