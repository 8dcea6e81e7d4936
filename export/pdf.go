package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/tdm-reports/logging"
)

// Margins in millimetres
type Margins struct {
	Top, Bottom, Left, Right int
}

// ReportMargins are applied to every PDF report
var ReportMargins = Margins{Top: 8, Bottom: 8, Left: 0, Right: 0}

// Converter turns an HTML file into a PDF file
type Converter interface {
	Convert(ctx context.Context, htmlPath, pdfPath string, margins Margins) error
}

// ConversionError carries the converter exit status
type ConversionError struct {
	Code   int
	Output string
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("PDF conversion failed with code %d", e.Code)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// WkhtmltopdfConverter runs the wkhtmltopdf binary
type WkhtmltopdfConverter struct {
	Path    string
	Timeout time.Duration
}

// NewWkhtmltopdfConverter returns a converter for the binary at path
func NewWkhtmltopdfConverter(path string, timeout time.Duration) *WkhtmltopdfConverter {
	if path == "" {
		path = "wkhtmltopdf"
	}
	return &WkhtmltopdfConverter{Path: path, Timeout: timeout}
}

// Available reports whether the binary can be found
func (c *WkhtmltopdfConverter) Available() bool {
	_, err := exec.LookPath(c.Path)
	return err == nil
}

// Convert implements Converter
func (c *WkhtmltopdfConverter) Convert(ctx context.Context, htmlPath, pdfPath string, m Margins) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := []string{
		"--quiet",
		"--encoding", "utf-8",
		"--enable-local-file-access",
		"--margin-top", strconv.Itoa(m.Top),
		"--margin-bottom", strconv.Itoa(m.Bottom),
		"--margin-left", strconv.Itoa(m.Left),
		"--margin-right", strconv.Itoa(m.Right),
		htmlPath,
		pdfPath,
	}

	start := time.Now()
	out, err := exec.CommandContext(ctx, c.Path, args...).CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("PDF conversion aborted after %s: %w", time.Since(start).Round(time.Millisecond), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ConversionError{Code: exitErr.ExitCode(), Output: strings.TrimSpace(string(out))}
		}
		return fmt.Errorf("failed to run %s: %w", c.Path, err)
	}

	logging.Debug("PDF conversion finished", "pdf", pdfPath, "duration", time.Since(start))
	return nil
}

// writePDF renders the HTML to a temporary file next to dest and converts
// it. The temporary file is always removed.
func writePDF(ctx context.Context, conv Converter, html []byte, dest string, tmpDir string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(tmpDir, "report-*.html")
	if err != nil {
		return fmt.Errorf("failed to create temporary HTML file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove temporary HTML file", "path", tmpPath, "error", err)
		}
	}()

	if _, err := tmp.Write(html); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary HTML file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary HTML file: %w", err)
	}

	return conv.Convert(ctx, tmpPath, dest, ReportMargins)
}
