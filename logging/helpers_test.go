package logging

import (
	"fmt"
	"os"
	"testing"

	"github.com/giygas/tdm-reports/config"
)

// ResetForTest installs a fresh logger writing under dir and closes it when the test ends
func ResetForTest(t testing.TB, dir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithRetentionAndSize(dir, env, logLevel, retentionWeeks, maxFileSize)
	t.Cleanup(func() {
		serviceMu.Lock()
		service := DefaultLoggingService
		DefaultLoggingService = nil
		serviceMu.Unlock()
		if err := service.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing test logger: %v\n", err)
		}
	})
}
