package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/giygas/tdm-reports/config"
)

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

// Close releases the log file
func (s *LoggingService) Close() error {
	if s == nil || s.rotator == nil {
		return nil
	}
	return s.rotator.Close()
}

var (
	DefaultLoggingService *LoggingService
	serviceMu             sync.Mutex
)

// parseLogLevel maps a LOG_LEVEL value to a slog level, info when unknown
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level. Tests stay quiet unless verbose,
// whatever LOG_LEVEL says.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if logLevel != "" {
		return parseLogLevel(logLevel)
	}
	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel is always debug, the file is the full record
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// InitLogger initializes the global logger with default retention
func InitLogger(logDir string) {
	InitLoggerWithRetentionAndSize(logDir, config.EnvDevelopment, "", 4, 100*1024*1024)
}

// InitLoggerWithRetentionAndSize replaces the global logger. When the log
// directory cannot be used the logger degrades to console only.
func InitLoggerWithRetentionAndSize(logDir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	verbose := os.Getenv("TEST_VERBOSE") == "true"
	consoleLevel := GetConsoleLogLevel(env, logLevel, verbose)

	service := &LoggingService{}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		service.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: consoleLevel}))
		service.Logger.Error("Failed to create logs directory", "dir", logDir, "error", err)
	} else {
		rl := NewRotatingLoggerWithSizeLimit(logDir, retentionWeeks, maxFileSize)
		rl.mu.Lock()
		err = rl.rotate(getWeekKey(time.Now()), false)
		rl.mu.Unlock()
		if err != nil {
			service.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: consoleLevel}))
			service.Logger.Error("Failed to initialize rotating logger", "error", err)
		} else {
			rl.startCleanup(24 * time.Hour)
			service.rotator = rl
			service.Logger = slog.New(newHandler(rl, consoleLevel, GetFileLogLevel()))
		}
	}

	serviceMu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = service
	serviceMu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	slog.SetDefault(service.Logger)
}

// InitLoggerWithConfig initializes the global logger from the app configuration
func InitLoggerWithConfig(logDir string, cfg *config.Config) {
	InitLoggerWithRetentionAndSize(logDir, cfg.Env, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
}

func current() *slog.Logger {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if DefaultLoggingService == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if l := current(); l != nil {
		l.Info(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	if l := current(); l != nil {
		l.Error(msg, args...)
		return
	}
	fallback(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if l := current(); l != nil {
		l.Warn(msg, args...)
		return
	}
	fallback(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if l := current(); l != nil {
		l.Debug(msg, args...)
		return
	}
	fallback(slog.LevelDebug).Debug(msg, args...)
}
