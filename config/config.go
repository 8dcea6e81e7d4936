// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment the service runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short names and their long aliases
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	InputDir        string
	OutputDir       string
	TranslationsDir string // Extra dictionaries loaded on top of the embedded ones
	DefaultLanguage string

	PDFConverterPath     string
	PDFConversionTimeout time.Duration

	OutputRetentionDays int
	InboxScanInterval   time.Duration

	BlobDriver      string // "", fs, memory or s3
	BlobFSRoot      string
	BlobS3Bucket    string
	BlobS3Region    string
	BlobS3Endpoint  string
	BlobS3PathStyle bool

	HistoryDSN string // sqlite path, postgres URL or empty for memory
}

// LoadDotEnv loads a .env file when present. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		InputDir:        getEnvWithDefault("INPUT_DIR", "inbox"),
		OutputDir:       getEnvWithDefault("OUTPUT_DIR", "reports"),
		TranslationsDir: getEnvWithDefault("TRANSLATIONS_DIR", ""),
		DefaultLanguage: getEnvWithDefault("DEFAULT_LANGUAGE", "en"),

		PDFConverterPath:     getEnvWithDefault("PDF_CONVERTER_PATH", "wkhtmltopdf"),
		PDFConversionTimeout: getDurationEnvWithDefault("PDF_CONVERSION_TIMEOUT", 60*time.Second),

		OutputRetentionDays: getIntEnvWithDefault("OUTPUT_RETENTION_DAYS", 30),
		InboxScanInterval:   getDurationEnvWithDefault("INBOX_SCAN_INTERVAL", 5*time.Minute),

		BlobDriver:      strings.ToLower(getEnvWithDefault("BLOB_DRIVER", "")),
		BlobFSRoot:      getEnvWithDefault("BLOB_FS_ROOT", "blobs"),
		BlobS3Bucket:    getEnvWithDefault("BLOB_S3_BUCKET", ""),
		BlobS3Region:    getEnvWithDefault("BLOB_S3_REGION", "us-east-1"),
		BlobS3Endpoint:  getEnvWithDefault("BLOB_S3_ENDPOINT", ""),
		BlobS3PathStyle: getEnvWithDefault("BLOB_S3_PATH_STYLE", "false") == "true",

		HistoryDSN: getEnvWithDefault("HISTORY_DSN", ""),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(string(cfg.Env)); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateDirectory(cfg.InputDir, "INPUT_DIR"); err != nil {
		return fmt.Errorf("invalid INPUT_DIR: %w", err)
	}

	if err := validateDirectory(cfg.OutputDir, "OUTPUT_DIR"); err != nil {
		return fmt.Errorf("invalid OUTPUT_DIR: %w", err)
	}

	if err := validateLanguage(cfg.DefaultLanguage); err != nil {
		return fmt.Errorf("invalid DEFAULT_LANGUAGE: %w", err)
	}

	if err := validateTimeout(cfg.PDFConversionTimeout, "PDF_CONVERSION_TIMEOUT", time.Second, 30*time.Minute); err != nil {
		return fmt.Errorf("invalid PDF_CONVERSION_TIMEOUT: %w", err)
	}

	if err := validateTimeout(cfg.InboxScanInterval, "INBOX_SCAN_INTERVAL", 10*time.Second, 24*time.Hour); err != nil {
		return fmt.Errorf("invalid INBOX_SCAN_INTERVAL: %w", err)
	}

	if cfg.OutputRetentionDays <= 0 || cfg.OutputRetentionDays > 3650 {
		return fmt.Errorf("invalid OUTPUT_RETENTION_DAYS: must be between 1 and 3650, got: %d", cfg.OutputRetentionDays)
	}

	if err := validateBlobDriver(cfg); err != nil {
		return fmt.Errorf("invalid BLOB_DRIVER: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Reports carry patient data, only private ranges are accepted
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env string) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []Environment{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}
	for _, validEnv := range validEnvs {
		if Environment(strings.ToLower(env)) == validEnv {
			return nil
		}
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func validateDirectory(dir, configName string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%s cannot be empty", configName)
	}
	if strings.ContainsRune(dir, 0) {
		return fmt.Errorf("%s contains a null byte", configName)
	}
	return nil
}

func validateLanguage(lang string) error {
	if len(lang) != 2 {
		return fmt.Errorf("DEFAULT_LANGUAGE must be a two letter code, got: %q", lang)
	}
	for _, r := range lang {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("DEFAULT_LANGUAGE must be lowercase letters, got: %q", lang)
		}
	}
	return nil
}

func validateTimeout(d time.Duration, configName string, min, max time.Duration) error {
	if d < min || d > max {
		return fmt.Errorf("%s must be between %s and %s, got: %s", configName, min, max, d)
	}
	return nil
}

func validateBlobDriver(cfg *Config) error {
	switch cfg.BlobDriver {
	case "", "memory":
		return nil
	case "fs":
		if cfg.BlobFSRoot == "" {
			return fmt.Errorf("BLOB_FS_ROOT is required for the fs driver")
		}
		return nil
	case "s3":
		if cfg.BlobS3Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET is required for the s3 driver")
		}
		return nil
	default:
		return fmt.Errorf("BLOB_DRIVER must be one of: [fs memory s3], got: %s", cfg.BlobDriver)
	}
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go durations ("90s") or plain seconds ("90")
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"INPUT_DIR",
		"OUTPUT_DIR",
		"TRANSLATIONS_DIR",
		"DEFAULT_LANGUAGE",
		"PDF_CONVERTER_PATH",
		"PDF_CONVERSION_TIMEOUT",
		"OUTPUT_RETENTION_DAYS",
		"INBOX_SCAN_INTERVAL",
		"BLOB_DRIVER",
		"BLOB_FS_ROOT",
		"BLOB_S3_BUCKET",
		"BLOB_S3_REGION",
		"BLOB_S3_ENDPOINT",
		"BLOB_S3_PATH_STYLE",
		"HISTORY_DSN",
	}
}
