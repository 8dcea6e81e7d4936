// Package validation checks parsed results, computes dose, covariate and
// sample warnings, and validates user input for the HTTP API.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

var (
	// Input validation: alphanumeric + French accents + safe punctuation
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'àâäéèêëïîôöùûüÿç]+$`)

	resultIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

	// <drugId>_<index>_<timestamp>.<ext>
	reportNameRegex = regexp.MustCompile(`^[A-Za-z0-9\-]+_\d+_\d{8}T\d{6}\.\d{6}\.(xml|html|pdf)$`)

	// Substring checks, cheaper than regexes for these
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateInput validates free-form user input
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > 64 {
		return fmt.Errorf("input too long: maximum 64 characters")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces, hyphens, apostrophes, periods, plus sign, and common French accented characters are allowed")
	}

	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateResultID accepts UUIDs and other short slug identifiers
func (v *DataValidatorImpl) ValidateResultID(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("result id cannot be empty")
	}
	if input != strings.TrimSpace(input) {
		return "", fmt.Errorf("result id contains whitespace")
	}
	if !resultIDRegex.MatchString(input) {
		return "", fmt.Errorf("result id must be 1-64 letters, digits, '-' or '_'")
	}
	return input, nil
}

// ValidateFormat validates a requested output format
func (v *DataValidatorImpl) ValidateFormat(input string) (entities.OutputFormat, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("format cannot be empty")
	}
	return entities.ParseOutputFormat(input)
}

// ValidateReportName only accepts names produced by the export file namer
func (v *DataValidatorImpl) ValidateReportName(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("report name cannot be empty")
	}
	if filepath.Base(input) != input {
		return "", fmt.Errorf("report name must not contain a path")
	}
	if !reportNameRegex.MatchString(input) {
		return "", fmt.Errorf("invalid report name %q", input)
	}
	return input, nil
}

// hasExcessiveRepetition reports the same byte repeated more than 10 times in a row
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	run := 1
	for i := 1; i < len(input); i++ {
		if input[i] == input[i-1] {
			run++
			if run > 10 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
