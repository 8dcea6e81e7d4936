package validation

import (
	"strings"
	"testing"

	"github.com/giygas/tdm-reports/resultparser/entities"
)

func TestValidateInput(t *testing.T) {
	validator := NewDataValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Simple word", "rifampicin", false},
		{"Accents", "isoniazide éthambutol", false},
		{"Empty", "", true},
		{"Whitespace only", "   ", true},
		{"Too long", strings.Repeat("ab", 33), true},
		{"Script tag", "<script>alert(1)</script>", true},
		{"SQL injection", "x' or 1=1", true},
		{"Path traversal", "../etc/passwd", true},
		{"Only special chars", "!@#$%^&*()", true},
		{"Excessive repetition", "aaaaaaaaaaaa", true},
		{"Repetition at limit", "aaaaaaaaaa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInput(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateResultID(t *testing.T) {
	validator := NewDataValidator()

	valid := []string{"r1", "5f0c7a52-3c1e-4c39-9d4b-6a2e3b1f0c11", "patient_42"}
	for _, id := range valid {
		if got, err := validator.ValidateResultID(id); err != nil || got != id {
			t.Errorf("ValidateResultID(%q) = %q, %v", id, got, err)
		}
	}

	invalid := []string{"", " r1", "r/1", "r.1", strings.Repeat("x", 65)}
	for _, id := range invalid {
		if _, err := validator.ValidateResultID(id); err == nil {
			t.Errorf("Expected error for %q", id)
		}
	}
}

func TestValidateFormat(t *testing.T) {
	validator := NewDataValidator()

	for in, want := range map[string]entities.OutputFormat{"xml": entities.FormatXML, "HTML": entities.FormatHTML, " pdf ": entities.FormatPDF} {
		got, err := validator.ValidateFormat(in)
		if err != nil || got != want {
			t.Errorf("ValidateFormat(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "docx", "x ml"} {
		if _, err := validator.ValidateFormat(in); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestValidateReportName(t *testing.T) {
	validator := NewDataValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"XML report", "rifampicin_0_20240301T080000.000001.xml", false},
		{"PDF report", "ch-tucuxi-imatinib_12_20240301T080000.123456.pdf", false},
		{"Empty", "", true},
		{"Path", "../rifampicin_0_20240301T080000.000001.xml", true},
		{"Sub directory", "a/rifampicin_0_20240301T080000.000001.xml", true},
		{"Wrong extension", "rifampicin_0_20240301T080000.000001.exe", true},
		{"Missing index", "rifampicin_20240301T080000.000001.xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateReportName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReportName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
