package errors

import (
	"strings"
	"testing"
)

func TestValidateElementKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "wall", false},
		{"valid underscore", "duct_trunk", false},
		{"valid hyphen", "pipe-riser", false},
		{"valid with digits", "zone2", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 65), true},
		{"uppercase", "Wall", true},
		{"leading digit", "2wall", true},
		{"space", "duct trunk", true},
		{"control char", "duct\x01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElementKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateElementKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateElementKind(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "plan.json", false},
		{"valid nested", "plans/floor2/plan.json", false},
		{"valid absolute", "/tmp/plan.json", false},
		{"valid with dots", "v1.2.3/plan.json", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 600), true},
		{"path traversal", "../../../etc/passwd", true},
		{"path traversal middle", "foo/../bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "7c9e6679-7425-40de-944b-e07fc1f90ae7", false},
		{"valid uppercase", "7C9E6679-7425-40DE-944B-E07FC1F90AE7", false},

		{"empty", "", true},
		{"missing dashes", "7c9e6679742540de944be07fc1f90ae7", true},
		{"wrong length", "7c9e6679-7425-40de-944b", true},
		{"non-hex", "7c9e6679-7425-40de-944b-e07fc1f90zzz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRunID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidDocument,
		ErrCodeInvalidOptions,
		ErrCodeInvalidConstraint,
		ErrCodeInvalidFormat,
		ErrCodeInvalidPath,
		ErrCodeNotFound,
		ErrCodeRunNotFound,
		ErrCodeFileNotFound,
		ErrCodeElementNotFound,
		ErrCodeOverConstrained,
		ErrCodeTimeout,
		ErrCodeStore,
		ErrCodeCache,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
