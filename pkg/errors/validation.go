package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateElementKind validates an element kind identifier as it appears in
// documents and layer rules.
//
// The validation rules are intentionally conservative:
//   - No empty kinds
//   - No control characters
//   - Maximum length of 64 characters
//   - Lowercase identifier characters only
func ValidateElementKind(kind string) error {
	if kind == "" {
		return New(ErrCodeInvalidInput, "element kind cannot be empty")
	}

	if len(kind) > 64 {
		return New(ErrCodeInvalidInput, "element kind too long (max 64 characters)")
	}

	for _, r := range kind {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "element kind contains invalid control characters")
		}
	}

	if !elementKindRegex.MatchString(kind) {
		return New(ErrCodeInvalidInput, "invalid element kind: %q", kind)
	}

	return nil
}

// elementKindRegex matches kind identifiers like "wall", "duct_trunk", "pipe-riser".
var elementKindRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidatePath validates a file path for input documents and output artifacts.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	// Check for path traversal
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	// No backslashes (potential Windows path injection)
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// runIDRegex matches canonical UUID run identifiers.
var runIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateRunID validates a run identifier as used by the run archive and API.
func ValidateRunID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "run id cannot be empty")
	}

	if !runIDRegex.MatchString(strings.ToLower(id)) {
		return New(ErrCodeInvalidInput, "invalid run id: %q", id)
	}

	return nil
}
