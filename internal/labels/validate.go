package labels

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danieljhkim/watchguard/internal/stores"
)

// MaxLength is the longest label accepted, in characters.
const MaxLength = 50

// forbiddenChars may not appear in a label.
const forbiddenChars = "<>\"'&`\\/|"

// Validate trims raw and checks it against the label rules.
// It returns the trimmed label.
func Validate(raw string) (string, error) {
	label := strings.TrimSpace(raw)
	if label == "" {
		return "", fmt.Errorf("%w: label cannot be empty", stores.ErrInvalidInput)
	}
	if utf8.RuneCountInString(label) > MaxLength {
		return "", fmt.Errorf("%w: label cannot be longer than %d characters", stores.ErrInvalidInput, MaxLength)
	}
	if i := strings.IndexAny(label, forbiddenChars); i >= 0 {
		return "", fmt.Errorf("%w: label cannot contain '%c'", stores.ErrInvalidInput, label[i])
	}
	return label, nil
}

// normalizeInput trims raw for lookups. Unlike Validate it accepts labels
// that entered the registry through reconciliation without passing the
// character rules.
func normalizeInput(raw string) (string, error) {
	label := strings.TrimSpace(raw)
	if label == "" {
		return "", fmt.Errorf("%w: label cannot be empty", stores.ErrInvalidInput)
	}
	return label, nil
}
