package secrets

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ValidationError represents a validation failure for required secrets.
type ValidationError struct {
	Missing []string
	Empty   []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Empty) > 0 {
		parts = append(parts, fmt.Sprintf("empty values for required environment variables: %s", strings.Join(e.Empty, ", ")))
	}
	return strings.Join(parts, "; ")
}

// ValidateRequired checks that all required secrets are non-blank.
// Returns a ValidationError listing offending keys in sorted order, nil otherwise.
func ValidateRequired(secrets map[string]string) error {
	var empty []string
	for key, value := range secrets {
		if strings.TrimSpace(value) == "" {
			empty = append(empty, key)
		}
	}
	if len(empty) == 0 {
		return nil
	}
	sort.Strings(empty)
	return &ValidationError{Empty: empty}
}

// ValidateEnv checks that each named environment variable is set and non-blank.
func ValidateEnv(keys ...string) error {
	var missing, empty []string
	for _, key := range keys {
		val, ok := os.LookupEnv(key)
		switch {
		case !ok:
			missing = append(missing, key)
		case strings.TrimSpace(val) == "":
			empty = append(empty, key)
		}
	}
	if len(missing) == 0 && len(empty) == 0 {
		return nil
	}
	return &ValidationError{Missing: missing, Empty: empty}
}
