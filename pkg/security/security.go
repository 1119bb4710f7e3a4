// Package security provides validation, sanitization, and limits for the job runner.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/simple-job-runner/pkg/core"
)

// Security limits and configuration
const (
	// MaxTaskKindLength is the maximum length for task kind names
	MaxTaskKindLength = 255

	// MaxParamsSize is the maximum size in bytes for task parameters
	MaxParamsSize = 10240

	// MaxDescriptionLength is the maximum length of a job description
	MaxDescriptionLength = 1024

	// MaxConcurrency is the hard limit for pool workers
	MaxConcurrency = 1000

	// MaxQueueCapacity is the hard limit for a bounded queue
	MaxQueueCapacity = 1 << 20

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096
)

// validTaskKind matches alphanumeric, hyphens, underscores, and dots
var validTaskKind = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateTaskKind validates a task kind name
func ValidateTaskKind(kind string) error {
	if kind == "" {
		return core.ErrInvalidTaskKind
	}
	if len(kind) > MaxTaskKindLength {
		return core.ErrTaskKindTooLong
	}
	if !validTaskKind.MatchString(kind) {
		return core.ErrInvalidTaskKind
	}
	return nil
}

// ValidateJob checks the user-editable fields of a job before it is stored.
func ValidateJob(job *core.Job) error {
	if strings.TrimSpace(job.Description) == "" {
		return core.ErrEmptyDescription
	}
	if utf8.RuneCountInString(job.Description) > MaxDescriptionLength {
		return core.ErrDescriptionTooLong
	}
	if err := ValidateTaskKind(job.Kind); err != nil {
		return err
	}
	if len(job.Params) > MaxParamsSize {
		return core.ErrParamsTooLarge
	}
	if !job.Scheduling.Valid() {
		return core.ErrInvalidSchedule
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Drop control characters except common whitespace
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampConcurrency ensures the worker count is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// ClampCapacity ensures a queue capacity is within limits. Zero and negative
// values mean unbounded and are returned as zero.
func ClampCapacity(n int) int {
	if n <= 0 {
		return 0
	}
	if n > MaxQueueCapacity {
		return MaxQueueCapacity
	}
	return n
}
