// Package validation checks job form input before it is sent to the job server.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starexec/jobview/internal/constants"
)

var (
	// primitiveName is the character class the server accepts for names of
	// jobs, solvers and benchmarks.
	primitiveName = regexp.MustCompile(`^[\w\-\.\+\^\s]+$`)

	// primitiveDescription rejects markup and quoting characters.
	primitiveDescription = regexp.MustCompile(`^[^<>"'%;)(&\\+]+$`)
)

// ErrRequired marks an empty mandatory field.
var ErrRequired = errors.New("required")

// FieldError reports an invalid form field.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// JobForm is the user-editable part of a job.
type JobForm struct {
	Name             string
	Description      string
	CPUTimeout       int // seconds
	WallclockTimeout int // seconds
	QueueID          int
}

// Validate checks every field and returns all problems joined.
func (f JobForm) Validate() error {
	return errors.Join(
		ValidateJobName(f.Name),
		ValidateDescription(f.Description),
		ValidateTimeout("cpu timeout", f.CPUTimeout),
		ValidateTimeout("wallclock timeout", f.WallclockTimeout),
		ValidateQueue(f.QueueID),
	)
}

// ValidateJobName checks a job name.
func ValidateJobName(name string) error {
	const field = "name"
	if strings.TrimSpace(name) == "" {
		return &FieldError{Field: field, Message: "enter a job name", Err: ErrRequired}
	}
	n := utf8.RuneCountInString(name)
	if n < constants.MinJobNameLength {
		return &FieldError{Field: field, Message: fmt.Sprintf("%d characters minimum", constants.MinJobNameLength)}
	}
	if n > constants.MaxJobNameLength {
		return &FieldError{Field: field, Message: fmt.Sprintf("%d characters maximum", constants.MaxJobNameLength)}
	}
	if !primitiveName.MatchString(name) {
		return &FieldError{Field: field, Message: "invalid character(s)"}
	}
	return nil
}

// ValidateDescription checks a job description.
func ValidateDescription(desc string) error {
	const field = "description"
	if strings.TrimSpace(desc) == "" {
		return &FieldError{Field: field, Message: "enter a job description", Err: ErrRequired}
	}
	if utf8.RuneCountInString(desc) > constants.MaxJobDescriptionLength {
		return &FieldError{Field: field, Message: fmt.Sprintf("%d characters maximum", constants.MaxJobDescriptionLength)}
	}
	if !primitiveDescription.MatchString(desc) {
		return &FieldError{Field: field, Message: "invalid character(s)"}
	}
	return nil
}

// ValidateTimeout checks a CPU or wallclock timeout in seconds.
func ValidateTimeout(field string, seconds int) error {
	if seconds == 0 {
		return &FieldError{Field: field, Message: "enter a timeout", Err: ErrRequired}
	}
	if seconds < 0 {
		return &FieldError{Field: field, Message: "timeout must be positive"}
	}
	if seconds > constants.MaxTimeoutSeconds {
		return &FieldError{Field: field, Message: "3 day max timeout"}
	}
	return nil
}

// ValidateQueue checks that a worker queue was chosen.
func ValidateQueue(queueID int) error {
	if queueID <= 0 {
		return &FieldError{Field: "queue", Message: "no worker queue selected", Err: ErrRequired}
	}
	return nil
}
