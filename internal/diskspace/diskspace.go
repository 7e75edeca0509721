// Package diskspace checks that a download fits on the disk it is written to.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"
)

// SafetyMargin is applied to every requested size.
const SafetyMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// CheckAvailableSpace fails with an InsufficientSpaceError when the file
// system holding targetPath has less than requiredBytes times SafetyMargin
// free. targetPath need not exist, but its directory must. When the free
// space cannot be determined the check passes.
func CheckAvailableSpace(targetPath string, requiredBytes int64) error {
	available, ok := availableBytes(filepath.Dir(targetPath))
	if !ok {
		return nil
	}

	required := int64(float64(requiredBytes) * SafetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// GetAvailableSpace returns the free bytes on the file system holding path,
// or 0 if unknown.
func GetAvailableSpace(path string) int64 {
	available, _ := availableBytes(filepath.Dir(path))
	return available
}

// IsInsufficientSpaceError reports whether err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
