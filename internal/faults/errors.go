package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrNotEnoughUnits = errors.New("not enough frames for worker count")
	ErrFleet          = errors.New("worker fleet failed")
	ErrMerge          = errors.New("merge failed")
	ErrIO             = errors.New("io error")
	ErrTimeout        = errors.New("timeout")
	ErrExternalTool   = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsConfiguration reports whether err belongs to the configuration class,
// which includes the not-enough-units precondition.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNotEnoughUnits)
}

// Class returns a short label for the marker carried by err.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotEnoughUnits):
		return "not_enough_units"
	case errors.Is(err, ErrConfiguration):
		return "config"
	case errors.Is(err, ErrFleet):
		return "fleet"
	case errors.Is(err, ErrMerge):
		return "merge"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "external"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "render failure"
	}
	return strings.Join(parts, ": ")
}
