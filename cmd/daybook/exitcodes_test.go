package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/daybook/daybook/internal/domain"
)

func TestExitCodes_Unique(t *testing.T) {
	codes := []int{
		ExitSuccess,
		ExitGeneralError,
		ExitConfigError,
		ExitValidationFailed,
		ExitNotFound,
		ExitDatabaseError,
		ExitConflict,
	}

	seen := make(map[int]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate exit code: %d", code)
		}
		seen[code] = true
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"config", configError{errors.New("bad toml")}, ExitConfigError},
		{"validation", domain.NewFieldValidationError("from", "is required"), ExitValidationFailed},
		{"not found", domain.NewNotFoundError("recurrence", "rec-1"), ExitNotFound},
		{"wrapped conflict", fmt.Errorf("adopt: %w", domain.NewConflictError("already linked", nil)), ExitConflict},
		{"database", domain.NewDatabaseError(errors.New("disk I/O")), ExitDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, expected %d", tt.err, got, tt.want)
			}
		})
	}
}
