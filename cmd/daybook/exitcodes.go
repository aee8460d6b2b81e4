package main

import (
	"errors"

	"github.com/daybook/daybook/internal/domain"
)

// Exit codes for the CLI
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitConfigError      = 2
	ExitValidationFailed = 3
	ExitNotFound         = 4
	ExitDatabaseError    = 5
	ExitConflict         = 6
)

// configError marks failures to load or validate daybook.toml.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

// exitCodeFor maps an error returned by a command to a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cfgErr configError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case domain.ErrCodeValidationFailed:
			return ExitValidationFailed
		case domain.ErrCodeNotFound:
			return ExitNotFound
		case domain.ErrCodeConflict:
			return ExitConflict
		case domain.ErrCodeDatabaseError:
			return ExitDatabaseError
		}
	}
	return ExitGeneralError
}
