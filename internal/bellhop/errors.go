// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bellhop

import "errors"

var (
	// ErrInvalidEnv wraps every environment validation failure.
	ErrInvalidEnv = errors.New("invalid environment")
	// ErrUnknownKey is returned by CreateEnv2D for keys it does not know.
	ErrUnknownKey = errors.New("unknown key")
	// ErrSolverNotFound is returned when the solver binary cannot be located.
	ErrSolverNotFound = errors.New("solver binary not found")
	// ErrSolverFailed is returned when the solver exits non-zero or reports a fatal error.
	ErrSolverFailed = errors.New("solver failed")
	// ErrSolverTimeout is returned when a run exceeds its deadline.
	ErrSolverTimeout = errors.New("solver timed out")
	// ErrNoOutput is returned when the solver did not produce the expected file.
	ErrNoOutput = errors.New("solver produced no output")
	// ErrBadOutput is returned when a solver output file cannot be parsed.
	ErrBadOutput = errors.New("malformed solver output")
	// ErrUnknownMode is returned for an unsupported transmission loss mode.
	ErrUnknownMode = errors.New("unknown transmission loss mode")
)
