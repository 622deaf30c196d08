// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldSessionID = "session_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldTask      = "task"
	FieldSlot      = "slot"

	// Parameter fields
	FieldParam  = "param"
	FieldPreset = "preset"
	FieldTheme  = "theme"

	// Solver fields
	FieldSolverBin = "solver_bin"
	FieldWorkDir   = "work_dir"
	FieldExitCode  = "exit_code"

	// Path fields
	FieldPath = "path"
)
