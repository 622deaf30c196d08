// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bellhop

import "fmt"

// Task is a solver run type, written as the run type code of the .env file.
type Task string

const (
	TaskEigenrays    Task = "E"
	TaskArrivals     Task = "A"
	TaskRays         Task = "R"
	TaskCoherent     Task = "C"
	TaskIncoherent   Task = "I"
	TaskSemicoherent Task = "S"
)

// Name is the label used in logs and metrics.
func (t Task) Name() string {
	switch t {
	case TaskEigenrays:
		return "eigenrays"
	case TaskArrivals:
		return "arrivals"
	case TaskRays:
		return "rays"
	case TaskCoherent:
		return "tloss_coherent"
	case TaskIncoherent:
		return "tloss_incoherent"
	case TaskSemicoherent:
		return "tloss_semicoherent"
	}
	return "unknown"
}

// OutputExt is the extension of the file the solver writes for t.
func (t Task) OutputExt() string {
	switch t {
	case TaskEigenrays, TaskRays:
		return ".ray"
	case TaskArrivals:
		return ".arr"
	default:
		return ".shd"
	}
}

// Mode selects how transmission loss combines beams.
type Mode string

const (
	ModeCoherent     Mode = "coherent"
	ModeIncoherent   Mode = "incoherent"
	ModeSemicoherent Mode = "semicoherent"
)

// Task maps a mode to its run type.
func (m Mode) Task() (Task, error) {
	switch m {
	case ModeCoherent:
		return TaskCoherent, nil
	case ModeIncoherent:
		return TaskIncoherent, nil
	case ModeSemicoherent:
		return TaskSemicoherent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
}
