// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package panel

import "strings"

// LogHeader is the first line of every command log.
const LogHeader = "Command output:"

// MaxLogLines caps the lines kept after the header. Older lines are
// dropped first.
const MaxLogLines = 1000

// CommandLog is the text log shown next to the plots. A line is appended
// only when it differs from the previously appended line.
type CommandLog struct {
	lines []string
	// dropped counts lines trimmed from the front; marks stay absolute.
	dropped int
	max     int
	last    string
	// started is false until the first Add; the header never counts as a
	// previous line.
	started bool
}

// NewCommandLog returns a log holding only the header.
func NewCommandLog() *CommandLog {
	return &CommandLog{lines: []string{LogHeader}, max: MaxLogLines}
}

// Add appends line unless it repeats the previous one. It reports whether
// the line was appended.
func (l *CommandLog) Add(line string) bool {
	if l.started && line == l.last {
		return false
	}
	l.lines = append(l.lines, line)
	l.last = line
	l.started = true
	if over := len(l.lines) - 1 - l.max; l.max > 0 && over > 0 {
		l.lines = append(l.lines[:1], l.lines[1+over:]...)
		l.dropped += over
	}
	return true
}

// Lines returns a copy of all lines including the header.
func (l *CommandLog) Lines() []string {
	return append([]string(nil), l.lines...)
}

// Mark returns a position for Since.
func (l *CommandLog) Mark() int {
	return l.dropped + len(l.lines)
}

// Since returns the lines appended after mark that are still retained.
func (l *CommandLog) Since(mark int) []string {
	i := mark - l.dropped
	if i < 1 {
		i = 1
	}
	if i >= len(l.lines) {
		return nil
	}
	return append([]string(nil), l.lines[i:]...)
}

// String renders the log as the panel shows it.
func (l *CommandLog) String() string {
	return strings.Join(l.lines, "\n")
}
