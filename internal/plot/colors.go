// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package plot

import (
	"fmt"
	"image/color"
	"strconv"
)

const (
	colorSurface  = "#1e90ff"
	colorBottom   = "#cd853f"
	colorTx       = "#ff4500"
	colorRx       = "#191970"
	colorSSP      = "#1f77b4"
	colorArrivals = "#1f77b4"
)

func grey(level uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", level, level, level)
}

// parseColor decodes "#rrggbb"; anything else is black.
func parseColor(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return color.Black
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.Black
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
