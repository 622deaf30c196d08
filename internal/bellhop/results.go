// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bellhop

import (
	"math"
	"math/cmplx"
)

// Ray is one traced ray; each point is (range m, depth m).
type Ray struct {
	DepartureAngle float64 `json:"departure_angle"`
	SurfaceBounces int     `json:"surface_bounces"`
	BottomBounces  int     `json:"bottom_bounces"`
	Points         []Point `json:"points"`
}

// Arrival is one multipath arrival at a receiver.
type Arrival struct {
	TxDepthIndex   int        `json:"tx_depth_ndx"`
	RxDepthIndex   int        `json:"rx_depth_ndx"`
	RxRangeIndex   int        `json:"rx_range_ndx"`
	TxDepth        float64    `json:"tx_depth"`
	RxDepth        float64    `json:"rx_depth"`
	RxRange        float64    `json:"rx_range"`
	Number         int        `json:"arrival_number"`
	Amplitude      complex128 `json:"-"`
	Delay          float64    `json:"time_of_arrival"`
	DelayImag      float64    `json:"time_of_arrival_imag"`
	DepartureAngle float64    `json:"angle_of_departure"`
	ArrivalAngle   float64    `json:"angle_of_arrival"`
	SurfaceBounces int        `json:"surface_bounces"`
	BottomBounces  int        `json:"bottom_bounces"`
}

// Magnitude is |Amplitude|.
func (a Arrival) Magnitude() float64 {
	return cmplx.Abs(a.Amplitude)
}

// Field is a complex pressure field sampled on a receiver grid.
// Pressure is indexed [depth][range].
type Field struct {
	Depths   []float64
	Ranges   []float64
	Pressure [][]complex128
}

// LossDB returns 20*log10(|p|) per cell, floored at machine epsilon.
func (f *Field) LossDB() [][]float64 {
	out := make([][]float64, len(f.Pressure))
	for i, row := range f.Pressure {
		out[i] = make([]float64, len(row))
		for j, p := range row {
			out[i][j] = 20 * math.Log10(epsilon+cmplx.Abs(p))
		}
	}
	return out
}

const epsilon = 2.220446049250313e-16
