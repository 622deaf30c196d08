// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package plot

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ManuGH/arlpanel/internal/bellhop"
)

// ErrNoData is returned when a builder has nothing to draw.
var ErrNoData = errors.New("no data to plot")

// DefaultCLim is the transmission loss colour range in dB.
var DefaultCLim = [2]float64{-60, -30}

const (
	// Ranges beyond this are drawn in km.
	kmThreshold = 10000
	sspSamples  = 100
	// Heat maps are decimated to at most this many rows and columns.
	maxImageRows = 150
	maxImageCols = 300
)

func rangeScale(maxRange float64) (float64, string) {
	if maxRange > kmThreshold {
		return 1000, "Range (km)"
	}
	return 1, "Range (m)"
}

// Environment draws the surface, the bottom, the sources and the receiver
// grid. Depth is drawn downwards as negative values.
func Environment(env *bellhop.Env, title string) (*Figure, error) {
	if env == nil {
		return nil, ErrNoData
	}
	div, xlabel := rangeScale(env.MaxRange())
	f := newFigure(title, xlabel, "Depth (m)")
	addOutline(f, env, div)

	tx := Series{Kind: KindMarkers, Name: "source", Color: colorTx, Marker: MarkerStar}
	for _, d := range env.TxDepth {
		tx.X = append(tx.X, 0)
		tx.Y = append(tx.Y, -d)
	}
	f.add(tx)

	rx := Series{Kind: KindMarkers, Name: "receivers", Color: colorRx, Marker: MarkerCircle}
	for _, r := range env.RxRange {
		for _, d := range env.RxDepth {
			rx.X = append(rx.X, r/div)
			rx.Y = append(rx.Y, -d)
		}
	}
	f.add(rx)
	return f, nil
}

func addOutline(f *Figure, env *bellhop.Env, div float64) {
	maxR := env.MaxRange() / div

	surface := Series{Kind: KindLine, Name: "surface", Color: colorSurface, Width: 1}
	if env.Surface == nil {
		surface.X, surface.Y = []float64{0, maxR}, []float64{0, 0}
	} else {
		for _, p := range env.Surface {
			surface.X = append(surface.X, p.X/div)
			surface.Y = append(surface.Y, -p.Y)
		}
	}
	f.add(surface)

	bottom := Series{Kind: KindLine, Name: "bottom", Color: colorBottom, Width: 1}
	if env.Depth.IsConstant() {
		d := -env.Depth.Constant
		bottom.X, bottom.Y = []float64{0, maxR}, []float64{d, d}
	} else {
		for _, p := range env.Depth.Points {
			bottom.X = append(bottom.X, p.X/div)
			bottom.Y = append(bottom.Y, -p.Y)
		}
	}
	f.add(bottom)
}

// Rays draws each ray shaded by its bottom bounce count: rays with more
// bounces are lighter. env, when not nil, adds the surface and bottom.
func Rays(env *bellhop.Env, rays []bellhop.Ray, title string) (*Figure, error) {
	if len(rays) == 0 {
		return nil, ErrNoData
	}
	maxRange := 0.0
	maxBounces := 0
	for _, r := range rays {
		maxBounces = max(maxBounces, abs(r.BottomBounces))
		for _, p := range r.Points {
			maxRange = math.Max(maxRange, p.X)
		}
	}
	if env != nil {
		maxRange = math.Max(maxRange, env.MaxRange())
	}
	div, xlabel := rangeScale(maxRange)
	f := newFigure(title, xlabel, "Depth (m)")

	sorted := slices.Clone(rays)
	slices.SortStableFunc(sorted, func(a, b bellhop.Ray) int {
		return abs(b.BottomBounces) - abs(a.BottomBounces)
	})
	for _, r := range sorted {
		level := uint8(0)
		if maxBounces > 0 {
			level = uint8(255 * abs(r.BottomBounces) / maxBounces)
		}
		s := Series{Kind: KindLine, Color: grey(level), Width: 0.5}
		for _, p := range r.Points {
			s.X = append(s.X, p.X/div)
			s.Y = append(s.Y, -p.Y)
		}
		f.add(s)
	}
	if env != nil {
		addOutline(f, env, div)
	}
	return f, nil
}

// Arrivals draws one stem per arrival at its delay with height |amplitude|.
func Arrivals(arrivals []bellhop.Arrival, title string) (*Figure, error) {
	if len(arrivals) == 0 {
		return nil, ErrNoData
	}
	f := newFigure(title, "Arrival time (s)", "Amplitude")

	t0, t1 := math.Inf(1), math.Inf(-1)
	stems := Series{Kind: KindStems, Color: colorArrivals, Width: 1}
	for _, a := range arrivals {
		t0, t1 = math.Min(t0, a.Delay), math.Max(t1, a.Delay)
		stems.X = append(stems.X, a.Delay)
		stems.Y = append(stems.Y, a.Magnitude())
	}
	f.add(Series{Kind: KindLine, X: []float64{t0, t1}, Y: []float64{0, 0}, Color: colorArrivals, Width: 1})
	f.add(stems)
	return f, nil
}

// SoundSpeed draws the sound speed profile against depth. Spline profiles
// show the interpolated curve and the table points.
func SoundSpeed(env *bellhop.Env, title string) (*Figure, error) {
	if env == nil {
		return nil, ErrNoData
	}
	f := newFigure(title, "Soundspeed (m/s)", "Depth (m)")
	ssp := env.SoundSpeed

	if ssp.IsConstant() {
		f.add(Series{Kind: KindLine, X: []float64{ssp.Constant, ssp.Constant},
			Y: []float64{0, -env.MaxDepth()}, Color: colorSSP, Width: 1})
		return f, nil
	}

	pts := ssp.Points
	if env.SoundSpeedInterp != bellhop.InterpSpline {
		s := Series{Kind: KindLine, Color: colorSSP, Width: 1}
		for _, p := range pts {
			s.X = append(s.X, p.Y)
			s.Y = append(s.Y, -p.X)
		}
		f.add(s)
		return f, nil
	}

	curve := Series{Kind: KindLine, Color: colorSSP, Width: 1}
	z0, z1 := pts[0].X, pts[len(pts)-1].X
	for i := 0; i < sspSamples; i++ {
		z := z0 + (z1-z0)*float64(i)/float64(sspSamples-1)
		c, err := bellhop.InterpolateSoundSpeed(pts, env.SoundSpeedInterp, z)
		if err != nil {
			return nil, err
		}
		curve.X = append(curve.X, c)
		curve.Y = append(curve.Y, -z)
	}
	f.add(curve)

	dots := Series{Kind: KindMarkers, Color: colorSSP, Marker: MarkerDot}
	for _, p := range pts {
		dots.X = append(dots.X, p.Y)
		dots.Y = append(dots.Y, -p.X)
	}
	f.add(dots)
	return f, nil
}

// TransmissionLoss draws 20*log10|p| over the receiver grid with colour
// limits clim (DefaultCLim when nil).
func TransmissionLoss(env *bellhop.Env, field *bellhop.Field, clim *[2]float64, title string) (*Figure, error) {
	if field == nil || len(field.Depths) == 0 || len(field.Ranges) == 0 {
		return nil, ErrNoData
	}
	if len(field.Pressure) != len(field.Depths) {
		return nil, fmt.Errorf("pressure has %d rows for %d depths", len(field.Pressure), len(field.Depths))
	}
	lim := DefaultCLim
	if clim != nil {
		lim = *clim
	}
	if lim[0] >= lim[1] {
		return nil, fmt.Errorf("invalid colour limits [%g, %g]", lim[0], lim[1])
	}

	maxRange := field.Ranges[len(field.Ranges)-1]
	if env != nil {
		maxRange = math.Max(maxRange, env.MaxRange())
	}
	div, xlabel := rangeScale(maxRange)
	f := newFigure(title, xlabel, "Depth (m)")
	f.CLim = &lim

	rows := stride(len(field.Depths), maxImageRows)
	cols := stride(len(field.Ranges), maxImageCols)
	loss := field.LossDB()

	img := &Image{}
	for _, j := range cols {
		img.X = append(img.X, field.Ranges[j]/div)
	}
	// Rows are stored with Y increasing, so the deepest receiver comes first.
	for k := len(rows) - 1; k >= 0; k-- {
		i := rows[k]
		if len(loss[i]) != len(field.Ranges) {
			return nil, fmt.Errorf("pressure row %d has %d values for %d ranges", i, len(loss[i]), len(field.Ranges))
		}
		img.Y = append(img.Y, -field.Depths[i])
		row := make([]float64, len(cols))
		for c, j := range cols {
			v := loss[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = lim[0]
			}
			row[c] = v
		}
		img.Values = append(img.Values, row)
	}
	f.Image = img
	return f, nil
}

// stride picks evenly spaced indices of [0, n), about limit of them,
// always keeping the last one.
func stride(n, limit int) []int {
	step := (n + limit - 1) / limit
	if step < 1 {
		step = 1
	}
	var out []int
	for i := 0; i < n; i += step {
		out = append(out, i)
	}
	if out[len(out)-1] != n-1 {
		out = append(out, n-1)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
