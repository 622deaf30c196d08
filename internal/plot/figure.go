// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package plot builds the panel figures from solver results and renders
// them to SVG. A Figure is a plain data model; the browser draws the JSON
// form and the export bundle uses the SVG form.
package plot

import "math"

// Default figure size in pixels.
const (
	DefaultWidth  = 600
	DefaultHeight = 350
)

// Kind is the drawing primitive of a Series.
type Kind string

const (
	KindLine    Kind = "line"
	KindMarkers Kind = "markers"
	// KindStems draws a vertical segment from y=0 to each Y at X.
	KindStems Kind = "stems"
)

// Marker shapes.
const (
	MarkerCircle = "circle"
	MarkerStar   = "star"
	MarkerDot    = "dot"
)

// Series is one drawn data set.
type Series struct {
	Kind   Kind      `json:"kind"`
	Name   string    `json:"name,omitempty"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	Color  string    `json:"color"`
	Width  float64   `json:"width,omitempty"`
	Marker string    `json:"marker,omitempty"`
}

// Image is a regularly sampled scalar field. Values is indexed [row][col]
// where rows follow Y and columns follow X.
type Image struct {
	X      []float64   `json:"x"`
	Y      []float64   `json:"y"`
	Values [][]float64 `json:"values"`
}

// Figure is a titled 2D plot.
type Figure struct {
	Title       string      `json:"title"`
	XLabel      string      `json:"x_label,omitempty"`
	YLabel      string      `json:"y_label,omitempty"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	XRange      *[2]float64 `json:"x_range,omitempty"`
	YRange      *[2]float64 `json:"y_range,omitempty"`
	Series      []Series    `json:"series,omitempty"`
	Image       *Image      `json:"image,omitempty"`
	CLim        *[2]float64 `json:"clim,omitempty"`
	Placeholder bool        `json:"placeholder"`
}

func newFigure(title, xlabel, ylabel string) *Figure {
	return &Figure{
		Title:  title,
		XLabel: xlabel,
		YLabel: ylabel,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
}

// Placeholder is the empty figure shown when a step fails.
func Placeholder(title string) *Figure {
	f := newFigure(title, "", "")
	f.Placeholder = true
	return f
}

func (f *Figure) add(s Series) {
	f.Series = append(f.Series, s)
}

// Bounds returns the data extent over all series and the image.
func (f *Figure) Bounds() (xmin, xmax, ymin, ymax float64, ok bool) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	grow := func(xs, ys []float64) {
		for _, x := range xs {
			xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
		}
		for _, y := range ys {
			ymin, ymax = math.Min(ymin, y), math.Max(ymax, y)
		}
	}
	for _, s := range f.Series {
		grow(s.X, s.Y)
		if s.Kind == KindStems {
			grow(nil, []float64{0})
		}
	}
	if f.Image != nil {
		grow(f.Image.X, f.Image.Y)
	}
	ok = xmin <= xmax && ymin <= ymax
	return
}
