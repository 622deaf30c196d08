// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Format is an output image format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ErrUnsupportedFormat is returned for formats other than svg and png.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// pixel converts screen pixels to vg lengths at 96 dpi.
const pixel = vg.Inch / 96

const paletteSize = 64

// Render draws f in the given format to w.
func Render(f *Figure, format Format, w io.Writer) error {
	if format != FormatSVG && format != FormatPNG {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	p, err := build(f)
	if err != nil {
		return err
	}
	width, height := f.Width, f.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	wt, err := p.WriterTo(vg.Length(width)*pixel, vg.Length(height)*pixel, string(format))
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SVG renders f as an SVG document.
func SVG(f *Figure) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(f, FormatSVG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func build(f *Figure) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = f.Title
	p.Title.TextStyle.Color = color.Black
	p.X.Label.Text = f.XLabel
	p.Y.Label.Text = f.YLabel
	p.Add(plotter.NewGrid())

	if f.Placeholder {
		p.HideAxes()
		return p, nil
	}

	if f.Image != nil {
		hm, err := heatMap(f.Image, f.CLim)
		if err != nil {
			return nil, err
		}
		p.Add(hm)
	}

	for i, s := range f.Series {
		if len(s.X) != len(s.Y) {
			return nil, fmt.Errorf("series %d: %d x values for %d y values", i, len(s.X), len(s.Y))
		}
		if len(s.X) == 0 {
			continue
		}
		items, err := seriesPlotters(s)
		if err != nil {
			return nil, fmt.Errorf("series %d: %w", i, err)
		}
		p.Add(items...)
		if s.Name != "" {
			if th, ok := items[0].(gplot.Thumbnailer); ok {
				p.Legend.Add(s.Name, th)
			}
		}
	}

	if f.XRange != nil {
		p.X.Min, p.X.Max = f.XRange[0], f.XRange[1]
	}
	if f.YRange != nil {
		p.Y.Min, p.Y.Max = f.YRange[0], f.YRange[1]
	}
	return p, nil
}

func seriesPlotters(s Series) ([]gplot.Plotter, error) {
	c := parseColor(s.Color)
	width := vg.Points(s.Width)
	if width <= 0 {
		width = vg.Points(1)
	}

	switch s.Kind {
	case KindLine:
		l, err := plotter.NewLine(xys(s.X, s.Y))
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = c
		l.LineStyle.Width = width
		return []gplot.Plotter{l}, nil

	case KindMarkers:
		sc, err := plotter.NewScatter(xys(s.X, s.Y))
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = c
		sc.GlyphStyle.Radius = vg.Points(3)
		switch s.Marker {
		case MarkerStar:
			sc.GlyphStyle.Shape = draw.CrossGlyph{}
			sc.GlyphStyle.Radius = vg.Points(4)
		case MarkerDot:
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(1.5)
		default:
			sc.GlyphStyle.Shape = draw.RingGlyph{}
		}
		return []gplot.Plotter{sc}, nil

	case KindStems:
		out := make([]gplot.Plotter, 0, len(s.X))
		for i := range s.X {
			l, err := plotter.NewLine(plotter.XYs{{X: s.X[i], Y: 0}, {X: s.X[i], Y: s.Y[i]}})
			if err != nil {
				return nil, err
			}
			l.LineStyle.Color = c
			l.LineStyle.Width = width
			out = append(out, l)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown series kind %q", s.Kind)
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X, pts[i].Y = x[i], y[i]
	}
	return pts
}

// grid adapts an Image to plotter.GridXYZ; columns follow X.
type grid struct{ img *Image }

func (g grid) Dims() (c, r int)   { return len(g.img.X), len(g.img.Y) }
func (g grid) Z(c, r int) float64 { return g.img.Values[r][c] }
func (g grid) X(c int) float64    { return g.img.X[c] }
func (g grid) Y(r int) float64    { return g.img.Y[r] }

func heatMap(img *Image, clim *[2]float64) (*plotter.HeatMap, error) {
	if len(img.Values) != len(img.Y) {
		return nil, fmt.Errorf("image has %d rows for %d y values", len(img.Values), len(img.Y))
	}
	for i, row := range img.Values {
		if len(row) != len(img.X) {
			return nil, fmt.Errorf("image row %d has %d values for %d x values", i, len(row), len(img.X))
		}
	}
	if len(img.X) < 2 || len(img.Y) < 2 {
		return nil, fmt.Errorf("%w: image needs at least 2x2 samples", ErrNoData)
	}

	pal := palette.Heat(paletteSize, 1)
	hm := plotter.NewHeatMap(grid{img}, pal)
	if clim != nil {
		hm.Min, hm.Max = clim[0], clim[1]
	}
	colors := pal.Colors()
	hm.Underflow = colors[0]
	hm.Overflow = colors[len(colors)-1]
	return hm, nil
}
