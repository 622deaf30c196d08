// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bellhop drives the external Bellhop acoustic propagation solver.
// It validates 2D environments, writes the solver input files, runs the
// binary under supervision and parses the ray, arrival and shade outputs.
package bellhop

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/ManuGH/arlpanel/internal/validate"
	"gonum.org/v1/gonum/interp"
)

// Interpolation names.
const (
	InterpSpline        = "spline"
	InterpLinear        = "linear"
	InterpQuadrilateral = "quadrilateral"
	InterpCurvilinear   = "curvilinear"
)

// Point is one row of a two-column table. For bathymetry and altimetry X
// is range and Y is depth (m); for the sound speed profile X is depth (m)
// and Y is speed (m/s); for beam patterns X is angle (deg) and Y is level (dB).
type Point struct {
	X, Y float64
}

// Profile is either a constant or a table.
type Profile struct {
	Constant float64
	Points   []Point
}

// IsConstant reports whether the profile has no table.
func (p Profile) IsConstant() bool {
	return len(p.Points) == 0
}

// MaxY returns the constant or the largest table value.
func (p Profile) MaxY() float64 {
	if p.IsConstant() {
		return p.Constant
	}
	m := math.Inf(-1)
	for _, pt := range p.Points {
		m = math.Max(m, pt.Y)
	}
	return m
}

func (p Profile) clone() Profile {
	return Profile{Constant: p.Constant, Points: slices.Clone(p.Points)}
}

// Env is a validated 2D underwater environment.
type Env struct {
	Name             string
	Type             string
	Frequency        float64
	SoundSpeed       Profile
	SoundSpeedInterp string
	BottomSoundSpeed float64
	BottomDensity    float64
	BottomAbsorption float64
	BottomRoughness  float64
	Surface          []Point
	SurfaceInterp    string
	TxDepth          []float64
	TxDirectionality []Point
	RxDepth          []float64
	RxRange          []float64
	Depth            Profile
	DepthInterp      string
	MinAngle         float64
	MaxAngle         float64
	NBeams           int
}

// DefaultEnv returns the solver defaults used for keys that are not given.
func DefaultEnv() Env {
	return Env{
		Name:             "arlpy",
		Type:             "2D",
		Frequency:        25000,
		SoundSpeed:       Profile{Constant: 1500},
		SoundSpeedInterp: InterpSpline,
		BottomSoundSpeed: 1600,
		BottomDensity:    1600,
		BottomAbsorption: 0.1,
		BottomRoughness:  0,
		SurfaceInterp:    InterpLinear,
		TxDepth:          []float64{5},
		RxDepth:          []float64{10},
		RxRange:          []float64{1000},
		Depth:            Profile{Constant: 25},
		DepthInterp:      InterpLinear,
		MinAngle:         -80,
		MaxAngle:         80,
	}
}

// Clone returns a deep copy.
func (e *Env) Clone() *Env {
	c := *e
	c.SoundSpeed = e.SoundSpeed.clone()
	c.Depth = e.Depth.clone()
	c.Surface = slices.Clone(e.Surface)
	c.TxDirectionality = slices.Clone(e.TxDirectionality)
	c.TxDepth = slices.Clone(e.TxDepth)
	c.RxDepth = slices.Clone(e.RxDepth)
	c.RxRange = slices.Clone(e.RxRange)
	return &c
}

// MaxDepth is the deepest point of the water column.
func (e *Env) MaxDepth() float64 {
	return e.Depth.MaxY()
}

// MaxRange is the farthest receiver range.
func (e *Env) MaxRange() float64 {
	return maxOf(e.RxRange)
}

// CreateEnv2D builds an environment from a parameter dictionary. Missing
// keys take DefaultEnv values. Values may be float64, []float64, [][]float64,
// string or nil. The result is checked with CheckEnv and its sound speed
// profile is cut at the water depth.
func CreateEnv2D(values map[string]any) (*Env, error) {
	env := DefaultEnv()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := env.set(k, values[k]); err != nil {
			return nil, err
		}
	}
	if err := CheckEnv(&env); err != nil {
		return nil, err
	}
	if err := env.fitSoundSpeed(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnv, err)
	}
	return &env, nil
}

func (e *Env) set(key string, v any) error {
	var err error
	switch key {
	case "name":
		e.Name, err = asString(key, v)
	case "type":
		e.Type, err = asString(key, v)
	case "frequency":
		e.Frequency, err = asFloat(key, v)
	case "soundspeed":
		e.SoundSpeed, err = asProfile(key, v)
	case "soundspeed_interp":
		e.SoundSpeedInterp, err = asString(key, v)
	case "bottom_soundspeed":
		e.BottomSoundSpeed, err = asFloat(key, v)
	case "bottom_density":
		e.BottomDensity, err = asFloat(key, v)
	case "bottom_absorption":
		e.BottomAbsorption, err = asFloat(key, v)
	case "bottom_roughness":
		e.BottomRoughness, err = asFloat(key, v)
	case "surface":
		e.Surface, err = asTable(key, v)
	case "surface_interp":
		e.SurfaceInterp, err = asString(key, v)
	case "tx_depth":
		e.TxDepth, err = asVector(key, v)
	case "tx_directionality":
		e.TxDirectionality, err = asTable(key, v)
	case "rx_depth":
		e.RxDepth, err = asVector(key, v)
	case "rx_range":
		e.RxRange, err = asVector(key, v)
	case "depth":
		e.Depth, err = asProfile(key, v)
	case "depth_interp":
		e.DepthInterp, err = asString(key, v)
	case "min_angle":
		e.MinAngle, err = asFloat(key, v)
	case "max_angle":
		e.MaxAngle, err = asFloat(key, v)
	case "nbeams":
		var f float64
		f, err = asFloat(key, v)
		e.NBeams = int(f)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return err
}

// CheckEnv validates e against the preconditions of the solver.
func CheckEnv(e *Env) error {
	v := validate.New()

	if e.Type != "2D" {
		v.AddError("type", "Not a 2D environment", e.Type)
	}
	v.Positive("frequency", e.Frequency)
	v.Positive("bottom_soundspeed", e.BottomSoundSpeed)
	v.Positive("bottom_density", e.BottomDensity)
	v.NonNegative("bottom_absorption", e.BottomAbsorption)
	v.NonNegative("bottom_roughness", e.BottomRoughness)

	if len(e.RxRange) == 0 {
		v.AddError("rx_range", "at least one receiver range is required", e.RxRange)
	}
	for _, r := range e.RxRange {
		if r < 0 {
			v.AddError("rx_range", "receiver ranges cannot be negative", r)
			break
		}
	}
	maxRange := e.MaxRange()

	if e.Surface != nil {
		checkRangeTable(v, "surface", e.Surface, maxRange)
		v.OneOf("surface_interp", e.SurfaceInterp, []string{InterpCurvilinear, InterpLinear})
	}

	if e.Depth.IsConstant() {
		v.Positive("depth", e.Depth.Constant)
	} else {
		checkRangeTable(v, "depth", e.Depth.Points, maxRange)
		for _, p := range e.Depth.Points {
			if p.Y <= 0 {
				v.AddError("depth", "depths must be positive", p.Y)
				break
			}
		}
		v.OneOf("depth_interp", e.DepthInterp, []string{InterpCurvilinear, InterpLinear})
	}
	maxDepth := e.MaxDepth()

	v.OneOf("soundspeed_interp", e.SoundSpeedInterp, []string{InterpSpline, InterpLinear, InterpQuadrilateral})
	if e.SoundSpeed.IsConstant() {
		v.Positive("soundspeed", e.SoundSpeed.Constant)
	} else {
		ssp := e.SoundSpeed.Points
		if len(ssp) < 2 {
			v.AddError("soundspeed", "soundspeed must be a scalar or an Nx2 array", len(ssp))
		} else {
			if len(ssp) <= 3 && e.SoundSpeedInterp == InterpSpline {
				v.AddError("soundspeed", "soundspeed profile must have at least 4 points for spline interpolation", len(ssp))
			}
			if ssp[0].X > 0 {
				v.AddError("soundspeed", "First depth in soundspeed array must be 0 m", ssp[0].X)
			}
			if last := ssp[len(ssp)-1].X; last < maxDepth {
				v.AddError("soundspeed", fmt.Sprintf("Last depth in soundspeed array must be beyond water depth: %g m", maxDepth), last)
			}
			if !strictlyIncreasing(ssp) {
				v.AddError("soundspeed", "Soundspeed array must be strictly monotonic in depth", nil)
			}
			for _, p := range ssp {
				if p.Y <= 0 {
					v.AddError("soundspeed", "sound speeds must be positive", p.Y)
					break
				}
			}
		}
	}

	if len(e.TxDepth) == 0 {
		v.AddError("tx_depth", "at least one transmitter depth is required", e.TxDepth)
	}
	checkDepths(v, "tx_depth", e.TxDepth, maxDepth)
	if len(e.RxDepth) == 0 {
		v.AddError("rx_depth", "at least one receiver depth is required", e.RxDepth)
	}
	checkDepths(v, "rx_depth", e.RxDepth, maxDepth)

	if e.MinAngle <= -90 || e.MinAngle >= 90 {
		v.AddError("min_angle", "min_angle must be in range (-90, 90)", e.MinAngle)
	}
	if e.MaxAngle <= -90 || e.MaxAngle >= 90 {
		v.AddError("max_angle", "max_angle must be in range (-90, 90)", e.MaxAngle)
	}
	if e.MinAngle >= e.MaxAngle {
		v.AddError("min_angle", "min_angle must be less than max_angle", e.MinAngle)
	}
	if e.NBeams < 0 {
		v.AddError("nbeams", "nbeams cannot be negative", e.NBeams)
	}

	if e.TxDirectionality != nil {
		if len(e.TxDirectionality) < 2 {
			v.AddError("tx_directionality", "tx_directionality must be an Nx2 array", len(e.TxDirectionality))
		}
		for _, p := range e.TxDirectionality {
			if p.X < -180 || p.X > 180 {
				v.AddError("tx_directionality", "tx_directionality angles must be in [-180, 180]", p.X)
				break
			}
		}
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnv, err)
	}
	return nil
}

func checkRangeTable(v *validate.Validator, field string, pts []Point, maxRange float64) {
	if len(pts) < 2 {
		v.AddError(field, field+" must be a scalar or an Nx2 array", len(pts))
		return
	}
	if pts[0].X > 0 {
		v.AddError(field, "First range in "+field+" array must be 0 m", pts[0].X)
	}
	if last := pts[len(pts)-1].X; last < maxRange {
		v.AddError(field, fmt.Sprintf("Last range in %s array must be beyond maximum range: %g m", field, maxRange), last)
	}
	if !strictlyIncreasing(pts) {
		v.AddError(field, field+" array must be strictly monotonic in range", nil)
	}
}

func checkDepths(v *validate.Validator, field string, depths []float64, maxDepth float64) {
	for _, d := range depths {
		if d < 0 || d > maxDepth || math.IsNaN(d) {
			v.AddError(field, fmt.Sprintf("%s must be within [0, %g] m", field, maxDepth), d)
			return
		}
	}
}

// fitSoundSpeed cuts a tabulated profile at the water depth, inserting an
// interpolated sample when the depth falls between two rows.
func (e *Env) fitSoundSpeed() error {
	if e.SoundSpeed.IsConstant() {
		return nil
	}
	maxDepth := e.MaxDepth()
	ssp := e.SoundSpeed.Points

	idx := sort.Search(len(ssp), func(i int) bool { return ssp[i].X >= maxDepth })
	if idx == len(ssp) || ssp[idx].X == maxDepth {
		if idx < len(ssp) {
			e.SoundSpeed.Points = ssp[:idx+1]
		}
		return nil
	}

	c, err := InterpolateSoundSpeed(ssp, e.SoundSpeedInterp, maxDepth)
	if err != nil {
		return err
	}
	out := make([]Point, 0, idx+1)
	out = append(out, ssp[:idx]...)
	out = append(out, Point{X: maxDepth, Y: c})
	e.SoundSpeed.Points = out
	return nil
}

// InterpolateSoundSpeed evaluates a tabulated profile at depth z using the
// named interpolation (spline uses a not-a-knot cubic).
func InterpolateSoundSpeed(ssp []Point, method string, z float64) (float64, error) {
	xs := make([]float64, len(ssp))
	ys := make([]float64, len(ssp))
	for i, p := range ssp {
		xs[i], ys[i] = p.X, p.Y
	}
	var pred interp.FittablePredictor = &interp.PiecewiseLinear{}
	if method == InterpSpline && len(ssp) >= 4 {
		pred = &interp.NotAKnotCubic{}
	}
	if err := pred.Fit(xs, ys); err != nil {
		return 0, fmt.Errorf("interpolate soundspeed: %w", err)
	}
	return pred.Predict(z), nil
}

func strictlyIncreasing(pts []Point) bool {
	for i := 1; i < len(pts); i++ {
		if pts[i].X <= pts[i-1].X {
			return false
		}
	}
	return true
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %s", ErrInvalidEnv, key, describe(v))
	}
	return s, nil
}

func asFloat(key string, v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case []float64:
		if len(t) == 1 {
			return t[0], nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %s", ErrInvalidEnv, key, describe(v))
}

func asVector(key string, v any) ([]float64, error) {
	switch t := v.(type) {
	case float64:
		return []float64{t}, nil
	case int:
		return []float64{float64(t)}, nil
	case []float64:
		return slices.Clone(t), nil
	}
	return nil, fmt.Errorf("%w: %s must be a number or a list of numbers, got %s", ErrInvalidEnv, key, describe(v))
}

func asTable(key string, v any) ([]Point, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case [][]float64:
		pts := make([]Point, len(t))
		for i, row := range t {
			if len(row) != 2 {
				return nil, fmt.Errorf("%w: %s must be an Nx2 array", ErrInvalidEnv, key)
			}
			pts[i] = Point{X: row[0], Y: row[1]}
		}
		return pts, nil
	}
	return nil, fmt.Errorf("%w: %s must be an Nx2 array, got %s", ErrInvalidEnv, key, describe(v))
}

func asProfile(key string, v any) (Profile, error) {
	switch t := v.(type) {
	case float64, int:
		f, _ := asFloat(key, t)
		return Profile{Constant: f}, nil
	case [][]float64:
		pts, err := asTable(key, t)
		if err != nil {
			return Profile{}, err
		}
		if len(pts) == 1 {
			return Profile{Constant: pts[0].Y}, nil
		}
		return Profile{Points: pts}, nil
	}
	return Profile{}, fmt.Errorf("%w: %s must be a scalar or an Nx2 array, got %s", ErrInvalidEnv, key, describe(v))
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "None"
	case string:
		return "text"
	case float64, int:
		return "a number"
	case []float64:
		return "a list"
	case [][]float64:
		return "a table"
	}
	return fmt.Sprintf("%T", v)
}
