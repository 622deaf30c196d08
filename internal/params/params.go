// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package params owns the flat parameter dictionary edited by the control
// panel and the per-field rules that turn widget text into typed values.
//
// Values are always one of: nil, float64, []float64, [][]float64 or string.
package params

import (
	"encoding/json"
	"strconv"
)

// Parameter keys, in widget order.
const (
	Name             = "name"
	BottomAbsorption = "bottom_absorption"
	BottomDensity    = "bottom_density"
	BottomRoughness  = "bottom_roughness"
	BottomSoundSpeed = "bottom_soundspeed"
	Depth            = "depth"
	DepthInterp      = "depth_interp"
	Frequency        = "frequency"
	MaxAngle         = "max_angle"
	MinAngle         = "min_angle"
	RxDepth          = "rx_depth"
	RxRange          = "rx_range"
	SoundSpeed       = "soundspeed"
	SoundSpeedInterp = "soundspeed_interp"
	Surface          = "surface"
	SurfaceInterp    = "surface_interp"
	TxDepth          = "tx_depth"
	TxDirectionality = "tx_directionality"
	Type             = "type"
)

// None is the widget text that clears a value.
const None = "None"

var keys = []string{
	Name, BottomAbsorption, BottomDensity, BottomRoughness, BottomSoundSpeed,
	Depth, DepthInterp, Frequency, MaxAngle, MinAngle, RxDepth, RxRange,
	SoundSpeed, SoundSpeedInterp, Surface, SurfaceInterp, TxDepth,
	TxDirectionality, Type,
}

// Keys returns the parameter keys in widget order.
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Known reports whether key is a parameter key.
func Known(key string) bool {
	_, ok := kinds[key]
	return ok
}

// Params maps parameter keys to typed values.
type Params map[string]any

// Defaults returns a fresh copy of the default parameter set.
func Defaults() Params {
	return Params{
		Name:             "arlpy",
		BottomAbsorption: 0.1,
		BottomDensity:    1600.0,
		BottomRoughness:  0.0,
		BottomSoundSpeed: 1600.0,
		Depth:            30.0,
		DepthInterp:      "linear",
		Frequency:        25000.0,
		MaxAngle:         80.0,
		MinAngle:         -80.0,
		RxDepth:          10.0,
		RxRange:          1000.0,
		SoundSpeed: [][]float64{
			{0, 1540},
			{10, 1530},
			{20, 1532},
			{25, 1533},
			{30, 1535},
		},
		SoundSpeedInterp: "spline",
		Surface:          nil,
		SurfaceInterp:    "linear",
		TxDepth:          5.0,
		TxDirectionality: nil,
		Type:             "2D",
	}
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []float64:
		return append([]float64(nil), t...)
	case [][]float64:
		rows := make([][]float64, len(t))
		for i, r := range t {
			rows[i] = append([]float64(nil), r...)
		}
		return rows
	default:
		return v
	}
}

// Format renders a value back into widget text.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return None
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return None
		}
		return string(b)
	}
}

// Widgets renders every parameter into widget text.
func (p Params) Widgets() map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = Format(p[k])
	}
	return out
}

// DefaultWidgets returns the widget texts of the default parameter set.
func DefaultWidgets() map[string]string {
	return Defaults().Widgets()
}
