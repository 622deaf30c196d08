// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bellhop

import (
	"errors"
	"testing"

	"github.com/ManuGH/arlpanel/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panelDefaults mirrors the default control panel parameters.
func panelDefaults() map[string]any {
	return map[string]any{
		"name":              "arlpy",
		"bottom_absorption": 0.1,
		"bottom_density":    1600.0,
		"bottom_roughness":  0.0,
		"bottom_soundspeed": 1600.0,
		"depth":             30.0,
		"depth_interp":      "linear",
		"frequency":         25000.0,
		"max_angle":         80.0,
		"min_angle":         -80.0,
		"rx_depth":          10.0,
		"rx_range":          1000.0,
		"soundspeed":        [][]float64{{0, 1540}, {10, 1530}, {20, 1532}, {25, 1533}, {30, 1535}},
		"soundspeed_interp": "spline",
		"surface":           nil,
		"surface_interp":    "linear",
		"tx_depth":          5.0,
		"tx_directionality": nil,
		"type":              "2D",
	}
}

func TestCreateEnv2D_PanelDefaults(t *testing.T) {
	env, err := CreateEnv2D(panelDefaults())
	require.NoError(t, err)

	assert.Equal(t, "arlpy", env.Name)
	assert.Equal(t, 30.0, env.MaxDepth())
	assert.Equal(t, 1000.0, env.MaxRange())
	assert.Len(t, env.SoundSpeed.Points, 5)
	assert.Nil(t, env.Surface)
	assert.Equal(t, []float64{5}, env.TxDepth)
}

func TestCreateEnv2D_EmptyUsesSolverDefaults(t *testing.T) {
	env, err := CreateEnv2D(nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, env.MaxDepth())
	assert.True(t, env.SoundSpeed.IsConstant())
}

func TestCreateEnv2D_UnknownKey(t *testing.T) {
	_, err := CreateEnv2D(map[string]any{"salinity": 35.0})
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestCreateEnv2D_TypeErrors(t *testing.T) {
	tests := map[string]any{
		"frequency":  "loud",
		"name":       12.0,
		"soundspeed": nil,
		"depth":      []float64{1, 2},
		"surface":    5.0,
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := CreateEnv2D(map[string]any{key: val})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEnv)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestCheckEnv_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
		field  string
	}{
		{"not 2D", func(m map[string]any) { m["type"] = "3D" }, "type"},
		{"ssp not from surface", func(m map[string]any) {
			m["soundspeed"] = [][]float64{{5, 1540}, {10, 1530}, {20, 1532}, {30, 1535}}
		}, "soundspeed"},
		{"ssp too shallow", func(m map[string]any) {
			m["soundspeed"] = [][]float64{{0, 1540}, {10, 1530}, {20, 1532}, {25, 1535}}
		}, "soundspeed"},
		{"ssp not monotonic", func(m map[string]any) {
			m["soundspeed"] = [][]float64{{0, 1540}, {20, 1530}, {10, 1532}, {30, 1535}}
		}, "soundspeed"},
		{"spline needs four points", func(m map[string]any) {
			m["soundspeed"] = [][]float64{{0, 1540}, {15, 1530}, {30, 1535}}
		}, "soundspeed"},
		{"bathymetry not from zero", func(m map[string]any) {
			m["depth"] = [][]float64{{100, 30}, {1000, 25}}
		}, "depth"},
		{"bathymetry short", func(m map[string]any) {
			m["depth"] = [][]float64{{0, 30}, {500, 25}}
		}, "depth"},
		{"surface not monotonic", func(m map[string]any) {
			m["surface"] = [][]float64{{0, 0}, {600, 1}, {500, 0}, {1000, 1}}
		}, "surface"},
		{"tx too deep", func(m map[string]any) { m["tx_depth"] = 31.0 }, "tx_depth"},
		{"rx negative", func(m map[string]any) { m["rx_depth"] = []float64{5, -1} }, "rx_depth"},
		{"angle range", func(m map[string]any) { m["min_angle"] = -90.0 }, "min_angle"},
		{"angles inverted", func(m map[string]any) {
			m["min_angle"] = 10.0
			m["max_angle"] = -10.0
		}, "min_angle"},
		{"bad interp", func(m map[string]any) { m["soundspeed_interp"] = "cubic" }, "soundspeed_interp"},
		{"bad depth interp", func(m map[string]any) {
			m["depth"] = [][]float64{{0, 30}, {1000, 25}}
			m["depth_interp"] = "spline"
		}, "depth_interp"},
		{"zero frequency", func(m map[string]any) { m["frequency"] = 0.0 }, "frequency"},
		{"negative range", func(m map[string]any) { m["rx_range"] = -5.0 }, "rx_range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := panelDefaults()
			tt.mutate(m)
			_, err := CreateEnv2D(m)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidEnv)

			var verr validate.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			fields := make([]string, 0, len(verr.Errors()))
			for _, e := range verr.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestCreateEnv2D_CutsSoundSpeedAtWaterDepth(t *testing.T) {
	m := panelDefaults()
	m["depth"] = 25.0
	m["soundspeed"] = [][]float64{{0, 1540}, {10, 1530}, {20, 1532}, {30, 1535}}
	m["soundspeed_interp"] = "linear"
	m["rx_depth"] = 10.0

	env, err := CreateEnv2D(m)
	require.NoError(t, err)
	require.Len(t, env.SoundSpeed.Points, 4)
	last := env.SoundSpeed.Points[3]
	assert.Equal(t, 25.0, last.X)
	assert.InDelta(t, 1533.5, last.Y, 1e-9)
}

func TestCreateEnv2D_SplineCutUsesCubic(t *testing.T) {
	m := panelDefaults()
	m["depth"] = 22.0

	env, err := CreateEnv2D(m)
	require.NoError(t, err)
	last := env.SoundSpeed.Points[len(env.SoundSpeed.Points)-1]
	assert.Equal(t, 22.0, last.X)
	assert.Greater(t, last.Y, 1530.0)
	assert.Less(t, last.Y, 1535.0)
}

func TestEnvClone_IsDeep(t *testing.T) {
	env, err := CreateEnv2D(panelDefaults())
	require.NoError(t, err)
	c := env.Clone()
	c.SoundSpeed.Points[0].Y = 1
	c.RxRange[0] = 5
	assert.Equal(t, 1540.0, env.SoundSpeed.Points[0].Y)
	assert.Equal(t, 1000.0, env.RxRange[0])
}
