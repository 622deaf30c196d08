// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package plot

import (
	"bytes"
	"encoding/json"
	"math/cmplx"
	"testing"

	"github.com/ManuGH/arlpanel/internal/bellhop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T, overrides map[string]any) *bellhop.Env {
	t.Helper()
	values := map[string]any{
		"name":              "bay",
		"depth":             30.0,
		"rx_depth":          []float64{10, 20},
		"rx_range":          []float64{500, 1000},
		"tx_depth":          5.0,
		"soundspeed":        [][]float64{{0, 1540}, {10, 1530}, {20, 1532}, {25, 1533}, {30, 1535}},
		"soundspeed_interp": "spline",
	}
	for k, v := range overrides {
		values[k] = v
	}
	env, err := bellhop.CreateEnv2D(values)
	require.NoError(t, err)
	return env
}

func TestEnvironment(t *testing.T) {
	f, err := Environment(testEnv(t, nil), "bay env")
	require.NoError(t, err)

	assert.Equal(t, "bay env", f.Title)
	assert.Equal(t, DefaultWidth, f.Width)
	assert.Equal(t, DefaultHeight, f.Height)
	assert.Equal(t, "Range (m)", f.XLabel)
	require.Len(t, f.Series, 4)

	surface, bottom, tx, rx := f.Series[0], f.Series[1], f.Series[2], f.Series[3]
	assert.Equal(t, []float64{0, 1000}, surface.X)
	assert.Equal(t, []float64{0, 0}, surface.Y)
	assert.Equal(t, []float64{-30, -30}, bottom.Y)
	assert.Equal(t, []float64{-5}, tx.Y)
	assert.Equal(t, MarkerStar, tx.Marker)
	assert.Len(t, rx.X, 4)
	assert.Equal(t, []float64{500, 500, 1000, 1000}, rx.X)
	assert.Equal(t, []float64{-10, -20, -10, -20}, rx.Y)
}

func TestEnvironment_KilometreScale(t *testing.T) {
	env := testEnv(t, map[string]any{"rx_range": 20000.0})
	f, err := Environment(env, "far")
	require.NoError(t, err)
	assert.Equal(t, "Range (km)", f.XLabel)
	assert.Equal(t, []float64{20}, f.Series[3].X[:1])
}

func TestEnvironment_Bathymetry(t *testing.T) {
	env := testEnv(t, map[string]any{
		"depth":   [][]float64{{0, 20}, {300, 30}, {1000, 25}},
		"surface": [][]float64{{0, 0}, {500, 1}, {1000, 0}},
	})
	f, err := Environment(env, "t")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, 0}, f.Series[0].Y)
	assert.Equal(t, []float64{-20, -30, -25}, f.Series[1].Y)
}

func TestRays_ShadesByBottomBounces(t *testing.T) {
	rays := []bellhop.Ray{
		{BottomBounces: 0, Points: []bellhop.Point{{X: 0, Y: 5}, {X: 1000, Y: 10}}},
		{BottomBounces: 2, Points: []bellhop.Point{{X: 0, Y: 5}, {X: 500, Y: 30}, {X: 1000, Y: 0}}},
		{BottomBounces: -1, Points: []bellhop.Point{{X: 0, Y: 5}, {X: 1000, Y: 20}}},
	}
	f, err := Rays(nil, rays, "bay rays")
	require.NoError(t, err)
	require.Len(t, f.Series, 3)

	assert.Equal(t, "#ffffff", f.Series[0].Color)
	assert.Equal(t, "#7f7f7f", f.Series[1].Color)
	assert.Equal(t, "#000000", f.Series[2].Color)
	assert.Equal(t, []float64{-5, -10}, f.Series[2].Y)

	withEnv, err := Rays(testEnv(t, nil), rays, "bay rays")
	require.NoError(t, err)
	assert.Len(t, withEnv.Series, 5)

	_, err = Rays(nil, nil, "x")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestArrivals(t *testing.T) {
	arr := []bellhop.Arrival{
		{Delay: 0.34, Amplitude: cmplx.Rect(1e-3, 1)},
		{Delay: 0.33, Amplitude: complex(0, 2e-3)},
	}
	f, err := Arrivals(arr, "bay arrivals")
	require.NoError(t, err)
	require.Len(t, f.Series, 2)
	assert.Equal(t, "Arrival time (s)", f.XLabel)

	base, stems := f.Series[0], f.Series[1]
	assert.Equal(t, []float64{0.33, 0.34}, base.X)
	assert.Equal(t, KindStems, stems.Kind)
	assert.InDeltaSlice(t, []float64{1e-3, 2e-3}, stems.Y, 1e-12)

	_, err = Arrivals(nil, "x")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSoundSpeed(t *testing.T) {
	f, err := SoundSpeed(testEnv(t, nil), "bay SSP")
	require.NoError(t, err)
	require.Len(t, f.Series, 2)
	curve, dots := f.Series[0], f.Series[1]
	assert.Len(t, curve.X, sspSamples)
	assert.InDelta(t, 1540, curve.X[0], 1e-9)
	assert.InDelta(t, -30, curve.Y[len(curve.Y)-1], 1e-9)
	assert.Equal(t, []float64{1540, 1530, 1532, 1533, 1535}, dots.X)

	lin, err := SoundSpeed(testEnv(t, map[string]any{"soundspeed_interp": "linear"}), "t")
	require.NoError(t, err)
	assert.Len(t, lin.Series, 1)

	flat, err := SoundSpeed(testEnv(t, map[string]any{"soundspeed": 1500.0}), "t")
	require.NoError(t, err)
	assert.Equal(t, []float64{1500, 1500}, flat.Series[0].X)
	assert.Equal(t, []float64{0, -30}, flat.Series[0].Y)
}

func testField(nd, nr int) *bellhop.Field {
	f := &bellhop.Field{}
	for i := 0; i < nd; i++ {
		f.Depths = append(f.Depths, float64(i))
	}
	for j := 0; j < nr; j++ {
		f.Ranges = append(f.Ranges, float64(j)*10)
	}
	for i := 0; i < nd; i++ {
		row := make([]complex128, nr)
		for j := range row {
			row[j] = complex(0.01/float64(1+j), 0)
		}
		f.Pressure = append(f.Pressure, row)
	}
	return f
}

func TestTransmissionLoss(t *testing.T) {
	f, err := TransmissionLoss(nil, testField(3, 4), nil, "bay transmission loss")
	require.NoError(t, err)
	require.NotNil(t, f.Image)
	assert.Equal(t, DefaultCLim, *f.CLim)
	assert.Equal(t, []float64{0, 10, 20, 30}, f.Image.X)
	assert.Equal(t, []float64{-2, -1, 0}, f.Image.Y)
	assert.InDelta(t, -40, f.Image.Values[0][0], 1e-9)

	custom := [2]float64{-80, -20}
	f, err = TransmissionLoss(nil, testField(3, 4), &custom, "t")
	require.NoError(t, err)
	assert.Equal(t, custom, *f.CLim)

	_, err = TransmissionLoss(nil, &bellhop.Field{}, nil, "t")
	assert.ErrorIs(t, err, ErrNoData)

	bad := [2]float64{-30, -60}
	_, err = TransmissionLoss(nil, testField(2, 2), &bad, "t")
	assert.Error(t, err)
}

func TestTransmissionLoss_Decimates(t *testing.T) {
	f, err := TransmissionLoss(nil, testField(301, 1001), nil, "t")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(f.Image.Y), maxImageRows+1)
	assert.LessOrEqual(t, len(f.Image.X), maxImageCols+1)
	assert.Equal(t, 10000.0, f.Image.X[len(f.Image.X)-1])
	assert.Equal(t, -300.0, f.Image.Y[0])
	assert.Equal(t, 0.0, f.Image.Y[len(f.Image.Y)-1])
}

func TestStride(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, stride(3, 10))
	assert.Equal(t, []int{0, 4, 8, 9}, stride(10, 3))
}

func TestPlaceholder(t *testing.T) {
	f := Placeholder("Error plotting rays")
	assert.True(t, f.Placeholder)
	assert.Equal(t, 600, f.Width)
	assert.Equal(t, 350, f.Height)
	assert.Empty(t, f.Series)
}

func TestRenderSVG(t *testing.T) {
	env := testEnv(t, nil)
	figs := []*Figure{Placeholder("Error plotting environment")}

	f, err := Environment(env, "bay env")
	require.NoError(t, err)
	figs = append(figs, f)
	f, err = SoundSpeed(env, "bay SSP")
	require.NoError(t, err)
	figs = append(figs, f)
	f, err = Arrivals([]bellhop.Arrival{{Delay: 0.3, Amplitude: 1e-3}, {Delay: 0.4, Amplitude: 5e-4}}, "bay arrivals")
	require.NoError(t, err)
	figs = append(figs, f)
	f, err = TransmissionLoss(env, testField(4, 5), nil, "bay transmission loss")
	require.NoError(t, err)
	figs = append(figs, f)

	for _, fig := range figs {
		svg, err := SVG(fig)
		require.NoError(t, err, fig.Title)
		assert.True(t, bytes.Contains(svg, []byte("<svg")), fig.Title)
	}
}

func TestRender_Errors(t *testing.T) {
	var buf bytes.Buffer
	err := Render(Placeholder("x"), Format("gif"), &buf)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	bad := &Figure{Series: []Series{{Kind: KindLine, X: []float64{1}, Y: nil}}}
	assert.Error(t, Render(bad, FormatSVG, &buf))

	unknown := &Figure{Series: []Series{{Kind: "pie", X: []float64{1}, Y: []float64{1}}}}
	assert.Error(t, Render(unknown, FormatSVG, &buf))
}

func TestFigureJSON(t *testing.T) {
	f, err := Arrivals([]bellhop.Arrival{{Delay: 0.3, Amplitude: 1e-3}}, "a")
	require.NoError(t, err)
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var back Figure
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f.Title, back.Title)
	assert.Equal(t, f.Series, back.Series)
	assert.False(t, back.Placeholder)
}

func TestBounds(t *testing.T) {
	f := &Figure{Series: []Series{{Kind: KindStems, X: []float64{1, 2}, Y: []float64{3, 4}}}}
	xmin, xmax, ymin, ymax, ok := f.Bounds()
	require.True(t, ok)
	assert.Equal(t, [4]float64{1, 2, 0, 4}, [4]float64{xmin, xmax, ymin, ymax})

	_, _, _, _, ok = Placeholder("x").Bounds()
	assert.False(t, ok)
}

func TestParseColor(t *testing.T) {
	r, g, b, _ := parseColor("#ff8000").RGBA()
	assert.Equal(t, []uint32{0xffff, 0x8080, 0}, []uint32{r, g, b})
	r, _, _, _ = parseColor("red").RGBA()
	assert.Equal(t, uint32(0), r)
}
