// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package numexpr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalMatrix_Literal(t *testing.T) {
	got, err := EvalMatrix(`[[0, 0], [500, 1.5], [1000, 0]]`)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0}, {500, 1.5}, {1000, 0}}, got)
}

func TestEvalMatrix_NumpyStyle(t *testing.T) {
	src := `"np.column_stack(np.linspace(0, 1000, 5), scale(np.sin(scale(np.linspace(0, 1000, 5), pi/500)), 2))"`
	got, err := EvalMatrix(src)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, row := range got {
		require.Len(t, row, 2)
		assert.InDelta(t, float64(i)*250, row[0], 1e-9)
		assert.InDelta(t, 2*math.Sin(row[0]*math.Pi/500), row[1], 1e-9)
	}
}

func TestEvalMatrix_ArrayWrapper(t *testing.T) {
	got, err := EvalMatrix(`np.array([[0, 1], [10, 2]])`)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {10, 2}}, got)
}

func TestEvalMatrix_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "   "},
		{"scalar", "42"},
		{"vector", "linspace(0, 1, 3)"},
		{"ragged", "[[0, 1], [2]]"},
		{"unknown function", `__import__("os")`},
		{"unknown identifier", "os.system"},
		{"string", `["a", "b"]`},
		{"syntax error", "[[0, 1],"},
		{"huge linspace", "column_stack(linspace(0, 1, 1e9), linspace(0, 1, 1e9))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvalMatrix(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestEvalVector(t *testing.T) {
	got, err := EvalVector("arange(0, 1, 0.25)")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, got)

	got, err = EvalVector("offset(cos([0, pi]), 1)")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 2, got[0], 1e-12)
	assert.InDelta(t, 0, got[1], 1e-12)

	_, err = EvalVector("arange(0, 1, 0)")
	assert.Error(t, err)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{}, Linspace(0, 1, 0))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))

	xs := Linspace(0, 30, 301)
	require.Len(t, xs, 301)
	assert.Equal(t, 0.0, xs[0])
	assert.Equal(t, 30.0, xs[300])
	assert.InDelta(t, 0.1, xs[1], 1e-12)
}
