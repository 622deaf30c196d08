// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package numexpr

import (
	"errors"
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// MaxElements bounds generated sequences.
const MaxElements = 100000

var numberList = cty.List(cty.Number)

func listOf(xs []float64) (cty.Value, error) {
	if len(xs) == 0 {
		return cty.ListValEmpty(cty.Number), nil
	}
	vals := make([]cty.Value, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return cty.NilVal, fmt.Errorf("element %d is not finite", i)
		}
		vals[i] = cty.NumberFloatVal(x)
	}
	return cty.ListVal(vals), nil
}

func isSequence(ty cty.Type) bool {
	return ty.IsListType() || ty.IsTupleType()
}

// array(x) returns its argument after checking it is numeric.
var arrayFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "values", Type: cty.DynamicPseudoType}},
	Type: func(args []cty.Value) (cty.Type, error) {
		ty := args[0].Type()
		if ty == cty.Number || isSequence(ty) {
			return ty, nil
		}
		return cty.NilType, fmt.Errorf("array: unsupported argument %s", ty.FriendlyName())
	},
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return args[0], nil
	},
})

var linspaceFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "start", Type: cty.Number},
		{Name: "stop", Type: cty.Number},
		{Name: "num", Type: cty.Number},
	},
	Type: function.StaticReturnType(numberList),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		start, _ := toFloat(args[0])
		stop, _ := toFloat(args[1])
		n, _ := toFloat(args[2])
		if n < 0 || n != math.Trunc(n) {
			return cty.NilVal, fmt.Errorf("linspace: num must be a non-negative integer, got %g", n)
		}
		if n > MaxElements {
			return cty.NilVal, fmt.Errorf("linspace: num exceeds %d", MaxElements)
		}
		return listOf(Linspace(start, stop, int(n)))
	},
})

var arangeFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "start", Type: cty.Number},
		{Name: "stop", Type: cty.Number},
		{Name: "step", Type: cty.Number},
	},
	Type: function.StaticReturnType(numberList),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		start, _ := toFloat(args[0])
		stop, _ := toFloat(args[1])
		step, _ := toFloat(args[2])
		if step == 0 {
			return cty.NilVal, errors.New("arange: step must not be zero")
		}
		n := math.Ceil((stop - start) / step)
		if n <= 0 {
			return cty.ListValEmpty(cty.Number), nil
		}
		if n > MaxElements {
			return cty.NilVal, fmt.Errorf("arange: more than %d elements", MaxElements)
		}
		out := make([]float64, int(n))
		for i := range out {
			out[i] = start + float64(i)*step
		}
		return listOf(out)
	},
})

var columnStackFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "xs", Type: numberList},
		{Name: "ys", Type: numberList},
	},
	Type: function.StaticReturnType(cty.List(numberList)),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		xs, err := ToVector(args[0])
		if err != nil {
			return cty.NilVal, err
		}
		ys, err := ToVector(args[1])
		if err != nil {
			return cty.NilVal, err
		}
		if len(xs) != len(ys) {
			return cty.NilVal, fmt.Errorf("column_stack: length mismatch %d != %d", len(xs), len(ys))
		}
		if len(xs) == 0 {
			return cty.ListValEmpty(numberList), nil
		}
		rows := make([]cty.Value, len(xs))
		for i := range xs {
			row, err := listOf([]float64{xs[i], ys[i]})
			if err != nil {
				return cty.NilVal, err
			}
			rows[i] = row
		}
		return cty.ListVal(rows), nil
	},
})

// elementwise lifts a scalar function over numbers and numeric lists.
func elementwise(fn func(float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.DynamicPseudoType}},
		Type: func(args []cty.Value) (cty.Type, error) {
			ty := args[0].Type()
			switch {
			case ty == cty.Number:
				return cty.Number, nil
			case isSequence(ty):
				return numberList, nil
			}
			return cty.NilType, fmt.Errorf("unsupported argument %s", ty.FriendlyName())
		},
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			if retType == cty.Number {
				x, err := toFloat(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				y := fn(x)
				if math.IsNaN(y) || math.IsInf(y, 0) {
					return cty.NilVal, fmt.Errorf("result of %g is not finite", x)
				}
				return cty.NumberFloatVal(y), nil
			}
			xs, err := ToVector(args[0])
			if err != nil {
				return cty.NilVal, err
			}
			out := make([]float64, len(xs))
			for i, x := range xs {
				out[i] = fn(x)
			}
			return listOf(out)
		},
	})
}

// scalarOp applies fn(x, k) to every element of a list.
func scalarOp(fn func(x, k float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "values", Type: numberList},
			{Name: "k", Type: cty.Number},
		},
		Type: function.StaticReturnType(numberList),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			xs, err := ToVector(args[0])
			if err != nil {
				return cty.NilVal, err
			}
			k, _ := toFloat(args[1])
			out := make([]float64, len(xs))
			for i, x := range xs {
				out[i] = fn(x, k)
			}
			return listOf(out)
		},
	})
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
