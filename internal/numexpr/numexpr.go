// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package numexpr evaluates the small numeric expressions accepted by the
// surface widget. Expressions use HCL expression syntax with a fixed table
// of array helpers, so no user code is ever executed.
package numexpr

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	// ErrEmpty is returned for blank input.
	ErrEmpty = errors.New("empty expression")
	// ErrNotMatrix is returned when a result is not a rectangular N x M numeric matrix.
	ErrNotMatrix = errors.New("expected a numeric matrix")
	// ErrNotVector is returned when a result is not a flat list of numbers.
	ErrNotVector = errors.New("expected a numeric list")
)

var npPrefix = regexp.MustCompile(`\bnp\.`)

// Eval parses and evaluates src and returns the raw value.
func Eval(src string) (cty.Value, error) {
	src = normalize(src)
	if src == "" {
		return cty.NilVal, ErrEmpty
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), "expression", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("parse: %s", diagSummary(diags))
	}

	for _, tr := range expr.Variables() {
		if name := tr.RootName(); name != "pi" {
			return cty.NilVal, fmt.Errorf("unknown identifier %q", name)
		}
	}

	val, diags := expr.Value(evalContext())
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluate: %s", diagSummary(diags))
	}
	if val.IsNull() || !val.IsWhollyKnown() {
		return cty.NilVal, errors.New("expression has no value")
	}
	return val, nil
}

// EvalMatrix evaluates src and converts the result to a rectangular matrix.
func EvalMatrix(src string) ([][]float64, error) {
	val, err := Eval(src)
	if err != nil {
		return nil, err
	}
	return ToMatrix(val)
}

// EvalVector evaluates src and converts the result to a flat list.
func EvalVector(src string) ([]float64, error) {
	val, err := Eval(src)
	if err != nil {
		return nil, err
	}
	return ToVector(val)
}

// ToVector converts a list or tuple of numbers.
func ToVector(v cty.Value) ([]float64, error) {
	ty := v.Type()
	if !(ty.IsListType() || ty.IsTupleType()) {
		return nil, fmt.Errorf("%w, got %s", ErrNotVector, ty.FriendlyName())
	}
	out := make([]float64, 0, v.LengthInt())
	it := v.ElementIterator()
	for it.Next() {
		_, el := it.Element()
		f, err := toFloat(el)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotVector, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ToMatrix converts a list of equally sized numeric lists.
func ToMatrix(v cty.Value) ([][]float64, error) {
	ty := v.Type()
	if !(ty.IsListType() || ty.IsTupleType()) {
		return nil, fmt.Errorf("%w, got %s", ErrNotMatrix, ty.FriendlyName())
	}
	out := make([][]float64, 0, v.LengthInt())
	it := v.ElementIterator()
	for it.Next() {
		_, row := it.Element()
		vec, err := ToVector(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrNotMatrix, len(out), err)
		}
		if len(out) > 0 && len(vec) != len(out[0]) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrNotMatrix, len(out), len(vec), len(out[0]))
		}
		out = append(out, vec)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrNotMatrix)
	}
	return out, nil
}

func normalize(src string) string {
	src = strings.TrimSpace(src)
	src = strings.Trim(src, `"'`)
	return npPrefix.ReplaceAllString(strings.TrimSpace(src), "")
}

func diagSummary(diags hcl.Diagnostics) string {
	msgs := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		if d.Detail != "" {
			msgs = append(msgs, d.Summary+": "+d.Detail)
		} else {
			msgs = append(msgs, d.Summary)
		}
	}
	return strings.Join(msgs, "; ")
}

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"pi": cty.NumberFloatVal(math.Pi),
		},
		Functions: map[string]function.Function{
			"array":        arrayFunc,
			"linspace":     linspaceFunc,
			"arange":       arangeFunc,
			"sin":          elementwise(math.Sin),
			"cos":          elementwise(math.Cos),
			"scale":        scalarOp(func(x, k float64) float64 { return x * k }),
			"offset":       scalarOp(func(x, k float64) float64 { return x + k }),
			"column_stack": columnStackFunc,
		},
	}
}

func toFloat(v cty.Value) (float64, error) {
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return 0, fmt.Errorf("not a number: %s", v.Type().FriendlyName())
	}
	var f float64
	if err := gocty.FromCtyValue(v, &f); err != nil {
		return 0, err
	}
	return f, nil
}
