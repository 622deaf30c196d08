// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ManuGH/arlpanel/internal/numexpr"
)

// Kind selects the coercion rule for a key.
type Kind int

const (
	KindNumber Kind = iota
	KindList
	KindExpression
	KindMatrix
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	case KindExpression:
		return "expression"
	case KindMatrix:
		return "matrix"
	case KindString:
		return "string"
	}
	return "unknown"
}

var kinds = map[string]Kind{
	Name:             KindString,
	BottomAbsorption: KindNumber,
	BottomDensity:    KindNumber,
	BottomRoughness:  KindNumber,
	BottomSoundSpeed: KindNumber,
	Depth:            KindList,
	DepthInterp:      KindString,
	Frequency:        KindNumber,
	MaxAngle:         KindNumber,
	MinAngle:         KindNumber,
	RxDepth:          KindNumber,
	RxRange:          KindNumber,
	SoundSpeed:       KindList,
	SoundSpeedInterp: KindString,
	Surface:          KindExpression,
	SurfaceInterp:    KindString,
	TxDepth:          KindNumber,
	TxDirectionality: KindMatrix,
	Type:             KindString,
}

// KindOf returns the coercion kind of key. Unknown keys are numbers.
func KindOf(key string) Kind {
	if k, ok := kinds[key]; ok {
		return k
	}
	return KindNumber
}

// Issue is a coercion problem reported for one key.
type Issue struct {
	Key     string
	Message string
}

// Coerce converts widget text for key into a typed value. prev is the
// current value; it is returned unchanged when the text is rejected and
// the rule says to keep it. A non-nil Issue is a line for the command log.
func Coerce(key, text string, prev any) (any, *Issue) {
	if text == None {
		return nil, nil
	}

	switch KindOf(key) {
	case KindString:
		return text, nil

	case KindList:
		var raw any
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return prev, issuef(key, "Invalid JSON entered for %s.", key)
		}
		switch t := raw.(type) {
		case float64:
			return t, nil
		case []any:
			rows, err := pairs(t)
			if err != nil {
				return prev, issuef(key, "Invalid format for %s, expected a list.", key)
			}
			return rows, nil
		default:
			return prev, issuef(key, "Invalid format for %s, expected a list.", key)
		}

	case KindMatrix:
		var raw any
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return prev, issuef(key, "Invalid JSON entered for %s.", key)
		}
		list, ok := raw.([]any)
		if !ok {
			return prev, issuef(key, "Invalid format for %s, expected a list.", key)
		}
		rows, err := pairs(list)
		if err != nil {
			return prev, issuef(key, "Invalid format for %s, expected a list.", key)
		}
		return rows, nil

	case KindExpression:
		m, err := numexpr.EvalMatrix(text)
		if err != nil {
			return nil, issuef(key, "Invalid %s input: %v. Using default value.", key, err)
		}
		if len(m[0]) != 2 {
			return nil, issuef(key, "Invalid %s input: expected N x 2 values, got %d columns. Using default value.", key, len(m[0]))
		}
		return m, nil

	default:
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "[") {
			var xs []float64
			if err := json.Unmarshal([]byte(trimmed), &xs); err != nil {
				return nil, issuef(key, "Invalid JSON format for %s. Expected list.", key)
			}
			return xs, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		// ParseFloat accepts nan and inf, which cannot be encoded as JSON.
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return prev, issuef(key, "Invalid format for %s, expected a float.", key)
		}
		return f, nil
	}
}

// Apply coerces every widget text in order and returns the new parameters
// together with the issues found. cur is not modified.
func Apply(cur Params, widgets map[string]string) (Params, []Issue) {
	next := cur.Clone()
	var issues []Issue
	for _, key := range keys {
		text, ok := widgets[key]
		if !ok {
			continue
		}
		v, issue := Coerce(key, text, next[key])
		next[key] = v
		if issue != nil {
			issues = append(issues, *issue)
		}
	}
	return next, issues
}

func pairs(list []any) ([][]float64, error) {
	rows := make([][]float64, 0, len(list))
	for i, item := range list {
		row, ok := item.([]any)
		if !ok || len(row) != 2 {
			return nil, fmt.Errorf("entry %d is not a pair", i)
		}
		x, okx := row[0].(float64)
		y, oky := row[1].(float64)
		if !okx || !oky {
			return nil, fmt.Errorf("entry %d is not numeric", i)
		}
		rows = append(rows, []float64{x, y})
	}
	return rows, nil
}

func issuef(key, format string, args ...any) *Issue {
	return &Issue{Key: key, Message: fmt.Sprintf(format, args...)}
}
