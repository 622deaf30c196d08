// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testutil

import (
	"context"
	"sync"

	"github.com/ManuGH/arlpanel/internal/bellhop"
)

// FakeSolver answers every task with small fixed results so tests never
// need the Bellhop binary. Setting an error field makes that task fail.
type FakeSolver struct {
	mu    sync.Mutex
	calls int

	EigenErr   error
	ArrivalErr error
	RaysErr    error
	TLossErr   error
}

var _ bellhop.Solver = (*FakeSolver)(nil)

// Calls returns the number of solver invocations.
func (f *FakeSolver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeSolver) call(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return err
}

func fakeRays() []bellhop.Ray {
	return []bellhop.Ray{
		{DepartureAngle: -10, Points: []bellhop.Point{{X: 0, Y: 5}, {X: 500, Y: 20}, {X: 1000, Y: 10}}},
		{DepartureAngle: 10, BottomBounces: 1, Points: []bellhop.Point{{X: 0, Y: 5}, {X: 1000, Y: 25}}},
	}
}

func (f *FakeSolver) ComputeEigenrays(_ context.Context, _ *bellhop.Env) ([]bellhop.Ray, error) {
	if err := f.call(f.EigenErr); err != nil {
		return nil, err
	}
	return fakeRays(), nil
}

func (f *FakeSolver) ComputeArrivals(_ context.Context, _ *bellhop.Env) ([]bellhop.Arrival, error) {
	if err := f.call(f.ArrivalErr); err != nil {
		return nil, err
	}
	return []bellhop.Arrival{
		{Delay: 0.66, Amplitude: complex(0.01, 0)},
		{Delay: 0.67, Amplitude: complex(0, -0.004)},
	}, nil
}

func (f *FakeSolver) ComputeRays(_ context.Context, _ *bellhop.Env) ([]bellhop.Ray, error) {
	if err := f.call(f.RaysErr); err != nil {
		return nil, err
	}
	return fakeRays(), nil
}

func (f *FakeSolver) ComputeTransmissionLoss(_ context.Context, env *bellhop.Env, _ bellhop.Mode) (*bellhop.Field, error) {
	if err := f.call(f.TLossErr); err != nil {
		return nil, err
	}
	field := &bellhop.Field{Depths: env.RxDepth, Ranges: env.RxRange}
	for i := range env.RxDepth {
		row := make([]complex128, len(env.RxRange))
		for j := range row {
			row[j] = complex(0.01/float64(i+j+1), 0)
		}
		field.Pressure = append(field.Pressure, row)
	}
	return field, nil
}
