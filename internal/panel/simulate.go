// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package panel

import (
	"context"
	"fmt"
	"math"

	"github.com/ManuGH/arlpanel/internal/bellhop"
	"github.com/ManuGH/arlpanel/internal/history"
	xglog "github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/metrics"
	"github.com/ManuGH/arlpanel/internal/numexpr"
	"github.com/ManuGH/arlpanel/internal/params"
	"github.com/ManuGH/arlpanel/internal/plot"
	"github.com/ManuGH/arlpanel/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// step is one guarded stage of a simulation.
type step struct {
	slot    Slot
	failure string
	build   func(ctx context.Context, env *bellhop.Env, title string) (*plot.Figure, error)
}

func (s *Session) steps(tl TransmissionLoss) []step {
	solver := s.opts.Solver
	return []step{
		{SlotEnv, "Error plotting environment", func(_ context.Context, env *bellhop.Env, title string) (*plot.Figure, error) {
			return plot.Environment(env, title)
		}},
		{SlotEigenrays, "Error computing or plotting eigenrays", func(ctx context.Context, env *bellhop.Env, title string) (*plot.Figure, error) {
			rays, err := solver.ComputeEigenrays(ctx, env)
			if err != nil {
				return nil, err
			}
			return plot.Rays(env, rays, title)
		}},
		{SlotArrivals, "Error computing or plotting arrivals", func(ctx context.Context, env *bellhop.Env, title string) (*plot.Figure, error) {
			arr, err := solver.ComputeArrivals(ctx, env)
			if err != nil {
				return nil, err
			}
			return plot.Arrivals(arr, title)
		}},
		{SlotRays, "Error computing or plotting rays", func(ctx context.Context, env *bellhop.Env, title string) (*plot.Figure, error) {
			rays, err := solver.ComputeRays(ctx, env)
			if err != nil {
				return nil, err
			}
			return plot.Rays(env, rays, title)
		}},
		{SlotSSP, "Error plotting SSP", func(_ context.Context, env *bellhop.Env, title string) (*plot.Figure, error) {
			return plot.SoundSpeed(env, title)
		}},
		{SlotTLoss, "Error computing or plotting transmission loss", func(ctx context.Context, env *bellhop.Env, title string) (*plot.Figure, error) {
			grid := receiverGrid(env, tl)
			field, err := solver.ComputeTransmissionLoss(ctx, grid, tl.Mode)
			if err != nil {
				return nil, err
			}
			clim := tl.CLim
			return plot.TransmissionLoss(grid, field, &clim, title)
		}},
	}
}

// receiverGrid places receivers on a regular grid for the transmission
// loss plot. The grid never extends below the deepest point of the water.
func receiverGrid(env *bellhop.Env, tl TransmissionLoss) *bellhop.Env {
	g := env.Clone()
	maxDepth := tl.MaxDepth
	if d := env.MaxDepth(); d < maxDepth {
		maxDepth = d
	}
	g.RxRange = numexpr.Linspace(0, tl.MaxRange, tl.RangePoints)
	g.RxDepth = numexpr.Linspace(0, maxDepth, tl.DepthPoints)
	return g
}

// runStep isolates one stage; a panic inside it is reported like an error.
func runStep(ctx context.Context, st step, env *bellhop.Env, title string) (fig *plot.Figure, err error) {
	defer func() {
		if r := recover(); r != nil {
			fig, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return st.build(ctx, env, title)
}

// envValues turns the typed parameters into the environment dictionary.
// It returns a log line when a value has the wrong type.
func envValues(p params.Params) (map[string]any, string) {
	out := make(map[string]any, len(p))
	for _, key := range params.Keys() {
		v := p[key]
		if v == nil {
			out[key] = nil
			continue
		}
		switch params.KindOf(key) {
		case params.KindString:
			if _, ok := v.(string); !ok {
				return nil, fmt.Sprintf("Invalid value for %s, expected a string.", key)
			}
		case params.KindList:
			switch v.(type) {
			case float64, [][]float64:
			default:
				return nil, fmt.Sprintf("Invalid JSON format for %s.", key)
			}
		case params.KindExpression, params.KindMatrix:
			if _, ok := v.([][]float64); !ok {
				return nil, fmt.Sprintf("Invalid format for %s, expected a list.", key)
			}
		default:
			switch t := v.(type) {
			case float64:
				if math.IsNaN(t) || math.IsInf(t, 0) {
					return nil, fmt.Sprintf("Invalid value for %s, expected a number.", key)
				}
			case []float64:
			default:
				return nil, fmt.Sprintf("Invalid value for %s, expected a number.", key)
			}
		}
		out[key] = v
	}
	return out, ""
}

// simulate runs the six stages against the current parameters and swaps
// the resulting figures into the layout. The caller holds runMu.
func (s *Session) simulate(ctx context.Context, action string) RunSummary {
	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)
	ctx, span := telemetry.Tracer("arlpanel/panel").Start(ctx, "panel.simulate")
	defer span.End()
	span.SetAttributes(telemetry.PanelAttributes(action, runID)...)

	s.mu.Lock()
	started := s.opts.Now()
	mark := s.log.Mark()
	p := s.params.Clone()
	tl := s.opts.TLoss
	nbeams := s.opts.NBeams
	s.busy = true
	s.mu.Unlock()

	logger := xglog.WithContext(ctx, s.logger)
	layout := placeholderLayout()
	outcomes := make(map[Slot]string, len(Slots))
	for _, slot := range Slots {
		outcomes[slot] = "skipped"
	}

	env, ok := s.createEnv(p, nbeams)
	if ok {
		for _, st := range s.steps(tl) {
			title := Title(st.slot, env.Name)
			fig, err := runStep(ctx, st, env, title)
			if err != nil {
				s.addLog(fmt.Sprintf("%s: %v", st.failure, err))
				outcomes[st.slot] = err.Error()
				telemetry.RecordError(span, err, string(st.slot))
				logger.Warn().Err(err).
					Str(xglog.FieldEvent, "panel.step_failed").
					Str(xglog.FieldSlot, string(st.slot)).
					Msg("simulation step failed")
				continue
			}
			layout[st.slot] = fig
			outcomes[st.slot] = history.OutcomeOK
		}
		s.addLog("Simulation run with updated values.")
	}

	s.mu.Lock()
	finished := s.opts.Now()
	s.layout = layout
	if env != nil {
		s.env = env
	}
	summary := RunSummary{ID: runID, StartedAt: started, FinishedAt: finished, Outcomes: outcomes}
	s.lastRun = &summary
	s.busy = false
	lines := s.log.Since(mark)
	s.mu.Unlock()

	placeholders := layout.Placeholders()
	metrics.SetPlaceholderSlots(placeholders)
	span.SetAttributes(attribute.Int("panel.placeholders", placeholders))
	logger.Info().
		Str(xglog.FieldEvent, "panel.simulate").
		Str("action", action).
		Int("placeholders", placeholders).
		Dur("duration", finished.Sub(started)).
		Msg("simulation finished")

	s.record(ctx, summary, p, lines)
	return summary
}

// createEnv builds the environment; failures are logged and reported as
// !ok so the caller keeps every slot as a placeholder.
func (s *Session) createEnv(p params.Params, nbeams int) (*bellhop.Env, bool) {
	values, problem := envValues(p)
	if problem != "" {
		s.addLog(problem)
		return nil, false
	}
	env, err := bellhop.CreateEnv2D(values)
	if err != nil {
		s.addLog(fmt.Sprintf("Error creating environment: %v", err))
		return nil, false
	}
	env.NBeams = nbeams
	return env, true
}

func (s *Session) record(ctx context.Context, sum RunSummary, p params.Params, lines []string) {
	if s.opts.History == nil {
		return
	}
	outcomes := make(map[string]string, len(sum.Outcomes))
	for k, v := range sum.Outcomes {
		outcomes[string(k)] = v
	}
	run := history.Run{
		ID:         sum.ID,
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		Params:     p,
		Log:        lines,
		Outcomes:   outcomes,
	}
	if err := s.opts.History.Record(ctx, run); err != nil {
		metrics.IncStoreError("history")
		s.logger.Warn().Err(err).Str(xglog.FieldEvent, "panel.history_failed").Msg("failed to record run")
	}
}
