// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package panel

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/ManuGH/arlpanel/internal/config"
	xglog "github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/metrics"
	"github.com/ManuGH/arlpanel/internal/params"
)

// Update applies widget text changes, re-coerces every widget, runs the
// simulation and splices the new figures into the layout. Keys that are not
// parameters reject the whole change set before anything is modified.
func (s *Session) Update(ctx context.Context, changes map[string]string) (RunSummary, error) {
	if err := checkKeys(changes); err != nil {
		return RunSummary{}, err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.applyWidgets(changes)
	sum := s.simulate(ctx, "update")
	s.addLog("Simulation updated.")

	metrics.IncPanelUpdate("update")
	s.logger.Info().
		Str(xglog.FieldEvent, "panel.update").
		Str(xglog.FieldRunID, sum.ID).
		Strs("keys", sortedKeys(changes)).
		Msg("panel updated")
	s.persist(ctx)
	s.publish(ctx)
	return sum, nil
}

// RunSimulation reruns the solver with the current parameters without
// touching the widgets.
func (s *Session) RunSimulation(ctx context.Context) RunSummary {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	sum := s.simulate(ctx, "run")
	metrics.IncPanelUpdate("run")
	s.publish(ctx)
	return sum
}

// Reset puts every widget back to its default text and reruns the
// simulation.
func (s *Session) Reset(ctx context.Context) RunSummary {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.applyWidgets(params.DefaultWidgets())
	sum := s.simulate(ctx, "reset")
	s.addLog("Simulation updated.")
	s.addLog("Parameters reset to default.")

	metrics.IncPanelUpdate("reset")
	s.logger.Info().Str(xglog.FieldEvent, "panel.reset").Str(xglog.FieldRunID, sum.ID).Msg("parameters reset")
	s.persist(ctx)
	s.publish(ctx)
	return sum
}

// LoadPreset writes the widget texts of the named preset and reruns the
// simulation.
func (s *Session) LoadPreset(ctx context.Context, name string) (RunSummary, error) {
	s.mu.RLock()
	idx := slices.IndexFunc(s.presets, func(p config.PresetConfig) bool { return p.Name == name })
	var values map[string]string
	if idx >= 0 {
		values = s.presets[idx].Values
	}
	s.mu.RUnlock()
	if idx < 0 {
		return RunSummary{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	if err := checkKeys(values); err != nil {
		return RunSummary{}, fmt.Errorf("preset %q: %w", name, err)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.applyWidgets(values)
	sum := s.simulate(ctx, "preset")
	s.addLog("Simulation updated.")
	s.addLog(fmt.Sprintf("Preset %s loaded.", name))

	metrics.IncPanelUpdate("preset")
	s.logger.Info().
		Str(xglog.FieldEvent, "panel.preset").
		Str(xglog.FieldPreset, name).
		Str(xglog.FieldRunID, sum.ID).
		Msg("preset loaded")
	s.persist(ctx)
	s.publish(ctx)
	return sum, nil
}

// SwitchTheme selects one of the configured themes.
func (s *Session) SwitchTheme(ctx context.Context, name string) error {
	if !slices.Contains(s.opts.Themes, name) {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	s.mu.Lock()
	s.theme = name
	s.mu.Unlock()

	metrics.IncPanelUpdate("theme")
	s.logger.Info().Str(xglog.FieldEvent, "panel.theme").Str(xglog.FieldTheme, name).Msg("theme switched")
	s.persist(ctx)
	s.publish(ctx)
	return nil
}

// applyWidgets stores the texts and re-coerces all widgets. Rejected
// values keep their previous parameter and add a log line.
func (s *Session) applyWidgets(changes map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range changes {
		s.widgets[k] = v
	}
	next, issues := params.Apply(s.params, s.widgets)
	s.params = next
	for _, is := range issues {
		metrics.IncCoercionError(is.Key)
		s.log.Add(is.Message)
		s.logger.Debug().
			Str(xglog.FieldEvent, "panel.coerce_failed").
			Str(xglog.FieldParam, is.Key).
			Msg(is.Message)
	}
}

func checkKeys(changes map[string]string) error {
	for _, k := range sortedKeys(changes) {
		if !params.Known(k) {
			return fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
