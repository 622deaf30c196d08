// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package panel is the control panel session: widget texts, the typed
// parameters behind them, the command log and the six plot slots.
//
// Every mutation goes through Session. Simulations are serialised; state
// reads never wait for a running simulation.
package panel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/arlpanel/internal/bellhop"
	"github.com/ManuGH/arlpanel/internal/bus"
	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/history"
	xglog "github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/metrics"
	"github.com/ManuGH/arlpanel/internal/params"
	"github.com/ManuGH/arlpanel/internal/plot"
	"github.com/ManuGH/arlpanel/internal/session"
	"github.com/rs/zerolog"
)

// TopicState is the bus topic carrying state events.
const TopicState = "panel.state"

// publishTimeout bounds how long a slow subscriber may hold up a mutation.
const publishTimeout = 250 * time.Millisecond

// HistoryRecorder stores finished runs.
type HistoryRecorder interface {
	Record(ctx context.Context, run history.Run) error
}

// StateStore persists widget texts and the theme.
type StateStore interface {
	Save(ctx context.Context, st session.State) error
}

// TransmissionLoss is the receiver grid and colour range of the
// transmission loss plot.
type TransmissionLoss struct {
	Mode        bellhop.Mode
	MaxRange    float64
	RangePoints int
	MaxDepth    float64
	DepthPoints int
	CLim        [2]float64
}

// Options configures a Session. Solver is required; History, Store and
// Bus are optional.
type Options struct {
	Solver       bellhop.Solver
	History      HistoryRecorder
	Store        StateStore
	Bus          bus.Bus
	Presets      []config.PresetConfig
	Themes       []string
	DefaultTheme string
	TLoss        TransmissionLoss
	NBeams       int
	ExportDir    string
	Now          func() time.Time
}

// OptionsFromConfig fills the configuration driven part of Options.
func OptionsFromConfig(cfg config.AppConfig) Options {
	tl := cfg.Panel.TransmissionLoss
	return Options{
		Presets:      slices.Clone(cfg.Panel.Presets),
		Themes:       slices.Clone(config.Themes),
		DefaultTheme: cfg.Panel.DefaultTheme,
		TLoss: TransmissionLoss{
			Mode:        bellhop.Mode(tl.Mode),
			MaxRange:    tl.MaxRange,
			RangePoints: tl.RangePoints,
			MaxDepth:    tl.MaxDepth,
			DepthPoints: tl.DepthPoints,
			CLim:        [2]float64{tl.ColorMin, tl.ColorMax},
		},
		NBeams:    cfg.Solver.NBeams,
		ExportDir: cfg.Panel.ExportDir,
	}
}

// RunSummary describes the last simulation.
type RunSummary struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcomes   map[Slot]string `json:"outcomes"`
}

// State is a read-only snapshot of the session.
type State struct {
	Keys    []string          `json:"keys"`
	Widgets map[string]string `json:"widgets"`
	Log     []string          `json:"log"`
	Theme   string            `json:"theme"`
	Themes  []string          `json:"themes"`
	Presets []string          `json:"presets"`
	Columns [][]Slot          `json:"columns"`
	Layout  Layout            `json:"layout"`
	LastRun *RunSummary       `json:"last_run,omitempty"`
	Busy    bool              `json:"busy"`
}

// Event is published on TopicState after every mutation.
type Event struct {
	Type  string `json:"type"`
	State State  `json:"state"`
}

// Session is one control panel. It is safe for concurrent use.
type Session struct {
	runMu sync.Mutex // serialises mutations that run the solver

	mu      sync.RWMutex
	opts    Options
	params  params.Params
	widgets map[string]string
	log     *CommandLog
	theme   string
	layout  Layout
	env     *bellhop.Env
	presets []config.PresetConfig
	lastRun *RunSummary
	busy    bool

	logger zerolog.Logger
}

// New creates a session holding the default parameters and placeholder
// figures. No simulation is run.
func New(opts Options) (*Session, error) {
	if opts.Solver == nil {
		return nil, errors.New("panel: solver is required")
	}
	if len(opts.Themes) == 0 {
		opts.Themes = slices.Clone(config.Themes)
	}
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = "light_minimal"
	}
	if !slices.Contains(opts.Themes, opts.DefaultTheme) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, opts.DefaultTheme)
	}
	if opts.Presets == nil {
		opts.Presets = config.DefaultPresets()
	}
	if opts.TLoss.Mode == "" {
		opts.TLoss.Mode = bellhop.ModeIncoherent
	}
	if opts.TLoss.CLim == [2]float64{} {
		opts.TLoss.CLim = [2]float64{-60, -30}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		opts:    opts,
		params:  params.Defaults(),
		widgets: params.DefaultWidgets(),
		log:     NewCommandLog(),
		theme:   opts.DefaultTheme,
		layout:  placeholderLayout(),
		presets: slices.Clone(opts.Presets),
		logger:  xglog.WithComponent("panel"),
	}, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	widgets := make(map[string]string, len(s.widgets))
	for k, v := range s.widgets {
		widgets[k] = v
	}
	names := make([]string, len(s.presets))
	for i, p := range s.presets {
		names[i] = p.Name
	}
	var last *RunSummary
	if s.lastRun != nil {
		cp := *s.lastRun
		last = &cp
	}
	return State{
		Keys:    params.Keys(),
		Widgets: widgets,
		Log:     s.log.Lines(),
		Theme:   s.theme,
		Themes:  slices.Clone(s.opts.Themes),
		Presets: names,
		Columns: Columns,
		Layout:  s.layout.clone(),
		LastRun: last,
		Busy:    s.busy,
	}
}

// Params returns a copy of the typed parameters.
func (s *Session) Params() params.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.Clone()
}

// Log returns the command log lines.
func (s *Session) Log() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Lines()
}

// Theme returns the current theme.
func (s *Session) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// Themes returns the selectable themes.
func (s *Session) Themes() []string {
	return slices.Clone(s.opts.Themes)
}

// Presets returns the preset definitions.
func (s *Session) Presets() []config.PresetConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.presets)
}

// Figure returns the figure in slot.
func (s *Session) Figure(slot Slot) (*plot.Figure, error) {
	if _, err := ParseSlot(string(slot)); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout[slot], nil
}

func (s *Session) addLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Add(line)
}

// persist saves widget texts and theme to the state store.
func (s *Session) persist(ctx context.Context) {
	if s.opts.Store == nil {
		return
	}
	s.mu.RLock()
	st := session.State{Widgets: make(map[string]string, len(s.widgets)), Theme: s.theme, SavedAt: s.opts.Now().UTC()}
	for k, v := range s.widgets {
		st.Widgets[k] = v
	}
	s.mu.RUnlock()

	if err := s.opts.Store.Save(ctx, st); err != nil {
		metrics.IncStoreError("session")
		s.logger.Warn().Err(err).Str(xglog.FieldEvent, "panel.persist_failed").Msg("failed to save panel state")
	}
}

// publish sends the current state to subscribers.
func (s *Session) publish(ctx context.Context) {
	if s.opts.Bus == nil {
		return
	}
	ev := Event{Type: "state", State: s.Snapshot()}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.opts.Bus.Publish(pctx, TopicState, ev); err != nil {
		s.logger.Debug().Err(err).Str(xglog.FieldEvent, "panel.publish_failed").Msg("state event not delivered")
	}
}

// Restore applies persisted widget texts and theme without running the
// solver. Unknown keys and themes are ignored.
func (s *Session) Restore(st session.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range st.Widgets {
		if params.Known(k) {
			s.widgets[k] = v
		}
	}
	s.params, _ = params.Apply(s.params, s.widgets)
	if slices.Contains(s.opts.Themes, st.Theme) {
		s.theme = st.Theme
	}
	s.logger.Info().
		Str(xglog.FieldEvent, "panel.restored").
		Str(xglog.FieldTheme, s.theme).
		Int("widgets", len(st.Widgets)).
		Msg("panel state restored")
}

// ApplyConfig replaces the configuration driven options of a live session:
// presets and the transmission loss grid.
func (s *Session) ApplyConfig(cfg config.AppConfig) {
	next := OptionsFromConfig(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = next.Presets
	if next.TLoss.Mode != "" {
		s.opts.TLoss = next.TLoss
	}
	s.opts.NBeams = next.NBeams
	s.opts.ExportDir = next.ExportDir
	s.logger.Info().
		Str(xglog.FieldEvent, "panel.config_applied").
		Int("presets", len(s.presets)).
		Msg("panel configuration applied")
}
