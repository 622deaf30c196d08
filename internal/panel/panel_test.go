// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package panel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/arlpanel/internal/bellhop"
	"github.com/ManuGH/arlpanel/internal/bus"
	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/fsutil"
	"github.com/ManuGH/arlpanel/internal/history"
	"github.com/ManuGH/arlpanel/internal/params"
	"github.com/ManuGH/arlpanel/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSolver struct {
	calls atomic.Int32

	eigenErr   error
	arrivalErr error
	raysErr    error
	tlossErr   error
	panicRays  bool

	mu       sync.Mutex
	lastGrid *bellhop.Env
}

func (f *fakeSolver) ray() []bellhop.Ray {
	return []bellhop.Ray{
		{DepartureAngle: -10, Points: []bellhop.Point{{X: 0, Y: 5}, {X: 500, Y: 20}, {X: 1000, Y: 10}}},
		{DepartureAngle: 10, BottomBounces: 1, Points: []bellhop.Point{{X: 0, Y: 5}, {X: 1000, Y: 25}}},
	}
}

func (f *fakeSolver) ComputeEigenrays(_ context.Context, _ *bellhop.Env) ([]bellhop.Ray, error) {
	f.calls.Add(1)
	if f.eigenErr != nil {
		return nil, f.eigenErr
	}
	return f.ray(), nil
}

func (f *fakeSolver) ComputeArrivals(_ context.Context, _ *bellhop.Env) ([]bellhop.Arrival, error) {
	f.calls.Add(1)
	if f.arrivalErr != nil {
		return nil, f.arrivalErr
	}
	return []bellhop.Arrival{
		{Delay: 0.66, Amplitude: complex(0.01, 0)},
		{Delay: 0.67, Amplitude: complex(0, -0.004)},
	}, nil
}

func (f *fakeSolver) ComputeRays(_ context.Context, _ *bellhop.Env) ([]bellhop.Ray, error) {
	f.calls.Add(1)
	if f.panicRays {
		panic("boom")
	}
	if f.raysErr != nil {
		return nil, f.raysErr
	}
	return f.ray(), nil
}

func (f *fakeSolver) ComputeTransmissionLoss(_ context.Context, env *bellhop.Env, _ bellhop.Mode) (*bellhop.Field, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastGrid = env
	f.mu.Unlock()
	if f.tlossErr != nil {
		return nil, f.tlossErr
	}
	field := &bellhop.Field{Depths: env.RxDepth, Ranges: env.RxRange}
	for range env.RxDepth {
		row := make([]complex128, len(env.RxRange))
		for j := range row {
			row[j] = complex(0.01, 0.001)
		}
		field.Pressure = append(field.Pressure, row)
	}
	return field, nil
}

type fakeHistory struct {
	mu   sync.Mutex
	runs []history.Run
	err  error
}

func (h *fakeHistory) Record(_ context.Context, run history.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.runs = append(h.runs, run)
	return nil
}

type fakeStore struct {
	mu     sync.Mutex
	states []session.State
}

func (s *fakeStore) Save(_ context.Context, st session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
	return nil
}

func (s *fakeStore) last() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[len(s.states)-1]
}

func testOptions(solver bellhop.Solver) Options {
	opts := OptionsFromConfig(config.Defaults())
	opts.Solver = solver
	opts.TLoss.RangePoints = 11
	opts.TLoss.DepthPoints = 7
	opts.ExportDir = ""
	opts.Now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return opts
}

func newTestSession(t *testing.T, solver bellhop.Solver, mutate ...func(*Options)) *Session {
	t.Helper()
	opts := testOptions(solver)
	for _, m := range mutate {
		m(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresSolver(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestNew_RejectsUnknownDefaultTheme(t *testing.T) {
	_, err := New(Options{Solver: &fakeSolver{}, DefaultTheme: "neon"})
	require.ErrorIs(t, err, ErrUnknownTheme)
}

func TestNew_InitialState(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})
	st := s.Snapshot()

	assert.Equal(t, []string{LogHeader}, st.Log)
	assert.Equal(t, "light_minimal", st.Theme)
	assert.Equal(t, params.Keys(), st.Keys)
	assert.Equal(t, params.DefaultWidgets(), st.Widgets)
	assert.Equal(t, []string{"Preset 1", "Preset 2", "Preset 3"}, st.Presets)
	assert.Equal(t, 6, st.Layout.Placeholders())
	assert.Nil(t, st.LastRun)
	assert.False(t, st.Busy)
}

func TestRunSimulation_FillsAllSlots(t *testing.T) {
	solver := &fakeSolver{}
	hist := &fakeHistory{}
	s := newTestSession(t, solver, func(o *Options) { o.History = hist })

	sum := s.RunSimulation(context.Background())

	assert.Equal(t, int32(4), solver.calls.Load())
	for _, slot := range Slots {
		assert.Equal(t, history.OutcomeOK, sum.Outcomes[slot], slot)
		fig, err := s.Figure(slot)
		require.NoError(t, err)
		assert.False(t, fig.Placeholder, slot)
		assert.Equal(t, Title(slot, "arlpy"), fig.Title)
	}
	assert.Equal(t, []string{LogHeader, "Simulation run with updated values."}, s.Log())

	require.Len(t, hist.runs, 1)
	assert.Equal(t, sum.ID, hist.runs[0].ID)
	assert.False(t, hist.runs[0].Failed())
	assert.Equal(t, []string{"Simulation run with updated values."}, hist.runs[0].Log)
}

func TestRunSimulation_TransmissionLossGridCappedAtWaterDepth(t *testing.T) {
	solver := &fakeSolver{}
	s := newTestSession(t, solver, func(o *Options) { o.TLoss.MaxDepth = 100 })

	s.RunSimulation(context.Background())

	require.NotNil(t, solver.lastGrid)
	assert.Len(t, solver.lastGrid.RxRange, 11)
	assert.Len(t, solver.lastGrid.RxDepth, 7)
	assert.InDelta(t, 30.0, solver.lastGrid.RxDepth[6], 1e-9)
	assert.InDelta(t, 1000.0, solver.lastGrid.RxRange[10], 1e-9)
}

func TestRunSimulation_StepFailureKeepsPlaceholder(t *testing.T) {
	solver := &fakeSolver{arrivalErr: errors.New("solver exploded"), panicRays: true}
	s := newTestSession(t, solver)

	sum := s.RunSimulation(context.Background())

	assert.Equal(t, "solver exploded", sum.Outcomes[SlotArrivals])
	assert.Contains(t, sum.Outcomes[SlotRays], "panic")
	assert.Equal(t, history.OutcomeOK, sum.Outcomes[SlotEnv])
	assert.Equal(t, history.OutcomeOK, sum.Outcomes[SlotTLoss])

	arr, err := s.Figure(SlotArrivals)
	require.NoError(t, err)
	assert.True(t, arr.Placeholder)
	assert.Equal(t, "Error plotting arrivals", arr.Title)

	log := s.Log()
	assert.Contains(t, log, "Error computing or plotting arrivals: solver exploded")
	assert.Contains(t, log, "Error computing or plotting rays: panic: boom")
	assert.Equal(t, "Simulation run with updated values.", log[len(log)-1])
}

func TestUpdate_InvalidEnvironmentShowsSixPlaceholders(t *testing.T) {
	solver := &fakeSolver{}
	s := newTestSession(t, solver)
	s.RunSimulation(context.Background())

	sum, err := s.Update(context.Background(), map[string]string{"type": "3D"})
	require.NoError(t, err)

	assert.Equal(t, int32(4), solver.calls.Load(), "solver must not run for an invalid environment")
	assert.Equal(t, 6, s.Snapshot().Layout.Placeholders())
	for _, slot := range Slots {
		assert.Equal(t, "skipped", sum.Outcomes[slot])
	}
	log := s.Log()
	require.GreaterOrEqual(t, len(log), 2)
	assert.True(t, strings.HasPrefix(log[len(log)-2], "Error creating environment: "), log[len(log)-2])
	assert.Equal(t, "Simulation updated.", log[len(log)-1])
}

func TestUpdate_MalformedJSONKeepsPreviousValue(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})

	_, err := s.Update(context.Background(), map[string]string{"soundspeed": "[[0,"})
	require.NoError(t, err)

	assert.Equal(t, params.Defaults()[params.SoundSpeed], s.Params()[params.SoundSpeed])
	assert.Equal(t, "[[0,", s.Snapshot().Widgets["soundspeed"])
	assert.Equal(t, []string{
		LogHeader,
		"Invalid JSON entered for soundspeed.",
		"Simulation run with updated values.",
		"Simulation updated.",
	}, s.Log())
}

func TestUpdate_NoneClearsValue(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})

	_, err := s.Update(context.Background(), map[string]string{"surface": "None", "frequency": "5000"})
	require.NoError(t, err)

	p := s.Params()
	assert.Nil(t, p[params.Surface])
	assert.Equal(t, 5000.0, p[params.Frequency])
}

func TestUpdate_UnknownKeyRejectsEverything(t *testing.T) {
	solver := &fakeSolver{}
	s := newTestSession(t, solver)

	_, err := s.Update(context.Background(), map[string]string{"frequency": "100", "colour": "red"})
	require.ErrorIs(t, err, ErrUnknownKey)

	assert.Equal(t, 25000.0, s.Params()[params.Frequency])
	assert.Equal(t, int32(0), solver.calls.Load())
	assert.Equal(t, []string{LogHeader}, s.Log())
}

func TestUpdate_PersistsAndPublishes(t *testing.T) {
	store := &fakeStore{}
	b := bus.NewMemoryBus()
	s := newTestSession(t, &fakeSolver{}, func(o *Options) {
		o.Store = store
		o.Bus = b
	})

	sub, err := b.Subscribe(context.Background(), TopicState)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	_, err = s.Update(context.Background(), map[string]string{"name": "harbour"})
	require.NoError(t, err)

	assert.Equal(t, "harbour", store.last().Widgets["name"])

	select {
	case msg := <-sub.C():
		ev, ok := msg.(Event)
		require.True(t, ok)
		assert.Equal(t, "state", ev.Type)
		assert.Equal(t, "harbour", ev.State.Widgets["name"])
		assert.Equal(t, "harbour env", ev.State.Layout[SlotEnv].Title)
	case <-time.After(time.Second):
		t.Fatal("no state event published")
	}
}

func TestReset_RestoresDefaults(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})
	_, err := s.Update(context.Background(), map[string]string{"frequency": "100"})
	require.NoError(t, err)

	s.Reset(context.Background())

	assert.Equal(t, 25000.0, s.Params()[params.Frequency])
	assert.Equal(t, params.DefaultWidgets(), s.Snapshot().Widgets)
	log := s.Log()
	assert.Equal(t, []string{"Simulation updated.", "Parameters reset to default."}, log[len(log)-2:])
}

func TestLoadPreset(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})

	sum, err := s.LoadPreset(context.Background(), "Preset 2")
	require.NoError(t, err)
	assert.Equal(t, history.OutcomeOK, sum.Outcomes[SlotEnv])

	p := s.Params()
	assert.Equal(t, 0.2, p[params.BottomAbsorption])
	assert.Equal(t, 1700.0, p[params.BottomDensity])
	assert.Equal(t, 1650.0, p[params.BottomSoundSpeed])
	log := s.Log()
	assert.Equal(t, "Preset Preset 2 loaded.", log[len(log)-1])
}

func TestLoadPreset_Unknown(t *testing.T) {
	solver := &fakeSolver{}
	s := newTestSession(t, solver)

	_, err := s.LoadPreset(context.Background(), "Preset 9")
	require.ErrorIs(t, err, ErrUnknownPreset)
	assert.Equal(t, int32(0), solver.calls.Load())
}

func TestSwitchTheme(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(t, &fakeSolver{}, func(o *Options) { o.Store = store })

	require.NoError(t, s.SwitchTheme(context.Background(), "night_sky"))
	assert.Equal(t, "night_sky", s.Theme())
	assert.Equal(t, "night_sky", store.last().Theme)
	assert.Equal(t, []string{LogHeader}, s.Log())

	require.ErrorIs(t, s.SwitchTheme(context.Background(), "neon"), ErrUnknownTheme)
	assert.Equal(t, "night_sky", s.Theme())
}

func TestRestore(t *testing.T) {
	solver := &fakeSolver{}
	s := newTestSession(t, solver)

	s.Restore(session.State{
		Widgets: map[string]string{"frequency": "1200", "bogus": "1"},
		Theme:   "dark_minimal",
	})

	assert.Equal(t, 1200.0, s.Params()[params.Frequency])
	assert.Equal(t, "dark_minimal", s.Theme())
	_, ok := s.Snapshot().Widgets["bogus"]
	assert.False(t, ok)
	assert.Equal(t, int32(0), solver.calls.Load())

	s.Restore(session.State{Theme: "neon"})
	assert.Equal(t, "dark_minimal", s.Theme())
}

func TestApplyConfig_ReplacesPresets(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})
	cfg := config.Defaults()
	cfg.Panel.Presets = append(cfg.Panel.Presets, config.PresetConfig{
		Name:   "Shallow",
		Values: map[string]string{"depth": "15"},
	})

	s.ApplyConfig(cfg)

	assert.Equal(t, []string{"Preset 1", "Preset 2", "Preset 3", "Shallow"}, s.Snapshot().Presets)
	_, err := s.LoadPreset(context.Background(), "Shallow")
	require.NoError(t, err)
	assert.Equal(t, 15.0, s.Params()[params.Depth])
}

func TestHistoryFailureDoesNotFailRun(t *testing.T) {
	hist := &fakeHistory{err: errors.New("disk full")}
	s := newTestSession(t, &fakeSolver{}, func(o *Options) { o.History = hist })

	sum := s.RunSimulation(context.Background())
	assert.Equal(t, history.OutcomeOK, sum.Outcomes[SlotTLoss])
}

func TestFigure_UnknownSlot(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})
	_, err := s.Figure("polar")
	require.ErrorIs(t, err, ErrUnknownSlot)
}

func TestExport_WritesBundle(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	s := newTestSession(t, &fakeSolver{}, func(o *Options) { o.ExportDir = dir })
	s.RunSimulation(context.Background())

	res, err := s.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "20250301T120000Z-arlpy"), res.Dir)
	for _, name := range []string{"params.json", "widgets.json", "log.txt", "run.json", "model.env", "figures/env.svg", "figures/tloss.json"} {
		assert.Contains(t, res.Files, name)
		_, err := os.Stat(filepath.Join(res.Dir, filepath.FromSlash(name)))
		assert.NoError(t, err, name)
	}

	svg, err := os.ReadFile(filepath.Join(res.Dir, "figures", "rays.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")

	log := s.Log()
	assert.Equal(t, "Results exported.", log[len(log)-1])
}

func TestExport_SameSecondGetsNewDirectory(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	s := newTestSession(t, &fakeSolver{}, func(o *Options) { o.ExportDir = dir })

	first, err := s.Export(context.Background())
	require.NoError(t, err)
	second, err := s.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "20250301T120000Z-arlpy"), first.Dir)
	assert.Equal(t, filepath.Join(dir, "20250301T120000Z-arlpy-2"), second.Dir)
	_, err = os.Stat(filepath.Join(first.Dir, "params.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(second.Dir, "params.json"))
	assert.NoError(t, err)
}

func TestExport_AfterNonFiniteInput(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, &fakeSolver{}, func(o *Options) { o.ExportDir = dir })

	_, err := s.Update(context.Background(), map[string]string{"frequency": "nan"})
	require.NoError(t, err)
	assert.Equal(t, 25000.0, s.Params()["frequency"])
	assert.Contains(t, s.Log(), "Invalid format for frequency, expected a float.")

	_, err = s.Export(context.Background())
	require.NoError(t, err)
}

func TestExport_RefusesSymlinkOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "20250301T120000Z-arlpy")))
	s := newTestSession(t, &fakeSolver{}, func(o *Options) { o.ExportDir = dir })

	_, err := s.Export(context.Background())
	require.ErrorIs(t, err, fsutil.ErrEscapesRoot)
	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExport_NoDirectory(t *testing.T) {
	s := newTestSession(t, &fakeSolver{})

	_, err := s.Export(context.Background())
	require.Error(t, err)
	log := s.Log()
	assert.True(t, strings.HasPrefix(log[len(log)-1], "Error exporting results: "))
}

func TestCommandLog_Dedupe(t *testing.T) {
	l := NewCommandLog()
	assert.True(t, l.Add("a"))
	assert.False(t, l.Add("a"))
	assert.True(t, l.Add("b"))
	assert.True(t, l.Add("a"))
	assert.Equal(t, []string{LogHeader, "a", "b", "a"}, l.Lines())
	assert.Equal(t, []string{"b", "a"}, l.Since(2))
	assert.Nil(t, l.Since(10))
	assert.Equal(t, "Command output:\na\nb\na", l.String())
}

func TestCommandLog_Capped(t *testing.T) {
	l := NewCommandLog()
	l.max = 4
	for i := 0; i < 3; i++ {
		l.Add("Simulation run with updated values.")
		l.Add("Simulation updated.")
	}
	mark := l.Mark()
	l.Add("x")
	l.Add("y")

	lines := l.Lines()
	assert.Equal(t, []string{LogHeader, "Simulation run with updated values.", "Simulation updated.", "x", "y"}, lines)
	assert.Equal(t, []string{"x", "y"}, l.Since(mark))
	assert.Equal(t, lines[1:], l.Since(0), "trimmed marks return what is left")
}

func TestCommandLog_DefaultCap(t *testing.T) {
	l := NewCommandLog()
	for i := 0; i < MaxLogLines; i++ {
		l.Add("Simulation run with updated values.")
		l.Add("Simulation updated.")
	}
	lines := l.Lines()
	assert.Len(t, lines, MaxLogLines+1)
	assert.Equal(t, LogHeader, lines[0])
	assert.Equal(t, "Simulation updated.", lines[len(lines)-1])
}

func TestCommandLog_HeaderNotTreatedAsPrevious(t *testing.T) {
	l := NewCommandLog()
	assert.True(t, l.Add(LogHeader))
	assert.Len(t, l.Lines(), 2)
}

func TestLayout(t *testing.T) {
	slot, err := ParseSlot("tloss")
	require.NoError(t, err)
	assert.Equal(t, SlotTLoss, slot)

	_, err = ParseSlot("nope")
	require.ErrorIs(t, err, ErrUnknownSlot)

	assert.Equal(t, "bay eigen rays", Title(SlotEigenrays, "bay"))
	assert.Equal(t, "Error plotting SSP", PlaceholderFor(SlotSSP).Title)
	assert.Equal(t, 6, placeholderLayout().Placeholders())
}
