// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bellhop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	xglog "github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/metrics"
	"github.com/ManuGH/arlpanel/internal/procgroup"
	"github.com/ManuGH/arlpanel/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// baseName is the file stem of every run inside its work directory.
const baseName = "model"

// maxOutputTail bounds the solver output quoted in errors.
const maxOutputTail = 512

// Solver computes acoustic results for an environment.
type Solver interface {
	ComputeEigenrays(ctx context.Context, env *Env) ([]Ray, error)
	ComputeArrivals(ctx context.Context, env *Env) ([]Arrival, error)
	ComputeRays(ctx context.Context, env *Env) ([]Ray, error)
	ComputeTransmissionLoss(ctx context.Context, env *Env, mode Mode) (*Field, error)
}

// ResultCache stores raw solver output files.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config configures a Client.
type Config struct {
	Binary        string
	Timeout       time.Duration
	KillGrace     time.Duration
	WorkDir       string
	KeepWorkDir   bool
	CacheTTL      time.Duration
	RunsPerSecond float64
	Burst         int
}

// Client runs the external solver binary. It is safe for concurrent use.
type Client struct {
	cfg     Config
	cache   ResultCache
	limiter *rate.Limiter
	group   singleflight.Group
	logger  zerolog.Logger
}

var _ Solver = (*Client)(nil)

// NewClient creates a client. cache may be nil.
func NewClient(cfg Config, cache ResultCache) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 2 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RunsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RunsPerSecond), burst)
	}
	return &Client{
		cfg:     cfg,
		cache:   cache,
		limiter: limiter,
		logger:  xglog.WithComponent("solver"),
	}
}

// Binary returns the configured solver binary.
func (c *Client) Binary() string {
	return c.cfg.Binary
}

// Available reports whether the solver binary can be found.
func (c *Client) Available() error {
	if _, err := exec.LookPath(c.cfg.Binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSolverNotFound, c.cfg.Binary, err)
	}
	return nil
}

// ComputeEigenrays traces the rays connecting the first source to the
// first receiver.
func (c *Client) ComputeEigenrays(ctx context.Context, env *Env) ([]Ray, error) {
	e := env.Clone()
	e.TxDepth = first(e.TxDepth)
	e.RxDepth = first(e.RxDepth)
	e.RxRange = first(e.RxRange)
	out, err := c.Run(ctx, e, TaskEigenrays)
	if err != nil {
		return nil, err
	}
	return ParseRays(bytes.NewReader(out))
}

// ComputeArrivals computes the arrival structure at every receiver.
func (c *Client) ComputeArrivals(ctx context.Context, env *Env) ([]Arrival, error) {
	out, err := c.Run(ctx, env, TaskArrivals)
	if err != nil {
		return nil, err
	}
	return ParseArrivals(bytes.NewReader(out))
}

// ComputeRays traces the fan of rays leaving the first source.
func (c *Client) ComputeRays(ctx context.Context, env *Env) ([]Ray, error) {
	e := env.Clone()
	e.TxDepth = first(e.TxDepth)
	out, err := c.Run(ctx, e, TaskRays)
	if err != nil {
		return nil, err
	}
	return ParseRays(bytes.NewReader(out))
}

// ComputeTransmissionLoss computes the pressure field of the first source
// on the receiver grid of env.
func (c *Client) ComputeTransmissionLoss(ctx context.Context, env *Env, mode Mode) (*Field, error) {
	task, err := mode.Task()
	if err != nil {
		return nil, err
	}
	e := env.Clone()
	e.TxDepth = first(e.TxDepth)
	out, err := c.Run(ctx, e, task)
	if err != nil {
		return nil, err
	}
	return ParseShade(out)
}

// Run renders env for task, consults the cache and otherwise executes the
// solver. It returns the raw output file.
func (c *Client) Run(ctx context.Context, env *Env, task Task) ([]byte, error) {
	in, err := RenderInput(env, task)
	if err != nil {
		return nil, err
	}
	key := in.Key()

	ctx, span := telemetry.Tracer("arlpanel/bellhop").Start(ctx, "solver."+task.Name())
	defer span.End()

	if out, ok := c.lookup(ctx, key); ok {
		span.SetAttributes(telemetry.SolverAttributes(task.Name(), c.cfg.Binary, true)...)
		return out, nil
	}
	span.SetAttributes(telemetry.SolverAttributes(task.Name(), c.cfg.Binary, false)...)

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.execute(ctx, in)
	})
	if err != nil {
		telemetry.RecordError(span, err, errorType(err))
		return nil, err
	}
	out := v.([]byte)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, out, c.cfg.CacheTTL); err != nil {
			metrics.IncStoreError("cache")
			c.logger.Warn().Err(err).Str(xglog.FieldEvent, "solver.cache_store_failed").Msg("failed to cache solver output")
		}
	}
	return out, nil
}

func (c *Client) lookup(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	out, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.IncSolverCache("error")
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "solver.cache_lookup_failed").Msg("solver cache lookup failed")
		return nil, false
	case ok:
		metrics.IncSolverCache("hit")
		return out, true
	default:
		metrics.IncSolverCache("miss")
		return nil, false
	}
}

func (c *Client) execute(ctx context.Context, in Input) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for solver slot: %w", err)
	}

	dir, err := os.MkdirTemp(c.cfg.WorkDir, "arl-run-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	logger := c.logger.With().
		Str(xglog.FieldTask, in.Task.Name()).
		Str(xglog.FieldWorkDir, dir).
		Logger()
	if !c.cfg.KeepWorkDir {
		defer func() { _ = os.RemoveAll(dir) }()
	}

	if err := in.WriteTo(dir, baseName); err != nil {
		return nil, err
	}

	start := time.Now()
	output, runErr := c.spawn(ctx, dir)
	elapsed := time.Since(start)

	if len(output) > 0 {
		logger.Debug().Str(xglog.FieldEvent, "solver.output").Bytes("output", tail(output)).Msg("solver output")
	}

	if runErr == nil {
		prt, err := os.Open(filepath.Join(dir, baseName+".prt"))
		if err == nil {
			runErr = CheckPrint(prt)
			_ = prt.Close()
		}
	}

	var out []byte
	if runErr == nil {
		out, err = os.ReadFile(filepath.Join(dir, baseName+in.Task.OutputExt()))
		if err != nil {
			runErr = fmt.Errorf("%w: %s", ErrNoOutput, baseName+in.Task.OutputExt())
		}
	}

	outcome := "success"
	switch {
	case errors.Is(runErr, ErrSolverTimeout):
		outcome = "timeout"
	case runErr != nil:
		outcome = "failure"
	}
	metrics.ObserveSolverRun(in.Task.Name(), outcome, elapsed)

	if runErr != nil {
		logger.Error().Err(runErr).
			Str(xglog.FieldEvent, "solver.run").
			Str("outcome", outcome).
			Dur("duration", elapsed).
			Msg("solver run failed")
		return nil, runErr
	}
	logger.Info().
		Str(xglog.FieldEvent, "solver.run").
		Str("outcome", outcome).
		Dur("duration", elapsed).
		Int("bytes", len(out)).
		Msg("solver run finished")
	return out, nil
}

// spawn runs the binary in its own process group and returns its combined
// stdout and stderr.
func (c *Client) spawn(ctx context.Context, dir string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	// #nosec G204 -- the binary is operator configuration; the argument is our own temp path
	cmd := exec.Command(c.cfg.Binary, filepath.Join(dir, baseName))
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSolverNotFound, c.cfg.Binary)
		}
		return nil, fmt.Errorf("start solver: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		if err != nil {
			return buf.Bytes(), fmt.Errorf("%w: exit code %d: %s", ErrSolverFailed, exitCode(cmd), tail(buf.Bytes()))
		}
		return buf.Bytes(), nil
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, c.cfg.KillGrace)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return buf.Bytes(), fmt.Errorf("%w after %s", ErrSolverTimeout, c.cfg.Timeout)
		}
		return buf.Bytes(), ctx.Err()
	}
}

func first(xs []float64) []float64 {
	if len(xs) > 1 {
		return xs[:1]
	}
	return xs
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

func tail(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if len(b) > maxOutputTail {
		return b[len(b)-maxOutputTail:]
	}
	return b
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrSolverNotFound):
		return "not_found"
	case errors.Is(err, ErrSolverTimeout):
		return "timeout"
	case errors.Is(err, ErrNoOutput):
		return "no_output"
	case errors.Is(err, ErrBadOutput):
		return "bad_output"
	case errors.Is(err, ErrInvalidEnv):
		return "invalid_env"
	default:
		return "failed"
	}
}
