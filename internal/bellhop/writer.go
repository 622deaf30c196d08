// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bellhop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxTitle is the width of the title record in solver files.
const maxTitle = 80

// Input holds the rendered solver input files keyed by extension.
type Input struct {
	Task  Task
	Files map[string][]byte
}

// Key identifies the run for caching: a hash of the task and every file.
func (in Input) Key() string {
	h := sha256.New()
	h.Write([]byte(in.Task))
	exts := make([]string, 0, len(in.Files))
	for ext := range in.Files {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		h.Write([]byte{0})
		h.Write([]byte(ext))
		h.Write([]byte{0})
		h.Write(in.Files[ext])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// WriteTo writes every file as base+ext inside dir.
func (in Input) WriteTo(dir, base string) error {
	for ext, data := range in.Files {
		p := filepath.Join(dir, base+ext)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// SanitizeTitle normalises a name for the quoted title record.
func SanitizeTitle(name string) string {
	name = norm.NFKC.String(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '\'' || r == '"':
			continue
		case r > unicode.MaxASCII || !unicode.IsPrint(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
		if b.Len() >= maxTitle {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// RenderInput produces the solver input files for env and task.
func RenderInput(env *Env, task Task) (Input, error) {
	if err := CheckEnv(env); err != nil {
		return Input{}, err
	}
	files := map[string][]byte{}
	var w strings.Builder

	maxDepth := env.MaxDepth()
	maxRangeKm := env.MaxRange() / 1000

	fmt.Fprintf(&w, "'%s'\n", SanitizeTitle(env.Name))
	fmt.Fprintf(&w, "%0.6f\n", env.Frequency)
	w.WriteString("1\n")

	interp := sspCode(env.SoundSpeedInterp)
	if env.Surface == nil {
		fmt.Fprintf(&w, "'%cVWT'\n", interp)
	} else {
		fmt.Fprintf(&w, "'%cVWT*'\n", interp)
		files[".ati"] = rangeTable(env.Surface, env.SurfaceInterp)
	}

	fmt.Fprintf(&w, "1 0.0 %0.6f\n", maxDepth)
	if env.SoundSpeed.IsConstant() {
		fmt.Fprintf(&w, "0.0 %0.6f /\n", env.SoundSpeed.Constant)
		fmt.Fprintf(&w, "%0.6f %0.6f /\n", maxDepth, env.SoundSpeed.Constant)
	} else {
		for _, p := range env.SoundSpeed.Points {
			fmt.Fprintf(&w, "%0.6f %0.6f /\n", p.X, p.Y)
		}
		if interp == 'Q' {
			files[".ssp"] = sspTable(env.SoundSpeed.Points, 1.01*maxRangeKm)
		}
	}

	if env.Depth.IsConstant() {
		fmt.Fprintf(&w, "'A' %0.6f\n", env.BottomRoughness)
	} else {
		fmt.Fprintf(&w, "'A*' %0.6f\n", env.BottomRoughness)
		files[".bty"] = rangeTable(env.Depth.Points, env.DepthInterp)
	}
	fmt.Fprintf(&w, "%0.6f %0.6f 0.0 %0.6f %0.6f /\n",
		maxDepth, env.BottomSoundSpeed, env.BottomDensity/1000, env.BottomAbsorption)

	writeArray(&w, env.TxDepth, 1)
	writeArray(&w, env.RxDepth, 1)
	writeArray(&w, env.RxRange, 1000)

	if env.TxDirectionality == nil {
		fmt.Fprintf(&w, "'%s'\n", task)
	} else {
		fmt.Fprintf(&w, "'%s *'\n", task)
		var sbp strings.Builder
		fmt.Fprintf(&sbp, "%d\n", len(env.TxDirectionality))
		for _, p := range env.TxDirectionality {
			fmt.Fprintf(&sbp, "%0.6f %0.6f\n", p.X, p.Y)
		}
		files[".sbp"] = []byte(sbp.String())
	}
	fmt.Fprintf(&w, "%d\n", env.NBeams)
	fmt.Fprintf(&w, "%0.6f %0.6f /\n", env.MinAngle, env.MaxAngle)
	fmt.Fprintf(&w, "0.0 %0.6f %0.6f\n", 1.01*maxDepth, 1.01*maxRangeKm)

	files[".env"] = []byte(w.String())
	return Input{Task: task, Files: files}, nil
}

func sspCode(method string) byte {
	switch method {
	case InterpSpline:
		return 'S'
	case InterpQuadrilateral:
		return 'Q'
	default:
		return 'C'
	}
}

// writeArray writes a count line followed by the values divided by scale.
func writeArray(w *strings.Builder, xs []float64, scale float64) {
	if len(xs) == 1 {
		fmt.Fprintf(w, "1\n%0.6f /\n", xs[0]/scale)
		return
	}
	fmt.Fprintf(w, "%d\n", len(xs))
	for _, x := range xs {
		fmt.Fprintf(w, "%0.6f ", x/scale)
	}
	w.WriteString("/\n")
}

// rangeTable renders a .bty or .ati file; ranges are written in km.
func rangeTable(pts []Point, method string) []byte {
	var b strings.Builder
	code := 'L'
	if method == InterpCurvilinear {
		code = 'C'
	}
	fmt.Fprintf(&b, "'%c'\n%d\n", code, len(pts))
	for _, p := range pts {
		fmt.Fprintf(&b, "%0.6f %0.6f\n", p.X/1000, p.Y)
	}
	return []byte(b.String())
}

// sspTable renders a range-dependent .ssp file holding the same profile at
// range 0 and at maxRangeKm.
func sspTable(pts []Point, maxRangeKm float64) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "2\n%0.6f %0.6f\n", 0.0, maxRangeKm)
	for _, p := range pts {
		fmt.Fprintf(&b, "%0.6f %0.6f\n", p.Y, p.Y)
	}
	return []byte(b.String())
}
