// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ManuGH/arlpanel/internal/bellhop"
	"github.com/ManuGH/arlpanel/internal/fsutil"
	xglog "github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/metrics"
	"github.com/ManuGH/arlpanel/internal/plot"
	"github.com/google/renameio/v2"
)

// ExportResult lists what Export wrote.
type ExportResult struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

type exportFile struct {
	name  string
	write func(io.Writer) error
}

// Export writes the parameters, the solver input, the command log and all
// six figures (SVG and JSON) into a new directory under the export dir.
func (s *Session) Export(ctx context.Context) (ExportResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.RLock()
	now := s.opts.Now().UTC()
	root := s.opts.ExportDir
	p := s.params.Clone()
	st := s.snapshotLocked()
	env := s.env
	s.mu.RUnlock()

	if root == "" {
		err := errors.New("export directory is not configured")
		s.addLog(fmt.Sprintf("Error exporting results: %v", err))
		return ExportResult{}, err
	}

	name := "arlpy"
	if env != nil {
		name = env.Name
	}
	bundle := now.Format("20060102T150405Z") + "-" + fileSafe(name)

	files := []exportFile{
		{"params.json", jsonWriter(p)},
		{"widgets.json", jsonWriter(st.Widgets)},
		{"log.txt", func(w io.Writer) error {
			_, err := io.WriteString(w, strings.Join(st.Log, "\n")+"\n")
			return err
		}},
	}
	if st.LastRun != nil {
		files = append(files, exportFile{"run.json", jsonWriter(st.LastRun)})
	}
	if env != nil {
		in, err := bellhop.RenderInput(env, bellhop.TaskRays)
		if err == nil {
			exts := make([]string, 0, len(in.Files))
			for ext := range in.Files {
				exts = append(exts, ext)
			}
			sort.Strings(exts)
			for _, ext := range exts {
				data := in.Files[ext]
				files = append(files, exportFile{"model" + ext, func(w io.Writer) error {
					_, err := w.Write(data)
					return err
				}})
			}
		}
	}
	for _, slot := range Slots {
		fig := st.Layout[slot]
		files = append(files,
			exportFile{"figures/" + string(slot) + ".svg", func(w io.Writer) error {
				return plot.Render(fig, plot.FormatSVG, w)
			}},
			exportFile{"figures/" + string(slot) + ".json", jsonWriter(fig)},
		)
	}

	res, err := writeBundle(ctx, root, bundle, files)
	dir := res.Dir
	if err != nil {
		s.addLog(fmt.Sprintf("Error exporting results: %v", err))
		metrics.IncStoreError("export")
		s.publish(ctx)
		return res, err
	}

	s.addLog("Results exported.")
	metrics.IncPanelUpdate("export")
	s.logger.Info().
		Str(xglog.FieldEvent, "panel.export").
		Str(xglog.FieldPath, dir).
		Int("files", len(res.Files)).
		Msg("results exported")
	s.publish(ctx)
	return res, nil
}

// writeBundle writes files below root/bundle. Every target is confined to
// root so a symlinked export dir cannot redirect writes elsewhere.
func writeBundle(ctx context.Context, root, bundle string, files []exportFile) (ExportResult, error) {
	res := ExportResult{Dir: filepath.Join(root, bundle)}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return res, fmt.Errorf("create export root: %w", err)
	}
	bundle, dir, err := reserveBundle(root, bundle)
	if err != nil {
		return res, fmt.Errorf("export dir: %w", err)
	}
	res.Dir = dir
	if err := os.MkdirAll(filepath.Join(dir, "figures"), 0o750); err != nil {
		return res, fmt.Errorf("create export dir: %w", err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path, err := fsutil.ConfineRelPath(root, filepath.Join(bundle, filepath.FromSlash(f.name)))
		if err != nil {
			return res, fmt.Errorf("write %s: %w", f.name, err)
		}
		if err := writeAtomic(path, f.write); err != nil {
			return res, fmt.Errorf("write %s: %w", f.name, err)
		}
		res.Files = append(res.Files, f.name)
	}
	return res, nil
}

// maxBundleSuffix bounds the search for a free bundle name.
const maxBundleSuffix = 100

// reserveBundle creates a new directory for the bundle under root and
// returns its name and resolved path. An existing directory is never
// reused; the name gets a -2, -3, ... suffix instead.
func reserveBundle(root, bundle string) (string, string, error) {
	for i := 1; i <= maxBundleSuffix; i++ {
		name := bundle
		if i > 1 {
			name = fmt.Sprintf("%s-%d", bundle, i)
		}
		dir, err := fsutil.ConfineRelPath(root, name)
		if err != nil {
			return "", "", err
		}
		err = os.Mkdir(dir, 0o750)
		if err == nil {
			return name, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("no free bundle name for %s", bundle)
}

// writeAtomic writes path through a pending file that is fsynced and
// renamed into place only after write succeeds.
func writeAtomic(path string, write func(io.Writer) error) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := write(pending); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

func jsonWriter(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
}

// fileSafe maps a title to a directory name component.
func fileSafe(name string) string {
	name = bellhop.SanitizeTitle(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "run"
	}
	return b.String()
}
