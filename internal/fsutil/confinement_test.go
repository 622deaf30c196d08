// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestConfineRelPath_Inside(t *testing.T) {
	root := realTempDir(t)

	got, err := ConfineRelPath(root, "bundle/figures/a.svg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "bundle", "figures", "a.svg"), got)

	got, err = ConfineRelPath(root, "a/../b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b"), got)

	got, err = ConfineRelPath(root, "..name")
	require.NoError(t, err, "dots inside a name are not traversal")
	assert.Equal(t, filepath.Join(root, "..name"), got)
}

func TestConfineRelPath_Rejects(t *testing.T) {
	root := realTempDir(t)

	for _, rel := range []string{"..", "../x", "a/../../x"} {
		_, err := ConfineRelPath(root, rel)
		assert.ErrorIs(t, err, ErrEscapesRoot, rel)
	}

	_, err := ConfineRelPath(root, "/etc/passwd")
	assert.Error(t, err)
	_, err = ConfineRelPath(root, `a\b`)
	assert.Error(t, err)
}

func TestConfineRelPath_Symlink(t *testing.T) {
	root := realTempDir(t)
	outside := realTempDir(t)
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	_, err := ConfineRelPath(root, "link/file.txt")
	assert.ErrorIs(t, err, ErrEscapesRoot)

	require.NoError(t, os.Mkdir(filepath.Join(root, "real"), 0o750))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "inner")))
	got, err := ConfineRelPath(root, "inner/new/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "real", "new", "file.txt"), got)
}

func TestConfineRelPath_MissingRoot(t *testing.T) {
	_, err := ConfineRelPath(filepath.Join(t.TempDir(), "missing"), "x")
	assert.Error(t, err)
}
