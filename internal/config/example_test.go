// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config_test

import (
	"path/filepath"
	"testing"

	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// The shipped example must load cleanly and document the real defaults.
func TestExampleConfigMatchesDefaults(t *testing.T) {
	root := testutil.MustRepoRoot(t)
	env := map[string]string{"ARL_DATA_DIR": t.TempDir()}

	fromFile, err := config.NewLoader(filepath.Join(root, "config.example.yaml"), "test").
		WithEnvironment(env).
		Load()
	require.NoError(t, err)

	defaults, err := config.NewLoader("", "test").WithEnvironment(env).Load()
	require.NoError(t, err)

	if diff := cmp.Diff(defaults, fromFile, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config.example.yaml drifted from defaults (-defaults +file):\n%s", diff)
	}
}
