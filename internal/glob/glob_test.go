// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package glob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch_DoubleStarMatchesEverything(t *testing.T) {
	for _, s := range []string{"", "a", "a/b/c", "/leading", "trailing/"} {
		require.True(t, Match("**", s), "s=%q", s)
	}
}

func TestMatch_SingleStarStopsAtSlash(t *testing.T) {
	require.True(t, Match("*", "abc"))
	require.False(t, Match("*", "a/b"))
	require.True(t, Match("*.txt", "note.txt"))
	require.False(t, Match("*.txt", "dir/note.txt"))
}

func TestMatch_QuestionAndClasses(t *testing.T) {
	require.True(t, Match("fil?.txt", "file.txt"))
	require.False(t, Match("fil?.txt", "fil/.txt"))
	require.True(t, Match("[abc]at", "bat"))
	require.False(t, Match("[!abc]at", "bat"))
	require.True(t, Match("[a-z]at", "cat"))
}

func TestPlanLinks_SkipsIgnoredAndMapsToHome(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "hola.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config", "nvim"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "nvim", "init.vim"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".zshrc"), []byte("x"), 0o644))

	plans, err := PlanLinks(root, home, nil)
	require.NoError(t, err)

	var targets []string
	for _, p := range plans {
		targets = append(targets, p.Target)
	}
	require.Contains(t, targets, filepath.Join(home, "config", "nvim", "init.vim"))
	require.Contains(t, targets, filepath.Join(home, ".zshrc"))
	require.NotContains(t, targets, filepath.Join(home, "hola.yaml"))
	for _, tgt := range targets {
		require.NotContains(t, tgt, ".git")
	}
}
