// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func TestDir_CreatesConfigDirectoryUnderHome(t *testing.T) {
	withHome(t)
	dir, err := Dir()
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestProvisionScript_SaveThenReadBack(t *testing.T) {
	withHome(t)
	require.NoError(t, SaveProvisionScript(`file("/tmp/x")`))
	path, err := ProvisionScriptPath()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `file("/tmp/x")`, string(data))
}

func TestDotfilesPath_RememberThenLoad(t *testing.T) {
	withHome(t)
	_, err := LoadDotfilesPath()
	require.NoError(t, err)

	require.NoError(t, RememberDotfilesPath("/Users/me/dotfiles"))
	got, err := LoadDotfilesPath()
	require.NoError(t, err)
	require.Equal(t, "/Users/me/dotfiles", got)
}

func TestLoad_EnvOverridesFileOverridesDefault(t *testing.T) {
	withHome(t)

	prefs := DefaultPreferences()
	require.Equal(t, "main", prefs.Branch)

	prefs.Branch = "release"
	require.NoError(t, Save(prefs))

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, "release", loaded.Branch)

	t.Setenv("HOLA_BRANCH", "env-wins")
	loaded, err = Load()
	require.NoError(t, err)
	require.Equal(t, "env-wins", loaded.Branch)
}

func TestLoad_NoColorEnvSetsFlag(t *testing.T) {
	withHome(t)
	t.Setenv("NO_COLOR", "1")
	prefs, err := Load()
	require.NoError(t, err)
	require.True(t, prefs.NoColor)
}

func TestTempDir_PrefersTMPDIR(t *testing.T) {
	t.Setenv("TMPDIR", "/custom/tmp")
	require.Equal(t, "/custom/tmp", TempDir())
}

func TestScratchScript_WritesAndCleansUp(t *testing.T) {
	path, cleanup, err := ScratchScript(time.Unix(1000, 0), []byte("file(\"/tmp/x\")"))
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)
	cleanup()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
