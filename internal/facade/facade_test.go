// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package facade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNeedsRestart_KnownDomains(t *testing.T) {
	require.True(t, NeedsRestart("com.apple.dock"))
	require.True(t, NeedsRestart("com.apple.finder"))
	require.False(t, NeedsRestart("com.example.myapp"))
}

func TestRunCommand_FailurePropagatesStderr(t *testing.T) {
	if !LookPath("sh") {
		t.Skip("sh not available")
	}
	_, err := runCommand(context.Background(), "", "sh", "-c", "echo boom >&2; exit 1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestRunCommand_SucceedsAndCapturesStdout(t *testing.T) {
	if !LookPath("sh") {
		t.Skip("sh not available")
	}
	out, err := runCommand(context.Background(), "", "sh", "-c", "echo hello")
	require.NoError(t, err)
	require.Contains(t, out, "hello")
}
