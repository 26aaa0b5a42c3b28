// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ratazzi/hola/internal/resource"
	"github.com/ratazzi/hola/internal/value"
)

func newFile(path, content string) *resource.Resource {
	return &resource.Resource{
		Type:    "file",
		Name:    path,
		Actions: []string{"create"},
		Properties: map[string]value.Value{
			"path":    value.NewString(path),
			"content": value.NewString(content),
		},
	}
}

func TestRunner_FileConverge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "h.txt")

	collection := resource.NewCollection()
	require.NoError(t, collection.Add(newFile(path, "hi\n")))

	rn := New(nil, nil)

	require.NoError(t, rn.Run(context.Background(), collection, Options{}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hi\n", string(data))

	var events []Event
	rn2 := New(nil, func(e Event) { events = append(events, e) })
	require.NoError(t, rn2.Run(context.Background(), collection, Options{}))
	require.Equal(t, "up-to-date", events[len(events)-1].Status)
	require.False(t, collection.All()[0].UpdatedByLastAction)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, rn.Run(context.Background(), collection, Options{}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hi\n", string(data))
}

func TestRunner_ImmediateNotifyFiresRightAfterSource(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	collection := resource.NewCollection()

	touchB := &resource.Resource{
		Type:    "execute",
		Name:    "touch-b",
		Actions: []string{"nothing"},
		Properties: map[string]value.Value{
			"command": value.NewString("touch " + b),
		},
	}
	require.NoError(t, collection.Add(touchB))

	fileA := newFile(a, "a")
	fileA.Notifications = []resource.Notification{
		{Action: "run", Target: resource.Ref{Type: "execute", Name: "touch-b"}, Timing: resource.Immediately},
	}
	require.NoError(t, collection.Add(fileA))

	rn := New(nil, nil)
	require.NoError(t, rn.Run(context.Background(), collection, Options{}))

	aInfo, err := os.Stat(a)
	require.NoError(t, err)
	bInfo, err := os.Stat(b)
	require.NoError(t, err)
	require.True(t, bInfo.ModTime().After(aInfo.ModTime()) || bInfo.ModTime().Equal(aInfo.ModTime()))
}

func TestRunner_DelayedNotificationDedupesAcrossTwoSources(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")

	collection := resource.NewCollection()

	svc := &resource.Resource{
		Type:    "execute",
		Name:    "svc",
		Actions: []string{"nothing"},
		Properties: map[string]value.Value{
			"command": value.NewString("echo x >> " + marker),
		},
	}
	require.NoError(t, collection.Add(svc))

	target := resource.Ref{Type: "execute", Name: "svc"}
	f1 := newFile(filepath.Join(dir, "f1"), "one")
	f1.Notifications = []resource.Notification{{Action: "run", Target: target, Timing: resource.Delayed}}
	require.NoError(t, collection.Add(f1))

	f2 := newFile(filepath.Join(dir, "f2"), "two")
	f2.Notifications = []resource.Notification{{Action: "run", Target: target, Timing: resource.Delayed}}
	require.NoError(t, collection.Add(f2))

	rn := New(nil, nil)
	require.NoError(t, rn.Run(context.Background(), collection, Options{}))

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Equal(t, "x\n", string(data), "execute[svc] must run exactly once despite two delayed notifiers")
}

func TestRunner_DryRunLeavesFilesystemUnchangedButReportsIntent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "h.txt")

	collection := resource.NewCollection()
	require.NoError(t, collection.Add(newFile(path, "hi\n")))

	var events []Event
	rn := New(nil, func(e Event) { events = append(events, e) })
	require.NoError(t, rn.Run(context.Background(), collection, Options{DryRun: true}))

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	found := false
	for _, e := range events {
		if e.Status == "skipped (dry-run)" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunner_IgnoreFailureDegradesToWarning(t *testing.T) {
	collection := resource.NewCollection()
	r := &resource.Resource{
		Type:          "execute",
		Name:          "boom",
		Actions:       []string{"run"},
		IgnoreFailure: true,
		Properties: map[string]value.Value{
			"command": value.NewString("exit 1"),
		},
	}
	require.NoError(t, collection.Add(r))

	rn := New(nil, nil)
	require.NoError(t, rn.Run(context.Background(), collection, Options{}))
}

func TestRunner_FailureWithoutIgnoreAbortsRun(t *testing.T) {
	collection := resource.NewCollection()
	r := &resource.Resource{
		Type:    "execute",
		Name:    "boom",
		Actions: []string{"run"},
		Properties: map[string]value.Value{
			"command": value.NewString("exit 1"),
		},
	}
	require.NoError(t, collection.Add(r))

	rn := New(nil, nil)
	err := rn.Run(context.Background(), collection, Options{})
	require.Error(t, err)
}
