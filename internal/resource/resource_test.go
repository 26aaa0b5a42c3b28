// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ratazzi/hola/internal/value"
)

func TestCollection_AddMergesDuplicateRef(t *testing.T) {
	c := NewCollection()
	r1 := &Resource{
		Type: "file", Name: "/tmp/a",
		Properties: map[string]value.Value{"mode": value.NewString("0644")},
	}
	r2 := &Resource{
		Type: "file", Name: "/tmp/a",
		Properties: map[string]value.Value{"content": value.NewString("hi\n")},
	}

	require.NoError(t, c.Add(r1))
	require.NoError(t, c.Add(r2))

	all := c.All()
	require.Len(t, all, 1, "a repeated ref must fold into the existing resource, not append")
	require.Equal(t, 0, all[0].DeclarationIndex, "declaration_index is preserved across merge")
	require.Equal(t, "0644", all[0].Properties["mode"].StringOr(""))
	require.Equal(t, "hi\n", all[0].Properties["content"].StringOr(""))
}

func TestCollection_OrderedByDeclaration(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(&Resource{Type: "file", Name: "a"}))
	require.NoError(t, c.Add(&Resource{Type: "file", Name: "b"}))
	require.NoError(t, c.Add(&Resource{Type: "file", Name: "c"}))

	all := c.All()
	require.Equal(t, "a", all[0].Name)
	require.Equal(t, "b", all[1].Name)
	require.Equal(t, "c", all[2].Name)
	require.Equal(t, 0, all[0].DeclarationIndex)
	require.Equal(t, 2, all[2].DeclarationIndex)
}

func TestCollection_DelayedQueueDedupes(t *testing.T) {
	c := NewCollection()
	n := Notification{Action: "restart", Target: Ref{Type: "execute", Name: "svc"}, Timing: Delayed}
	c.QueueDelayed(n)
	c.QueueDelayed(n)

	_, ok := c.DrainDelayed()
	require.True(t, ok)
	_, ok = c.DrainDelayed()
	require.False(t, ok, "second identical notification must have been deduped")
}

func TestFileHandler_ConvergesThenReportsUpToDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "h.txt")

	r := &Resource{
		Type: "file",
		Name: path,
		Properties: map[string]value.Value{
			"path":    value.NewString(path),
			"content": value.NewString("hi\n"),
			"mode":    value.NewString("0644"),
		},
	}

	schema, ok := Lookup("file")
	require.True(t, ok)
	h := schema.Handler

	probe, err := h.Probe(context.Background(), r, "create")
	require.NoError(t, err)
	require.Equal(t, NeedsChange, probe.State)

	applyResult, err := h.Apply(context.Background(), r, "create", false)
	require.NoError(t, err)
	require.Equal(t, Applied, applyResult.Outcome)

	probe, err = h.Probe(context.Background(), r, "create")
	require.NoError(t, err)
	require.Equal(t, UpToDate, probe.State)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	probe, err = h.Probe(context.Background(), r, "create")
	require.NoError(t, err)
	require.Equal(t, NeedsChange, probe.State)

	applyResult, err = h.Apply(context.Background(), r, "create", false)
	require.NoError(t, err)
	require.Equal(t, Applied, applyResult.Outcome)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hi\n", string(data))
}

func TestFileHandler_DryRunLeavesFilesystemUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "h.txt")

	r := &Resource{
		Type: "file",
		Name: path,
		Properties: map[string]value.Value{
			"path":    value.NewString(path),
			"content": value.NewString("hi\n"),
		},
	}

	schema, _ := Lookup("file")
	result, err := schema.Handler.Apply(context.Background(), r, "create", true)
	require.NoError(t, err)
	require.Equal(t, Skipped, result.Outcome)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestLinkHandler_GuardDefaultDetectsExistingCorrectLink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	r := &Resource{
		Type: "link",
		Name: link,
		Properties: map[string]value.Value{
			"path": value.NewString(link),
			"to":   value.NewString(target),
		},
	}

	schema, _ := Lookup("link")
	guarder, ok := schema.Handler.(GuardDefaulter)
	require.True(t, ok)

	converged, err := guarder.GuardDefault(context.Background(), r)
	require.NoError(t, err)
	require.True(t, converged)
}

func TestBuildDownloadRequest_ThreadsAuthAndRetryPolicy(t *testing.T) {
	r := &Resource{
		Type: "remote_file",
		Name: "/tmp/pkg.tar.gz",
		Properties: map[string]value.Value{
			"path":    value.NewString("/tmp/pkg.tar.gz"),
			"source":  value.NewString("s3://bucket/pkg.tar.gz"),
			"retries": value.NewInt(3),
			"auth": value.NewDict(map[string]value.Value{
				"access_key_id":     value.NewString("AKIA"),
				"secret_access_key": value.NewString("secret"),
				"region":            value.NewString("eu-west-1"),
			}),
		},
	}

	req := buildDownloadRequest(r)
	require.Equal(t, "s3://bucket/pkg.tar.gz", req.URL)
	require.Equal(t, 3, req.MaxAttempts)
	require.True(t, req.RetryServer5xx)
	require.NotNil(t, req.Auth)
	require.NotNil(t, req.Auth.AWS)
	require.Equal(t, "AKIA", req.Auth.AWS.AccessKeyID)
	require.Equal(t, "eu-west-1", req.Auth.AWS.Region)
}

func TestParseAuth_VariantInference(t *testing.T) {
	ssh := parseAuth(map[string]value.Value{
		"private_key_path": value.NewString("/home/me/.ssh/id_ed25519"),
		"known_hosts_path": value.NewString("/home/me/.ssh/known_hosts"),
	})
	require.NotNil(t, ssh.SSH)
	require.Nil(t, ssh.AWS)

	basic := parseAuth(map[string]value.Value{
		"username": value.NewString("me"),
		"password": value.NewString("pw"),
	})
	require.NotNil(t, basic.Basic)
	require.Equal(t, "me", basic.Basic.Username)

	require.Nil(t, parseAuth(map[string]value.Value{}))
}
