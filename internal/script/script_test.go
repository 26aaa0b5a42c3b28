// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ratazzi/hola/internal/resource"
)

func TestHost_DeclaresFileResourceWithProperties(t *testing.T) {
	collection := resource.NewCollection()
	h := New(collection, nil)
	defer h.Close()

	err := h.LoadString(context.Background(), `
		file("/tmp/h.txt", function(r)
			r.content("hi\n")
			r.mode("0644")
		end)
	`)
	require.NoError(t, err)

	all := collection.All()
	require.Len(t, all, 1)
	require.Equal(t, "file", all[0].Type)
	require.Equal(t, "/tmp/h.txt", all[0].Name)

	content, err := all[0].Prop("content").AsString()
	require.NoError(t, err)
	require.Equal(t, "hi\n", content)
}

func TestHost_NotifiesImmediateAndDelayed(t *testing.T) {
	collection := resource.NewCollection()
	h := New(collection, nil)
	defer h.Close()

	err := h.LoadString(context.Background(), `
		execute("touch-b", function(r)
			r.command("touch /tmp/b")
			r.action("nothing")
		end)

		file("/tmp/a", function(r)
			r.content("a")
			r.notifies("run", "execute[touch-b]", "immediately")
		end)
	`)
	require.NoError(t, err)

	all := collection.All()
	require.Len(t, all, 2)
	fileRes := all[1]
	require.Len(t, fileRes.Notifications, 1)
	require.Equal(t, "run", fileRes.Notifications[0].Action)
	require.Equal(t, resource.Ref{Type: "execute", Name: "touch-b"}, fileRes.Notifications[0].Target)
	require.Equal(t, resource.Immediately, fileRes.Notifications[0].Timing)
}

func TestHost_SubscribesDesugarsIntoSourceNotifications(t *testing.T) {
	collection := resource.NewCollection()
	h := New(collection, nil)
	defer h.Close()

	// The subscriber is declared before its source on purpose: the rewrite
	// must tolerate either declaration order.
	err := h.LoadString(context.Background(), `
		execute("restart-svc", function(r)
			r.command("true")
			r.subscribes("restart", "file[/tmp/a]", "delayed")
		end)

		file("/tmp/a", function(r)
			r.content("a")
		end)
	`)
	require.NoError(t, err)

	source, ok := collection.Lookup(resource.Ref{Type: "file", Name: "/tmp/a"})
	require.True(t, ok)
	require.Len(t, source.Notifications, 1)
	require.Equal(t, "restart", source.Notifications[0].Action)
	require.Equal(t, resource.Ref{Type: "execute", Name: "restart-svc"}, source.Notifications[0].Target)
	require.Equal(t, resource.Delayed, source.Notifications[0].Timing)
}

func TestHost_OnlyIfGuardControlsApplyViaLuaClosure(t *testing.T) {
	collection := resource.NewCollection()
	h := New(collection, nil)
	defer h.Close()

	err := h.LoadString(context.Background(), `
		file("/tmp/a", function(r)
			r.content("a")
			r.only_if(function() return false end)
		end)
	`)
	require.NoError(t, err)

	all := collection.All()
	require.NotNil(t, all[0].OnlyIf)
	ok, err := all[0].OnlyIf()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHost_ActionListDesugarsStringAndTable(t *testing.T) {
	collection := resource.NewCollection()
	h := New(collection, nil)
	defer h.Close()

	err := h.LoadString(context.Background(), `
		file("/tmp/a", function(r)
			r.content("a")
			r.action("delete")
		end)
		directory("/tmp/d", function(r)
			r.action({"create", "delete"})
		end)
	`)
	require.NoError(t, err)

	all := collection.All()
	require.Equal(t, []string{"delete"}, all[0].Actions)
	require.Equal(t, []string{"create", "delete"}, all[1].Actions)
}

func TestHost_JSONPreludeRoundTrips(t *testing.T) {
	collection := resource.NewCollection()
	h := New(collection, nil)
	defer h.Close()

	err := h.LoadString(context.Background(), `
		result = JSON.decode(JSON.encode({a = 1, b = "two"}))
	`)
	require.NoError(t, err)
}

func TestHost_NodeGlobalExposesPlatformFacts(t *testing.T) {
	collection := resource.NewCollection()
	h := New(collection, nil)
	defer h.Close()

	err := h.LoadString(context.Background(), `
		assert(type(node.OS) == "string")
	`)
	require.NoError(t, err)
}
