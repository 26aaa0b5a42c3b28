// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"context"
	"strings"

	"github.com/ratazzi/hola/internal/facade"
	"github.com/ratazzi/hola/internal/value"
)

func init() {
	Register(TypeSchema{
		Name:          "macos_defaults",
		Properties:    []string{"domain", "global", "key", "value"},
		Actions:       []string{"write"},
		DefaultAction: "write",
		Handler:       macosDefaultsHandler{defaults: facade.NewDefaults(), script: facade.NewAppleScript()},
	})
	Register(TypeSchema{
		Name:          "macos_dock",
		Properties:    []string{"apps", "orientation", "autohide", "magnification", "tilesize", "largesize"},
		Actions:       []string{"apply"},
		DefaultAction: "apply",
		Handler:       macosDockHandler{defaults: facade.NewDefaults(), script: facade.NewAppleScript()},
	})
}

type macosDefaultsHandler struct {
	defaults *facade.Defaults
	script   *facade.AppleScript
}

func (h macosDefaultsHandler) domain(r *Resource) string {
	if global, _ := r.Prop("global").AsBool(); global {
		return "NSGlobalDomain"
	}
	d, _ := r.Prop("domain").AsString()
	return d
}

func (h macosDefaultsHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	domain := h.domain(r)
	key, _ := r.Prop("key").AsString()
	want := r.Prop("value")

	current, err := h.defaults.Read(ctx, domain, key)
	if err == facade.ErrKeyNotFound {
		return ProbeResult{State: NeedsChange, Reason: "key not set"}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	if !value.Equal(current, want) {
		return ProbeResult{State: NeedsChange, Reason: "value differs"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (h macosDefaultsHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	domain := h.domain(r)
	key, _ := r.Prop("key").AsString()
	val := r.Prop("value")

	if err := h.defaults.Write(ctx, domain, key, val); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	if facade.NeedsRestart(domain) {
		_, _ = h.script.RestartAgent(ctx, domain)
	}
	return ApplyResult{Outcome: Applied}, nil
}

type macosDockHandler struct {
	defaults *facade.Defaults
	script   *facade.AppleScript
}

var dockKeys = []string{"orientation", "autohide", "magnification", "tilesize", "largesize"}

func (h macosDockHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	for _, key := range dockKeys {
		want := r.Prop(key)
		if want.IsNull() {
			continue
		}
		current, err := h.defaults.Read(ctx, "com.apple.dock", key)
		if err == facade.ErrKeyNotFound {
			return ProbeResult{State: NeedsChange, Reason: "dock key " + key + " not set"}, nil
		}
		if err != nil {
			return ProbeResult{}, err
		}
		if !value.Equal(current, want) {
			return ProbeResult{State: NeedsChange, Reason: "dock key " + key + " differs"}, nil
		}
	}

	if want, err := r.Prop("apps").AsArray(); err == nil {
		current, err := facade.DockPersistentApps(ctx)
		if err != nil {
			return ProbeResult{}, err
		}
		if !dockAppsEqual(want, current) {
			return ProbeResult{State: NeedsChange, Reason: "persistent apps differ"}, nil
		}
	}

	return ProbeResult{State: UpToDate}, nil
}

// normalizeDockApp reduces both DSL paths ("/Applications/Safari.app")
// and CFURL strings ("file:///Applications/Safari.app/") to a comparable
// form.
func normalizeDockApp(s string) string {
	s = strings.TrimPrefix(s, "file://")
	return strings.TrimRight(s, "/")
}

func dockAppsEqual(want []value.Value, current []string) bool {
	if len(want) != len(current) {
		return false
	}
	for i, w := range want {
		ws, err := w.AsString()
		if err != nil {
			return false
		}
		if normalizeDockApp(ws) != normalizeDockApp(current[i]) {
			return false
		}
	}
	return true
}

func (h macosDockHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	for _, key := range dockKeys {
		want := r.Prop(key)
		if want.IsNull() {
			continue
		}
		if err := h.defaults.Write(ctx, "com.apple.dock", key, want); err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
	}

	if apps, err := r.Prop("apps").AsArray(); err == nil {
		if err := h.rewritePersistentApps(ctx, apps); err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
	}

	if _, err := h.script.RestartAgent(ctx, "com.apple.dock"); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}

// rewritePersistentApps clears the Dock's persistent apps and re-adds each
// app path through System Events AppleScript commands run by osascript,
// without a third-party plist-buddy dependency.
func (h macosDockHandler) rewritePersistentApps(ctx context.Context, apps []value.Value) error {
	if _, err := facade.NewAppleScript().Run(ctx, `tell application "System Events" to delete every item of (get persistent apps)`); err != nil {
		// Not fatal: some macOS versions need Dock restarted first; the
		// caller restarts Dock right after this returns.
		_ = err
	}
	for _, app := range apps {
		path, err := app.AsString()
		if err != nil {
			continue
		}
		script := `tell application "System Events" to tell dock preferences to make new dock tile at end with properties {file-path:"` + path + `"}`
		if _, err := facade.NewAppleScript().Run(ctx, script); err != nil {
			return err
		}
	}
	return nil
}
