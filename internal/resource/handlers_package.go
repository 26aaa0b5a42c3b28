// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"context"
	"runtime"
	"strings"

	"github.com/ratazzi/hola/internal/facade"
)

func init() {
	Register(TypeSchema{
		Name:          "package",
		Properties:    []string{"name"},
		Actions:       []string{"install", "remove"},
		DefaultAction: "install",
		Handler:       packageHandler{brew: facade.NewBrew()},
	})
}

type packageHandler struct {
	brew *facade.Brew
}

func (h packageHandler) names(r *Resource) []string {
	if arr, err := r.Prop("name").AsArray(); err == nil {
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, err := v.AsString(); err == nil {
				out = append(out, s)
			}
		}
		return out
	}
	if s, err := r.Prop("name").AsString(); err == nil && s != "" {
		return []string{s}
	}
	return nil
}

func (h packageHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	names := h.names(r)
	if runtime.GOOS == "darwin" {
		for _, name := range names {
			installed, err := h.brew.Installed(ctx, name)
			if err != nil {
				return ProbeResult{}, err
			}
			want := action != "remove"
			if installed != want {
				return ProbeResult{State: NeedsChange, Reason: name}, nil
			}
		}
		return ProbeResult{State: UpToDate}, nil
	}

	out, err := aptListInstalled(ctx)
	if err != nil {
		return ProbeResult{}, err
	}
	for _, name := range names {
		installed := strings.Contains(out, name)
		want := action != "remove"
		if installed != want {
			return ProbeResult{State: NeedsChange, Reason: name}, nil
		}
	}
	return ProbeResult{State: UpToDate}, nil
}

func (h packageHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	names := h.names(r)
	if runtime.GOOS == "darwin" {
		if action == "remove" {
			if _, err := runCommandCompat(ctx, "brew", append([]string{"uninstall"}, names...)...); err != nil {
				return ApplyResult{Outcome: Failed}, err
			}
			return ApplyResult{Outcome: Applied}, nil
		}
		if _, err := h.brew.Install(ctx, names...); err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
		return ApplyResult{Outcome: Applied}, nil
	}

	verb := "install"
	if action == "remove" {
		verb = "remove"
	}
	args := append([]string{verb, "-y"}, names...)
	if _, err := runCommandCompat(ctx, "apt-get", args...); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}
