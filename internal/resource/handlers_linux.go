// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func init() {
	Register(TypeSchema{
		Name:          "systemd_unit",
		Properties:    []string{"name", "content", "action"},
		Actions:       []string{"enable", "start", "restart", "stop", "disable"},
		DefaultAction: "start",
		Handler:       systemdUnitHandler{},
	})
	Register(TypeSchema{
		Name:          "apt_repository",
		Properties:    []string{"uri", "distribution", "components", "key_url"},
		Actions:       []string{"add"},
		DefaultAction: "add",
		Handler:       aptRepositoryHandler{},
	})
	Register(TypeSchema{
		Name:          "apt_update",
		Properties:    []string{},
		Actions:       []string{"run"},
		DefaultAction: "run",
		Handler:       aptUpdateHandler{},
	})
	Register(TypeSchema{
		Name:          "route",
		Properties:    []string{"destination", "gateway", "device"},
		Actions:       []string{"add"},
		DefaultAction: "add",
		Handler:       routeHandler{},
	})
}

// runCommandCompat runs name with args and returns trimmed stdout,
// mirroring internal/facade's wrapper, which is unexported there, for
// this handler-local usage.
func runCommandCompat(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("%s failed: %s", name, stderrStr)
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.String(), nil
}

func aptListInstalled(ctx context.Context) (string, error) {
	return runCommandCompat(ctx, "dpkg-query", "-W", "-f=${Package}\n")
}

type systemdUnitHandler struct{}

func (systemdUnitHandler) unitPath(name string) string {
	return "/etc/systemd/system/" + name + ".service"
}

func (h systemdUnitHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	name, _ := r.Prop("name").AsString()
	content, _ := r.Prop("content").AsString()

	existing, err := os.ReadFile(h.unitPath(name))
	if os.IsNotExist(err) {
		return ProbeResult{State: NeedsChange, Reason: "unit file missing"}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	if string(existing) != content {
		return ProbeResult{State: NeedsChange, Reason: "unit content differs"}, nil
	}

	out, _ := runCommandCompat(ctx, "systemctl", "is-active", name)
	if strings.TrimSpace(out) != "active" && action == "start" {
		return ProbeResult{State: NeedsChange, Reason: "unit not active"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (h systemdUnitHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	name, _ := r.Prop("name").AsString()
	content, _ := r.Prop("content").AsString()

	if err := atomicWrite(h.unitPath(name), []byte(content), 0o644); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	if _, err := runCommandCompat(ctx, "systemctl", "daemon-reload"); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}

	actions := []string{action}
	if arr, err := r.Prop("action").AsArray(); err == nil {
		actions = actions[:0]
		for _, v := range arr {
			if s, err := v.AsString(); err == nil {
				actions = append(actions, s)
			}
		}
	}
	for _, a := range actions {
		if _, err := runCommandCompat(ctx, "systemctl", a, name); err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
	}
	return ApplyResult{Outcome: Applied}, nil
}

type aptRepositoryHandler struct{}

func (aptRepositoryHandler) listPath(r *Resource) string {
	dist, _ := r.Prop("distribution").AsString()
	return "/etc/apt/sources.list.d/" + dist + ".list"
}

func (h aptRepositoryHandler) render(r *Resource) string {
	uri, _ := r.Prop("uri").AsString()
	dist, _ := r.Prop("distribution").AsString()
	components, _ := r.Prop("components").AsString()
	return fmt.Sprintf("deb %s %s %s\n", uri, dist, components)
}

func (h aptRepositoryHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	want := h.render(r)
	existing, err := os.ReadFile(h.listPath(r))
	if os.IsNotExist(err) {
		return ProbeResult{State: NeedsChange, Reason: "missing"}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	if string(existing) != want {
		return ProbeResult{State: NeedsChange, Reason: "content differs"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (h aptRepositoryHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	if err := atomicWrite(h.listPath(r), []byte(h.render(r)), 0o644); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	if keyURL, _ := r.Prop("key_url").AsString(); keyURL != "" {
		if _, err := runCommandCompat(ctx, "sh", "-c",
			fmt.Sprintf("curl -fsSL %q | apt-key add -", keyURL)); err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
	}
	return ApplyResult{Outcome: Applied}, nil
}

type aptUpdateHandler struct{}

// Probe is always NeedsChange; a timestamp gate would be possible but
// apt-get update is cheap enough to just run.
func (aptUpdateHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	return ProbeResult{State: NeedsChange, Reason: "apt_update always runs"}, nil
}

func (aptUpdateHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	if _, err := runCommandCompat(ctx, "apt-get", "update"); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}

type routeHandler struct{}

func (routeHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	dest, _ := r.Prop("destination").AsString()
	out, err := runCommandCompat(ctx, "ip", "route", "show", dest)
	if err != nil {
		return ProbeResult{}, err
	}
	if strings.TrimSpace(out) == "" {
		return ProbeResult{State: NeedsChange, Reason: "route missing"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (routeHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	dest, _ := r.Prop("destination").AsString()
	gateway, _ := r.Prop("gateway").AsString()
	device, _ := r.Prop("device").AsString()

	args := []string{"route", "add", dest}
	if gateway != "" {
		args = append(args, "via", gateway)
	}
	if device != "" {
		args = append(args, "dev", device)
	}
	if _, err := runCommandCompat(ctx, "ip", args...); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}
