// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/template"
)

func init() {
	Register(TypeSchema{
		Name:          "file",
		Properties:    []string{"path", "content", "mode", "owner", "group"},
		Actions:       []string{"create", "delete"},
		DefaultAction: "create",
		Handler:       fileHandler{},
	})
	Register(TypeSchema{
		Name:          "directory",
		Properties:    []string{"path", "mode", "recursive"},
		Actions:       []string{"create", "delete"},
		DefaultAction: "create",
		Handler:       directoryHandler{},
	})
	Register(TypeSchema{
		Name:          "link",
		Properties:    []string{"path", "to"},
		Actions:       []string{"create", "delete"},
		DefaultAction: "create",
		Handler:       linkHandler{},
	})
	Register(TypeSchema{
		Name:          "template",
		Properties:    []string{"path", "source", "variables", "mode"},
		Actions:       []string{"create"},
		DefaultAction: "create",
		Handler:       templateHandler{},
	})
}

func parseMode(r *Resource, fallback os.FileMode) os.FileMode {
	s, err := r.Prop("mode").AsString()
	if err != nil || s == "" {
		return fallback
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return fallback
	}
	return os.FileMode(n)
}

// atomicWrite writes data to path via a sibling temp file + rename, so a
// partially written file is never observable at path.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".hola-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

type fileHandler struct{}

func (fileHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	path, _ := r.Prop("path").AsString()
	if action == "delete" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return ProbeResult{State: UpToDate}, nil
		}
		return ProbeResult{State: NeedsChange, Reason: "file exists"}, nil
	}

	content, _ := r.Prop("content").AsString()
	mode := parseMode(r, 0o644)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ProbeResult{State: NeedsChange, Reason: "missing"}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		return ProbeResult{}, err
	}
	if string(existing) != content {
		return ProbeResult{State: NeedsChange, Reason: "content differs"}, nil
	}
	if info.Mode().Perm() != mode.Perm() {
		return ProbeResult{State: NeedsChange, Reason: "mode differs"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (fileHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	path, _ := r.Prop("path").AsString()

	if action == "delete" {
		if dryRun {
			return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return ApplyResult{Outcome: Failed}, err
		}
		return ApplyResult{Outcome: Applied}, nil
	}

	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}

	content, _ := r.Prop("content").AsString()
	mode := parseMode(r, 0o644)
	if err := atomicWrite(path, []byte(content), mode); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	if err := chownIfSet(r, path); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}

type directoryHandler struct{}

func (directoryHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	path, _ := r.Prop("path").AsString()
	info, err := os.Stat(path)
	if action == "delete" {
		if os.IsNotExist(err) {
			return ProbeResult{State: UpToDate}, nil
		}
		return ProbeResult{State: NeedsChange, Reason: "directory exists"}, nil
	}
	if os.IsNotExist(err) {
		return ProbeResult{State: NeedsChange, Reason: "missing"}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	if !info.IsDir() {
		return ProbeResult{State: NeedsChange, Reason: "path exists and is not a directory"}, nil
	}
	mode := parseMode(r, 0o755)
	if info.Mode().Perm() != mode.Perm() {
		return ProbeResult{State: NeedsChange, Reason: "mode differs"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (directoryHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	path, _ := r.Prop("path").AsString()

	if action == "delete" {
		if dryRun {
			return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
		}
		if err := os.RemoveAll(path); err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
		return ApplyResult{Outcome: Applied}, nil
	}

	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}

	mode := parseMode(r, 0o755)
	recursive, _ := r.Prop("recursive").AsBool()

	var err error
	if recursive {
		err = os.MkdirAll(path, mode)
	} else {
		err = os.Mkdir(path, mode)
		if os.IsExist(err) {
			err = nil
		}
	}
	if err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	if err := os.Chmod(path, mode); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}

type linkHandler struct{}

func (linkHandler) GuardDefault(ctx context.Context, r *Resource) (bool, error) {
	path, _ := r.Prop("path").AsString()
	to, _ := r.Prop("to").AsString()
	existing, err := os.Readlink(path)
	if err != nil {
		return false, nil
	}
	return existing == to, nil
}

func (linkHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	path, _ := r.Prop("path").AsString()
	to, _ := r.Prop("to").AsString()

	if action == "delete" {
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return ProbeResult{State: UpToDate}, nil
		}
		return ProbeResult{State: NeedsChange, Reason: "link exists"}, nil
	}

	existing, err := os.Readlink(path)
	if err != nil {
		return ProbeResult{State: NeedsChange, Reason: "missing"}, nil
	}
	if existing != to {
		return ProbeResult{State: NeedsChange, Reason: "points elsewhere"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (linkHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	path, _ := r.Prop("path").AsString()
	to, _ := r.Prop("to").AsString()

	if action == "delete" {
		if dryRun {
			return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return ApplyResult{Outcome: Failed}, err
		}
		return ApplyResult{Outcome: Applied}, nil
	}

	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}

	if _, err := os.Lstat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	if err := os.Symlink(to, path); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}

type templateHandler struct{}

func renderTemplate(r *Resource) (string, error) {
	source, _ := r.Prop("source").AsString()
	vars, _ := r.Prop("variables").AsDict()

	data := make(map[string]any, len(vars))
	for k, v := range vars {
		s, err := v.AsString()
		if err == nil {
			data[k] = s
			continue
		}
		if n, err := v.AsInt(); err == nil {
			data[k] = n
			continue
		}
		if f, err := v.AsFloat(); err == nil {
			data[k] = f
			continue
		}
		if b, err := v.AsBool(); err == nil {
			data[k] = b
			continue
		}
	}

	tmpl, err := template.New(source).ParseFiles(source)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", source, err)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, filepath.Base(source), data); err != nil {
		return "", fmt.Errorf("render template %s: %w", source, err)
	}
	return buf.String(), nil
}

func (templateHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	path, _ := r.Prop("path").AsString()
	rendered, err := renderTemplate(r)
	if err != nil {
		return ProbeResult{}, err
	}
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ProbeResult{State: NeedsChange, Reason: "missing"}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	if string(existing) != rendered {
		return ProbeResult{State: NeedsChange, Reason: "content differs"}, nil
	}
	return ProbeResult{State: UpToDate}, nil
}

func (templateHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}
	path, _ := r.Prop("path").AsString()
	rendered, err := renderTemplate(r)
	if err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	mode := parseMode(r, 0o644)
	if err := atomicWrite(path, []byte(rendered), mode); err != nil {
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}
