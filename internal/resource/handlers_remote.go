// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ratazzi/hola/internal/download"
	"github.com/ratazzi/hola/internal/value"
)

func init() {
	Register(TypeSchema{
		Name:          "remote_file",
		Properties:    []string{"path", "source", "url", "mode", "checksum", "use_etag", "auth", "retries"},
		Actions:       []string{"create"},
		DefaultAction: "create",
		Handler:       &remoteFileHandler{},
	})
}

// ProgressFactory hands a remote_file transfer its progress callback plus
// a completion hook; a nil factory (or nil callback) disables reporting.
type ProgressFactory func(label string) (download.ProgressFunc, func())

// remoteFileHandler needs a shared download.Engine; Engine is injected by
// the provision command via SetEngine before the run starts, since it
// carries a logger that's constructed once per run; without one, a default
// engine is created on first use. A ProgressFactory is
// injected the same way when the run is rendering progress bars.
type remoteFileHandler struct {
	engine   *download.Engine
	progress ProgressFactory
}

func (h *remoteFileHandler) SetEngine(e *download.Engine) { h.engine = e }

func (h *remoteFileHandler) SetProgress(f ProgressFactory) { h.progress = f }

func (h *remoteFileHandler) engineOrDefault() *download.Engine {
	if h.engine == nil {
		h.engine = download.New(nil)
	}
	return h.engine
}

// buildDownloadRequest assembles the engine request from the resource's
// properties: source (or its url alias), retry policy, and credentials.
func buildDownloadRequest(r *Resource) download.Request {
	source, _ := r.Prop("source").AsString()
	if source == "" {
		source, _ = r.Prop("url").AsString()
	}

	req := download.Request{Method: download.MethodGet, URL: source}
	if n, err := r.Prop("retries").AsInt(); err == nil && n > 1 {
		req.MaxAttempts = int(n)
		req.RetryServer5xx = true
	}
	if auth, err := r.Prop("auth").AsDict(); err == nil {
		req.Auth = parseAuth(auth)
	}
	return req
}

// parseAuth maps the `auth` dict onto the engine's credential union. The
// variant is inferred from which keys are present: AWS keys win, then
// SSH keys, then plain username/password.
func parseAuth(d map[string]value.Value) *download.Auth {
	get := func(k string) string { return d[k].StringOr("") }

	switch {
	case get("access_key_id") != "":
		return &download.Auth{AWS: &download.AWSAuth{
			AccessKeyID:     get("access_key_id"),
			SecretAccessKey: get("secret_access_key"),
			SessionToken:    get("session_token"),
			Region:          get("region"),
			Endpoint:        get("endpoint"),
		}}
	case get("private_key_path") != "" || get("known_hosts_path") != "":
		return &download.Auth{SSH: &download.SSHAuth{
			PrivateKeyPath: get("private_key_path"),
			PublicKeyPath:  get("public_key_path"),
			KnownHostsPath: get("known_hosts_path"),
			Password:       get("password"),
		}}
	case get("username") != "":
		return &download.Auth{Basic: &download.BasicAuth{
			Username: get("username"),
			Password: get("password"),
		}}
	default:
		return nil
	}
}

func (h *remoteFileHandler) transferProgress(label string) (download.ProgressFunc, func()) {
	if h.progress == nil {
		return nil, func() {}
	}
	prog, done := h.progress(label)
	if done == nil {
		done = func() {}
	}
	return prog, done
}

func (h *remoteFileHandler) Probe(ctx context.Context, r *Resource, action string) (ProbeResult, error) {
	path, _ := r.Prop("path").AsString()
	checksum, _ := r.Prop("checksum").AsString()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ProbeResult{State: NeedsChange, Reason: "missing"}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	if info.IsDir() {
		return ProbeResult{State: NeedsChange, Reason: "path is a directory"}, nil
	}

	if checksum != "" {
		sum, err := download.SHA256File(path)
		if err != nil {
			return ProbeResult{}, err
		}
		if sum != checksum {
			return ProbeResult{State: NeedsChange, Reason: "checksum mismatch"}, nil
		}
		return ProbeResult{State: UpToDate}, nil
	}

	useETag, _ := r.Prop("use_etag").AsBool()
	if useETag {
		sc, err := download.ReadSidecar(path)
		if err != nil {
			return ProbeResult{}, err
		}
		if sc == nil {
			return ProbeResult{State: NeedsChange, Reason: "no etag sidecar yet"}, nil
		}
		return ProbeResult{State: NeedsChange, Reason: "etag recheck required"}, nil
	}

	return ProbeResult{State: UpToDate}, nil
}

func (h *remoteFileHandler) Apply(ctx context.Context, r *Resource, action string, dryRun bool) (ApplyResult, error) {
	if dryRun {
		return ApplyResult{Outcome: Skipped, Reason: "dry-run"}, nil
	}

	path, _ := r.Prop("path").AsString()
	checksum, _ := r.Prop("checksum").AsString()
	useETag, _ := r.Prop("use_etag").AsBool()

	engine := h.engineOrDefault()
	req := buildDownloadRequest(r)
	source := req.URL

	prog, done := h.transferProgress(path)
	defer done()

	if useETag {
		changed, err := engine.FetchConditional(ctx, req, path, prog)
		if err != nil {
			return ApplyResult{Outcome: Failed}, err
		}
		if !changed {
			return ApplyResult{Outcome: Skipped, Reason: "304 not modified"}, nil
		}
		return ApplyResult{Outcome: Applied}, nil
	}

	tmpPath := path + ".download"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return ApplyResult{Outcome: Failed}, err
	}

	hash := sha256.New()
	write := func(chunk []byte) error {
		hash.Write(chunk)
		_, werr := f.Write(chunk)
		return werr
	}

	resp, err := engine.Stream(ctx, req, write, prog)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return ApplyResult{Outcome: Failed}, err
	}
	if resp.Status >= 300 {
		os.Remove(tmpPath)
		return ApplyResult{Outcome: Failed}, fmt.Errorf("download %s: HTTP %d", source, resp.Status)
	}

	if checksum != "" {
		got := hex.EncodeToString(hash.Sum(nil))
		if got != checksum {
			os.Remove(tmpPath)
			return ApplyResult{Outcome: Failed}, fmt.Errorf("checksum mismatch: got %s want %s", got, checksum)
		}
	}

	mode := parseMode(r, 0o644)
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return ApplyResult{Outcome: Failed}, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return ApplyResult{Outcome: Failed}, err
	}
	return ApplyResult{Outcome: Applied}, nil
}
