// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/ratazzi/hola/internal/herrors"
)

// Sidecar is the metadata persisted next to a downloaded file, at
// "<path>.etag", so a later run can issue a conditional request instead
// of re-fetching unconditionally.
type Sidecar struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	SHA256       string `json:"sha256"`
}

func sidecarPath(path string) string { return path + ".etag" }

// ReadSidecar loads the sidecar for path, if present. A missing sidecar
// is not an error: it just means this is the first download.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(sidecarPath(path))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, herrors.NewDownloadError("cannot read etag sidecar", err.Error(), sidecarPath(path), err)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, herrors.NewDownloadError("corrupt etag sidecar", err.Error(), sidecarPath(path), err)
	}
	return &sc, nil
}

// WriteSidecar persists sc next to path.
func WriteSidecar(path string, sc Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return herrors.NewDownloadError("cannot encode etag sidecar", err.Error(), "", err)
	}
	if err := os.WriteFile(sidecarPath(path), data, 0o644); err != nil {
		return herrors.NewDownloadError("cannot write etag sidecar", err.Error(), sidecarPath(path), err)
	}
	return nil
}

// SHA256File hashes the file at path for sidecar verification.
func SHA256File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", herrors.NewDownloadError("cannot read file", err.Error(), path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FetchConditional downloads req to localPath using any sidecar already
// present, writing an If-None-Match / If-Modified-Since header when one
// is known. It returns (false, nil) when the server replies 304: the
// local file is already converged and nothing was written. On a fresh
// 200 response, it streams the body to localPath and rewrites the
// sidecar from the response headers plus a fresh hash. progress may be
// nil.
func (e *Engine) FetchConditional(ctx context.Context, req Request, localPath string, progress ProgressFunc) (changed bool, err error) {
	prior, err := ReadSidecar(localPath)
	if err != nil {
		return false, err
	}
	if prior != nil {
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		if prior.ETag != "" {
			req.Headers["If-None-Match"] = prior.ETag
		}
		if prior.LastModified != "" {
			req.Headers["If-Modified-Since"] = prior.LastModified
		}
	}

	tmpPath := localPath + ".download"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return false, herrors.NewDownloadError("cannot open destination", err.Error(), tmpPath, err)
	}

	write := func(chunk []byte) error {
		_, werr := f.Write(chunk)
		return werr
	}

	resp, err := e.Stream(ctx, req, write, progress)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return false, err
	}
	if resp.Status == http.StatusNotModified {
		os.Remove(tmpPath)
		return false, nil
	}
	if resp.Status >= 300 {
		os.Remove(tmpPath)
		return false, herrors.NewDownloadError("unexpected status",
			fmt.Sprintf("HTTP %d for %s", resp.Status, req.URL), "", nil)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return false, herrors.NewDownloadError("cannot finalize download", err.Error(), localPath, err)
	}

	sha, err := SHA256File(localPath)
	if err != nil {
		return false, err
	}

	sc := Sidecar{SHA256: sha}
	if v := firstHeader(resp.Headers, "Etag"); v != "" {
		sc.ETag = v
	}
	if v := firstHeader(resp.Headers, "Last-Modified"); v != "" {
		sc.LastModified = v
	}
	if err := WriteSidecar(localPath, sc); err != nil {
		return false, err
	}

	return true, nil
}

func firstHeader(h map[string][]string, key string) string {
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		if httpCanonical(k) == httpCanonical(key) {
			return vs[0]
		}
	}
	return ""
}

func httpCanonical(k string) string {
	return http.CanonicalHeaderKey(k)
}
