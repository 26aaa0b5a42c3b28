// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package download

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ratazzi/hola/internal/herrors"
)

func (e *Engine) httpClient(req Request) *http.Client {
	dialer := &net.Dialer{Timeout: req.ConnectTimeout}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: req.InsecureSkipVerify,
		},
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   req.MaxTimeout,
	}
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if len(via) >= req.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", req.MaxRedirects)
		}
		return nil
	}
	return client
}

func (e *Engine) buildHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL, body)
	if err != nil {
		return nil, herrors.NewDownloadError("invalid request", err.Error(), "check the URL and method", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Auth != nil && req.Auth.Basic != nil {
		httpReq.SetBasicAuth(req.Auth.Basic.Username, req.Auth.Basic.Password)
	}
	return httpReq, nil
}

func classifyHTTPError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return herrors.NewDownloadError("timeout", err.Error(), "increase the timeout or check connectivity", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return herrors.NewDownloadError("dns resolution failed", err.Error(), "check the hostname", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return herrors.NewDownloadError("connection failed", err.Error(), "check connectivity to the host", err)
	}
	return herrors.NewDownloadError("unknown", err.Error(), "", err)
}

func (e *Engine) doHTTP(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := e.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	client := e.httpClient(req)
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyHTTPError(err)
	}

	if resp.StatusCode >= 500 {
		return nil, herrors.NewDownloadError("server error", fmt.Sprintf("HTTP %d", resp.StatusCode),
			"the remote server reported an internal error", nil)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, herrors.NewDownloadError("auth required", fmt.Sprintf("HTTP %d", resp.StatusCode),
			"provide valid credentials", nil)
	}

	return &Response{Status: resp.StatusCode, Headers: map[string][]string(resp.Header), Body: data}, nil
}

func (e *Engine) streamHTTP(ctx context.Context, req Request, write WriteFunc, progress ProgressFunc) (*Response, error) {
	httpReq, err := e.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	client := e.httpClient(req)
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Response{Status: resp.StatusCode, Headers: map[string][]string(resp.Header)}, nil
	}
	if resp.StatusCode >= 500 {
		return nil, herrors.NewDownloadError("server error", fmt.Sprintf("HTTP %d", resp.StatusCode), "", nil)
	}

	var total *uint64
	if resp.ContentLength > 0 {
		t := uint64(resp.ContentLength)
		total = &t
	}

	var written, windowBytes uint64
	buf := make([]byte, 32*1024)
	windowStart := time.Now()
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if werr := write(buf[:n]); werr != nil {
				return nil, herrors.NewDownloadError("write failed", werr.Error(), "", werr)
			}
			written += uint64(n)
			if progress != nil {
				progress(written, total)
			}
			windowBytes += uint64(n)
		}
		if rerr == nil && req.LowSpeedLimit > 0 && req.LowSpeedTime > 0 {
			if elapsed := time.Since(windowStart); elapsed >= req.LowSpeedTime {
				if float64(windowBytes)/elapsed.Seconds() < float64(req.LowSpeedLimit) {
					return nil, herrors.NewDownloadError("timeout", "transfer rate below low_speed_limit", "", nil)
				}
				windowStart, windowBytes = time.Now(), 0
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, classifyHTTPError(rerr)
		}
	}

	return &Response{Status: resp.StatusCode, Headers: map[string][]string(resp.Header)}, nil
}
