// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package download implements the multi-protocol download engine:
// HTTP/S, SFTP/SCP, and S3 (SigV4), with retries, streaming,
// ETag-conditional downloads, and SSL/SSH credential plumbing.
package download

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ratazzi/hola/internal/herrors"
)

// Method is an HTTP-style verb; SFTP/S3 requests only ever use "GET" or
// "PUT" semantics but the field is kept generic so every transport
// shares one request shape.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// BasicAuth carries username/password credentials.
type BasicAuth struct {
	Username string
	Password string
}

// SSHAuth carries SSH-based credentials for sftp/scp transports.
type SSHAuth struct {
	PrivateKeyPath string
	PublicKeyPath  string
	KnownHostsPath string
	Password       string
}

// AWSAuth carries SigV4 credentials for the s3 scheme.
type AWSAuth struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Endpoint        string // optional override, rewritten as <endpoint>/<bucket>/<path>
}

// Auth is a discriminated union of the three credential kinds. At most
// one field should be non-nil for a given request.
type Auth struct {
	Basic *BasicAuth
	SSH   *SSHAuth
	AWS   *AWSAuth
}

// Request describes one download/upload attempt.
type Request struct {
	Method  Method
	URL     string
	Body    []byte
	Headers map[string]string
	Auth    *Auth

	MaxRedirects       int // default 10
	InsecureSkipVerify bool // off by default: certificates are verified unless a resource opts out
	MaxAttempts        int // default 1, minimum 1
	InitialBackoff     time.Duration
	BackoffMultiple    float64
	MaxBackoff         time.Duration
	RetryServer5xx     bool

	ConnectTimeout time.Duration
	MaxTimeout     time.Duration
	LowSpeedLimit  int64 // bytes/sec
	LowSpeedTime   time.Duration
}

// WithDefaults fills zero-valued fields with their defaults.
func (r Request) WithDefaults() Request {
	if r.MaxRedirects == 0 {
		r.MaxRedirects = 10
	}
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.BackoffMultiple == 0 {
		r.BackoffMultiple = 2.0
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = 100 * time.Millisecond
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 30 * time.Second
	}
	if r.ConnectTimeout == 0 {
		r.ConnectTimeout = 10 * time.Second
	}
	return r
}

// Response is the result of a completed Request.
type Response struct {
	Status  int
	Headers map[string][]string // case-preserved, last-write-wins handled by caller
	Body    []byte
}

// WriteFunc receives streamed body chunks; ProgressFunc is invoked after
// each chunk with the cumulative byte count and (if known) total length.
type WriteFunc func(chunk []byte) error
type ProgressFunc func(written uint64, total *uint64)

// Engine is the multi-protocol client. It holds no state between calls
// beyond its logger.
type Engine struct {
	logger *slog.Logger
}

// New creates an Engine. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Do executes req with the configured retry policy and returns the final
// response or a classified error.
func (e *Engine) Do(ctx context.Context, req Request) (*Response, error) {
	req = req.WithDefaults()
	scheme, err := schemeOf(req.URL)
	if err != nil {
		return nil, err
	}

	attempt := func() (*Response, error) {
		switch scheme {
		case "http", "https":
			return e.doHTTP(ctx, req)
		case "sftp", "scp":
			return e.doSFTP(ctx, req)
		case "s3":
			return e.doS3(ctx, req)
		default:
			return nil, herrors.NewDownloadError("unsupported URL scheme",
				scheme, "use http(s), sftp, scp, or s3", nil)
		}
	}

	return e.withRetry(ctx, req, attempt)
}

// Stream executes a GET-style req, invoking write for each body chunk and
// progress after each chunk, rather than buffering the whole body.
func (e *Engine) Stream(ctx context.Context, req Request, write WriteFunc, progress ProgressFunc) (*Response, error) {
	req = req.WithDefaults()
	scheme, err := schemeOf(req.URL)
	if err != nil {
		return nil, err
	}

	attempt := func() (*Response, error) {
		switch scheme {
		case "http", "https":
			return e.streamHTTP(ctx, req, write, progress)
		case "sftp", "scp":
			return e.streamSFTP(ctx, req, write, progress)
		case "s3":
			return e.streamS3(ctx, req, write, progress)
		default:
			return nil, herrors.NewDownloadError("unsupported URL scheme",
				scheme, "use http(s), sftp, scp, or s3", nil)
		}
	}

	return e.withRetry(ctx, req, attempt)
}

func (e *Engine) Get(ctx context.Context, u string, opts Request) (*Response, error) {
	opts.Method, opts.URL = MethodGet, u
	return e.Do(ctx, opts)
}

func (e *Engine) Post(ctx context.Context, u string, body []byte, opts Request) (*Response, error) {
	opts.Method, opts.URL, opts.Body = MethodPost, u, body
	return e.Do(ctx, opts)
}

func (e *Engine) Put(ctx context.Context, u string, body []byte, opts Request) (*Response, error) {
	opts.Method, opts.URL, opts.Body = MethodPut, u, body
	return e.Do(ctx, opts)
}

func (e *Engine) Delete(ctx context.Context, u string, opts Request) (*Response, error) {
	opts.Method, opts.URL = MethodDelete, u
	return e.Do(ctx, opts)
}

func (e *Engine) Patch(ctx context.Context, u string, body []byte, opts Request) (*Response, error) {
	opts.Method, opts.URL, opts.Body = MethodPatch, u, body
	return e.Do(ctx, opts)
}

func schemeOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", herrors.NewDownloadError("invalid URL", raw, "provide an absolute URL with a scheme", err)
	}
	return strings.ToLower(u.Scheme), nil
}
