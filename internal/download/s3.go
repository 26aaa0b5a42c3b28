// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/ratazzi/hola/internal/herrors"
)

// s3URL rewrites an s3://bucket/key URL into a signable https request,
// honoring an AWSAuth.Endpoint override (<endpoint>/<bucket>/<path>) for
// S3-compatible stores, or the standard virtual-hosted AWS endpoint.
func s3URL(raw string, auth *AWSAuth) (bucket, signingRegion, httpURL string, err error) {
	u, perr := url.Parse(raw)
	if perr != nil {
		return "", "", "", herrors.NewDownloadError("invalid URL", perr.Error(), "", perr)
	}
	bucket = u.Host
	key := strings.TrimPrefix(u.Path, "/")

	region := "us-east-1"
	if auth != nil && auth.Region != "" {
		region = auth.Region
	}

	if auth != nil && auth.Endpoint != "" {
		endpoint := strings.TrimRight(auth.Endpoint, "/")
		return bucket, region, fmt.Sprintf("%s/%s/%s", endpoint, bucket, key), nil
	}

	return bucket, region, fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key), nil
}

func (e *Engine) signS3Request(ctx context.Context, httpReq *http.Request, body []byte, auth *AWSAuth, region string) error {
	if auth == nil {
		return herrors.NewDownloadError("no AWS credentials", "s3 requests require access_key_id/secret_access_key", "", nil)
	}

	provider := credentials.NewStaticCredentialsProvider(auth.AccessKeyID, auth.SecretAccessKey, auth.SessionToken)
	creds, err := provider.Retrieve(ctx)
	if err != nil {
		return herrors.NewDownloadError("auth required", err.Error(), "check AWS credentials", err)
	}

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, httpReq, payloadHash, "s3", region, time.Now()); err != nil {
		return herrors.NewDownloadError("sigv4 signing failed", err.Error(), "", err)
	}
	return nil
}

func (e *Engine) doS3(ctx context.Context, req Request) (*Response, error) {
	var awsAuth *AWSAuth
	if req.Auth != nil {
		awsAuth = req.Auth.AWS
	}

	_, region, rawURL, err := s3URL(req.URL, awsAuth)
	if err != nil {
		return nil, err
	}

	method := string(req.Method)
	if method == "" {
		method = string(MethodGet)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, herrors.NewDownloadError("invalid request", err.Error(), "", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if err := e.signS3Request(ctx, httpReq, req.Body, awsAuth, region); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: req.MaxTimeout}
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
		return nil, herrors.NewDownloadError("server error", fmt.Sprintf("HTTP %d", resp.StatusCode), "", nil)
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, herrors.NewDownloadError("auth required", fmt.Sprintf("HTTP %d", resp.StatusCode), "check bucket policy and credentials", nil)
	}

	return &Response{Status: resp.StatusCode, Headers: map[string][]string(resp.Header), Body: data}, nil
}

func (e *Engine) streamS3(ctx context.Context, req Request, write WriteFunc, progress ProgressFunc) (*Response, error) {
	var awsAuth *AWSAuth
	if req.Auth != nil {
		awsAuth = req.Auth.AWS
	}

	_, region, rawURL, err := s3URL(req.URL, awsAuth)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(MethodGet), rawURL, nil)
	if err != nil {
		return nil, herrors.NewDownloadError("invalid request", err.Error(), "", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if err := e.signS3Request(ctx, httpReq, nil, awsAuth, region); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: req.MaxTimeout}
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

	var written uint64
	buf := make([]byte, 32*1024)
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
