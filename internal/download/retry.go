// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package download

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/ratazzi/hola/internal/herrors"
)

// backoffDelay computes delay_n = min(initial * multiplier^n, max), with
// no jitter.
func backoffDelay(initial time.Duration, multiplier float64, n int, max time.Duration) time.Duration {
	d := float64(initial) * math.Pow(multiplier, float64(n))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}

// isRetryable classifies err: connection failures, timeouts, DNS
// failures, and (when enabled) 5xx server errors are retryable;
// everything else is surfaced immediately.
func isRetryable(err error, retry5xx bool) bool {
	if err == nil {
		return false
	}
	var herr *herrors.Error
	if errors.As(err, &herr) {
		switch herr.Title {
		case "connection failed", "timeout", "dns resolution failed":
			return true
		case "server error":
			return retry5xx
		default:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// withRetry runs attempt up to req.MaxAttempts times, sleeping the
// computed backoff between attempts (not after the final one).
func (e *Engine) withRetry(ctx context.Context, req Request, attempt func() (*Response, error)) (*Response, error) {
	var lastErr error
	for n := 0; n < req.MaxAttempts; n++ {
		if n > 0 {
			delay := backoffDelay(req.InitialBackoff, req.BackoffMultiple, n-1, req.MaxBackoff)
			e.logger.Debug("retrying download", "attempt", n+1, "delay", delay, "url", req.URL)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := attempt()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err, req.RetryServer5xx) {
			return nil, err
		}
	}
	return nil, lastErr
}
