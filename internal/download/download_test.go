// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEngine_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := New(nil)
	resp, err := e.Do(context.Background(), Request{
		Method:          MethodGet,
		URL:             srv.URL,
		MaxAttempts:     5,
		RetryServer5xx:  true,
		InitialBackoff:  time.Millisecond,
		BackoffMultiple: 2,
		MaxBackoff:      10 * time.Millisecond,
	})

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "ok", string(resp.Body))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestEngine_NonRetryable4xxFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(nil)
	resp, err := e.Do(context.Background(), Request{
		Method:      MethodGet,
		URL:         srv.URL,
		MaxAttempts: 5,
	})

	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEngine_ServerErrorWithoutRetry5xxFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(nil)
	_, err := e.Do(context.Background(), Request{
		Method:      MethodGet,
		URL:         srv.URL,
		MaxAttempts: 5,
	})

	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchConditional_304LeavesFileUntouchedAndReportsUnchanged(t *testing.T) {
	const etag = `"abc123"`
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Etag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.txt")
	e := New(nil)

	changed, err := e.FetchConditional(context.Background(), Request{Method: MethodGet, URL: srv.URL, MaxAttempts: 1}, dest, nil)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = e.FetchConditional(context.Background(), Request{Method: MethodGet, URL: srv.URL, MaxAttempts: 1}, dest, nil)
	require.NoError(t, err)
	require.False(t, changed)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestBackoffDelay_ExponentialWithCap(t *testing.T) {
	require.Equal(t, 100*time.Millisecond, backoffDelay(100*time.Millisecond, 2, 0, 10*time.Second))
	require.Equal(t, 200*time.Millisecond, backoffDelay(100*time.Millisecond, 2, 1, 10*time.Second))
	require.Equal(t, 400*time.Millisecond, backoffDelay(100*time.Millisecond, 2, 2, 10*time.Second))
	require.Equal(t, time.Second, backoffDelay(100*time.Millisecond, 2, 10, time.Second))
}
