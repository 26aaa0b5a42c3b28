// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry builds the per-run logger and optional Prometheus
// metrics endpoint: one *slog.Logger constructed in main and threaded
// down as a parameter, plus a `--metrics-addr` HTTP listener serving
// promhttp.Handler.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Verbose int    // -v raises to Debug, -vv also enables source locations
	Quiet   bool   // suppress Info; only Warn/Error
	LogFile string // HOLA_LOG path, additional sink
	JSON    bool
}

// NewLogger builds the run's *slog.Logger writing text (or JSON when
// opts.JSON) to stderr and, if opts.LogFile is set, tees to that file as
// well via an io.MultiWriter-backed handler.
func NewLogger(opts LoggerOptions) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if opts.Quiet {
		level = slog.LevelWarn
	}
	if opts.Verbose > 0 {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Verbose > 1,
	}

	writers := []io.Writer{os.Stderr}
	closeFn := func() {}

	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open HOLA_LOG %s: %w", opts.LogFile, err)
		}
		writers = append(writers, f)
		closeFn = func() { f.Close() }
	}

	dest := io.MultiWriter(writers...)

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(dest, handlerOpts)
	} else {
		handler = slog.NewTextHandler(dest, handlerOpts)
	}

	return slog.New(handler), closeFn, nil
}

// Counters holds the run's Prometheus counters, one per resource outcome.
type Counters struct {
	Applied  prometheus.Counter
	Skipped  prometheus.Counter
	Failed   prometheus.Counter
	UpToDate prometheus.Counter
}

// NewCounters registers a fresh counter set against registry.
func NewCounters(registry *prometheus.Registry) *Counters {
	c := &Counters{
		Applied:  prometheus.NewCounter(prometheus.CounterOpts{Name: "hola_resource_applied_total", Help: "Resources that changed state."}),
		Skipped:  prometheus.NewCounter(prometheus.CounterOpts{Name: "hola_resource_skipped_total", Help: "Resources skipped by a guard or dry-run."}),
		Failed:   prometheus.NewCounter(prometheus.CounterOpts{Name: "hola_resource_failed_total", Help: "Resources whose apply failed."}),
		UpToDate: prometheus.NewCounter(prometheus.CounterOpts{Name: "hola_resource_up_to_date_total", Help: "Resources already converged."}),
	}
	registry.MustRegister(c.Applied, c.Skipped, c.Failed, c.UpToDate)
	return c
}

// ServeMetrics starts a background HTTP server exposing registry on addr
// until ctx is cancelled: a bare mux, a 10s read-header timeout, warnings
// logged rather than propagated.
func ServeMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()
}
