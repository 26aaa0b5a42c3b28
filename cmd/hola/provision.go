// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/ratazzi/hola/internal/config"
	"github.com/ratazzi/hola/internal/download"
	"github.com/ratazzi/hola/internal/herrors"
	"github.com/ratazzi/hola/internal/progress"
	"github.com/ratazzi/hola/internal/resource"
	"github.com/ratazzi/hola/internal/runner"
	"github.com/ratazzi/hola/internal/script"
	"github.com/ratazzi/hola/internal/telemetry"
	"github.com/ratazzi/hola/internal/ui"
)

// engineSetter is implemented by handlers that need the run's shared
// download.Engine injected before the first probe/apply call.
type engineSetter interface {
	SetEngine(*download.Engine)
}

// progressSetter is implemented by handlers that report transfer progress
// when the run is rendering bars.
type progressSetter interface {
	SetProgress(resource.ProgressFactory)
}

// runProvision evaluates a provisioning program at a local path or URL,
// then walks the resulting resource.Collection with the runner.
func runProvision(args []string, globals GlobalFlags, logger *slog.Logger) error {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	output := fs.StringP("output", "o", "pretty", "Output mode: pretty or plain")
	dryRun := fs.Bool("dry-run", false, "Report intended changes without applying them")
	metricsAddr := fs.String("metrics-addr", "", "Expose Prometheus metrics on this address for the duration of the run (e.g. 127.0.0.1:9090)")
	if err := fs.Parse(args); err != nil {
		return herrors.NewUsageError("invalid provision flags", err.Error(), "see hola provision --help", err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return herrors.NewUsageError("missing provisioning program", "", "hola provision <path-or-URL>", nil)
	}
	source := rest[0]

	src, scriptPath, cleanup, err := loadProvisionSource(source, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := config.SaveProvisionScript(string(src)); err != nil {
		logger.Warn("cannot remember provision script", "error", err)
	}

	collection := resource.NewCollection()
	host := script.New(collection, logger)
	defer host.Close()

	mode := runner.Plain
	if strings.EqualFold(*output, "pretty") && !globals.JSON && ui.IsTerminal(os.Stderr) {
		mode = runner.Pretty
	}

	engine := download.New(logger)
	if schema, ok := resource.Lookup("remote_file"); ok {
		if setter, ok := schema.Handler.(engineSetter); ok {
			setter.SetEngine(engine)
		}
		if setter, ok := schema.Handler.(progressSetter); ok && mode == runner.Pretty {
			setter.SetProgress(downloadBars(progress.NewMultiProgress(os.Stderr)))
		}
	}

	if err := host.LoadFile(context.Background(), scriptPath); err != nil {
		return herrors.NewScriptError("provisioning program failed to evaluate", err.Error(), scriptPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	counters := telemetry.NewCounters(registry)
	telemetry.ServeMetrics(ctx, *metricsAddr, registry, logger)

	emit := countingEmitter(counters, eventPrinter(mode, globals))
	rn := runner.New(logger, emit)
	if err := rn.Run(ctx, collection, runner.Options{DryRun: *dryRun, OutputMode: mode}); err != nil {
		return err
	}
	return nil
}

// downloadBars builds the remote_file progress factory for pretty mode:
// one bar per transfer, all drawn atomically through mp.
func downloadBars(mp *progress.MultiProgress) resource.ProgressFactory {
	return func(label string) (download.ProgressFunc, func()) {
		bar := progress.NewBar(progress.DefaultStyle(), nil)
		bar.State.SetPrefix(label)
		mp.Add(bar)
		prog := func(written uint64, total *uint64) {
			bar.State.SetTotal(total)
			bar.State.SetPosition(written)
			mp.Draw()
		}
		done := func() {
			bar.Finish()
			mp.Draw()
		}
		return prog, done
	}
}

// countingEmitter increments the run's outcome counters before handing
// the event to next.
func countingEmitter(c *telemetry.Counters, next func(runner.Event)) func(runner.Event) {
	return func(ev runner.Event) {
		switch {
		case ev.Status == "applied":
			c.Applied.Inc()
		case ev.Status == "up-to-date":
			c.UpToDate.Inc()
		case ev.Status == "failed":
			c.Failed.Inc()
		case strings.HasPrefix(ev.Status, "skipped"):
			c.Skipped.Inc()
		}
		next(ev)
	}
}

// eventPrinter builds the runner's emit callback: pretty colorizes the
// status and prints above the progress area, plain prints unadorned
// lines.
func eventPrinter(mode runner.OutputMode, globals GlobalFlags) func(runner.Event) {
	return func(ev runner.Event) {
		if globals.Quiet && ev.Status != "failed" {
			return
		}
		status := ev.Status
		if mode == runner.Pretty {
			status = ui.Status(status)
		}
		line := fmt.Sprintf("%s %s: %s", ev.Ref, ev.Action, status)
		if ev.Reason != "" {
			line += " (" + ev.Reason + ")"
		}
		if ev.Err != nil {
			line += ": " + ev.Err.Error()
		}
		fmt.Fprintln(os.Stderr, line)
	}
}

// loadProvisionSource resolves source to readable bytes and a path the
// script host can load from: a bare http(s) URL is downloaded to a
// provision-<unix-ts>.rb scratch file under TMPDIR and deleted on exit;
// anything else is read as a local path.
func loadProvisionSource(source string, logger *slog.Logger) (src []byte, path string, cleanup func(), err error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		engine := download.New(logger)
		resp, err := engine.Get(context.Background(), source, download.Request{})
		if err != nil {
			return nil, "", nil, err
		}
		path, cleanup, err := config.ScratchScript(time.Now(), resp.Body)
		if err != nil {
			return nil, "", nil, err
		}
		return resp.Body, path, cleanup, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, "", nil, herrors.NewConfigError("cannot read provisioning program", err.Error(), source, err)
	}
	return data, source, func() {}, nil
}
