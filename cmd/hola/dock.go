// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	flag "github.com/spf13/pflag"

	"github.com/ratazzi/hola/internal/facade"
	"github.com/ratazzi/hola/internal/herrors"
	"github.com/ratazzi/hola/internal/value"
)

var dockKeys = []string{"orientation", "autohide", "magnification", "tilesize", "largesize"}

// runDock implements the `dock` subcommand: dump the current Dock
// configuration as a `macos_dock` provisioning snippet.
func runDock(args []string, globals GlobalFlags) error {
	if runtime.GOOS != "darwin" {
		return herrors.NewUsageError("dock is macOS only", runtime.GOOS, "run this on macOS", nil)
	}

	fs := flag.NewFlagSet("dock", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return herrors.NewUsageError("invalid dock flags", err.Error(), "see hola dock --help", err)
	}

	defaults := facade.NewDefaults()
	values := map[string]string{}
	for _, key := range dockKeys {
		v, err := defaults.Read(context.Background(), "com.apple.dock", key)
		if err == facade.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return herrors.NewApplyError("cannot read dock default", err.Error(), key, err)
		}
		values[key] = renderValue(v)
	}

	apps, err := facade.DockPersistentApps(context.Background())
	if err != nil {
		return herrors.NewApplyError("cannot read dock persistent apps", err.Error(), "", err)
	}

	fmt.Println(renderDockSnippet(values, apps))
	return nil
}

// renderValue formats a typed defaults value as a Lua literal for the
// dumped provisioning snippet.
func renderValue(v value.Value) string {
	switch v.Tag() {
	case value.Bool:
		return fmt.Sprintf("%t", v.BoolOr(false))
	case value.Int:
		return fmt.Sprintf("%d", v.IntOr(0))
	case value.Float:
		f, _ := v.AsFloat()
		return fmt.Sprintf("%g", f)
	default:
		return fmt.Sprintf("%q", v.StringOr(""))
	}
}

func renderDockSnippet(values map[string]string, apps []string) string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, `macos_dock("dock", function(r)`)
	for _, key := range dockKeys {
		if v, ok := values[key]; ok {
			fmt.Fprintf(&buf, "\tr.%s(%s)\n", key, v)
		}
	}
	if len(apps) > 0 {
		fmt.Fprint(&buf, "\tr.apps({")
		for i, app := range apps {
			if i > 0 {
				fmt.Fprint(&buf, ", ")
			}
			fmt.Fprintf(&buf, "%q", app)
		}
		fmt.Fprintln(&buf, "})")
	}
	fmt.Fprintln(&buf, "end)")
	return buf.String()
}
