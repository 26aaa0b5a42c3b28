// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"runtime"

	flag "github.com/spf13/pflag"

	"github.com/ratazzi/hola/internal/facade"
	"github.com/ratazzi/hola/internal/herrors"
)

// runAppleScript implements the `applescript [--file P] <script>`
// subcommand, macOS only.
func runAppleScript(args []string, globals GlobalFlags) error {
	if runtime.GOOS != "darwin" {
		return herrors.NewUsageError("applescript is macOS only", runtime.GOOS, "run this on macOS", nil)
	}

	fs := flag.NewFlagSet("applescript", flag.ContinueOnError)
	file := fs.String("file", "", "Run an AppleScript file instead of an inline snippet")
	if err := fs.Parse(args); err != nil {
		return herrors.NewUsageError("invalid applescript flags", err.Error(), "see hola applescript --help", err)
	}

	a := facade.NewAppleScript()
	var out string
	var err error
	if *file != "" {
		out, err = a.RunFile(context.Background(), *file)
	} else {
		rest := fs.Args()
		if len(rest) != 1 {
			return herrors.NewUsageError("applescript requires a script argument or --file", "", "hola applescript '<script>'", nil)
		}
		out, err = a.Run(context.Background(), rest[0])
	}
	if err != nil {
		return herrors.NewApplyError("applescript failed", err.Error(), "", err)
	}
	if !globals.Quiet && out != "" {
		fmt.Println(out)
	}
	return nil
}
