// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui centralizes the CLI's color/TTY policy: NO_COLOR and
// --no-color gating via fatih/color, and TTY detection via go-isatty so
// the pretty output mode only engages on a real terminal.
package ui

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// InitColors sets the process-wide color.NoColor switch. noColor is true
// when --no-color or NO_COLOR was given; it is OR'd with "stderr isn't a
// terminal" so piped output never carries ANSI codes even if the flag was
// left off.
func InitColors(noColor bool) {
	color.NoColor = noColor || !IsTerminal(os.Stderr)
}

// IsTerminal reports whether f is attached to a real terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
)

// Status colorizes a runner.Event's status string for pretty-mode
// printing: green for convergence/success, yellow for skips, red for
// failures, dim for anything else.
func Status(status string) string {
	switch {
	case status == "applied" || status == "up-to-date":
		return successColor.Sprint(status)
	case status == "failed":
		return errorColor.Sprint(status)
	case len(status) >= 7 && status[:7] == "skipped":
		return warnColor.Sprint(status)
	default:
		return dimColor.Sprint(status)
	}
}
