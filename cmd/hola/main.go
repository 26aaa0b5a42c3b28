// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the hola CLI: a single-binary configuration
// manager that bootstraps a developer workstation from a declarative
// package manifest, tool-version manifest, dotfiles tree, and an
// optional provisioning program.
//
// Usage:
//
//	hola apply [--github user/repo | --repo URL] [--dotfiles PATH] [--dry-run]
//	hola provision [-o pretty|plain] <path-or-URL>
//	hola git-clone <url> <dest> [--branch N] [--bare] [--quiet]
//	hola applescript [--file P] <script>
//	hola dock
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/ratazzi/hola/internal/herrors"
	"github.com/ratazzi/hola/internal/telemetry"
	"github.com/ratazzi/hola/internal/ui"
)

// version is set via ldflags during build.
var version = "dev"

// GlobalFlags holds flags that apply to every subcommand.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for debug, -vv adds source locations)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	// Subcommand-specific flags (dry-run, branch, etc.) are parsed by each
	// subcommand handler, not the global parser.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `hola - declarative workstation bootstrapper

Usage:
  hola <command> [options]

Commands:
  apply         Clone, link dotfiles, run Brewfile/mise, run provision
  provision     Evaluate a provisioning program
  git-clone     Clone a repository via the Git port
  applescript   Run an AppleScript snippet or file (macOS only)
  dock          Dump current Dock configuration as a provisioning snippet

Global Options:
  --json           Output in JSON format
  --no-color       Disable color output (respects NO_COLOR env var)
  -v, --verbose    Increase verbosity (-v debug, -vv debug with source)
  -q, --quiet      Suppress non-essential output
  -V, --version    Show version and exit

Environment:
  HOME, TMPDIR, AWS_ACCESS_KEY_ID (and friends), NO_COLOR, HOLA_LOG

For detailed command help: hola <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("hola version %s\n", version)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, closeLog, err := telemetry.NewLogger(telemetry.LoggerOptions{
		Verbose: globals.Verbose,
		Quiet:   globals.Quiet,
		LogFile: os.Getenv("HOLA_LOG"),
		JSON:    globals.JSON,
	})
	if err != nil {
		herrors.Fatal(err, globals.JSON)
	}
	defer closeLog()

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "apply":
		err = runApply(cmdArgs, globals, logger)
	case "provision":
		err = runProvision(cmdArgs, globals, logger)
	case "git-clone":
		err = runGitClone(cmdArgs, globals)
	case "applescript":
		err = runAppleScript(cmdArgs, globals)
	case "dock":
		err = runDock(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		herrors.Fatal(err, globals.JSON)
	}
}
