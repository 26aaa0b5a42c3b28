// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/ratazzi/hola/internal/facade"
	"github.com/ratazzi/hola/internal/herrors"
)

// runGitClone implements the `git-clone <url> <dest>` subcommand, a thin
// wrapper over the Git port.
func runGitClone(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("git-clone", flag.ContinueOnError)
	branch := fs.String("branch", "", "Branch to check out")
	bare := fs.Bool("bare", false, "Create a bare repository")
	quiet := fs.Bool("quiet", false, "Suppress git's own progress output")
	if err := fs.Parse(args); err != nil {
		return herrors.NewUsageError("invalid git-clone flags", err.Error(), "see hola git-clone --help", err)
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return herrors.NewUsageError("git-clone requires <url> <dest>", "", "hola git-clone <url> <dest>", nil)
	}
	url, dest := rest[0], rest[1]

	out, err := facade.NewGit().Clone(context.Background(), url, dest, facade.CloneOptions{
		Branch: *branch,
		Bare:   *bare,
		Quiet:  *quiet,
	})
	if err != nil {
		return herrors.NewApplyError("git clone failed", err.Error(), url, err)
	}
	if !globals.Quiet && out != "" {
		fmt.Println(out)
	}
	return nil
}
