// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	progressbar "github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/ratazzi/hola/internal/config"
	"github.com/ratazzi/hola/internal/facade"
	"github.com/ratazzi/hola/internal/glob"
	"github.com/ratazzi/hola/internal/herrors"
	"github.com/ratazzi/hola/internal/node"
	"github.com/ratazzi/hola/internal/resource"
	"github.com/ratazzi/hola/internal/runner"
	"github.com/ratazzi/hola/internal/ui"
	"github.com/ratazzi/hola/internal/value"
)

// runApply implements the top-level `apply` command: clone an optional
// repo, link dotfiles, run the Brewfile and mise phases, then evaluate
// the remembered provisioning program.
func runApply(args []string, globals GlobalFlags, logger *slog.Logger) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	githubRepo := fs.String("github", "", "GitHub user/repo to clone as the dotfiles source")
	repoURL := fs.String("repo", "", "Repository URL to clone as the dotfiles source")
	branch := fs.String("branch", "", "Branch to check out when cloning")
	dotfiles := fs.String("dotfiles", "", "Path to an existing dotfiles tree (skips cloning)")
	dryRun := fs.Bool("dry-run", false, "Report intended changes without applying them")
	if err := fs.Parse(args); err != nil {
		return herrors.NewUsageError("invalid apply flags", err.Error(), "see hola apply --help", err)
	}

	prefs, err := config.Load()
	if err != nil {
		return err
	}
	if *branch == "" {
		*branch = prefs.Branch
	}

	dotfilesPath, err := resolveDotfilesPath(*githubRepo, *repoURL, *branch, *dotfiles, logger)
	if err != nil {
		return err
	}
	if err := config.RememberDotfilesPath(dotfilesPath); err != nil {
		logger.Warn("cannot remember dotfiles path", "error", err)
	}

	info := node.Collect()
	collection := resource.NewCollection()
	if err := planDotfileLinks(collection, dotfilesPath, info.HomeDir); err != nil {
		return err
	}

	brewfile := filepath.Join(dotfilesPath, "Brewfile")
	if _, statErr := os.Stat(brewfile); statErr == nil && *dryRun {
		logger.Info("brew.bundle.skipped", "reason", "dry-run", "dir", dotfilesPath)
	} else if statErr == nil {
		logger.Info("brew.bundle.start", "dir", dotfilesPath)
		err := runPhase("brew bundle", globals.Quiet, func() error {
			_, err := facade.NewBrew().Bundle(context.Background(), dotfilesPath)
			return err
		})
		if err != nil {
			return herrors.NewApplyError("brew bundle failed", err.Error(), brewfile, err)
		}
	}

	if miseConfigPresent(dotfilesPath) && *dryRun {
		logger.Info("mise.install.skipped", "reason", "dry-run", "dir", dotfilesPath)
	} else if miseConfigPresent(dotfilesPath) {
		mise := facade.NewMise()
		logger.Info("mise.install.start", "dir", dotfilesPath)
		if _, err := mise.Trust(context.Background(), dotfilesPath); err != nil {
			logger.Warn("mise trust failed", "error", err)
		}
		err := runPhase("mise install", globals.Quiet, func() error {
			_, err := mise.Install(context.Background(), dotfilesPath)
			return err
		})
		if err != nil {
			return herrors.NewApplyError("mise install failed", err.Error(), dotfilesPath, err)
		}
	}

	rn := runner.New(logger, eventPrinter(runner.Plain, globals))
	if err := rn.Run(context.Background(), collection, runner.Options{DryRun: *dryRun}); err != nil {
		return err
	}

	scriptPath, err := config.ProvisionScriptPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(scriptPath); statErr == nil {
		provisionArgs := []string{scriptPath}
		if *dryRun {
			provisionArgs = append([]string{"--dry-run"}, provisionArgs...)
		}
		return runProvision(provisionArgs, globals, logger)
	}
	return nil
}

// resolveDotfilesPath implements the three mutually-exclusive dotfiles
// sources: an explicit --dotfiles path, a fresh clone of --github or
// --repo, or the remembered path from a previous `apply` run.
func resolveDotfilesPath(githubRepo, repoURL, branch, explicit string, logger *slog.Logger) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	url := repoURL
	if githubRepo != "" {
		url = "https://github.com/" + githubRepo + ".git"
	}
	if url != "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", herrors.NewConfigError("cannot determine home directory", err.Error(), "set HOME", err)
		}
		dest := filepath.Join(home, ".dotfiles")
		logger.Info("git.clone.start", "url", url, "dest", dest)
		if _, err := facade.NewGit().Clone(context.Background(), url, dest, facade.CloneOptions{Branch: branch}); err != nil {
			return "", herrors.NewApplyError("git clone failed", err.Error(), url, err)
		}
		return dest, nil
	}

	remembered, err := config.LoadDotfilesPath()
	if err != nil {
		return "", err
	}
	if remembered == "" {
		return "", herrors.NewUsageError(
			"no dotfiles source given",
			"",
			"pass --github, --repo, or --dotfiles on the first run",
			nil,
		)
	}
	return remembered, nil
}

// planDotfileLinks walks dotfilesPath and registers one `link` resource
// per leaf file.
func planDotfileLinks(collection *resource.Collection, dotfilesPath, home string) error {
	plans, err := glob.PlanLinks(dotfilesPath, home, nil)
	if err != nil {
		return herrors.NewApplyError("cannot plan dotfile links", err.Error(), dotfilesPath, err)
	}
	for _, plan := range plans {
		if err := collection.Add(&resource.Resource{
			Type:    "link",
			Name:    plan.Target,
			Actions: []string{"create"},
			Properties: map[string]value.Value{
				"path": value.NewString(plan.Target),
				"to":   value.NewString(plan.Source),
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// runPhase runs fn, showing an indeterminate spinner on stderr while it
// is in flight. Quiet runs and non-terminal stderr skip the spinner.
func runPhase(desc string, quiet bool, fn func() error) error {
	if quiet || !ui.IsTerminal(os.Stderr) {
		return fn()
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

func miseConfigPresent(dir string) bool {
	for _, name := range []string{"mise.toml", ".mise.toml", ".tool-versions"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
