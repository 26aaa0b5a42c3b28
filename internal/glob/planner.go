// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package glob

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultIgnore is the built-in ignore list: the dotfiles repo's own VCS
// metadata and config file are never linked.
var DefaultIgnore = []string{".git", ".git*", "hola.yaml", "hola.yml"}

// LinkPlan is one planned dotfile symlink: Source is the absolute path of
// the file inside the dotfiles tree, Target is the absolute path under
// the user's home directory it should be linked from.
type LinkPlan struct {
	Source string
	Target string
}

// PlanLinks enumerates every regular file under root (skipping
// directories and files matched by ignore) and maps each leaf to home,
// preserving the relative path.
func PlanLinks(root, home string, ignore []string) ([]LinkPlan, error) {
	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}
	var plans []LinkPlan
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if isIgnored(rel, ignore) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		plans = append(plans, LinkPlan{
			Source: path,
			Target: filepath.Join(home, rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func isIgnored(rel string, ignore []string) bool {
	base := filepath.Base(rel)
	segments := strings.Split(rel, string(filepath.Separator))
	for _, pat := range ignore {
		if Match(pat, base) || Match(pat, rel) {
			return true
		}
		for _, seg := range segments {
			if Match(pat, seg) {
				return true
			}
		}
	}
	return false
}
