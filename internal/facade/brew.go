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

package facade

import (
	"context"
	"strings"
)

// Brew wraps the Homebrew CLI for the package resource type and the
// apply command's Brewfile phase.
type Brew struct{}

func NewBrew() *Brew { return &Brew{} }

// Installed reports whether formula is installed.
func (b *Brew) Installed(ctx context.Context, formula string) (bool, error) {
	out, err := runCommand(ctx, "", "brew", "list", "--formula", "-1")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == formula {
			return true, nil
		}
	}
	return false, nil
}

// Install installs one or more formulae.
func (b *Brew) Install(ctx context.Context, formulae ...string) (string, error) {
	args := append([]string{"install"}, formulae...)
	return runCommand(ctx, "", "brew", args...)
}

// Bundle runs `brew bundle` against a Brewfile in dir.
func (b *Brew) Bundle(ctx context.Context, dir string) (string, error) {
	return runCommand(ctx, dir, "brew", "bundle")
}
