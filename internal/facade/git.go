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

import "context"

// Git is a thin port over the system git binary, consumed by the
// git-clone subcommand and the apply command's optional repo checkout
// step. It is intentionally not a full client library: cloning is the
// only operation this tool needs.
type Git struct{}

func NewGit() *Git { return &Git{} }

// CloneOptions configures Clone.
type CloneOptions struct {
	Branch string
	Bare   bool
	Quiet  bool
}

// Clone runs `git clone` for url into dest.
func (g *Git) Clone(ctx context.Context, url, dest string, opts CloneOptions) (string, error) {
	args := []string{"clone"}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	if opts.Bare {
		args = append(args, "--bare")
	}
	if opts.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args, url, dest)
	return runCommand(ctx, "", "git", args...)
}
