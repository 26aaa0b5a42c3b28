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

// Mise wraps the mise (tool-version manager) CLI for the apply command's
// tool-install phase.
type Mise struct{}

func NewMise() *Mise { return &Mise{} }

// Install runs `mise install` in dir, honoring a .mise.toml/.tool-versions
// file already present there.
func (m *Mise) Install(ctx context.Context, dir string) (string, error) {
	return runCommand(ctx, dir, "mise", "install")
}

// Trust runs `mise trust` in dir so config files in that dir are honored
// without an interactive prompt.
func (m *Mise) Trust(ctx context.Context, dir string) (string, error) {
	return runCommand(ctx, dir, "mise", "trust")
}
