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

// AppleScript runs osascript, used by the applescript subcommand and by
// macos_dock/macos_defaults to restart Dock/Finder/SystemUIServer after a
// write.
type AppleScript struct{}

func NewAppleScript() *AppleScript { return &AppleScript{} }

// Run evaluates script inline via `osascript -e`.
func (a *AppleScript) Run(ctx context.Context, script string) (string, error) {
	return runCommand(ctx, "", "osascript", "-e", script)
}

// RunFile evaluates the AppleScript file at path.
func (a *AppleScript) RunFile(ctx context.Context, path string) (string, error) {
	return runCommand(ctx, "", "osascript", path)
}

// restartAgents are the user-facing processes whose preference caches
// must be killed for a macos_defaults/macos_dock write to take visible
// effect.
var restartAgents = map[string]bool{
	"com.apple.dock":           true,
	"com.apple.finder":         true,
	"com.apple.systemuiserver": true,
	"com.apple.SystemUIServer": true,
}

// NeedsRestart reports whether domain is in the known-restart set.
func NeedsRestart(domain string) bool { return restartAgents[domain] }

// RestartAgent kills the user agent backing domain so it relaunches and
// picks up the new defaults.
func (a *AppleScript) RestartAgent(ctx context.Context, domain string) (string, error) {
	proc := domain
	switch domain {
	case "com.apple.dock":
		proc = "Dock"
	case "com.apple.finder":
		proc = "Finder"
	case "com.apple.systemuiserver", "com.apple.SystemUIServer":
		proc = "SystemUIServer"
	}
	return runCommand(ctx, "", "killall", proc)
}
