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

// Package config persists the provisioning engine's user-level state
// (remembered dotfiles path, cached provision script) and loads the
// optional YAML preferences file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ratazzi/hola/internal/herrors"
)

const (
	configDirName  = "hola"
	provisionFile  = "provision.rb"
	dotfilesFile   = "dotfiles-path"
	preferencesYML = "preferences.yaml"
)

// Preferences is the optional ~/.config/hola/preferences.yaml file. Every
// field except MaxRedirects may also be set or overridden by an environment
// variable; env always wins over the file, and the file wins over the
// built-in default. MaxRedirects is read from the file only.
type Preferences struct {
	Branch       string `yaml:"branch,omitempty"`
	DotfilesPath string `yaml:"dotfiles_path,omitempty"`
	NoColor      bool   `yaml:"no_color,omitempty"`
	MaxRedirects int    `yaml:"max_redirects,omitempty"`
	AWSRegion    string `yaml:"aws_region,omitempty"`
	AWSEndpoint  string `yaml:"aws_endpoint,omitempty"`
}

// DefaultPreferences returns the built-in defaults before any file or env
// override is applied.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Branch:       "main",
		MaxRedirects: 10,
	}
}

// Dir returns $HOME/.config/hola, creating it if absent.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", herrors.NewConfigError(
			"cannot determine home directory",
			err.Error(),
			"set HOME in the environment",
			err,
		)
	}
	dir := filepath.Join(home, ".config", configDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", herrors.NewConfigError(
			"cannot create config directory",
			err.Error(),
			fmt.Sprintf("check permissions on %s", dir),
			err,
		)
	}
	return dir, nil
}

// ProvisionScriptPath returns ~/.config/hola/provision.rb.
func ProvisionScriptPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, provisionFile), nil
}

// SaveProvisionScript persists src as the user's remembered provisioning
// program, so a bare `hola apply` can re-run it without a path argument.
func SaveProvisionScript(src string) error {
	path, err := ProvisionScriptPath()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		return herrors.NewConfigError("cannot save provision script", err.Error(), path, err)
	}
	return nil
}

// DotfilesPathFile returns ~/.config/hola/dotfiles-path.
func DotfilesPathFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dotfilesFile), nil
}

// RememberDotfilesPath writes path to the dotfiles-path marker file.
func RememberDotfilesPath(path string) error {
	file, err := DotfilesPathFile()
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, []byte(strings.TrimSpace(path)+"\n"), 0o644); err != nil {
		return herrors.NewConfigError("cannot remember dotfiles path", err.Error(), file, err)
	}
	return nil
}

// LoadDotfilesPath reads the remembered dotfiles path, if any. A missing
// file is not an error; it returns "".
func LoadDotfilesPath() (string, error) {
	file, err := DotfilesPathFile()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", herrors.NewConfigError("cannot read dotfiles path", err.Error(), file, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Load resolves Preferences with precedence env > ~/.config/hola/preferences.yaml > default.
func Load() (*Preferences, error) {
	prefs := DefaultPreferences()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, preferencesYML)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, prefs); err != nil {
			return nil, herrors.NewConfigError(
				"invalid preferences file",
				err.Error(),
				fmt.Sprintf("fix the YAML syntax in %s", path),
				err,
			)
		}
	} else if !os.IsNotExist(err) {
		return nil, herrors.NewConfigError("cannot read preferences file", err.Error(), path, err)
	}

	applyEnvOverrides(prefs)
	return prefs, nil
}

// Save writes prefs to ~/.config/hola/preferences.yaml.
func Save(prefs *Preferences) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return herrors.NewInternalError("cannot encode preferences", err.Error(), "this is a bug", err)
	}
	path := filepath.Join(dir, preferencesYML)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return herrors.NewConfigError("cannot write preferences file", err.Error(), path, err)
	}
	return nil
}

func applyEnvOverrides(p *Preferences) {
	if v := os.Getenv("HOLA_BRANCH"); v != "" {
		p.Branch = v
	}
	if v := os.Getenv("HOLA_DOTFILES_PATH"); v != "" {
		p.DotfilesPath = v
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		p.NoColor = true
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		p.AWSRegion = v
	} else if v := os.Getenv("AWS_DEFAULT_REGION"); v != "" {
		p.AWSRegion = v
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		p.AWSEndpoint = v
	}
}

// TempDir returns $TMPDIR, falling back to os.TempDir() when unset.
func TempDir() string {
	if v := os.Getenv("TMPDIR"); v != "" {
		return v
	}
	return os.TempDir()
}
