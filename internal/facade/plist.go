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
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ratazzi/hola/internal/value"
)

// Defaults wraps the macOS `defaults` CLI, the contract macos_defaults
// and macos_dock need: read the current typed value for a domain/key and
// write a new typed value back.
type Defaults struct{}

func NewDefaults() *Defaults { return &Defaults{} }

// ErrKeyNotFound is returned by Read when the domain/key pair has no
// stored value yet — a missing default is NeedsChange, not an error.
var ErrKeyNotFound = fmt.Errorf("default not found")

// Read returns the current value for domain/key as a Value, inferring
// its tag from `defaults read-type` plus the raw textual value.
func (d *Defaults) Read(ctx context.Context, domain, key string) (value.Value, error) {
	typeOut, err := runCommand(ctx, "", "defaults", "read-type", domain, key)
	if err != nil {
		return value.NewNull(), ErrKeyNotFound
	}
	raw, err := runCommand(ctx, "", "defaults", "read", domain, key)
	if err != nil {
		return value.NewNull(), ErrKeyNotFound
	}
	raw = strings.TrimSpace(raw)

	switch {
	case strings.Contains(typeOut, "boolean"):
		return value.NewBool(raw == "1" || raw == "true"), nil
	case strings.Contains(typeOut, "integer"):
		n, _ := strconv.ParseInt(raw, 10, 64)
		return value.NewInt(n), nil
	case strings.Contains(typeOut, "float"):
		f, _ := strconv.ParseFloat(raw, 64)
		return value.NewFloat(f), nil
	default:
		return value.NewString(raw), nil
	}
}

// Write sets domain/key to v, passing the matching `-type` flag.
func (d *Defaults) Write(ctx context.Context, domain, key string, v value.Value) error {
	args := []string{"write", domain, key}
	switch v.Tag() {
	case value.Bool:
		b, _ := v.AsBool()
		args = append(args, "-bool", strconv.FormatBool(b))
	case value.Int:
		n, _ := v.AsInt()
		args = append(args, "-int", strconv.FormatInt(n, 10))
	case value.Float:
		f, _ := v.AsFloat()
		args = append(args, "-float", strconv.FormatFloat(f, 'f', -1, 64))
	default:
		s, _ := v.AsString()
		args = append(args, "-string", s)
	}
	_, err := runCommand(ctx, "", "defaults", args...)
	return err
}

// ReadPlistFile decodes an XML plist file on disk via the value package's
// read-only plist codec.
func ReadPlistFile(path string) (value.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return value.NewNull(), err
	}
	return value.DecodePlist(data)
}

// cfURLStringPattern pulls app bundle URLs out of `defaults read
// com.apple.dock persistent-apps` plist-as-text output; there is no
// structured API for this short of parsing the binary plist.
var cfURLStringPattern = regexp.MustCompile(`"_CFURLString" = "(file://[^"]+)"`)

// DockPersistentApps returns the Dock's current persistent app URLs in
// display order, as file:// strings.
func DockPersistentApps(ctx context.Context) ([]string, error) {
	out, err := runCommand(ctx, "", "defaults", "read", "com.apple.dock", "persistent-apps")
	if err != nil {
		return nil, err
	}
	var apps []string
	for _, m := range cfURLStringPattern.FindAllStringSubmatch(out, -1) {
		apps = append(apps, m[1])
	}
	return apps, nil
}
