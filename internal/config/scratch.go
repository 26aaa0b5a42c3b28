// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ratazzi/hola/internal/herrors"
)

// ScratchScript writes a downloaded provisioning program to
// <TMPDIR>/provision-<unix-ts>.rb so it has a real path for error messages
// and `require`-style relative loads, and returns a cleanup func that
// removes it.
func ScratchScript(now time.Time, src []byte) (path string, cleanup func(), err error) {
	path = filepath.Join(TempDir(), fmt.Sprintf("provision-%d.rb", now.Unix()))
	if err := os.WriteFile(path, src, 0o600); err != nil {
		return "", nil, herrors.NewConfigError("cannot write scratch script", err.Error(), path, err)
	}
	return path, func() { os.Remove(path) }, nil
}
