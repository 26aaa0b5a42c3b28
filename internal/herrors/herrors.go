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

// Package herrors implements the error taxonomy and exit-code mapping for
// the provisioning engine.
package herrors

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind classifies a failure the way the runner's error table distinguishes
// recoverable from fatal conditions.
type Kind string

const (
	KindGuard      Kind = "guard_error"
	KindProbe      Kind = "probe_error"
	KindApply      Kind = "apply_error"
	KindDownload   Kind = "download_error"
	KindUnknownRes Kind = "unknown_resource"
	KindCyclic     Kind = "cyclic_notification"
	KindScript     Kind = "script_error"
	KindConfig     Kind = "config_error"
	KindUsage      Kind = "usage_error"
	KindInternal   Kind = "internal_error"
)

// ExitCode maps a Kind to the process exit code: 2 for usage errors, 3
// for network/download failures, 4 for resource failures, 1 otherwise.
func (k Kind) ExitCode() int {
	switch k {
	case KindUsage:
		return 2
	case KindDownload:
		return 3
	case KindProbe, KindApply, KindGuard:
		return 4
	case "":
		return 0
	default:
		return 1
	}
}

// Error is the concrete error type carried through the runner and CLI.
type Error struct {
	Kind   Kind
	Title  string
	Detail string
	Hint   string
	Cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, title, detail, hint string, cause error) *Error {
	return &Error{Kind: kind, Title: title, Detail: detail, Hint: hint, Cause: cause}
}

func NewGuardError(title, detail, hint string, cause error) *Error {
	return new_(KindGuard, title, detail, hint, cause)
}

func NewProbeError(title, detail, hint string, cause error) *Error {
	return new_(KindProbe, title, detail, hint, cause)
}

func NewApplyError(title, detail, hint string, cause error) *Error {
	return new_(KindApply, title, detail, hint, cause)
}

func NewDownloadError(title, detail, hint string, cause error) *Error {
	return new_(KindDownload, title, detail, hint, cause)
}

func NewUnknownResourceError(title, detail, hint string, cause error) *Error {
	return new_(KindUnknownRes, title, detail, hint, cause)
}

func NewCyclicNotificationError(title, detail, hint string, cause error) *Error {
	return new_(KindCyclic, title, detail, hint, cause)
}

func NewScriptError(title, detail, hint string, cause error) *Error {
	return new_(KindScript, title, detail, hint, cause)
}

func NewConfigError(title, detail, hint string, cause error) *Error {
	return new_(KindConfig, title, detail, hint, cause)
}

func NewUsageError(title, detail, hint string, cause error) *Error {
	return new_(KindUsage, title, detail, hint, cause)
}

func NewInternalError(title, detail, hint string, cause error) *Error {
	return new_(KindInternal, title, detail, hint, cause)
}

// jsonError is the wire shape printed when --json is active.
type jsonError struct {
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

// Fatal prints a one-line (or JSON) summary of err and terminates the
// process with the exit code matching err's Kind. Plain errors that were
// never wrapped into *Error exit with code 1.
func Fatal(err error, jsonMode bool) {
	if err == nil {
		return
	}
	var herr *Error
	if e, ok := err.(*Error); ok {
		herr = e
	} else {
		herr = &Error{Kind: KindInternal, Title: err.Error()}
	}

	if jsonMode {
		payload := jsonError{Kind: herr.Kind, Title: herr.Title, Detail: herr.Detail, Hint: herr.Hint}
		enc, _ := json.Marshal(payload)
		fmt.Fprintln(os.Stderr, string(enc))
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", herr.Title)
		if herr.Detail != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", herr.Detail)
		}
		if herr.Hint != "" {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", herr.Hint)
		}
	}
	os.Exit(herr.Kind.ExitCode())
}
