// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package glob implements the shell-style glob matcher used for dotfile
// selection: `*`, `**`, `?`, `[abc]`, `[!abc]`, `[a-z]`. Matching is
// whole-string; path segments are never normalized.
package glob

import "strings"

// Match reports whether name matches the glob pattern pat in its entirety.
func Match(pat, name string) bool {
	return matchHere(pat, name)
}

// matchHere implements a standard backtracking glob matcher extended with
// `**` (matches any characters including `/`) alongside `*` (matches any
// characters except `/`).
func matchHere(pat, s string) bool {
	for len(pat) > 0 {
		switch {
		case strings.HasPrefix(pat, "**"):
			rest := pat[2:]
			if rest == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchHere(rest, s[i:]) {
					return true
				}
			}
			return false
		case pat[0] == '*':
			rest := pat[1:]
			limit := strings.IndexByte(s, '/')
			if limit < 0 {
				limit = len(s)
			}
			for i := 0; i <= limit; i++ {
				if matchHere(rest, s[i:]) {
					return true
				}
			}
			return false
		case pat[0] == '?':
			if len(s) == 0 || s[0] == '/' {
				return false
			}
			pat, s = pat[1:], s[1:]
		case pat[0] == '[':
			end := strings.IndexByte(pat, ']')
			if end < 0 {
				// malformed bracket: treat '[' as literal
				if len(s) == 0 || s[0] != '[' {
					return false
				}
				pat, s = pat[1:], s[1:]
				continue
			}
			class := pat[1:end]
			if len(s) == 0 {
				return false
			}
			if !matchClass(class, rune(s[0])) || s[0] == '/' {
				return false
			}
			pat, s = pat[end+1:], s[1:]
		default:
			if len(s) == 0 || pat[0] != s[0] {
				return false
			}
			pat, s = pat[1:], s[1:]
		}
	}
	return len(s) == 0
}

func matchClass(class string, c rune) bool {
	negate := false
	if strings.HasPrefix(class, "!") {
		negate = true
		class = class[1:]
	}
	matched := false
	runes := []rune(class)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' {
			if runes[i] <= c && c <= runes[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if runes[i] == c {
			matched = true
		}
	}
	if negate {
		return !matched
	}
	return matched
}
