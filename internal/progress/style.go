// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/ratazzi/hola/internal/format"
)

// spinnerFrames is the glyph rotation for `{spinner}`.
var spinnerFrames = []rune(`|/-\`)

// Style renders a Snapshot according to a fixed template vocabulary:
// {bar}, {wide_bar}, {spinner}, {pos}, {len}, {percent}, {msg}, {prefix},
// {elapsed}, {elapsed_precise}, {eta}, {bytes}, {total_bytes},
// {bytes_per_sec}, {per_sec}. Unknown placeholders expand to empty;
// malformed (unclosed) placeholders pass through literally.
type Style struct {
	Template string
	// Width is used by {bar} and {wide_bar}; both render at exactly Width
	// cells (40 when Width is 0 or less).
	Width int
}

// DefaultStyle is the download-style template: a prefix, a bar, and
// byte-rate/ETA trailers.
func DefaultStyle() Style {
	return Style{Template: "{prefix} {bar} {percent}% ({bytes}/{total_bytes}, {bytes_per_sec}) {eta}", Width: 40}
}

// SpinnerStyle is used for indeterminate-length tasks (package installs).
func SpinnerStyle() Style {
	return Style{Template: "{spinner} {prefix} {msg} ({elapsed})", Width: 0}
}

// Render expands the template against snap.
func (st Style) Render(snap Snapshot) string {
	var out strings.Builder
	i := 0
	tpl := st.Template
	for i < len(tpl) {
		if tpl[i] != '{' {
			out.WriteByte(tpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tpl[i:], '}')
		if end < 0 {
			// Unclosed brace: pass through literally.
			out.WriteString(tpl[i:])
			break
		}
		name := tpl[i+1 : i+end]
		out.WriteString(st.expand(name, snap))
		i += end + 1
	}
	return out.String()
}

func (st Style) expand(name string, snap Snapshot) string {
	switch name {
	case "bar":
		return st.renderBar(snap, st.Width)
	case "wide_bar":
		w := st.Width
		if w <= 0 {
			w = 40
		}
		return st.renderBar(snap, w)
	case "spinner":
		return string(spinnerFrames[snap.Ticks%uint64(len(spinnerFrames))])
	case "pos":
		return fmt.Sprintf("%d", snap.Position)
	case "len":
		if snap.Total == nil {
			return "?"
		}
		return fmt.Sprintf("%d", *snap.Total)
	case "percent":
		return fmt.Sprintf("%d", percent(snap))
	case "msg":
		return snap.Message
	case "prefix":
		return snap.Prefix
	case "elapsed":
		return format.HumanDuration(snap.Elapsed)
	case "elapsed_precise":
		return hhmmss(snap.Elapsed)
	case "eta":
		return etaString(snap)
	case "bytes":
		return format.HumanBytes(snap.Position)
	case "total_bytes":
		if snap.Total == nil {
			return "?"
		}
		return format.HumanBytes(*snap.Total)
	case "bytes_per_sec", "per_sec":
		return format.HumanBytes(bytesPerSec(snap)) + "/s"
	default:
		return ""
	}
}

func percent(snap Snapshot) int {
	if snap.Total == nil || *snap.Total == 0 {
		return 0
	}
	p := float64(snap.Position) / float64(*snap.Total) * 100
	if p > 100 {
		p = 100
	}
	return int(p)
}

func bytesPerSec(snap Snapshot) uint64 {
	secs := snap.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return uint64(float64(snap.Position) / secs)
}

func etaString(snap Snapshot) string {
	if snap.Total == nil || *snap.Total <= snap.Position {
		return "0s"
	}
	rate := bytesPerSec(snap)
	if rate == 0 {
		return "?"
	}
	remaining := *snap.Total - snap.Position
	secs := float64(remaining) / float64(rate)
	return format.HumanDuration(time.Duration(secs * float64(time.Second)))
}

func hhmmss(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (st Style) renderBar(snap Snapshot, width int) string {
	if width <= 0 {
		width = 40
	}
	filled := 0
	if snap.Total != nil && *snap.Total > 0 {
		filled = int(float64(width) * float64(snap.Position) / float64(*snap.Total))
		if filled > width {
			filled = width
		}
	}
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(strings.Repeat("=", filled))
	if filled < width {
		sb.WriteByte('>')
		sb.WriteString(strings.Repeat(" ", width-filled-1))
	}
	sb.WriteByte(']')
	return sb.String()
}
