// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package progress

import (
	"sync"
	"time"
)

// Bar pairs a State with a Style. It may optionally run a steady-tick
// background goroutine and may be attached to a MultiProgress, in which
// case it never draws itself; the MultiProgress owns all drawing.
type Bar struct {
	State *State
	Style Style

	mu       sync.Mutex
	attached *MultiProgress
	stopTick chan struct{}
}

// NewBar creates a Bar with the given style and an optional known total
// (nil for indeterminate/spinner bars).
func NewBar(style Style, total *uint64) *Bar {
	st := NewState()
	st.SetTotal(total)
	return &Bar{State: st, Style: style}
}

// Inc advances the bar's position.
func (b *Bar) Inc(delta uint64) { b.State.Inc(delta) }

// Finish marks the bar done.
func (b *Bar) Finish() { b.State.Finish() }

// IsFinished reports completion.
func (b *Bar) IsFinished() bool { return b.State.IsFinished() }

// Render produces the current line for this bar.
func (b *Bar) Render() string { return b.Style.Render(b.State.Snapshot()) }

// attach records which MultiProgress owns this bar's drawing.
func (b *Bar) attach(mp *MultiProgress) {
	b.mu.Lock()
	b.attached = mp
	b.mu.Unlock()
}

func (b *Bar) isAttached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached != nil
}

// StartSteadyTick launches a background goroutine that increments the
// tick counter every interval. While attached to a MultiProgress it only
// ticks the counter and never writes to the terminal itself; standalone
// bars redraw themselves each tick via draw.
func (b *Bar) StartSteadyTick(interval time.Duration, draw func()) {
	b.mu.Lock()
	if b.stopTick != nil {
		b.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	b.stopTick = stop
	b.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.State.Tick()
				if !b.isAttached() && draw != nil {
					draw()
				}
			}
		}
	}()
}

// StopSteadyTick halts the background ticker, if running.
func (b *Bar) StopSteadyTick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopTick != nil {
		close(b.stopTick)
		b.stopTick = nil
	}
}
