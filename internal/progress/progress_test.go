// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStyle_UnknownPlaceholderExpandsEmpty(t *testing.T) {
	st := Style{Template: "[{nope}]"}
	require.Equal(t, "[]", st.Render(Snapshot{}))
}

func TestStyle_MalformedPlaceholderPassesThroughLiterally(t *testing.T) {
	st := Style{Template: "abc {unterminated"}
	require.Equal(t, "abc {unterminated", st.Render(Snapshot{}))
}

func TestStyle_PercentAndBytes(t *testing.T) {
	total := uint64(200)
	snap := Snapshot{Position: 100, Total: &total}
	st := Style{Template: "{percent}% {bytes}/{total_bytes}", Width: 10}
	require.Equal(t, "50% 100 B/200 B", st.Render(snap))
}

func TestMultiProgress_AtomicRedrawNoPartialEscape(t *testing.T) {
	var buf threadSafeBuffer
	mp := NewMultiProgress(&buf)

	total := uint64(1000)
	bar1 := NewBar(Style{Template: "{pos}"}, &total)
	bar2 := NewBar(Style{Template: "{pos}"}, &total)
	mp.Add(bar1)
	mp.Add(bar2)

	var wg sync.WaitGroup
	for _, b := range []*Bar{bar1, bar2} {
		wg.Add(1)
		go func(b *Bar) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Inc(1)
				mp.Draw()
			}
		}(b)
	}
	wg.Wait()
	bar1.Finish()
	bar2.Finish()
	mp.Draw()

	out := buf.String()
	require.True(t, allEscapesTerminated(out))
	require.True(t, bar1.IsFinished())
	require.True(t, bar2.IsFinished())
}

// allEscapesTerminated reports whether every CSI introducer "\x1b[" in s
// is followed by a recognized terminator (F, K, or m) before the string
// ends or another introducer begins — i.e. no partial escape is visible.
func allEscapesTerminated(s string) bool {
	for {
		i := strings.Index(s, "\x1b[")
		if i < 0 {
			return true
		}
		rest := s[i+2:]
		j := strings.IndexAny(rest, "FKm")
		if j < 0 {
			return false
		}
		s = rest[j+1:]
	}
}

// threadSafeBuffer wraps bytes.Buffer with a mutex since MultiProgress.Draw
// is called concurrently by the test above.
type threadSafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *threadSafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *threadSafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
