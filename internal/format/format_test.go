// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHumanBytes_PowersOf1024(t *testing.T) {
	require.Equal(t, "0 B", HumanBytes(0))

	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	n := uint64(1)
	for _, u := range units {
		n *= 1024
		require.Equal(t, "1.00 "+u, HumanBytes(n))
	}
}

func TestHumanDuration_SkipsZeroLeadingUnits(t *testing.T) {
	require.Equal(t, "0s", HumanDuration(0))
	require.Equal(t, "5s", HumanDuration(5*time.Second))
	require.Equal(t, "1m5s", HumanDuration(65*time.Second))
	require.Equal(t, "1h0m5s", HumanDuration(time.Hour+5*time.Second))
	require.Equal(t, "2d1h0m0s", HumanDuration(49*time.Hour))
}

func TestHumanCount_GroupsDigits(t *testing.T) {
	require.Equal(t, "0", HumanCount(0))
	require.Equal(t, "123", HumanCount(123))
	require.Equal(t, "1,234", HumanCount(1234))
	require.Equal(t, "1,234,567", HumanCount(1234567))
	require.Equal(t, "-1,234", HumanCount(-1234))
}
