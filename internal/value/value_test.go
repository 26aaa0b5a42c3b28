// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValue_CloneIsIndependent(t *testing.T) {
	orig := NewArray(NewString("a"), NewDict(map[string]Value{"k": NewInt(1)}))
	clone := orig.Clone()

	origArr, _ := orig.AsArray()
	cloneArr, _ := clone.AsArray()
	d, _ := cloneArr[1].AsDict()
	d["k"] = NewInt(2)

	origD, _ := origArr[1].AsDict()
	require.Equal(t, int64(1), origD["k"].IntOr(-1))
}

func TestValue_Equal(t *testing.T) {
	a := NewDict(map[string]Value{"x": NewInt(1), "y": NewArray(NewBool(true))})
	b := NewDict(map[string]Value{"x": NewInt(1), "y": NewArray(NewBool(true))})
	c := NewDict(map[string]Value{"x": NewInt(2)})

	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))
}

func TestValue_NarrowingAccessors(t *testing.T) {
	s := NewString("hi")
	_, err := s.AsInt()
	require.Error(t, err)

	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, Int, mismatch.Want)
	require.Equal(t, String, mismatch.Got)
}

func TestValue_JSONRoundTrip(t *testing.T) {
	orig := NewDict(map[string]Value{
		"name":  NewString("hi"),
		"count": NewInt(3),
		"ratio": NewFloat(1.5),
		"tags":  NewArray(NewString("a"), NewString("b")),
		"blob":  NewData([]byte{1, 2, 3}),
	})

	encoded, err := ToJSON(orig)
	require.NoError(t, err)

	decoded, err := FromJSON(encoded)
	require.NoError(t, err)

	d, err := decoded.AsDict()
	require.NoError(t, err)
	require.Equal(t, "hi", d["name"].StringOr(""))
	require.Equal(t, int64(3), d["count"].IntOr(0))
}

func TestDecodePlist_ScalarsAndContainers(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>enabled</key>
	<true/>
	<key>count</key>
	<integer>42</integer>
	<key>ratio</key>
	<real>3.5</real>
	<key>items</key>
	<array>
		<string>a</string>
		<string>b</string>
	</array>
	<key>blob</key>
	<data>AQID</data>
</dict>
</plist>`)

	v, err := DecodePlist(doc)
	require.NoError(t, err)

	d, err := v.AsDict()
	require.NoError(t, err)
	require.True(t, d["enabled"].BoolOr(false))
	require.Equal(t, int64(42), d["count"].IntOr(0))

	items, err := d["items"].AsArray()
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "b", items[1].StringOr(""))

	blob, err := d["blob"].AsData()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, blob)
}
