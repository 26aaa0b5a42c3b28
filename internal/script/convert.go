// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/ratazzi/hola/internal/value"
)

// luaToValue marshals a Lua value into the engine's tagged Value union
// at the native boundary.
func luaToValue(lv lua.LValue) value.Value {
	switch v := lv.(type) {
	case lua.LBool:
		return value.NewBool(bool(v))
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return value.NewInt(int64(f))
		}
		return value.NewFloat(f)
	case *lua.LNilType:
		return value.NewNull()
	case lua.LString:
		return value.NewString(string(v))
	case *lua.LTable:
		return luaTableToValue(v)
	default:
		return value.NewNull()
	}
}

// luaTableToValue decides array vs dict by checking whether the table has
// a contiguous 1-based integer key run with no string keys.
func luaTableToValue(t *lua.LTable) value.Value {
	isArray := true
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		if _, ok := k.(lua.LNumber); !ok {
			isArray = false
		}
		count++
	})

	if isArray && count == t.Len() {
		items := make([]value.Value, 0, count)
		for i := 1; i <= t.Len(); i++ {
			items = append(items, luaToValue(t.RawGetInt(i)))
		}
		return value.NewArray(items...)
	}

	m := make(map[string]value.Value)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = luaToValue(v)
	})
	return value.NewDict(m)
}

// valueToLua converts a Value back into a Lua value for prelude wrappers
// that return engine-native data to script code (e.g. JSON.decode).
func valueToLua(L *lua.LState, v value.Value) lua.LValue {
	switch v.Tag() {
	case value.Null:
		return lua.LNil
	case value.Bool:
		b, _ := v.AsBool()
		return lua.LBool(b)
	case value.Int:
		n, _ := v.AsInt()
		return lua.LNumber(n)
	case value.Float:
		f, _ := v.AsFloat()
		return lua.LNumber(f)
	case value.String:
		s, _ := v.AsString()
		return lua.LString(s)
	case value.Data:
		d, _ := v.AsData()
		return lua.LString(string(d))
	case value.Array:
		items, _ := v.AsArray()
		t := L.NewTable()
		for i, item := range items {
			t.RawSetInt(i+1, valueToLua(L, item))
		}
		return t
	case value.Dict:
		m, _ := v.AsDict()
		t := L.NewTable()
		for k, item := range m {
			t.RawSetString(k, valueToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}
