// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package script

import (
	"encoding/base64"
	"net"
	"os"

	lua "github.com/yuin/gopher-lua"
	luar "layeh.com/gopher-luar"

	"github.com/ratazzi/hola/internal/node"
	"github.com/ratazzi/hola/internal/value"
)

// registerPrelude installs the script-side wrapper globals: ENV, JSON,
// Base64, File, node, Resolv.
func (h *Host) registerPrelude() {
	h.registerEnv()
	h.registerJSON()
	h.registerBase64()
	h.registerFile()
	h.registerNode()
	h.registerResolv()
}

func (h *Host) registerEnv() {
	t := h.L.NewTable()
	t.RawSetString("get", h.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(os.Getenv(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("set", h.L.NewFunction(func(L *lua.LState) int {
		_ = os.Setenv(L.CheckString(1), L.CheckString(2))
		return 0
	}))
	h.L.SetGlobal("ENV", t)
}

func (h *Host) registerJSON() {
	t := h.L.NewTable()
	t.RawSetString("encode", h.L.NewFunction(func(L *lua.LState) int {
		v := luaToValue(L.Get(1))
		data, err := value.ToJSON(v)
		if err != nil {
			L.RaiseError("JSON.encode: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	}))
	t.RawSetString("decode", h.L.NewFunction(func(L *lua.LState) int {
		v, err := value.FromJSON([]byte(L.CheckString(1)))
		if err != nil {
			L.RaiseError("JSON.decode: %s", err.Error())
			return 0
		}
		L.Push(valueToLua(L, v))
		return 1
	}))
	h.L.SetGlobal("JSON", t)
}

func (h *Host) registerBase64() {
	t := h.L.NewTable()
	t.RawSetString("encode", h.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(base64.StdEncoding.EncodeToString([]byte(L.CheckString(1)))))
		return 1
	}))
	t.RawSetString("decode", h.L.NewFunction(func(L *lua.LState) int {
		data, err := base64.StdEncoding.DecodeString(L.CheckString(1))
		if err != nil {
			L.RaiseError("Base64.decode: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	}))
	h.L.SetGlobal("Base64", t)
}

func (h *Host) registerFile() {
	t := h.L.NewTable()
	statTable := h.L.NewTable()
	statTable.RawSetString("stat", h.L.NewFunction(func(L *lua.LState) int {
		info, err := os.Stat(L.CheckString(1))
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		result := L.NewTable()
		result.RawSetString("size", lua.LNumber(info.Size()))
		result.RawSetString("mode", lua.LString(info.Mode().String()))
		result.RawSetString("is_dir", lua.LBool(info.IsDir()))
		result.RawSetString("mtime", lua.LNumber(info.ModTime().Unix()))
		L.Push(result)
		return 1
	}))
	t.RawSetString("Stat", statTable)
	h.L.SetGlobal("File", t)
}

// registerNode exposes node.Collect() via luar, reflecting its Go struct
// fields/methods directly into a Lua userdata rather than hand-writing
// per-field setters — the marshalling job gopher-luar exists for.
func (h *Host) registerNode() {
	info := node.Collect()
	h.L.SetGlobal("node", luar.New(h.L, &info))
}

func (h *Host) registerResolv() {
	t := h.L.NewTable()
	t.RawSetString("getaddress", h.L.NewFunction(func(L *lua.LState) int {
		host := L.CheckString(1)
		addrs, err := net.LookupHost(host)
		if err != nil || len(addrs) == 0 {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(addrs[0]))
		return 1
	}))
	h.L.SetGlobal("Resolv", t)
}
