// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package script

import (
	"context"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ratazzi/hola/internal/resource"
)

// newResourceTable builds the `r` table passed to a resource block:
// one setter function per declared property, plus the common setters
// every resource type shares (only_if, not_if, notifies, subscribes,
// ignore_failure, action) and, for ruby_block, a block setter.
func (h *Host) newResourceTable(L *lua.LState, schema resource.TypeSchema, ctx *buildCtx) *lua.LTable {
	t := L.NewTable()

	for _, prop := range schema.Properties {
		prop := prop
		t.RawSetString(prop, L.NewFunction(func(L *lua.LState) int {
			ctx.props[prop] = luaToValue(L.Get(1))
			return 0
		}))
	}

	t.RawSetString("only_if", L.NewFunction(func(L *lua.LState) int {
		fn := L.CheckFunction(1)
		ctx.onlyIf = h.wrapGuard(fn)
		return 0
	}))
	t.RawSetString("not_if", L.NewFunction(func(L *lua.LState) int {
		fn := L.CheckFunction(1)
		ctx.notIf = h.wrapGuard(fn)
		return 0
	}))
	t.RawSetString("ignore_failure", L.NewFunction(func(L *lua.LState) int {
		ctx.ignoreFailure = lua.LVAsBool(L.Get(1))
		return 0
	}))
	t.RawSetString("action", L.NewFunction(func(L *lua.LState) int {
		ctx.actions = append(ctx.actions, luaActionList(L.Get(1))...)
		return 0
	}))
	t.RawSetString("notifies", L.NewFunction(func(L *lua.LState) int {
		action := L.CheckString(1)
		targetRef := parseRef(L.CheckString(2))
		timing := parseTiming(optionalString(L, 3, "immediately"))
		ctx.notifications = append(ctx.notifications, resource.Notification{
			Action: action, Target: targetRef, Timing: timing,
		})
		return 0
	}))
	t.RawSetString("subscribes", L.NewFunction(func(L *lua.LState) int {
		action := L.CheckString(1)
		sourceRef := parseRef(L.CheckString(2))
		timing := parseTiming(optionalString(L, 3, "delayed"))

		h.subs = append(h.subs, pendingSubscription{
			source: sourceRef,
			n: resource.Notification{
				Action: action,
				Target: resource.Ref{Type: ctx.typ, Name: ctx.name},
				Timing: timing,
			},
		})
		return 0
	}))

	if schema.Name == "ruby_block" {
		t.RawSetString("block", L.NewFunction(func(L *lua.LState) int {
			fn := L.CheckFunction(1)
			ctx.block = h.wrapBlock(fn)
			return 0
		}))
	}

	return t
}

func optionalString(L *lua.LState, n int, fallback string) string {
	v := L.Get(n)
	if v == lua.LNil {
		return fallback
	}
	return lua.LVAsString(v)
}

// luaActionList normalizes `action :x` / `action [:a, :b]` — a bare
// string or a table of strings — into a []string.
func luaActionList(lv lua.LValue) []string {
	switch v := lv.(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= v.Len(); i++ {
			out = append(out, lua.LVAsString(v.RawGetInt(i)))
		}
		return out
	default:
		return nil
	}
}

// parseRef parses "type[name]" into a resource.Ref.
func parseRef(s string) resource.Ref {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return resource.Ref{Type: s}
	}
	return resource.Ref{Type: s[:open], Name: s[open+1 : len(s)-1]}
}

func parseTiming(s string) resource.Timing {
	s = strings.TrimPrefix(s, ":")
	if s == "delayed" {
		return resource.Delayed
	}
	return resource.Immediately
}

// wrapGuard adapts a Lua closure into a resource.Guard: it is invoked
// with no arguments and its truthiness (Lua's nil/false are falsy,
// everything else truthy) becomes the bool result.
func (h *Host) wrapGuard(fn *lua.LFunction) resource.Guard {
	return func() (bool, error) {
		if err := h.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
			return false, &ScriptError{Detail: err.Error()}
		}
		result := h.L.Get(-1)
		h.L.Pop(1)
		return lua.LVAsBool(result), nil
	}
}

// wrapBlock adapts a Lua closure into a resource.BlockInvoker for
// ruby_block resources.
func (h *Host) wrapBlock(fn *lua.LFunction) resource.BlockInvoker {
	return func(ctx context.Context) error {
		if err := h.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			return &ScriptError{Detail: err.Error()}
		}
		return nil
	}
}
