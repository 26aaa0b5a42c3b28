// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package script embeds a Lua interpreter as the resource DSL host:
// resource type declarations become Lua global functions, and a
// task-local "current builder" context accumulates property setters
// invoked inside a resource's block before being finalised into a
// resource.Resource and registered.
package script

import (
	"context"
	"fmt"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/ratazzi/hola/internal/resource"
	"github.com/ratazzi/hola/internal/value"
)

// ScriptError wraps a Lua parse/runtime error with the file/line
// location the DSL reports.
type ScriptError struct {
	Detail string
}

func (e *ScriptError) Error() string { return e.Detail }

// buildCtx is the mutable property-builder for one in-progress resource
// block; it is pushed onto Host.stack when the block starts and popped
// (then finalised) when it ends.
type buildCtx struct {
	typ           string
	name          string
	props         map[string]value.Value
	actions       []string
	onlyIf        resource.Guard
	notIf         resource.Guard
	ignoreFailure bool
	notifications []resource.Notification
	block         resource.BlockInvoker
}

// pendingSubscription is one `subscribes` declaration awaiting its
// source resource. The rewrite into the source's notification list is
// deferred until the whole program has evaluated, so the source may be
// declared before or after the subscriber.
type pendingSubscription struct {
	source resource.Ref
	n      resource.Notification
}

// Host owns the Lua state, the run's resource collection, and the
// context stack. The "current builder" and "current collection" are an
// explicit stack rather than hidden module-level state, even though the
// script engine runs single-threaded.
type Host struct {
	L          *lua.LState
	logger     *slog.Logger
	collection *resource.Collection
	stack      []*buildCtx
	subs       []pendingSubscription
}

// New creates a Host bound to collection, registering every type in the
// resource registry as a Lua global constructor plus the script prelude.
func New(collection *resource.Collection, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{
		L:          lua.NewState(),
		logger:     logger,
		collection: collection,
	}
	h.registerResourceTypes()
	h.registerPrelude()
	return h
}

func (h *Host) Close() { h.L.Close() }

func (h *Host) push(ctx *buildCtx) { h.stack = append(h.stack, ctx) }

func (h *Host) pop() *buildCtx {
	n := len(h.stack)
	ctx := h.stack[n-1]
	h.stack = h.stack[:n-1]
	return ctx
}

// registerResourceTypes installs one Lua global function per registered
// resource type: typeName(name, function(r) ... end).
func (h *Host) registerResourceTypes() {
	for _, typeName := range resource.TypeNames() {
		typeName := typeName
		h.L.SetGlobal(typeName, h.L.NewFunction(func(L *lua.LState) int {
			name := L.CheckString(1)
			fn := L.CheckFunction(2)
			return h.declareResource(L, typeName, name, fn)
		}))
	}
}

func (h *Host) declareResource(L *lua.LState, typeName, name string, fn *lua.LFunction) int {
	schema, ok := resource.Lookup(typeName)
	if !ok {
		L.RaiseError("unknown resource type %q", typeName)
		return 0
	}

	ctx := &buildCtx{typ: typeName, name: name, props: map[string]value.Value{}}
	h.push(ctx)
	defer h.pop()

	rTable := h.newResourceTable(L, schema, ctx)

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, rTable); err != nil {
		L.RaiseError("%s %q: %s", typeName, name, err.Error())
		return 0
	}

	res := h.finalize(schema, ctx)
	if err := h.collection.Add(res); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	return 0
}

func (h *Host) finalize(schema resource.TypeSchema, ctx *buildCtx) *resource.Resource {
	actions := ctx.actions
	if len(actions) == 0 && schema.DefaultAction != "" {
		actions = []string{schema.DefaultAction}
	}

	return &resource.Resource{
		Type:          ctx.typ,
		Name:          ctx.name,
		Properties:    ctx.props,
		Actions:       actions,
		OnlyIf:        ctx.onlyIf,
		NotIf:         ctx.notIf,
		IgnoreFailure: ctx.ignoreFailure,
		Notifications: ctx.notifications,
		Block:         ctx.block,
	}
}

// LoadString evaluates a provisioning program's source, returning a
// ScriptError on parse/runtime failure.
func (h *Host) LoadString(ctx context.Context, src string) error {
	if err := h.L.DoString(src); err != nil {
		return &ScriptError{Detail: err.Error()}
	}
	h.resolveSubscriptions()
	return nil
}

// LoadFile evaluates a provisioning program from path.
func (h *Host) LoadFile(ctx context.Context, path string) error {
	if err := h.L.DoFile(path); err != nil {
		return &ScriptError{Detail: fmt.Sprintf("%s: %s", path, err.Error())}
	}
	h.resolveSubscriptions()
	return nil
}

// resolveSubscriptions rewrites every pending `subscribes` into its
// source resource's notification list. Running after the whole program
// has registered means declaration order between subscriber and source
// does not matter. A source still missing at this point stays queued (a
// later Load may declare it) and is surfaced as a warning.
func (h *Host) resolveSubscriptions() {
	remaining := h.subs[:0]
	for _, sub := range h.subs {
		source, ok := h.collection.Lookup(sub.source)
		if !ok {
			h.logger.Warn("subscribes: source resource not registered",
				"source", sub.source.String(), "subscriber", sub.n.Target.String())
			remaining = append(remaining, sub)
			continue
		}
		source.Notifications = append(source.Notifications, sub.n)
	}
	h.subs = remaining
}
