// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package runner walks a finalised resource.Collection in declaration
// order, evaluating guards, probing and applying each resource, and
// firing immediate/delayed notifications.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ratazzi/hola/internal/herrors"
	"github.com/ratazzi/hola/internal/resource"
)

// OutputMode selects how resource events are surfaced.
type OutputMode int

const (
	Pretty OutputMode = iota
	Plain
)

// Options configures one run.
type Options struct {
	DryRun     bool
	OutputMode OutputMode
}

// Event is emitted for every resource step, for the pretty/plain
// renderers and for tests.
type Event struct {
	Ref    resource.Ref
	Action string
	Status string // "up-to-date", "applied", "skipped (only_if)", "skipped (not_if)", "skipped (dry-run)", "failed"
	Reason string
	Err    error
}

// Runner executes a Collection.
type Runner struct {
	logger   *slog.Logger
	emit     func(Event)
	onNotify func(source resource.Ref, n resource.Notification)
}

// New creates a Runner. emit receives one Event per resource step, in
// order; a nil emit is a no-op (useful in tests that only check the
// collection's resulting state).
func New(logger *slog.Logger, emit func(Event)) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Runner{logger: logger, emit: emit}
}

// Run executes every resource in collection in declaration order, then
// drains the delayed-notification queue. It returns the first
// unrecovered error (an apply failure without ignore_failure, a guard
// error, or a probe error); a missing notification target or a cyclic
// notification is tolerated and only logged.
func (rn *Runner) Run(ctx context.Context, collection *resource.Collection, opts Options) error {
	for _, r := range collection.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := rn.step(ctx, collection, r, opts); err != nil {
			return err
		}
	}

	for {
		n, ok := collection.DrainDelayed()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rn.fireNotification(ctx, collection, n, opts, true)
	}

	return nil
}

// step runs one resource: reset the updated flag, evaluate guards, probe
// and apply each action, then dispatch notifications.
func (rn *Runner) step(ctx context.Context, collection *resource.Collection, r *resource.Resource, opts Options) error {
	r.UpdatedByLastAction = false

	if r.OnlyIf != nil {
		ok, err := r.OnlyIf()
		if err != nil {
			return herrors.NewGuardError("only_if failed", err.Error(), r.Ref().String(), err)
		}
		if !ok {
			rn.emit(Event{Ref: r.Ref(), Status: "skipped (only_if)"})
			return nil
		}
	}

	if r.NotIf != nil {
		ok, err := r.NotIf()
		if err != nil {
			return herrors.NewGuardError("not_if failed", err.Error(), r.Ref().String(), err)
		}
		if ok {
			rn.emit(Event{Ref: r.Ref(), Status: "skipped (not_if)"})
			return nil
		}
	}

	schema, ok := resource.Lookup(r.Type)
	if !ok {
		return herrors.NewUnknownResourceError("unknown resource type", r.Type, r.Ref().String(), nil)
	}

	if guarder, ok := schema.Handler.(resource.GuardDefaulter); ok {
		converged, err := guarder.GuardDefault(ctx, r)
		if err != nil {
			return herrors.NewGuardError("guard_default failed", err.Error(), r.Ref().String(), err)
		}
		if converged {
			rn.emit(Event{Ref: r.Ref(), Status: "up-to-date"})
			return nil
		}
	}

	for _, action := range r.Actions {
		if action == "nothing" {
			continue
		}
		if err := rn.runAction(ctx, schema, r, action, opts); err != nil {
			return err
		}
	}

	if r.UpdatedByLastAction {
		for _, n := range r.Notifications {
			rn.dispatchNotification(ctx, collection, n, opts, false)
		}
	}

	return nil
}

func (rn *Runner) runAction(ctx context.Context, schema resource.TypeSchema, r *resource.Resource, action string, opts Options) error {
	probe, err := schema.Handler.Probe(ctx, r, action)
	if err != nil {
		return herrors.NewProbeError("probe failed", err.Error(), r.Ref().String(), err)
	}
	if probe.State == resource.UpToDate {
		rn.emit(Event{Ref: r.Ref(), Action: action, Status: "up-to-date"})
		return nil
	}

	result, applyErr := schema.Handler.Apply(ctx, r, action, opts.DryRun)
	switch result.Outcome {
	case resource.Applied:
		r.UpdatedByLastAction = true
		rn.emit(Event{Ref: r.Ref(), Action: action, Status: "applied", Reason: probe.Reason})
		return nil
	case resource.Skipped:
		rn.emit(Event{Ref: r.Ref(), Action: action, Status: "skipped (" + result.Reason + ")"})
		return nil
	default: // Failed
		rn.emit(Event{Ref: r.Ref(), Action: action, Status: "failed", Err: applyErr})
		if r.IgnoreFailure {
			rn.logger.Warn("apply failed, ignored", "resource", r.Ref().String(), "action", action, "error", applyErr)
			return nil
		}
		return herrors.NewApplyError(fmt.Sprintf("apply %s failed", r.Ref()), errString(applyErr), r.Ref().String(), applyErr)
	}
}

// dispatchNotification queues a delayed notification or fires an
// immediate one right away. fromDelayedDrain is threaded through so a
// notification fired while draining the delayed queue never cascades
// into a second immediate notification; its own delayed notifications
// are still appended and flattened into the same drain.
func (rn *Runner) dispatchNotification(ctx context.Context, collection *resource.Collection, n resource.Notification, opts Options, fromDelayedDrain bool) {
	if n.Timing == resource.Delayed {
		collection.QueueDelayed(n)
		return
	}
	if fromDelayedDrain {
		return
	}
	rn.fireNotification(ctx, collection, n, opts, false)
}

// fireNotification resolves n.Target and re-runs its matching action.
// A missing target is a soft warning, not an aborting error.
func (rn *Runner) fireNotification(ctx context.Context, collection *resource.Collection, n resource.Notification, opts Options, fromDelayedDrain bool) {
	target, ok := collection.Lookup(n.Target)
	if !ok {
		rn.logger.Warn("notification target not found", "target", n.Target.String(), "action", n.Action)
		return
	}

	schema, ok := resource.Lookup(target.Type)
	if !ok {
		rn.logger.Warn("notification target has unknown type", "target", n.Target.String())
		return
	}

	if err := rn.runAction(ctx, schema, target, n.Action, opts); err != nil {
		rn.logger.Warn("notified action failed", "target", n.Target.String(), "action", n.Action, "error", err)
	}
	if target.UpdatedByLastAction {
		for _, nested := range target.Notifications {
			rn.dispatchNotification(ctx, collection, nested, opts, fromDelayedDrain)
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
