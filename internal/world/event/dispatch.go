// Package event implements the four-phase event dispatch described in
// §4.F: allow (can this happen?), before (last chance to react ahead of
// it), when (the actual reaction), after (cleanup/notification once it's
// done).
package event

import (
	"errors"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/lang/vm"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// response is what respondTo produced for one observer: whether any
// handler in its chain matched and ran to a non-fallthrough result, and
// what that result was (nil for an awaiting handler, per §9's open
// question — an awaiting handler's synchronous return is always nil).
type response struct {
	matched bool
	result  value.Value
}

// respondTo walks observer -> observer.Delegate() -> ... (§4.F), prepending
// obs to args implicitly (args are already observer-agnostic here; the
// constraint check below is what actually looks at the observer), and
// invokes handlers registered for (phase, name) in declaration order at
// each node. The first handler whose parameters match and whose result is
// not `fallthrough` stops the walk; only args whose arity matches the
// handler's parameter count are even attempted.
func respondTo(v *vm.VM, obs *entity.Entity, phase entity.Phase, name string, args []value.Value) (response, error) {
	for cur := obs; cur != nil; cur = cur.Delegate() {
		for _, h := range cur.Handlers(phase, name) {
			if len(h.Params) != len(args) || !paramsMatch(obs, h.Params, args) {
				continue
			}
			result, err := invoke(v, h, args)
			if err != nil {
				if errors.Is(err, vm.ErrFallthrough) {
					continue
				}
				return response{}, err
			}
			return response{matched: true, result: result}, nil
		}
	}
	return response{}, nil
}

// Allow runs respondTo(allow, ...) for every observer in order. Per §4.F,
// the event is cancelled only when an observer's response is the literal
// boolean false; a missing handler, an awaiting handler (§9), or any
// other response value all mean "allowed". The returned value is that
// boolean false when the event is vetoed, and nil otherwise.
func Allow(v *vm.VM, eventName string, observers []*entity.Entity, args []value.Value) (value.Value, error) {
	for _, obs := range observers {
		r, err := respondTo(v, obs, entity.PhaseAllow, eventName, args)
		if err != nil {
			return value.NilV(), err
		}
		if r.matched && r.result.Kind == value.Bool && !r.result.Bool {
			return r.result, nil
		}
	}
	return value.NilV(), nil
}

// Before runs respondTo(before, ...) for every observer, discarding
// results; handlers run purely for side effects ahead of the body.
func Before(v *vm.VM, eventName string, observers []*entity.Entity, args []value.Value) error {
	for _, obs := range observers {
		if _, err := respondTo(v, obs, entity.PhaseBefore, eventName, args); err != nil {
			return err
		}
	}
	return nil
}

// After runs respondTo(after, ...) for every observer, discarding results.
func After(v *vm.VM, eventName string, observers []*entity.Entity, args []value.Value) error {
	for _, obs := range observers {
		if _, err := respondTo(v, obs, entity.PhaseAfter, eventName, args); err != nil {
			return err
		}
	}
	return nil
}

// When runs respondTo(when, ...) for every participant (not every
// observer, per §4.F step 4) and reports whether any of them actually had
// a matching handler react to the event.
func When(v *vm.VM, eventName string, participants []*entity.Entity, args []value.Value) (bool, error) {
	handled := false
	for _, p := range participants {
		r, err := respondTo(v, p, entity.PhaseWhen, eventName, args)
		if err != nil {
			return handled, err
		}
		if r.matched {
			handled = true
		}
	}
	return handled, nil
}

// Trigger implements §4.F's phased protocol for a location-scoped event
// end to end: allow -> before -> body -> when -> after. The observer set
// fed to allow/before/after is participants, then the location, then the
// location's contents, then its exits, de-duplicated while preserving
// first-seen order (§4.F); body only runs if nothing vetoes the allow
// phase; when runs over participants only, per §4.F step 4 ("for every
// *participant* (not every observer)"). veto is non-nil iff an observer's
// allow handler returned the literal boolean false, in which case body
// never runs and no before/when/after handler fires.
func Trigger(v *vm.VM, name string, location *entity.Entity, participants []*entity.Entity, args []value.Value, body func() error) (veto value.Value, err error) {
	observers := ObserverSet(location, participants)
	veto, err = Allow(v, name, observers, args)
	if err != nil || veto.Kind != value.Nil {
		return veto, err
	}
	if err := Before(v, name, observers, args); err != nil {
		return value.NilV(), err
	}
	if err := body(); err != nil {
		return value.NilV(), err
	}
	if _, err := When(v, name, participants, args); err != nil {
		return value.NilV(), err
	}
	if err := After(v, name, observers, args); err != nil {
		return value.NilV(), err
	}
	return value.NilV(), nil
}

// ObserverSet builds the §4.F observer list for a location-scoped event:
// participants, then the location, then the location's contents, then its
// exits, de-duplicated by entity identity while preserving first-seen
// order.
func ObserverSet(location *entity.Entity, participants []*entity.Entity) []*entity.Entity {
	seen := map[int64]bool{}
	var out []*entity.Entity
	add := func(e *entity.Entity) {
		if e == nil || seen[e.ID()] {
			return
		}
		seen[e.ID()] = true
		out = append(out, e)
	}
	for _, p := range participants {
		add(p)
	}
	add(location)
	if location != nil {
		for _, c := range location.Contents {
			add(c)
		}
		for _, ex := range location.Exits {
			add(ex)
		}
	}
	return out
}

// invoke runs a handler via vm.Start rather than vm.Call: per §4.F/§5, an
// awaiting handler must not block the dispatching goroutine, and its
// synchronous result toward this dispatch is always nil — "the suspended
// script will run to completion independently; it cannot influence the
// caller's dispatch" (this is also what makes an awaiting `allow` handler
// implicitly permit the event, per DESIGN's Open Question #3).
func invoke(v *vm.VM, h *entity.Handler, args []value.Value) (value.Value, error) {
	fn, ok := h.Fn.(*compiler.Function)
	if !ok || fn == nil {
		return value.NilV(), nil
	}
	var result value.Value
	var callErr error
	completed := false
	v.Start(fn, args, func(val value.Value, err error) {
		result, callErr, completed = val, err, true
	})
	if !completed {
		return value.NilV(), nil
	}
	return result, callErr
}

// paramsMatch checks every constrained parameter against the
// correspondingly-positioned argument.
func paramsMatch(observer *entity.Entity, params []entity.HandlerParam, args []value.Value) bool {
	for i, p := range params {
		if p.Constraint.Kind == ast.ConstraintNone {
			continue
		}
		if i >= len(args) {
			return false
		}
		if !constraintMatches(observer, args[i], p.Constraint) {
			return false
		}
	}
	return true
}

func constraintMatches(observer *entity.Entity, arg value.Value, c ast.Constraint) bool {
	switch c.Kind {
	case ast.ConstraintSelf:
		ent, ok := arg.Entity.(*entity.Entity)
		return ok && observer != nil && ent.ID() == observer.ID()
	case ast.ConstraintPrototype:
		ent, ok := arg.Entity.(*entity.Entity)
		if ok && ent.Isa(refOf(c)) {
			return true
		}
		q, ok := arg.Quest.(*entity.Quest)
		return arg.Kind == value.QuestKind && ok && q != nil && q.Ref == refOf(c)
	case ast.ConstraintRace:
		ent, ok := arg.Entity.(*entity.Entity)
		return ok && ent.Kind == entity.KindAvatar && ent.RaceRef == refOf(c)
	case ast.ConstraintQuest:
		ent, ok := arg.Entity.(*entity.Entity)
		if !ok || ent.Kind != entity.KindAvatar {
			return false
		}
		return questPhaseMatches(ent, refOf(c), c.PhaseName)
	case ast.ConstraintEquipped:
		ent, ok := arg.Entity.(*entity.Entity)
		if !ok || ent.Kind != entity.KindAvatar {
			return false
		}
		for _, item := range ent.Equipped {
			if item != nil && item.Isa(refOf(c)) {
				return true
			}
		}
		return false
	}
	return true
}

func refOf(c ast.Constraint) ast.Ref {
	return c.Ref
}

// questPhaseMatches implements the five phaseName kinds a `:.quest(REF,
// 'phaseName)` parameter constraint can test, per §4.F: the four
// reserved names (available/offered/incomplete/complete) plus "otherwise
// match the avatar's current phase name for REF".
func questPhaseMatches(avatar *entity.Entity, ref ast.Ref, phaseName string) bool {
	key := ref.String()
	_, incomplete := avatar.ActiveQuests[key]
	_, complete := avatar.CompletedQuests[key]
	switch phaseName {
	case "available":
		return !incomplete && !complete
	case "offered":
		return avatar.Offer != nil && avatar.Offer.Quest == ref
	case "incomplete":
		return incomplete
	case "complete":
		return complete
	default:
		qs, has := avatar.ActiveQuests[key]
		return has && qs.Phase == phaseName
	}
}
