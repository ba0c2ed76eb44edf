package event

import (
	"testing"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/lang/vm"
	"github.com/ehrlich-b/mudcore/internal/world"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

func selfHandler(t *testing.T, phase, event string, body []ast.Stmt) *entity.Handler {
	t.Helper()
	fn, errs := compiler.CompileHandler(&ast.EventHandler{
		Phase: phase,
		Event: event,
		Params: []ast.Param{
			{Name: "p", Constraint: ast.Constraint{Kind: ast.ConstraintSelf}},
		},
		Body: &ast.Block{Stmts: body},
	})
	if len(errs) > 0 {
		t.Fatalf("compile %s %s: %v", phase, event, errs[0])
	}
	return &entity.Handler{
		Params: []entity.HandlerParam{{Name: "p", Constraint: ast.Constraint{Kind: ast.ConstraintSelf}}},
		Fn:     fn,
	}
}

func incrementCountBody() []ast.Stmt {
	return []ast.Stmt{
		&ast.ExprStmt{Expr: &ast.Assign{
			Op:     "=",
			Target: &ast.MemberAccess{Object: &ast.Ident{Name: "p"}, Name: "count"},
			Value: &ast.Binary{
				Op:    "+",
				Left:  &ast.MemberAccess{Object: &ast.Ident{Name: "p"}, Name: "count"},
				Right: &ast.NumberLit{Value: 1},
			},
		}},
	}
}

// TestAllowVetoBlocksLaterPhases transcribes §8 scenario 3 and its general
// invariant ("if any observer's allow n returns false, body is not invoked
// and no before/when/after handler fires"): a portal whose allow handler
// returns false must suppress every later-phase handler on that same
// observer.
func TestAllowVetoBlocksLaterPhases(t *testing.T) {
	portal := entity.New(entity.KindPortal)
	if err := portal.SetMember("count", value.NumberV(0)); err != nil {
		t.Fatalf("SetMember: %v", err)
	}

	portal.RegisterHandler(entity.PhaseAllow, "go", selfHandler(t, "allow", "go", []ast.Stmt{
		&ast.ReturnStmt{Value: &ast.BoolLit{Value: false}},
	}))
	portal.RegisterHandler(entity.PhaseBefore, "go", selfHandler(t, "before", "go", incrementCountBody()))
	portal.RegisterHandler(entity.PhaseWhen, "go", selfHandler(t, "when", "go", incrementCountBody()))
	portal.RegisterHandler(entity.PhaseAfter, "go", selfHandler(t, "after", "go", incrementCountBody()))

	w := world.New()
	v := vm.New(w, w, w)
	args := []value.Value{value.EntityV(portal)}

	veto, err := Trigger(v, "go", nil, []*entity.Entity{portal}, args, func() error {
		t.Error("body ran although the allow phase vetoed the move")
		return nil
	})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if veto.Kind != value.Bool || veto.Bool {
		t.Fatalf("expected the move to be vetoed, got %+v", veto)
	}

	// Trigger stops at the veto, so no before/when/after handler has run
	// and count is still 0.
	count, _ := portal.GetMember("count")
	if count.Kind != value.Number || count.Num != 0 {
		t.Fatalf("count = %+v, want 0 (no before/when/after handler should have run)", count)
	}
}

// TestQuestConstraintMatchesOnlyAPendingOfferForThatQuest transcribes §8
// scenario 4: a `when talk(self, avatar:.quest(Q, 'offered'))` handler
// fires only while the avatar's pending offer is for Q.
func TestQuestConstraintMatchesOnlyAPendingOfferForThatQuest(t *testing.T) {
	questRef := ast.Ref{Module: "town", Name: "lantern_quest"}

	talker := entity.New(entity.KindAvatar)
	avatar := entity.New(entity.KindAvatar)
	if err := avatar.SetMember("count", value.NumberV(0)); err != nil {
		t.Fatalf("SetMember: %v", err)
	}

	fn, errs := compiler.CompileHandler(&ast.EventHandler{
		Phase: "when",
		Event: "talk",
		Params: []ast.Param{
			{Name: "self", Constraint: ast.Constraint{Kind: ast.ConstraintSelf}},
			{Name: "avatar", Constraint: ast.Constraint{Kind: ast.ConstraintQuest, Ref: questRef, PhaseName: "offered"}},
		},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ExprStmt{Expr: &ast.Assign{
				Op:     "=",
				Target: &ast.MemberAccess{Object: &ast.Ident{Name: "avatar"}, Name: "count"},
				Value: &ast.Binary{
					Op:    "+",
					Left:  &ast.MemberAccess{Object: &ast.Ident{Name: "avatar"}, Name: "count"},
					Right: &ast.NumberLit{Value: 1},
				},
			}},
		}},
	})
	if len(errs) > 0 {
		t.Fatalf("compile: %v", errs[0])
	}

	talker.RegisterHandler(entity.PhaseWhen, "talk", &entity.Handler{
		Params: []entity.HandlerParam{
			{Name: "self", Constraint: ast.Constraint{Kind: ast.ConstraintSelf}},
			{Name: "avatar", Constraint: ast.Constraint{Kind: ast.ConstraintQuest, Ref: questRef, PhaseName: "offered"}},
		},
		Fn: fn,
	})

	w := world.New()
	v := vm.New(w, w, w)
	args := []value.Value{value.EntityV(talker), value.EntityV(avatar)}

	// No offer yet: the handler must not fire.
	if _, err := When(v, "talk", []*entity.Entity{talker}, args); err != nil {
		t.Fatalf("When (no offer): %v", err)
	}
	count, _ := avatar.GetMember("count")
	if count.Num != 0 {
		t.Fatalf("count = %+v after talk with no offer, want 0 (handler must not fire)", count)
	}

	// Offer the quest, then talk: the handler fires.
	avatar.Offer = &entity.QuestOffer{Quest: questRef}
	if _, err := When(v, "talk", []*entity.Entity{talker}, args); err != nil {
		t.Fatalf("When (offered): %v", err)
	}
	count, _ = avatar.GetMember("count")
	if count.Num != 1 {
		t.Fatalf("count = %+v after talk with a matching offer, want 1", count)
	}

	// Decline (clear) the offer, then talk again: the handler falls
	// through without firing, same as before any offer existed.
	avatar.Offer = nil
	if _, err := When(v, "talk", []*entity.Entity{talker}, args); err != nil {
		t.Fatalf("When (declined): %v", err)
	}
	count, _ = avatar.GetMember("count")
	if count.Num != 1 {
		t.Fatalf("count = %+v after declining and talking again, want 1 (handler must not re-fire)", count)
	}
}

// TestAllowPermitsThenLaterPhasesRun confirms the positive case: when no
// observer vetoes, Before/When/After each run and their side effects are
// visible and ordered.
func TestAllowPermitsThenLaterPhasesRun(t *testing.T) {
	portal := entity.New(entity.KindPortal)
	if err := portal.SetMember("count", value.NumberV(0)); err != nil {
		t.Fatalf("SetMember: %v", err)
	}

	portal.RegisterHandler(entity.PhaseBefore, "go", selfHandler(t, "before", "go", incrementCountBody()))
	portal.RegisterHandler(entity.PhaseWhen, "go", selfHandler(t, "when", "go", incrementCountBody()))
	portal.RegisterHandler(entity.PhaseAfter, "go", selfHandler(t, "after", "go", incrementCountBody()))

	w := world.New()
	v := vm.New(w, w, w)
	args := []value.Value{value.EntityV(portal)}

	veto, err := Allow(v, "go", []*entity.Entity{portal}, args)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if veto.Kind == value.Bool && !veto.Bool {
		t.Fatalf("expected no veto, got %+v", veto)
	}

	if err := Before(v, "go", []*entity.Entity{portal}, args); err != nil {
		t.Fatalf("Before: %v", err)
	}
	if _, err := When(v, "go", []*entity.Entity{portal}, args); err != nil {
		t.Fatalf("When: %v", err)
	}
	if err := After(v, "go", []*entity.Entity{portal}, args); err != nil {
		t.Fatalf("After: %v", err)
	}

	count, _ := portal.GetMember("count")
	if count.Kind != value.Number || count.Num != 3 {
		t.Fatalf("count = %+v, want 3 (before + when + after each ran once)", count)
	}
}

// trackerHandler returns a handler with one unconstrained param "t" whose
// body increments t's named member by one; used to record which observer
// a phase actually visited without relying on self-identity constraints.
func trackerHandler(t *testing.T, phase, event, member string) *entity.Handler {
	t.Helper()
	fn, errs := compiler.CompileHandler(&ast.EventHandler{
		Phase: phase,
		Event: event,
		Params: []ast.Param{
			{Name: "t", Constraint: ast.Constraint{Kind: ast.ConstraintNone}},
		},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ExprStmt{Expr: &ast.Assign{
				Op:     "=",
				Target: &ast.MemberAccess{Object: &ast.Ident{Name: "t"}, Name: member},
				Value: &ast.Binary{
					Op:    "+",
					Left:  &ast.MemberAccess{Object: &ast.Ident{Name: "t"}, Name: member},
					Right: &ast.NumberLit{Value: 1},
				},
			}},
		}},
	})
	if len(errs) > 0 {
		t.Fatalf("compile %s %s: %v", phase, event, errs[0])
	}
	return &entity.Handler{
		Params: []entity.HandlerParam{{Name: "t", Constraint: ast.Constraint{Kind: ast.ConstraintNone}}},
		Fn:     fn,
	}
}

// TestObserverSetOrdersAndDedupes transcribes §4.F's observer-set
// definition directly: participants, then the location, then its
// contents, then its exits, de-duplicated while preserving first-seen
// order. item appears both as a participant and in the location's
// contents, and must only appear once, at its first (participant)
// position.
func TestObserverSetOrdersAndDedupes(t *testing.T) {
	location := entity.New(entity.KindLocation)
	fixture := entity.New(entity.KindFixture)
	portal := entity.New(entity.KindPortal)
	avatar := entity.New(entity.KindAvatar)
	item := entity.New(entity.KindItem)

	location.Contents = []*entity.Entity{fixture, item}
	location.Exits = []*entity.Entity{portal}

	got := ObserverSet(location, []*entity.Entity{avatar, item})
	want := []*entity.Entity{avatar, item, location, fixture, portal}
	if len(got) != len(want) {
		t.Fatalf("ObserverSet returned %d entities, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ObserverSet[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestTriggerRunsObserversForAllowBeforeAfterAndParticipantsOnlyForWhen
// exercises the Trigger orchestrator end to end: every observer
// (participants, location, contents, exits) sees before/after, but only
// the participants see when, per §4.F step 4.
func TestTriggerRunsObserversForAllowBeforeAfterAndParticipantsOnlyForWhen(t *testing.T) {
	tracker := entity.New(entity.KindThing)
	members := []string{
		"beforeLoc", "beforeFixture", "beforePortal", "beforeAvatar", "beforeItem",
		"whenFixture", "whenPortal", "whenAvatar", "whenItem",
	}
	for _, m := range members {
		if err := tracker.SetMember(m, value.NumberV(0)); err != nil {
			t.Fatalf("SetMember(%s): %v", m, err)
		}
	}

	location := entity.New(entity.KindLocation)
	fixture := entity.New(entity.KindFixture)
	portal := entity.New(entity.KindPortal)
	avatar := entity.New(entity.KindAvatar)
	item := entity.New(entity.KindItem)

	location.RegisterHandler(entity.PhaseBefore, "test", trackerHandler(t, "before", "test", "beforeLoc"))
	fixture.RegisterHandler(entity.PhaseBefore, "test", trackerHandler(t, "before", "test", "beforeFixture"))
	fixture.RegisterHandler(entity.PhaseWhen, "test", trackerHandler(t, "when", "test", "whenFixture"))
	portal.RegisterHandler(entity.PhaseBefore, "test", trackerHandler(t, "before", "test", "beforePortal"))
	portal.RegisterHandler(entity.PhaseWhen, "test", trackerHandler(t, "when", "test", "whenPortal"))
	avatar.RegisterHandler(entity.PhaseBefore, "test", trackerHandler(t, "before", "test", "beforeAvatar"))
	avatar.RegisterHandler(entity.PhaseWhen, "test", trackerHandler(t, "when", "test", "whenAvatar"))
	item.RegisterHandler(entity.PhaseBefore, "test", trackerHandler(t, "before", "test", "beforeItem"))
	item.RegisterHandler(entity.PhaseWhen, "test", trackerHandler(t, "when", "test", "whenItem"))

	location.Contents = []*entity.Entity{fixture, item}
	location.Exits = []*entity.Entity{portal}

	w := world.New()
	v := vm.New(w, w, w)
	args := []value.Value{value.EntityV(tracker)}
	participants := []*entity.Entity{avatar, item}

	bodyRan := false
	veto, err := Trigger(v, "test", location, participants, args, func() error {
		bodyRan = true
		return nil
	})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if veto.Kind != value.Nil {
		t.Fatalf("expected no veto, got %+v", veto)
	}
	if !bodyRan {
		t.Fatalf("body did not run")
	}

	for _, m := range []string{"beforeLoc", "beforeFixture", "beforePortal", "beforeAvatar", "beforeItem"} {
		got, _ := tracker.GetMember(m)
		if got.Num != 1 {
			t.Fatalf("tracker.%s = %+v, want 1 (every observer should see before exactly once)", m, got)
		}
	}
	for m, want := range map[string]float64{
		"whenFixture": 0, // not a participant
		"whenPortal":  0, // not a participant
		"whenAvatar":  1, // participant
		"whenItem":    1, // participant (also in location.Contents, but when only fires for participants)
	} {
		got, _ := tracker.GetMember(m)
		if got.Num != want {
			t.Fatalf("tracker.%s = %+v, want %v", m, got, want)
		}
	}
}
