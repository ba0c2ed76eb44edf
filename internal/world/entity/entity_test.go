package entity

import (
	"testing"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

func TestCloneOfContentDefinedPrototypeDelegates(t *testing.T) {
	proto := NewNamed(KindPortal, ast.Ref{Module: "builtins", Name: "door"})
	proto.Name = "a heavy door"
	if err := proto.SetMember("locked", value.BoolV(true)); err != nil {
		t.Fatalf("SetMember: %v", err)
	}
	proto.RegisterHandler(PhaseAllow, "go", &Handler{})

	clone := proto.Clone()

	if clone.Prototype() != proto {
		t.Fatalf("clone.Prototype() = %v, want the content-defined prototype itself", clone.Prototype())
	}
	if clone.Name != proto.Name {
		t.Errorf("clone.Name = %q, want %q (typed fields copy by value)", clone.Name, proto.Name)
	}
	// Handlers are never copied onto the clone; they're reached only by
	// delegation through Handlers()/Delegate().
	if len(clone.Handlers(PhaseAllow, "go")) != 0 {
		t.Error("clone should carry no handlers of its own")
	}
	if len(clone.Delegate().Handlers(PhaseAllow, "go")) != 1 {
		t.Error("clone's delegate (the prototype) should still carry the handler")
	}
	// "locked" is a dynamic member set on the prototype, never copied onto
	// the clone, but still readable by walking the prototype chain.
	v, err := clone.GetMember("locked")
	if err != nil {
		t.Fatalf("GetMember(locked): %v", err)
	}
	if v.Kind != value.Bool || !v.Bool {
		t.Errorf("clone.locked = %+v, want true (inherited via delegation)", v)
	}
}

func TestCloneOfAClonedCloneChainsToSameRoot(t *testing.T) {
	root := NewNamed(KindItem, ast.Ref{Module: "builtins", Name: "lantern"})
	first := root.Clone()
	second := first.Clone()

	if second.Prototype() != root {
		t.Fatalf("second.Prototype() = %v, want root (cloning a clone chains to the same authoring prototype, not the intermediate clone)", second.Prototype())
	}
}

func TestCloneNeverOwnASeparateRefFromItsPrototype(t *testing.T) {
	proto := NewNamed(KindItem, ast.Ref{Module: "builtins", Name: "lantern"})
	clone := proto.Clone()

	if _, ok := clone.Ref(); ok {
		t.Error("a clone should never itself carry a top-level Ref")
	}
	r, ok := clone.ProtoRef()
	if !ok || r.Module != "builtins" || r.Name != "lantern" {
		t.Errorf("clone.ProtoRef() = %v, %v, want builtins.lantern", r, ok)
	}
}

func TestIsaWalksThePrototypeChain(t *testing.T) {
	grandparent := NewNamed(KindThing, ast.Ref{Module: "builtins", Name: "thing"})
	parent := grandparent.Clone()
	child := New(KindThing)
	child.SetPrototype(parent)

	if !child.Isa(ast.Ref{Module: "builtins", Name: "thing"}) {
		t.Error("expected child to be considered an instance of its grandparent's ref")
	}
	if child.Isa(ast.Ref{Module: "builtins", Name: "nonexistent"}) {
		t.Error("expected child not to match an unrelated ref")
	}
}

// TestPrototypeChainIsAcyclicAndFinite exercises the §8 invariant ("the
// prototype chain rooted at e is acyclic and finite") for the one
// mechanism the loader uses to build chains: SetPrototype always points
// strictly toward content defined earlier, never back at a descendant.
func TestPrototypeChainIsAcyclicAndFinite(t *testing.T) {
	a := NewNamed(KindThing, ast.Ref{Module: "m", Name: "a"})
	b := NewNamed(KindThing, ast.Ref{Module: "m", Name: "b"})
	b.SetPrototype(a)
	c := NewNamed(KindThing, ast.Ref{Module: "m", Name: "c"})
	c.SetPrototype(b)

	seen := map[*Entity]bool{}
	steps := 0
	for cur := c; cur != nil; cur = cur.Prototype() {
		if seen[cur] {
			t.Fatalf("prototype chain cycled back to an already-visited entity after %d steps", steps)
		}
		seen[cur] = true
		steps++
		if steps > 1000 {
			t.Fatal("prototype chain did not terminate within 1000 steps")
		}
	}
	if steps != 3 {
		t.Errorf("expected a 3-node chain (c -> b -> a), walked %d nodes", steps)
	}
}

func TestGetMemberUnknownReturnsTypedError(t *testing.T) {
	e := New(KindThing)
	_, err := e.GetMember("nonexistent")
	if _, ok := err.(ErrUnknownMember); !ok {
		t.Fatalf("GetMember(nonexistent) err = %v, want ErrUnknownMember", err)
	}
}

func TestSetMemberNeverWritesThroughToAPrototype(t *testing.T) {
	proto := New(KindThing)
	if err := proto.SetMember("mood", value.StringV("calm")); err != nil {
		t.Fatalf("SetMember: %v", err)
	}
	clone := proto.Clone()
	clone.SetPrototype(proto)
	if err := clone.SetMember("mood", value.StringV("excited")); err != nil {
		t.Fatalf("SetMember on clone: %v", err)
	}

	protoMood, _ := proto.GetMember("mood")
	cloneMood, _ := clone.GetMember("mood")
	if protoMood.Str != "calm" {
		t.Errorf("prototype's own member was mutated by a write on its clone: got %q", protoMood.Str)
	}
	if cloneMood.Str != "excited" {
		t.Errorf("clone.GetMember(mood) = %q, want its own override %q", cloneMood.Str, "excited")
	}
}
