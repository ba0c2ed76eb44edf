package compiler

import "github.com/ehrlich-b/mudcore/internal/lang/ast"

// ConstraintKind mirrors ast.ConstraintKind; kept as a distinct type so the
// compiler package doesn't force its ast import on every downstream
// consumer of Function (entity/vm only need this file, not the whole ast
// package surface).
type ConstraintKind = ast.ConstraintKind

const (
	ConstraintNone      = ast.ConstraintNone
	ConstraintSelf      = ast.ConstraintSelf
	ConstraintPrototype = ast.ConstraintPrototype
	ConstraintQuest     = ast.ConstraintQuest
	ConstraintRace      = ast.ConstraintRace
	ConstraintEquipped  = ast.ConstraintEquipped
)

// ParamSpec is a compiled parameter: a local slot plus the runtime
// constraint event dispatch uses to decide whether this handler matches a
// given argument list.
type ParamSpec struct {
	Name       string // empty for an anonymous (e.g. bare `self`) parameter
	Constraint ast.Constraint
}

// Function is one compiled bytecode block: an event handler, a method, or
// the synthetic per-entity member-initializer function the world loader
// runs once at load time.
type Function struct {
	Name   string
	Module string // defining module, for resolving relative Refs at runtime
	Phase  string // "allow"|"before"|"when"|"after", empty for methods/inits
	Event  string
	Params []ParamSpec

	Code      []byte
	Consts    []Const
	NumLocals int // total local slots ever live at once (params + max nested vars)
	Line      int
}

// Arity is the number of declared parameters (including anonymous ones).
func (f *Function) Arity() int { return len(f.Params) }
