// Package vm is the stack-based interpreter for compiler.Function bytecode
// (§4.D). Suspension on `await` is implemented with a goroutine-per-call
// "fiber": the calling goroutine parks on a channel recv instead of the VM
// snapshotting its own call stack, per the design alternative sanctioned
// in §9. A single world mutex still serializes script execution so only
// one fiber is ever actively running bytecode at a time.
package vm

import (
	"sync"

	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// Member is implemented by anything script code can read/write named
// members on: entities, quests, phases, races, and modules.
type Member interface {
	GetMember(name string) (value.Value, error)
	SetMember(name string, v value.Value) error
}

// Resolver resolves a compiled Ref constant to its referent Value. context
// is the defining module of the function doing the lookup, used to
// resolve relative (unqualified-module) refs.
type Resolver interface {
	Resolve(ref compiler.Ref, context string) (value.Value, bool)
}

// Cloner creates a prototype-linked clone of an entity/portal-capable
// value, and constructs scripted portals. Implemented by internal/world
// (kept as an interface here so vm doesn't import internal/world/entity's
// full surface, only the narrow operations bytecode needs).
type Cloner interface {
	Clone(v value.Value) (value.Value, error)
	SetCount(v value.Value, count int) (value.Value, error)
	MakePortal(proto, dest value.Value, direction string, oneway bool) (value.Value, error)
}

// VM executes compiled bytecode against a world: Resolver for Ref lookups,
// Cloner for the clone/stack/portal primitives, and a Describer for
// stringifying entities encountered in interpolated strings.
type VM struct {
	Resolver  Resolver
	Cloner    Cloner
	Describer value.Describer

	worldMu sync.Mutex
}

// New builds a VM wired to the given world-facing collaborators.
func New(r Resolver, c Cloner, d value.Describer) *VM {
	return &VM{Resolver: r, Cloner: c, Describer: d}
}

// Call runs fn synchronously to completion, blocking the calling goroutine
// across any await it performs. Use this for methods and member
// initializers, which the spec never describes as suspendable.
func (vm *VM) Call(fn *compiler.Function, args []value.Value) (value.Value, error) {
	result := make(chan fiberResult, 1)
	vm.Start(fn, args, func(v value.Value, err error) {
		result <- fiberResult{result: v, err: err, done: true}
	})
	r := <-result
	return r.result, r.err
}

// Start runs fn, invoking onComplete exactly once when it finally returns
// (immediately, if it never awaits; otherwise once its background fiber
// resumes and finishes). Use this for event handlers, which may
// legitimately run to completion after the dispatching call site has
// already moved on (§9's await-during-allow note).
func (vm *VM) Start(fn *compiler.Function, args []value.Value, onComplete func(value.Value, error)) {
	f := newFiber()
	frame := vm.newFrame(fn, args)
	vm.worldMu.Lock()
	go f.run(vm, frame)
	vm.drive(f, onComplete)
}

func (vm *VM) drive(f *fiber, onComplete func(value.Value, error)) {
	res := <-f.doneCh
	vm.worldMu.Unlock()
	if res.done {
		if onComplete != nil {
			onComplete(res.result, res.err)
		}
		return
	}
	res.awaiting.Arm(func() {
		vm.worldMu.Lock()
		f.resumeCh <- struct{}{}
		vm.drive(f, onComplete)
	})
}

// callFunction invokes a value.Function, handling native calls, bound
// receivers, and recursive script calls within the current fiber. A nil
// fiber is only valid for Native calls (used by code paths, like world
// loading, that run before any fiber exists).
func (vm *VM) callFunction(f *fiber, fn *value.Function, args []value.Value) (value.Value, error) {
	if fn == nil {
		return value.NilV(), rterr(ErrExpectedCallable, "nil function value")
	}
	if fn.Bound != nil {
		full := make([]value.Value, 0, len(args)+1)
		full = append(full, *fn.Bound)
		full = append(full, args...)
		return vm.callFunction(f, fn.Wrapped, full)
	}
	if fn.Native != nil {
		return fn.Native(args)
	}
	sf, ok := fn.Script.(*compiler.Function)
	if !ok || sf == nil {
		return value.NilV(), rterr(ErrExpectedCallable, "function %q has no body", fn.Name)
	}
	frame := vm.newFrame(sf, args)
	return vm.run(f, frame)
}

func (vm *VM) newFrame(fn *compiler.Function, args []value.Value) *Frame {
	locals := make([]value.Value, fn.NumLocals)
	for i := 0; i < len(args) && i < len(locals); i++ {
		locals[i] = args[i]
	}
	return &Frame{fn: fn, locals: locals}
}
