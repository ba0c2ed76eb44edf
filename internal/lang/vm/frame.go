package vm

import (
	"encoding/binary"

	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// Frame is one activation of a compiled Function: its locals, its own
// operand stack, program counter, and (at most one, per §4.D) armed loop
// iterator.
type Frame struct {
	fn     *compiler.Function
	locals []value.Value
	stack  []value.Value
	marks  []int
	ip     int
	iter   *iteratorState
}

type iteratorState struct {
	items []value.Value
	idx   int
}

func (fr *Frame) push(v value.Value) { fr.stack = append(fr.stack, v) }

func (fr *Frame) pop() value.Value {
	n := len(fr.stack) - 1
	v := fr.stack[n]
	fr.stack = fr.stack[:n]
	return v
}

func (fr *Frame) popN(n int) []value.Value {
	start := len(fr.stack) - n
	out := append([]value.Value(nil), fr.stack[start:]...)
	fr.stack = fr.stack[:start]
	return out
}

func (fr *Frame) readU8() byte {
	b := fr.fn.Code[fr.ip]
	fr.ip++
	return b
}

func (fr *Frame) readU16() int {
	v := binary.LittleEndian.Uint16(fr.fn.Code[fr.ip:])
	fr.ip += 2
	return int(v)
}

func (fr *Frame) readI16() int {
	v := int16(binary.LittleEndian.Uint16(fr.fn.Code[fr.ip:]))
	fr.ip += 2
	return int(v)
}

// fallthroughSignal is returned (never surfaced to a user) when a handler
// body hits a `fallthrough` statement; event dispatch interprets it as
// "continue to the next handler in this phase" rather than as a failure.
type fallthroughSignal struct{}

func (fallthroughSignal) Error() string { return "fallthrough" }

// ErrFallthrough is the sentinel a handler body's `fallthrough` statement
// produces. Compare with errors.Is.
var ErrFallthrough error = fallthroughSignal{}

// run executes frame to completion (return or fallthrough) or until it
// parks on an await, in which case f.awaitValue blocks this goroutine and
// transparently resumes the same frame in place once driven forward.
func (vm *VM) run(f *fiber, frame *Frame) (value.Value, error) {
	fn := frame.fn
	for {
		if frame.ip >= len(fn.Code) {
			return value.NilV(), nil
		}
		op := compiler.Op(fn.Code[frame.ip])
		frame.ip++
		switch op {
		case compiler.OpPushNil:
			frame.push(value.NilV())
		case compiler.OpPushTrue:
			frame.push(value.BoolV(true))
		case compiler.OpPushFalse:
			frame.push(value.BoolV(false))
		case compiler.OpPushConst:
			idx := frame.readU16()
			frame.push(constValue(fn.Consts[idx]))

		case compiler.OpPop:
			frame.pop()

		case compiler.OpCreateLocal:
			frame.locals = append(frame.locals, frame.pop())
		case compiler.OpRemoveLocals:
			n := frame.readU16()
			frame.locals = frame.locals[:len(frame.locals)-n]
		case compiler.OpLoadLocal:
			idx := frame.readU16()
			frame.push(frame.locals[idx])
		case compiler.OpStoreLocal:
			idx := frame.readU16()
			frame.locals[idx] = frame.pop()

		case compiler.OpNot:
			v := frame.pop()
			frame.push(value.BoolV(!v.Truthy()))
		case compiler.OpNeg:
			v := frame.pop()
			if v.Kind != value.Number {
				return value.NilV(), rterr(ErrTypeMismatch, "cannot negate a %s", v.Kind)
			}
			frame.push(value.NumberV(-v.Num))
		case compiler.OpDeref:
			idx := frame.readU16()
			ref := fn.Consts[idx].Ref
			v, ok := vm.Resolver.Resolve(ref, fn.Module)
			if !ok {
				return value.NilV(), rterr(ErrUndefinedReference, "no such reference %s", ref)
			}
			frame.push(v)

		case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpMod:
			b := frame.pop()
			a := frame.pop()
			v, err := arith(op, a, b)
			if err != nil {
				return value.NilV(), err
			}
			frame.push(v)

		case compiler.OpEq:
			b := frame.pop()
			a := frame.pop()
			frame.push(value.BoolV(value.Equal(a, b)))
		case compiler.OpNe:
			b := frame.pop()
			a := frame.pop()
			frame.push(value.BoolV(!value.Equal(a, b)))
		case compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe:
			b := frame.pop()
			a := frame.pop()
			v, err := compare(op, a, b)
			if err != nil {
				return value.NilV(), err
			}
			frame.push(v)

		case compiler.OpJump:
			off := frame.readI16()
			frame.ip += off
		case compiler.OpJumpIfTrue:
			off := frame.readI16()
			if frame.pop().Truthy() {
				frame.ip += off
			}
		case compiler.OpJumpIfFalse:
			off := frame.readI16()
			if !frame.pop().Truthy() {
				frame.ip += off
			}

		case compiler.OpLoadSymbol:
			idx := frame.readU16()
			name := fn.Consts[idx].Str
			v, ok := vm.Resolver.Resolve(compiler.Ref{Name: name}, fn.Module)
			if !ok {
				return value.NilV(), rterr(ErrUndefinedSymbol, "undefined name %q", name)
			}
			frame.push(v)

		case compiler.OpLoadMember:
			idx := frame.readU16()
			name := fn.Consts[idx].Str
			obj := frame.pop()
			v, err := vm.loadMember(obj, name)
			if err != nil {
				return value.NilV(), err
			}
			frame.push(v)
		case compiler.OpStoreMember:
			idx := frame.readU16()
			name := fn.Consts[idx].Str
			v := frame.pop()
			obj := frame.pop()
			m, ok := memberOf(obj)
			if !ok {
				return value.NilV(), rterr(ErrTypeMismatch, "%s has no members", obj.Kind)
			}
			if err := m.SetMember(name, v); err != nil {
				return value.NilV(), rterr(ErrTypeMismatch, "%s", err)
			}

		case compiler.OpLoadSubscript:
			index := frame.pop()
			obj := frame.pop()
			v, err := loadSubscript(obj, index)
			if err != nil {
				return value.NilV(), err
			}
			frame.push(v)
		case compiler.OpStoreSubscript:
			v := frame.pop()
			index := frame.pop()
			obj := frame.pop()
			if err := storeSubscript(obj, index, v); err != nil {
				return value.NilV(), err
			}

		case compiler.OpBeginList:
			frame.marks = append(frame.marks, len(frame.stack))
		case compiler.OpEndList:
			mark := frame.marks[len(frame.marks)-1]
			frame.marks = frame.marks[:len(frame.marks)-1]
			elems := append([]value.Value(nil), frame.stack[mark:]...)
			frame.stack = frame.stack[:mark]
			frame.push(value.ListV(elems))

		case compiler.OpMakeIterator:
			seq := frame.pop()
			if frame.iter != nil {
				return value.NilV(), rterr(ErrNestedIteration, "nested iteration is not supported")
			}
			items, err := toIterable(seq)
			if err != nil {
				return value.NilV(), err
			}
			frame.iter = &iteratorState{items: items}
		case compiler.OpAdvanceOrJump:
			off := frame.readI16()
			it := frame.iter
			if it == nil || it.idx >= len(it.items) {
				frame.iter = nil
				frame.ip += off
				continue
			}
			frame.push(it.items[it.idx])
			it.idx++

		case compiler.OpMakePortal:
			dirIdx := frame.readU16()
			oneway := frame.readU8() != 0
			dest := frame.pop()
			proto := frame.pop()
			v, err := vm.Cloner.MakePortal(proto, dest, fn.Consts[dirIdx].Str, oneway)
			if err != nil {
				return value.NilV(), err
			}
			frame.push(v)
		case compiler.OpClone:
			v := frame.pop()
			cl, err := vm.Cloner.Clone(v)
			if err != nil {
				return value.NilV(), err
			}
			frame.push(cl)
		case compiler.OpSetCount:
			count := frame.pop()
			item := frame.pop()
			if count.Kind != value.Number {
				return value.NilV(), rterr(ErrTypeMismatch, "stack count must be a number")
			}
			v, err := vm.Cloner.SetCount(item, int(count.Num))
			if err != nil {
				return value.NilV(), err
			}
			frame.push(v)

		case compiler.OpCall:
			funcVal := frame.pop()
			argList := frame.pop()
			if funcVal.Kind != value.FunctionKind || funcVal.Func == nil {
				return value.NilV(), rterr(ErrExpectedCallable, "%s is not callable", funcVal.Kind)
			}
			result, err := vm.callFunction(f, funcVal.Func, argList.List)
			if err != nil {
				return value.NilV(), err
			}
			frame.push(result)

		case compiler.OpStringify:
			format := frame.readU8()
			v := frame.pop()
			frame.push(value.StringV(value.Stringify(v, format, vm.Describer)))
		case compiler.OpJoinStrings:
			n := frame.readU16()
			parts := frame.popN(n)
			out := ""
			for _, p := range parts {
				out += p.Str
			}
			frame.push(value.StringV(out))

		case compiler.OpAwait:
			fut := frame.pop()
			if fut.Kind != value.FutureKind || fut.Future == nil {
				return value.NilV(), rterr(ErrExpectedFuture, "await requires a future, got %s", fut.Kind)
			}
			f.awaitValue(fut.Future)

		case compiler.OpReturn:
			return frame.pop(), nil
		case compiler.OpFallthrough:
			return value.NilV(), ErrFallthrough

		default:
			return value.NilV(), rterr(ErrInvalidResult, "unknown opcode %d", op)
		}
	}
}

func constValue(c compiler.Const) value.Value {
	switch c.Kind {
	case compiler.ConstNumber:
		return value.NumberV(c.Number)
	case compiler.ConstString:
		return value.StringV(c.Str)
	case compiler.ConstSymbol:
		return value.SymbolV(c.Str)
	}
	return value.NilV()
}

func memberOf(v value.Value) (Member, bool) {
	switch v.Kind {
	case value.EntityKind:
		m, ok := v.Entity.(Member)
		return m, ok
	case value.QuestKind:
		m, ok := v.Quest.(Member)
		return m, ok
	case value.PhaseKind:
		m, ok := v.Phase.(Member)
		return m, ok
	case value.RaceKind:
		m, ok := v.Race.(Member)
		return m, ok
	case value.ModuleKind:
		m, ok := v.Module.(Member)
		return m, ok
	}
	return nil, false
}

// loadMember dispatches to the held Member and, for entity members that
// come back as a script function, binds the object as the function's
// receiver per §4.D ("entity.method() passes entity as the first
// argument").
func (vm *VM) loadMember(obj value.Value, name string) (value.Value, error) {
	m, ok := memberOf(obj)
	if !ok {
		return value.NilV(), rterr(ErrTypeMismatch, "%s has no members", obj.Kind)
	}
	v, err := m.GetMember(name)
	if err != nil {
		return value.NilV(), rterr(ErrUndefinedSymbol, "%s", err)
	}
	if obj.Kind == value.EntityKind && v.Kind == value.FunctionKind && v.Func != nil && v.Func.Bound == nil {
		recv := obj
		v = value.FunctionV(&value.Function{Name: v.Func.Name, Bound: &recv, Wrapped: v.Func})
	}
	return v, nil
}

func arith(op compiler.Op, a, b value.Value) (value.Value, error) {
	if op == compiler.OpAdd {
		if a.Kind == value.String && b.Kind == value.String {
			return value.StringV(a.Str + b.Str), nil
		}
		if a.Kind == value.ListKind && b.Kind == value.ListKind {
			out := append(append([]value.Value(nil), a.List...), b.List...)
			return value.ListV(out), nil
		}
	}
	if a.Kind != value.Number || b.Kind != value.Number {
		return value.NilV(), rterr(ErrTypeMismatch, "arithmetic requires numbers, got %s and %s", a.Kind, b.Kind)
	}
	switch op {
	case compiler.OpAdd:
		return value.NumberV(a.Num + b.Num), nil
	case compiler.OpSub:
		return value.NumberV(a.Num - b.Num), nil
	case compiler.OpMul:
		return value.NumberV(a.Num * b.Num), nil
	case compiler.OpDiv:
		return value.NumberV(a.Num / b.Num), nil
	case compiler.OpMod:
		return value.NumberV(float64(int64(a.Num) % int64(b.Num))), nil
	}
	return value.NilV(), rterr(ErrTypeMismatch, "unreachable arithmetic op")
}

func compare(op compiler.Op, a, b value.Value) (value.Value, error) {
	if a.Kind != value.Number || b.Kind != value.Number {
		return value.NilV(), rterr(ErrTypeMismatch, "comparison requires numbers, got %s and %s", a.Kind, b.Kind)
	}
	switch op {
	case compiler.OpLt:
		return value.BoolV(a.Num < b.Num), nil
	case compiler.OpLe:
		return value.BoolV(a.Num <= b.Num), nil
	case compiler.OpGt:
		return value.BoolV(a.Num > b.Num), nil
	case compiler.OpGe:
		return value.BoolV(a.Num >= b.Num), nil
	}
	return value.NilV(), rterr(ErrTypeMismatch, "unreachable comparison op")
}

func loadSubscript(obj, index value.Value) (value.Value, error) {
	if obj.Kind != value.ListKind {
		return value.NilV(), rterr(ErrTypeMismatch, "cannot index a %s", obj.Kind)
	}
	if index.Kind != value.Number {
		return value.NilV(), rterr(ErrTypeMismatch, "list index must be a number")
	}
	i := int(index.Num)
	if i < 0 || i >= len(obj.List) {
		return value.NilV(), rterr(ErrIndexOutOfBounds, "index %d out of bounds (len %d)", i, len(obj.List))
	}
	return obj.List[i], nil
}

func storeSubscript(obj, index, v value.Value) error {
	if obj.Kind != value.ListKind {
		return rterr(ErrTypeMismatch, "cannot index a %s", obj.Kind)
	}
	if index.Kind != value.Number {
		return rterr(ErrTypeMismatch, "list index must be a number")
	}
	i := int(index.Num)
	if i < 0 || i >= len(obj.List) {
		return rterr(ErrIndexOutOfBounds, "index %d out of bounds (len %d)", i, len(obj.List))
	}
	obj.List[i] = v
	return nil
}

func toIterable(seq value.Value) ([]value.Value, error) {
	switch seq.Kind {
	case value.ListKind:
		return seq.List, nil
	case value.RangeKind:
		n := seq.Range.Hi - seq.Range.Lo + 1
		if n < 0 {
			n = 0
		}
		out := make([]value.Value, n)
		for i := 0; i < n; i++ {
			out[i] = value.NumberV(float64(seq.Range.Lo + i))
		}
		return out, nil
	}
	return nil, rterr(ErrTypeMismatch, "cannot iterate over a %s", seq.Kind)
}
