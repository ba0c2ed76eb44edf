package compiler

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
)

// compiler holds the mutable state for compiling a single bytecode block
// (one event handler, method, or member initializer). A fresh compiler is
// created per Function; nothing is shared across functions except the
// read-only tree being walked.
type compiler struct {
	consts      []Const
	numConst    map[float64]int
	strConst    map[string]int
	symConst    map[string]int
	refConst    map[Ref]int
	code        []byte
	locals      []string // ordered; current scope's declared names, innermost last
	scopeDepths []int
	maxLocals   int
	errors      []error
}

func newCompiler() *compiler {
	return &compiler{
		numConst: make(map[float64]int),
		strConst: make(map[string]int),
		symConst: make(map[string]int),
		refConst: make(map[Ref]int),
	}
}

func (c *compiler) errorf(line int, format string, args ...any) {
	c.errors = append(c.errors, fmt.Errorf("%d: %s", line, fmt.Sprintf(format, args...)))
}

// ---- constant pool ----

func (c *compiler) addNumber(n float64) int {
	if idx, ok := c.numConst[n]; ok {
		return idx
	}
	idx := len(c.consts)
	c.consts = append(c.consts, Const{Kind: ConstNumber, Number: n})
	c.numConst[n] = idx
	return idx
}

func (c *compiler) addString(s string) int {
	if idx, ok := c.strConst[s]; ok {
		return idx
	}
	idx := len(c.consts)
	c.consts = append(c.consts, Const{Kind: ConstString, Str: s})
	c.strConst[s] = idx
	return idx
}

func (c *compiler) addSymbol(s string) int {
	if idx, ok := c.symConst[s]; ok {
		return idx
	}
	idx := len(c.consts)
	c.consts = append(c.consts, Const{Kind: ConstSymbol, Str: s})
	c.symConst[s] = idx
	return idx
}

func (c *compiler) addRef(r ast.Ref) int {
	key := Ref{Module: r.Module, Name: r.Name}
	if idx, ok := c.refConst[key]; ok {
		return idx
	}
	idx := len(c.consts)
	c.consts = append(c.consts, Const{Kind: ConstRef, Ref: key})
	c.refConst[key] = idx
	return idx
}

// ---- emission helpers ----

func (c *compiler) emit(op Op) {
	c.code = append(c.code, byte(op))
}

func (c *compiler) emitU16(op Op, operand int) {
	c.code = append(c.code, byte(op))
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(operand))
	c.code = append(c.code, buf[:]...)
}

func (c *compiler) emitU8(op Op, b byte) {
	c.code = append(c.code, byte(op), b)
}

// emitJump writes a placeholder i16 operand and returns its byte offset for
// later patching once the jump destination is known.
func (c *compiler) emitJump(op Op) int {
	c.code = append(c.code, byte(op), 0, 0)
	return len(c.code) - 2
}

// patchJump backfills the placeholder at pos with the signed offset from
// the byte after the operand to the current end of code.
func (c *compiler) patchJump(pos int) {
	offset := len(c.code) - (pos + 2)
	binary.LittleEndian.PutUint16(c.code[pos:pos+2], uint16(int16(offset)))
}

func (c *compiler) jumpHere(op Op, target int) {
	offset := target - (len(c.code) + 2)
	c.emitU16(op, int(int16(offset))&0xFFFF)
}

// ---- locals / scope ----

func (c *compiler) beginScope() {
	c.scopeDepths = append(c.scopeDepths, len(c.locals))
}

func (c *compiler) endScope() {
	depth := c.scopeDepths[len(c.scopeDepths)-1]
	c.scopeDepths = c.scopeDepths[:len(c.scopeDepths)-1]
	n := len(c.locals) - depth
	if n > 0 {
		c.emitU16(OpRemoveLocals, n)
	}
	c.locals = c.locals[:depth]
}

// declareLocal appends a new local (assumed already pushed on the runtime
// stack by the caller, consumed by OpCreateLocal) and returns its index.
func (c *compiler) declareLocal(name string) int {
	c.emit(OpCreateLocal)
	c.locals = append(c.locals, name)
	idx := len(c.locals) - 1
	if len(c.locals) > c.maxLocals {
		c.maxLocals = len(c.locals)
	}
	return idx
}

// resolveLocal searches innermost-first so shadowing resolves to the
// nearest declaration.
func (c *compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i] == name {
			return i, true
		}
	}
	return 0, false
}

// ---- top-level entry points ----

// CompileHandler compiles one event handler's body into a Function. The
// handler's parameters (with constraints) are recorded but do not occupy
// local slots for anonymous ones; named parameters (including named
// self-constrained params) are bound as locals in declaration order before
// the body executes, mirroring how the VM invokes it with a positional
// argument list.
func CompileHandler(h *ast.EventHandler) (*Function, []error) {
	c := newCompiler()
	params := bindParams(c, h.Params)
	compileStmts(c, h.Body.Stmts)
	c.emit(OpPushNil)
	c.emit(OpReturn)
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return &Function{
		Name: h.Event, Phase: h.Phase, Event: h.Event, Params: params,
		Code: c.code, Consts: c.consts, NumLocals: c.maxLocals, Line: h.Pos,
	}, nil
}

// CompileMethod compiles a `func` body into a Function.
func CompileMethod(m *ast.Method) (*Function, []error) {
	c := newCompiler()
	params := bindParams(c, m.Params)
	compileStmts(c, m.Body.Stmts)
	c.emit(OpPushNil)
	c.emit(OpReturn)
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return &Function{
		Name: m.Name, Params: params,
		Code: c.code, Consts: c.consts, NumLocals: c.maxLocals, Line: m.Pos,
	}, nil
}

// CompileMemberInit compiles a member initializer (`name = expr`) into a
// synthetic one-parameter Function taking the owning entity, per §4.C:
// "push the entity, evaluate the initializer, store to the named member."
func CompileMemberInit(m *ast.MemberInit) (*Function, []error) {
	c := newCompiler()
	c.locals = append(c.locals, "__self")
	c.maxLocals = 1
	c.emitU16(OpLoadLocal, 0)
	compileExpr(c, m.Init)
	nameIdx := c.addString(m.Name)
	c.emitU16(OpStoreMember, nameIdx)
	c.emit(OpPushNil)
	c.emit(OpReturn)
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return &Function{
		Name: m.Name, Params: []ParamSpec{{Name: "__self"}},
		Code: c.code, Consts: c.consts, NumLocals: c.maxLocals, Line: m.Pos,
	}, nil
}

// bindParams binds each declared parameter to a local slot without
// emitting any bytecode: the VM pre-populates frame locals [0:arity) from
// the call's argument list before execution starts, so the compiled body
// can simply reference them like any other local.
func bindParams(c *compiler, ps []ast.Param) []ParamSpec {
	out := make([]ParamSpec, len(ps))
	for i, p := range ps {
		out[i] = ParamSpec{Name: p.Name, Constraint: p.Constraint}
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("__anon%d", i)
		}
		c.locals = append(c.locals, name)
	}
	if len(c.locals) > c.maxLocals {
		c.maxLocals = len(c.locals)
	}
	return out
}

// ---- statements ----

func compileStmts(c *compiler, stmts []ast.Stmt) {
	for _, s := range stmts {
		compileStmt(c, s)
	}
}

func compileStmt(c *compiler, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		compileExpr(c, n.Expr)
		c.emit(OpPop)
	case *ast.VarDecl:
		if n.Init != nil {
			compileExpr(c, n.Init)
		} else {
			c.emit(OpPushNil)
		}
		c.declareLocal(n.Name)
	case *ast.Block:
		c.beginScope()
		compileStmts(c, n.Stmts)
		c.endScope()
	case *ast.IfStmt:
		compileIf(c, n)
	case *ast.WhileStmt:
		compileWhile(c, n)
	case *ast.ForStmt:
		compileFor(c, n)
	case *ast.ReturnStmt:
		if n.Value != nil {
			compileExpr(c, n.Value)
		} else {
			c.emit(OpPushNil)
		}
		c.emit(OpReturn)
	case *ast.AwaitStmt:
		compileExpr(c, n.Expr)
		c.emit(OpAwait)
	case *ast.FallthroughStmt:
		c.emit(OpFallthrough)
	default:
		c.errorf(s.Line(), "compiler: unhandled statement %T", s)
	}
}

func compileIf(c *compiler, n *ast.IfStmt) {
	compileExpr(c, n.Cond)
	elseJump := c.emitJump(OpJumpIfFalse)
	compileStmt(c, n.Then)
	if n.Else != nil {
		endJump := c.emitJump(OpJump)
		c.patchJump(elseJump)
		compileStmt(c, n.Else)
		c.patchJump(endJump)
	} else {
		c.patchJump(elseJump)
	}
}

func compileWhile(c *compiler, n *ast.WhileStmt) {
	loopStart := len(c.code)
	compileExpr(c, n.Cond)
	endJump := c.emitJump(OpJumpIfFalse)
	compileStmt(c, n.Body)
	c.jumpHere(OpJump, loopStart)
	c.patchJump(endJump)
}

func compileFor(c *compiler, n *ast.ForStmt) {
	compileExpr(c, n.Seq)
	c.emit(OpMakeIterator)
	c.beginScope()
	c.emit(OpPushNil)
	varIdx := c.declareLocal(n.Var)
	loopStart := len(c.code)
	exitJump := c.emitJump(OpAdvanceOrJump)
	c.emitU16(OpStoreLocal, varIdx)
	compileStmt(c, n.Body)
	c.jumpHere(OpJump, loopStart)
	c.patchJump(exitJump)
	c.endScope()
}

// ---- expressions ----

func compileExpr(c *compiler, e ast.Expr) {
	switch n := e.(type) {
	case *ast.NilLit:
		c.emit(OpPushNil)
	case *ast.BoolLit:
		if n.Value {
			c.emit(OpPushTrue)
		} else {
			c.emit(OpPushFalse)
		}
	case *ast.NumberLit:
		c.emitU16(OpPushConst, c.addNumber(n.Value))
	case *ast.SymbolLit:
		c.emitU16(OpPushConst, c.addSymbol(n.Name))
	case *ast.StringLit:
		compileStringLit(c, n)
	case *ast.RefLit:
		c.emitU16(OpDeref, c.addRef(n.Ref))
	case *ast.Ident:
		compileIdent(c, n)
	case *ast.ListLit:
		c.emit(OpBeginList)
		for _, el := range n.Elems {
			compileExpr(c, el)
		}
		c.emit(OpEndList)
	case *ast.ListComp:
		compileListComp(c, n)
	case *ast.Unary:
		compileUnary(c, n)
	case *ast.Binary:
		compileExpr(c, n.Left)
		compileExpr(c, n.Right)
		c.emit(binaryOp(n.Op))
	case *ast.Logical:
		compileLogical(c, n)
	case *ast.Assign:
		compileAssign(c, n)
	case *ast.Call:
		compileCall(c, n)
	case *ast.MemberAccess:
		// object.field where object is a bare identifier that isn't a
		// bound local names a cross-module entity ("module.name"), the
		// same shape parseRef builds for a def's proto or a constraint;
		// compile it as a Ref deref rather than a runtime member lookup.
		// A local (self, an event param, a loop variable, …) always
		// compiles as an ordinary member read of its value.
		if id, ok := n.Object.(*ast.Ident); ok {
			if _, isLocal := c.resolveLocal(id.Name); !isLocal {
				c.emitU16(OpDeref, c.addRef(ast.Ref{Module: id.Name, Name: n.Name}))
				return
			}
		}
		compileExpr(c, n.Object)
		c.emitU16(OpLoadMember, c.addString(n.Name))
	case *ast.IndexAccess:
		compileExpr(c, n.Object)
		compileExpr(c, n.Index)
		c.emit(OpLoadSubscript)
	case *ast.PortalExpr:
		compilePortal(c, n)
	default:
		c.errorf(e.Line(), "compiler: unhandled expression %T", e)
		c.emit(OpPushNil)
	}
}

func compileIdent(c *compiler, n *ast.Ident) {
	if idx, ok := c.resolveLocal(n.Name); ok {
		c.emitU16(OpLoadLocal, idx)
		return
	}
	c.emitU16(OpLoadSymbol, c.addString(n.Name))
}

func compileStringLit(c *compiler, n *ast.StringLit) {
	count := 0
	for _, seg := range n.Segments {
		if seg.Expr == nil {
			c.emitU16(OpPushConst, c.addString(seg.Literal))
		} else {
			compileExpr(c, seg.Expr)
			c.emitU8(OpStringify, seg.Format)
		}
		count++
	}
	if count == 0 {
		c.emitU16(OpPushConst, c.addString(""))
		return
	}
	if count > 1 {
		c.emitU16(OpJoinStrings, count)
	}
}

func compileListComp(c *compiler, n *ast.ListComp) {
	c.emit(OpBeginList)
	compileExpr(c, n.Seq)
	c.emit(OpMakeIterator)
	c.beginScope()
	c.emit(OpPushNil)
	varIdx := c.declareLocal(n.Var)
	loopStart := len(c.code)
	exitJump := c.emitJump(OpAdvanceOrJump)
	c.emitU16(OpStoreLocal, varIdx)
	if n.Cond != nil {
		compileExpr(c, n.Cond)
		skip := c.emitJump(OpJumpIfFalse)
		compileExpr(c, n.Elem)
		c.patchJump(skip)
	} else {
		compileExpr(c, n.Elem)
	}
	c.jumpHere(OpJump, loopStart)
	c.patchJump(exitJump)
	c.endScope()
	c.emit(OpEndList)
}

func compileUnary(c *compiler, n *ast.Unary) {
	switch n.Op {
	case "-":
		compileExpr(c, n.Expr)
		c.emit(OpNeg)
	case "!":
		compileExpr(c, n.Expr)
		c.emit(OpNot)
	case "*":
		// Bare RefLit/Ident operands already resolve to their referenced
		// Value by the time they reach the stack (there is no separate Ref
		// value kind at runtime, see internal/world/value), so an explicit
		// deref of one is a no-op. Kept for symmetry with content that
		// writes `*x` defensively.
		compileExpr(c, n.Expr)
	default:
		c.errorf(n.Pos, "compiler: unknown unary operator %q", n.Op)
		compileExpr(c, n.Expr)
	}
}

func binaryOp(op string) Op {
	switch op {
	case "+":
		return OpAdd
	case "-":
		return OpSub
	case "*":
		return OpMul
	case "/":
		return OpDiv
	case "%":
		return OpMod
	case "==":
		return OpEq
	case "!=":
		return OpNe
	case "<":
		return OpLt
	case "<=":
		return OpLe
	case ">":
		return OpGt
	case ">=":
		return OpGe
	}
	return OpPushNil
}

// compileLogical implements short-circuit and/or without a dedicated Dup
// opcode: the left operand is stashed in a scratch local so both the
// truth test and (for the short-circuit path) the final result can reread
// it without re-evaluating a potentially side-effecting expression twice.
func compileLogical(c *compiler, n *ast.Logical) {
	compileExpr(c, n.Left)
	idx := c.declareLocal("__logic")
	c.emitU16(OpLoadLocal, idx)
	var branchJump int
	if n.Op == "and" {
		branchJump = c.emitJump(OpJumpIfFalse)
	} else {
		branchJump = c.emitJump(OpJumpIfTrue)
	}
	compileExpr(c, n.Right)
	endJump := c.emitJump(OpJump)
	c.patchJump(branchJump)
	c.emitU16(OpLoadLocal, idx)
	c.patchJump(endJump)
	c.emitU16(OpRemoveLocals, 1)
	c.locals = c.locals[:len(c.locals)-1]
}

// compileAssign handles `=` and the compound sugar (`+=`, `-=`, …) per
// DESIGN.md's Open Question decision: evaluate RHS (applying the operator
// against the current target value for compound forms), store, and leave
// the stored value as the expression's own result.
func compileAssign(c *compiler, n *ast.Assign) {
	if n.Op == "=" {
		compileExpr(c, n.Value)
	} else {
		compileExpr(c, n.Target)
		compileExpr(c, n.Value)
		c.emit(binaryOp(strings.TrimSuffix(n.Op, "=")))
	}
	idx := c.declareLocal("__assign")

	switch target := n.Target.(type) {
	case *ast.Ident:
		li, ok := c.resolveLocal(target.Name)
		if !ok {
			c.errorf(n.Pos, "assignment to undeclared local %q", target.Name)
			li = idx
		}
		c.emitU16(OpLoadLocal, idx)
		c.emitU16(OpStoreLocal, li)
	case *ast.MemberAccess:
		compileExpr(c, target.Object)
		c.emitU16(OpLoadLocal, idx)
		c.emitU16(OpStoreMember, c.addString(target.Name))
	case *ast.IndexAccess:
		compileExpr(c, target.Object)
		compileExpr(c, target.Index)
		c.emitU16(OpLoadLocal, idx)
		c.emit(OpStoreSubscript)
	default:
		c.errorf(n.Pos, "compiler: invalid assignment target %T", n.Target)
	}

	c.emitU16(OpLoadLocal, idx)
	c.emitU16(OpRemoveLocals, 1)
	c.locals = c.locals[:len(c.locals)-1]
}

// compileCall special-cases two builtin call forms onto their dedicated
// opcodes (spec §4.C documents clone and set-count as single-value VM
// primitives, not generic native calls); anything else compiles as a
// normal call expression.
func compileCall(c *compiler, n *ast.Call) {
	if id, ok := n.Callee.(*ast.Ident); ok {
		switch {
		case id.Name == "clone" && len(n.Args) == 1:
			compileExpr(c, n.Args[0])
			c.emit(OpClone)
			return
		case id.Name == "stack" && len(n.Args) == 2:
			compileExpr(c, n.Args[0])
			compileExpr(c, n.Args[1])
			c.emit(OpSetCount)
			return
		}
	}
	c.emit(OpBeginList)
	for _, a := range n.Args {
		compileExpr(c, a)
	}
	c.emit(OpEndList)
	compileExpr(c, n.Callee)
	c.emit(OpCall)
}

func compilePortal(c *compiler, n *ast.PortalExpr) {
	compileExpr(c, n.Portal)
	compileExpr(c, n.Destination)
	dirIdx := c.addString(n.Direction)
	var oneway byte
	if n.Oneway {
		oneway = 1
	}
	c.emitU16(OpMakePortal, dirIdx)
	c.code = append(c.code, oneway)
}
