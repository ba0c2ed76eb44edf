package vm

import (
	"testing"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/world"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// compileAwaitSleepBody builds the method body named in §8 scenario 5:
// var x = 1; await schedule(0.01); x = x + 1; return x.
func compileAwaitSleepBody(t *testing.T) *compiler.Function {
	t.Helper()
	m := &ast.Method{
		Name: "f",
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.VarDecl{Name: "x", Init: &ast.NumberLit{Value: 1}},
			&ast.AwaitStmt{Expr: &ast.Call{
				Callee: &ast.Ident{Name: "schedule"},
				Args:   []ast.Expr{&ast.NumberLit{Value: 0.01}},
			}},
			&ast.ExprStmt{Expr: &ast.Assign{
				Op:     "=",
				Target: &ast.Ident{Name: "x"},
				Value: &ast.Binary{
					Op:    "+",
					Left:  &ast.Ident{Name: "x"},
					Right: &ast.NumberLit{Value: 1},
				},
			}},
			&ast.ReturnStmt{Value: &ast.Ident{Name: "x"}},
		}},
	}
	fn, errs := compiler.CompileMethod(m)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	fn.Module = "builtins"
	return fn
}

// TestAwaitResumesOnceThenStartsFresh transcribes §8 scenario 5: calling
// the compiled function blocks across its await and returns 2 once the
// scheduled future fires; calling it again starts over from x = 1.
func TestAwaitResumesOnceThenStartsFresh(t *testing.T) {
	w := world.New()
	world.RegisterBuiltins(w)
	v := New(w, w, w)

	fn := compileAwaitSleepBody(t)

	result, err := v.Call(fn, nil)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if result.Kind != value.Number || result.Num != 2 {
		t.Fatalf("first call result = %+v, want number 2", result)
	}

	result, err = v.Call(fn, nil)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if result.Kind != value.Number || result.Num != 2 {
		t.Fatalf("second call result = %+v, want a fresh number 2, not state carried over", result)
	}
}
