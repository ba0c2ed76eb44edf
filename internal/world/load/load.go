// Package load implements the world loader of §4.H: it reads a module
// manifest, parses and compiles every listed script file, links
// prototype and portal references across files, and runs each entity's
// member initializers once.
package load

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/lang/parser"
	"github.com/ehrlich-b/mudcore/internal/lang/vm"
	"github.com/ehrlich-b/mudcore/internal/world"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/event"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// Loader holds the intermediate state needed to link references across
// files before anything starts running.
type Loader struct {
	World *world.World
	VM    *vm.VM

	// Locations is every loaded deflocation entity, in load order — the
	// set FireWorldEvent sends start_world/stop_world to.
	Locations []*entity.Entity

	pending []pendingEntity
}

type pendingEntity struct {
	def    *ast.EntityDef
	module string
	ent    *entity.Entity
}

// New builds a Loader wired to w (the module registry new content gets
// written into).
func New(w *world.World) *Loader {
	return &Loader{World: w, VM: vm.New(w, w, w)}
}

// LoadManifest reads contentRoot/manifestName per §4.H's manifest
// grammar: non-comment lines are either a directory line ending in `/`
// (sets the current directory) or a filename (a base name, joined onto
// the current directory). Indented entries belong to the most recently
// named directory; non-indented entries reset it to the content root.
func (l *Loader) LoadManifest(contentRoot, manifestName string) error {
	path := filepath.Join(contentRoot, manifestName)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var files []string
	var currentDir string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "/") {
			currentDir = line
			continue
		}
		indented := raw[0] == ' ' || raw[0] == '\t'
		if !indented {
			currentDir = ""
		}
		files = append(files, filepath.Join(currentDir, line))
	}
	if err := sc.Err(); err != nil {
		return err
	}

	for _, rel := range files {
		src, err := os.ReadFile(filepath.Join(contentRoot, rel))
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		if err := l.loadFile(moduleName(rel), string(src)); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
	}

	l.linkPrototypes()
	if err := l.runMemberInits(); err != nil {
		return err
	}
	l.linkPortalTwins()
	return nil
}

func moduleName(rel string) string {
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadFile parses one file, creates its declared entities/quests/races
// with bare members (no initializers run, no prototypes linked yet — that
// happens once every file has contributed its names), and registers
// module-level bindings so later files can reference them.
func (l *Loader) loadFile(modName, src string) error {
	file, errs := parser.ParseFile(src)
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("parse errors: %s", strings.Join(msgs, "; "))
	}

	mod := l.World.Module(modName)
	for _, decl := range file.Decls {
		switch n := decl.(type) {
		case *ast.EntityDef:
			kind := entityKind(n)
			ent := entity.NewNamed(kind, ast.Ref{Module: modName, Name: n.Name})
			mod.Members[n.Name] = value.EntityV(ent)
			if kind == entity.KindLocation {
				l.Locations = append(l.Locations, ent)
			}
			l.pending = append(l.pending, pendingEntity{def: n, module: modName, ent: ent})
		case *ast.QuestDef:
			q := &entity.Quest{Ref: ast.Ref{Module: modName, Name: n.Name}, Members: map[string]value.Value{}}
			for _, pd := range n.Phases {
				q.Phases = append(q.Phases, &entity.Phase{Name: pd.Name, Members: membersOf(pd.Members)})
			}
			mod.Members[n.Name] = value.Value{Kind: value.QuestKind, Quest: q}
		case *ast.RaceDef:
			r := &entity.Race{Ref: ast.Ref{Module: modName, Name: n.Name}, Members: membersOf(n.Members)}
			mod.Members[n.Name] = value.Value{Kind: value.RaceKind, Race: r}
		default:
			return fmt.Errorf("unhandled top-level form %T", decl)
		}
	}
	return nil
}

func membersOf(inits []ast.MemberInit) map[string]value.Value {
	// Quest/phase/race members whose initializer is a constant literal can
	// be evaluated without a running VM; anything else is left nil here and
	// is outside this loader's current scope (quests/races don't carry
	// scripted member initializers in the reference content set).
	out := map[string]value.Value{}
	for _, m := range inits {
		if lit, ok := constLiteral(m.Init); ok {
			out[m.Name] = lit
		}
	}
	return out
}

func constLiteral(e ast.Expr) (value.Value, bool) {
	switch n := e.(type) {
	case *ast.StringLit:
		if len(n.Segments) == 1 && n.Segments[0].Expr == nil {
			return value.StringV(n.Segments[0].Literal), true
		}
	case *ast.NumberLit:
		return value.NumberV(n.Value), true
	case *ast.BoolLit:
		return value.BoolV(n.Value), true
	}
	return value.Value{}, false
}

func entityKind(n *ast.EntityDef) entity.Kind {
	if n.Kind == "deflocation" {
		return entity.KindLocation
	}
	switch n.Proto.Name {
	case "item":
		return entity.KindItem
	case "equipment":
		return entity.KindEquipment
	case "weapon":
		return entity.KindWeapon
	case "portal":
		return entity.KindPortal
	case "creature":
		return entity.KindCreature
	case "avatar":
		return entity.KindAvatar
	case "resource_node":
		return entity.KindResourceNode
	case "fixture":
		return entity.KindFixture
	}
	return entity.KindThing
}

// linkPrototypes resolves each pending entity's declared Proto ref, now
// that every file's top-level names are registered. A prototype that
// itself resolves to one of the builtin kind words above just stays a
// bare entity of that Kind with no further delegation.
func (l *Loader) linkPrototypes() {
	for _, p := range l.pending {
		if isBuiltinKindWord(p.def.Proto.Name) && p.def.Proto.Module == "" {
			continue
		}
		ref := compilerRef(p.def.Proto)
		v, ok := l.World.Resolve(ref, p.module)
		if !ok || v.Kind != value.EntityKind {
			continue
		}
		protoEnt, ok := v.Entity.(*entity.Entity)
		if !ok {
			continue
		}
		p.ent.SetPrototype(protoEnt)
	}
}

func isBuiltinKindWord(name string) bool {
	switch name {
	case "item", "equipment", "weapon", "portal", "creature", "avatar", "resource_node", "fixture", "thing":
		return true
	}
	return false
}

func compilerRef(r ast.Ref) compiler.Ref {
	return compiler.Ref{Module: r.Module, Name: r.Name}
}

// runMemberInits compiles and executes every pending entity's member
// initializers, in declaration order, and registers its event handlers
// and methods.
func (l *Loader) runMemberInits() error {
	for _, p := range l.pending {
		for _, m := range p.def.Members {
			fn, errs := compiler.CompileMemberInit(&m)
			if len(errs) > 0 {
				return fmt.Errorf("%s.%s: %v", p.def.Name, m.Name, errs[0])
			}
			fn.Module = p.module
			if _, err := l.VM.Call(fn, []value.Value{value.EntityV(p.ent)}); err != nil {
				return fmt.Errorf("%s.%s init: %w", p.def.Name, m.Name, err)
			}
		}
		for _, h := range p.def.Handlers {
			fn, errs := compiler.CompileHandler(&h)
			if len(errs) > 0 {
				return fmt.Errorf("%s %s %s: %v", p.def.Name, h.Phase, h.Event, errs[0])
			}
			fn.Module = p.module
			p.ent.RegisterHandler(entity.Phase(h.Phase), h.Event, &entity.Handler{
				Params: handlerParams(h.Params),
				Fn:     fn,
			})
		}
		for _, m := range p.def.Methods {
			fn, errs := compiler.CompileMethod(&m)
			if len(errs) > 0 {
				return fmt.Errorf("%s.%s: %v", p.def.Name, m.Name, errs[0])
			}
			fn.Module = p.module
			p.ent.SetMember(m.Name, value.FunctionV(&value.Function{Name: m.Name, Script: fn}))
		}
		if p.ent.Kind == entity.KindLocation {
			syncContainerSlice(p.ent, "exits", &p.ent.Exits)
			syncContainerSlice(p.ent, "contents", &p.ent.Contents)
		}
	}
	return nil
}

// syncContainerSlice reads a location's "exits"/"contents" dynamic member
// (a list of entities set by a member initializer) into the corresponding
// Go-level slice for fast non-script traversal, and back-links each
// child's Container.
func syncContainerSlice(loc *entity.Entity, member string, dst *[]*entity.Entity) {
	v, err := loc.GetMember(member)
	if err != nil || v.Kind != value.ListKind {
		return
	}
	for _, item := range v.List {
		child, ok := item.Entity.(*entity.Entity)
		if !ok {
			continue
		}
		*dst = append(*dst, child)
		child.Container = loc
	}
}

func handlerParams(ps []ast.Param) []entity.HandlerParam {
	out := make([]entity.HandlerParam, len(ps))
	for i, p := range ps {
		out[i] = entity.HandlerParam{Name: p.Name, Constraint: p.Constraint}
	}
	return out
}

// linkPortalTwins makes a best-effort pass pairing up two-way portals
// declared from both ends: for every non-oneway portal whose destination
// is known, if that destination location already holds a portal pointing
// back, the two are linked as twins. One-sided declarations are left
// without a twin (content is expected to declare both ends explicitly).
func (l *Loader) linkPortalTwins() {
	var portals []*entity.Entity
	for _, loc := range l.Locations {
		for _, ex := range loc.Exits {
			if ex.Kind == entity.KindPortal {
				portals = append(portals, ex)
			}
		}
	}
	for _, a := range portals {
		if a.Oneway || a.Twin != nil || a.Destination == nil {
			continue
		}
		for _, b := range a.Destination.Exits {
			if b.Kind != entity.KindPortal || b.Oneway || b.Twin != nil {
				continue
			}
			if b.Destination == a.Container {
				a.Twin, b.Twin = b, a
				break
			}
		}
	}
}

// FireWorldEvent dispatches a parameterless when-phase event to every
// loaded location, per §4.H ("every startable entity receives a when
// start_world event... on shutdown, when stop_world").
func (l *Loader) FireWorldEvent(name string) error {
	_, err := event.When(l.VM, name, l.Locations, nil)
	return err
}
