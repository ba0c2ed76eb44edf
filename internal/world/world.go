// Package world ties the compiled script runtime to a concrete object
// graph: it resolves Refs to loaded content (§4.H), performs the
// clone/stack/portal primitives bytecode needs, and renders an entity's
// display name for string interpolation (§4.C's 'i'/'I'/'d'/'D'/'n'/'N'
// format characters).
package world

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// World is the process-wide registry of loaded modules. It implements
// vm.Resolver, vm.Cloner, and value.Describer.
type World struct {
	mu      sync.RWMutex
	modules map[string]*entity.Module
}

func New() *World {
	return &World{modules: map[string]*entity.Module{}}
}

// Module returns the named module, creating an empty one if it doesn't
// exist yet (the world loader calls this once per script file before
// populating it).
func (w *World) Module(name string) *entity.Module {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.modules[name]
	if !ok {
		m = &entity.Module{Name: name, Members: map[string]value.Value{}}
		w.modules[name] = m
	}
	return m
}

// Resolve implements vm.Resolver.
func (w *World) Resolve(ref compiler.Ref, context string) (value.Value, bool) {
	modName := ref.Module
	if modName == "" {
		modName = context
	}
	w.mu.RLock()
	m, ok := w.modules[modName]
	w.mu.RUnlock()
	if !ok {
		return value.NilV(), false
	}
	v, err := m.GetMember(ref.Name)
	if err != nil {
		return value.NilV(), false
	}
	return v, true
}

// Clone implements vm.Cloner.
func (w *World) Clone(v value.Value) (value.Value, error) {
	if v.Kind != value.EntityKind {
		return value.NilV(), fmt.Errorf("clone requires an entity, got %s", v.Kind)
	}
	ent, ok := v.Entity.(*entity.Entity)
	if !ok {
		return value.NilV(), fmt.Errorf("clone requires an entity")
	}
	return value.EntityV(ent.Clone()), nil
}

// SetCount implements vm.Cloner: stack(item, n) clones item and sets the
// clone's count, per §4.C.
func (w *World) SetCount(v value.Value, count int) (value.Value, error) {
	cloned, err := w.Clone(v)
	if err != nil {
		return value.NilV(), err
	}
	cloned.Entity.(*entity.Entity).Count = count
	return cloned, nil
}

// MakePortal implements vm.Cloner: clones a portal prototype entity and
// points it at dest, per §4.C/§3.
func (w *World) MakePortal(proto, dest value.Value, direction string, oneway bool) (value.Value, error) {
	if proto.Kind != value.EntityKind {
		return value.NilV(), fmt.Errorf("portal prototype must be an entity, got %s", proto.Kind)
	}
	protoEnt, ok := proto.Entity.(*entity.Entity)
	if !ok {
		return value.NilV(), fmt.Errorf("portal prototype must be an entity")
	}
	portal := protoEnt.Clone()
	portal.Kind = entity.KindPortal
	portal.Direction = direction
	portal.Oneway = oneway
	if dest.Kind == value.EntityKind {
		if d, ok := dest.Entity.(*entity.Entity); ok {
			portal.Destination = d
		}
	}
	return value.EntityV(portal), nil
}

// Describe implements value.Describer, rendering the indefinite (i/I),
// definite (d/D), and plain (n/N, or no format byte) forms of an entity's
// name; the upper-case variant capitalizes the result for sentence-start
// use.
func (w *World) Describe(e value.Identified, format byte) string {
	ent, ok := e.(*entity.Entity)
	if !ok {
		return fmt.Sprintf("entity#%d", e.ID())
	}
	var s string
	switch format {
	case 'i', 'I':
		article := "a"
		if startsWithVowelSound(ent.Name) {
			article = "an"
		}
		s = article + " " + ent.Name
	case 'd', 'D':
		s = "the " + ent.Name
	default:
		s = ent.Name
	}
	if format == 'I' || format == 'D' || format == 'N' {
		s = capitalize(s)
	}
	return s
}

func startsWithVowelSound(name string) bool {
	if name == "" {
		return false
	}
	switch strings.ToLower(name)[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
