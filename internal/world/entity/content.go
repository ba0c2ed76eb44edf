package entity

import (
	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// Quest, Phase, Race, and Module are the non-entity content objects named
// in §3: flat named-member containers, without a prototype chain or the
// typed-accessor table an Entity has. Scripts read and write their members
// the same way they do an entity's dynamic members.

// Phase is one named stage of a Quest, carrying its own script-visible
// members (progress counters, flavor text, …).
type Phase struct {
	Name    string
	Members map[string]value.Value
}

func (p *Phase) GetMember(name string) (value.Value, error) {
	if v, ok := p.Members[name]; ok {
		return v, nil
	}
	return value.NilV(), ErrUnknownMember{Name: name}
}

func (p *Phase) SetMember(name string, v value.Value) error {
	if p.Members == nil {
		p.Members = map[string]value.Value{}
	}
	p.Members[name] = v
	return nil
}

// Quest is a named, ordered sequence of Phases plus quest-level members.
type Quest struct {
	Ref     ast.Ref
	Members map[string]value.Value
	Phases  []*Phase
}

func (q *Quest) GetMember(name string) (value.Value, error) {
	if v, ok := q.Members[name]; ok {
		return v, nil
	}
	return value.NilV(), ErrUnknownMember{Name: name}
}

func (q *Quest) SetMember(name string, v value.Value) error {
	if q.Members == nil {
		q.Members = map[string]value.Value{}
	}
	q.Members[name] = v
	return nil
}

func (q *Quest) Phase(name string) *Phase {
	for _, p := range q.Phases {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Race is a flat member bag assignable to an avatar's RaceRef.
type Race struct {
	Ref     ast.Ref
	Members map[string]value.Value
}

func (r *Race) GetMember(name string) (value.Value, error) {
	if v, ok := r.Members[name]; ok {
		return v, nil
	}
	return value.NilV(), ErrUnknownMember{Name: name}
}

func (r *Race) SetMember(name string, v value.Value) error {
	if r.Members == nil {
		r.Members = map[string]value.Value{}
	}
	r.Members[name] = v
	return nil
}

// Module is a loaded script file's top-level namespace: named entities,
// quests, races, and free functions, addressable as Module.Name from
// another file and as plain Name from within it.
type Module struct {
	Name    string
	Members map[string]value.Value
}

func (m *Module) GetMember(name string) (value.Value, error) {
	if v, ok := m.Members[name]; ok {
		return v, nil
	}
	return value.NilV(), ErrUnknownMember{Name: name}
}

func (m *Module) SetMember(name string, v value.Value) error {
	if m.Members == nil {
		m.Members = map[string]value.Value{}
	}
	m.Members[name] = v
	return nil
}
