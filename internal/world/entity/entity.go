// Package entity implements the prototype-chained, dynamic-member object
// graph described in spec §3 and §4.E: every Entity is a scope that
// resolves a name through a small typed-accessor table, then a dynamic
// member map, then its prototype link.
package entity

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/world/clientupdate"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// Kind discriminates an Entity's capability set. The source models these
// as a class hierarchy (Entity -> Thing -> Item -> Equipment -> Weapon);
// per §9 this is collapsed to a single tagged struct instead.
type Kind int

const (
	KindThing Kind = iota
	KindItem
	KindEquipment
	KindWeapon
	KindPortal
	KindLocation
	KindCreature
	KindAvatar
	KindResourceNode
	KindFixture
)

func (k Kind) String() string {
	switch k {
	case KindThing:
		return "thing"
	case KindItem:
		return "item"
	case KindEquipment:
		return "equipment"
	case KindWeapon:
		return "weapon"
	case KindPortal:
		return "portal"
	case KindLocation:
		return "location"
	case KindCreature:
		return "creature"
	case KindAvatar:
		return "avatar"
	case KindResourceNode:
		return "resource_node"
	case KindFixture:
		return "fixture"
	}
	return "unknown"
}

// Phase is a dispatch phase, one of allow/before/when/after (§4.F).
type Phase string

const (
	PhaseAllow  Phase = "allow"
	PhaseBefore Phase = "before"
	PhaseWhen   Phase = "when"
	PhaseAfter  Phase = "after"
)

// HandlerKey identifies one registered handler slot on an entity.
type HandlerKey struct {
	Phase Phase
	Event string
}

// Handler is one compiled event handler bound to an owning entity.
type Handler struct {
	Params []HandlerParam
	Fn     any // *compiler.Function; kept untyped to avoid an import cycle (compiler doesn't need entity)
}

// HandlerParam mirrors compiler.ParamSpec's constraint for matching.
type HandlerParam struct {
	Name       string
	Constraint ast.Constraint
}

var nextID int64

func nextEntityID() int64 { return atomic.AddInt64(&nextID, 1) }

// QuestState tracks one avatar's progress on a single quest.
type QuestState struct {
	Phase    string
	Progress int
}

// QuestOffer is a pending quest proposal awaiting accept/decline.
type QuestOffer struct {
	Quest ast.Ref
}

// Activity is a multi-second player action (gathering, crafting, …). Cancel
// is invoked on disconnect or location change per §5.
type Activity struct {
	Name   string
	Cancel func()
}

// Session is the narrow interface an Avatar holds a non-owning reference
// to; the transport/session layer satisfies it (§4.I, §6).
type Session interface {
	SendText(msg string)
	SendUpdates(updates []clientupdate.Update)
}

// Entity is a single node in the prototype-chained object graph. All
// subkind-specific fields live on the same struct per §9; which ones are
// meaningful is determined by Kind.
type Entity struct {
	id    int64
	ref   *ast.Ref
	proto *Entity

	members  map[string]value.Value
	handlers map[HandlerKey][]*Handler

	Kind Kind

	// Thing
	Name        string
	Description string

	// Item
	Count      int
	StackLimit int

	// Equipment / Weapon
	Slot    string
	Quality int
	Traits  []string

	// Portal
	Direction   string
	DestRef     ast.Ref
	Destination *Entity // resolved target location, set at link time or by OpMakePortal
	Twin        *Entity
	Oneway      bool

	// Location
	Contents     []*Entity
	Exits        []*Entity
	Domain       string
	TutorialText string

	// Back-reference, non-owning: the Location (or other container) this
	// entity currently sits in. nil for an entity not yet placed.
	Container *Entity

	// Avatar
	Level           int
	RaceRef         ast.Ref
	Inventory       []*Entity
	InventoryLimit  int
	Equipped        map[string]*Entity
	ActiveQuests    map[string]*QuestState
	CompletedQuests map[string]time.Time
	Skills          map[string]int
	TutorialsOn     bool
	TutorialsSeen   map[string]bool
	Offer           *QuestOffer
	Activity        *Activity
	Session         Session
	ClientUpdates   []clientupdate.Update
	UpdateScheduled bool
}

// New allocates a fresh entity of the given kind with a freshly assigned
// process-unique id and no prototype.
func New(kind Kind) *Entity {
	return &Entity{id: nextEntityID(), Kind: kind, members: map[string]value.Value{}}
}

// NewNamed allocates a top-level (ref-bound) entity, as created by `def`/
// `deflocation` at world load.
func NewNamed(kind Kind, ref ast.Ref) *Entity {
	e := New(kind)
	e.ref = &ref
	return e
}

func (e *Entity) ID() int64 { return e.id }

// Ref returns the entity's absolute Ref and true iff it was defined at a
// module's top level (§3: "ref: optional absolute Ref").
func (e *Entity) Ref() (ast.Ref, bool) {
	if e.ref == nil {
		return ast.Ref{}, false
	}
	return *e.ref, true
}

// Prototype returns the owning parent in the prototype chain, or nil.
func (e *Entity) Prototype() *Entity { return e.proto }

// SetPrototype links e to proto. Only the world loader calls this, once,
// while resolving a content-defined entity's declared prototype ref;
// clones get their prototype set directly by Clone instead.
func (e *Entity) SetPrototype(proto *Entity) { e.proto = proto }

// Isa is true iff ref names this entity or any ancestor in its prototype
// chain (§3).
func (e *Entity) Isa(ref ast.Ref) bool {
	for cur := e; cur != nil; cur = cur.proto {
		if r, ok := cur.Ref(); ok && r == ref {
			return true
		}
	}
	return false
}

// Clone creates a new entity per §3's cloning contract: the clone's
// prototype is self if self has a ref (content-defined prototype), else
// self's own prototype (so cloning a clone chains to the same root);
// typed fields are copied by value; handlers and members are inherited by
// delegation, never copied.
func (e *Entity) Clone() *Entity {
	c := New(e.Kind)
	if _, ok := e.Ref(); ok {
		c.proto = e
	} else {
		c.proto = e.proto
	}
	c.Name = e.Name
	c.Description = e.Description
	c.Count = e.Count
	c.StackLimit = e.StackLimit
	c.Slot = e.Slot
	c.Quality = e.Quality
	c.Traits = append([]string(nil), e.Traits...)
	c.Direction = e.Direction
	c.DestRef = e.DestRef
	c.Oneway = e.Oneway
	c.Domain = e.Domain
	c.TutorialText = e.TutorialText
	c.InventoryLimit = e.InventoryLimit
	c.Level = e.Level
	c.RaceRef = e.RaceRef
	if e.Kind == KindAvatar {
		c.Equipped = map[string]*Entity{}
		c.ActiveQuests = map[string]*QuestState{}
		c.CompletedQuests = map[string]time.Time{}
		c.Skills = map[string]int{}
		c.TutorialsSeen = map[string]bool{}
		c.TutorialsOn = e.TutorialsOn
	}
	return c
}

// RegisterHandler binds a compiled handler function under (phase, event)
// in declaration order.
func (e *Entity) RegisterHandler(phase Phase, event string, h *Handler) {
	if e.handlers == nil {
		e.handlers = map[HandlerKey][]*Handler{}
	}
	key := HandlerKey{Phase: phase, Event: event}
	e.handlers[key] = append(e.handlers[key], h)
}

// Handlers returns this entity's own handlers for (phase, event); it does
// not walk the prototype chain (the event dispatcher does that itself,
// per §4.F, so it can interleave delegate/prototype traversal with
// constraint matching one handler at a time).
func (e *Entity) Handlers(phase Phase, event string) []*Handler {
	return e.handlers[HandlerKey{Phase: phase, Event: event}]
}

// Delegate is the entity this one forwards unmatched handler lookups and
// member reads to: its prototype.
func (e *Entity) Delegate() *Entity { return e.proto }

// ProtoRef returns the nearest content-defined Ref in e's own prototype
// chain (e included): per §3's clone contract, a clone's prototype is
// always either the content-defined entity it was cloned from or that
// entity's own prototype, so the first Ref found walking up is the
// entity's authoring identity — what persistence needs to reconstruct a
// clone via World.Resolve + Clone.
func (e *Entity) ProtoRef() (ast.Ref, bool) {
	for cur := e; cur != nil; cur = cur.proto {
		if r, ok := cur.Ref(); ok {
			return r, true
		}
	}
	return ast.Ref{}, false
}

// ---- dynamic member access (§4.E) ----

// ErrUnknownMember reports that name has no typed accessor and is absent
// from every members map up the prototype chain.
type ErrUnknownMember struct{ Name string }

func (err ErrUnknownMember) Error() string { return fmt.Sprintf("unknownMember %q", err.Name) }

// ErrReadOnly reports a write attempt against a read-only typed accessor.
type ErrReadOnly struct{ Name string }

func (err ErrReadOnly) Error() string { return fmt.Sprintf("readOnly %q", err.Name) }

// ErrExpectedType reports a typed-accessor write with the wrong Value kind.
type ErrExpectedType struct {
	Name string
	Want value.Kind
}

func (err ErrExpectedType) Error() string {
	return fmt.Sprintf("expected(%s) for %q", err.Want, err.Name)
}

// GetMember resolves name via the typed accessor table, then members, then
// the prototype chain.
func (e *Entity) GetMember(name string) (value.Value, error) {
	if v, ok := e.getTyped(name); ok {
		return v, nil
	}
	for cur := e; cur != nil; cur = cur.proto {
		if v, ok := cur.members[name]; ok {
			return v, nil
		}
	}
	return value.NilV(), ErrUnknownMember{Name: name}
}

// SetMember writes name via the typed accessor table (type-checked) or, if
// none exists, into this entity's own members map (never a prototype's).
func (e *Entity) SetMember(name string, v value.Value) error {
	if ok, writable, err := e.setTyped(name, v); ok {
		if !writable {
			return ErrReadOnly{Name: name}
		}
		return err
	}
	if e.members == nil {
		e.members = map[string]value.Value{}
	}
	e.members[name] = v
	return nil
}

// getTyped checks the static per-subkind accessor table. The second return
// is false when name is not a typed field at all.
func (e *Entity) getTyped(name string) (value.Value, bool) {
	switch name {
	case "name":
		return value.StringV(e.Name), true
	case "description":
		return value.StringV(e.Description), true
	case "id":
		return value.NumberV(float64(e.id)), true
	}
	switch e.Kind {
	case KindItem:
		switch name {
		case "count":
			return value.NumberV(float64(e.Count)), true
		case "stack_limit":
			return value.NumberV(float64(e.StackLimit)), true
		}
	case KindEquipment, KindWeapon:
		switch name {
		case "slot":
			return value.StringV(e.Slot), true
		case "quality":
			return value.NumberV(float64(e.Quality)), true
		}
	case KindPortal:
		switch name {
		case "direction":
			return value.StringV(e.Direction), true
		case "oneway":
			return value.BoolV(e.Oneway), true
		case "twin":
			if e.Twin == nil {
				return value.NilV(), true
			}
			return value.EntityV(e.Twin), true
		}
	case KindLocation:
		switch name {
		case "domain":
			return value.StringV(e.Domain), true
		case "tutorial_text":
			return value.StringV(e.TutorialText), true
		}
	case KindAvatar:
		switch name {
		case "level":
			return value.NumberV(float64(e.Level)), true
		case "tutorials_on":
			return value.BoolV(e.TutorialsOn), true
		}
	}
	return value.NilV(), false
}

// setTyped attempts a typed write. found reports whether name is a typed
// field at all; writable reports whether it may be assigned (false means
// read-only); err carries a type-mismatch failure.
func (e *Entity) setTyped(name string, v value.Value) (found, writable bool, err error) {
	switch name {
	case "name":
		if v.Kind != value.String {
			return true, true, ErrExpectedType{Name: name, Want: value.String}
		}
		e.Name = v.Str
		return true, true, nil
	case "description":
		if v.Kind != value.String {
			return true, true, ErrExpectedType{Name: name, Want: value.String}
		}
		e.Description = v.Str
		return true, true, nil
	case "id":
		return true, false, nil
	}
	switch e.Kind {
	case KindItem:
		switch name {
		case "count":
			if v.Kind != value.Number {
				return true, true, ErrExpectedType{Name: name, Want: value.Number}
			}
			e.Count = int(v.Num)
			return true, true, nil
		case "stack_limit":
			if v.Kind != value.Number {
				return true, true, ErrExpectedType{Name: name, Want: value.Number}
			}
			e.StackLimit = int(v.Num)
			return true, true, nil
		}
	case KindEquipment, KindWeapon:
		switch name {
		case "slot":
			if v.Kind != value.String {
				return true, true, ErrExpectedType{Name: name, Want: value.String}
			}
			e.Slot = v.Str
			return true, true, nil
		case "quality":
			if v.Kind != value.Number {
				return true, true, ErrExpectedType{Name: name, Want: value.Number}
			}
			e.Quality = int(v.Num)
			return true, true, nil
		}
	case KindPortal:
		switch name {
		case "direction":
			if v.Kind != value.String {
				return true, true, ErrExpectedType{Name: name, Want: value.String}
			}
			e.Direction = v.Str
			return true, true, nil
		case "oneway":
			if v.Kind != value.Bool {
				return true, true, ErrExpectedType{Name: name, Want: value.Bool}
			}
			e.Oneway = v.Bool
			return true, true, nil
		case "twin":
			return true, false, nil
		}
	case KindLocation:
		switch name {
		case "domain":
			if v.Kind != value.String {
				return true, true, ErrExpectedType{Name: name, Want: value.String}
			}
			e.Domain = v.Str
			return true, true, nil
		case "tutorial_text":
			if v.Kind != value.String {
				return true, true, ErrExpectedType{Name: name, Want: value.String}
			}
			e.TutorialText = v.Str
			return true, true, nil
		}
	case KindAvatar:
		switch name {
		case "level":
			if v.Kind != value.Number {
				return true, true, ErrExpectedType{Name: name, Want: value.Number}
			}
			e.Level = int(v.Num)
			return true, true, nil
		case "tutorials_on":
			if v.Kind != value.Bool {
				return true, true, ErrExpectedType{Name: name, Want: value.Bool}
			}
			e.TutorialsOn = v.Bool
			return true, true, nil
		}
	}
	return false, false, nil
}

// EnqueueUpdate appends a client update to an avatar's pending buffer; the
// session layer is responsible for noticing the empty->non-empty
// transition and scheduling the flush (§4.I, kept out of this package to
// avoid a dependency on the tick loop).
func (e *Entity) EnqueueUpdate(u clientupdate.Update) {
	e.ClientUpdates = append(e.ClientUpdates, u)
}
