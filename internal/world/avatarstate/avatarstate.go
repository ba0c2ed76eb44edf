// Package avatarstate (de)serializes the portion of an Avatar entity that
// the world loader's object graph cannot hand back to us for free: the
// JSON blob stored in the avatars.state column (§6). Tutorials-seen and
// finished-quest bookkeeping live in their own store tables already, so
// this package only covers what's reconstructed through World.Resolve +
// Entity.Clone: name, description, level, race, location, inventory,
// equipment, skills, and in-progress quests.
package avatarstate

import (
	"encoding/json"
	"fmt"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// Resolver is the subset of World an avatar state load needs: looking a
// Ref back up to its content-defined entity, and cloning item/equipment
// prototypes to rebuild inventory and equipped slots.
type Resolver interface {
	Resolve(ref compiler.Ref, context string) (value.Value, bool)
	Clone(v value.Value) (value.Value, error)
}

// item is one inventory slot: the authoring ref it was cloned from plus
// the count the clone carries (items of the same ref with different
// counts are never coalesced, so a plain ref->count map would lose data).
type item struct {
	Ref   string `json:"ref"`
	Count int    `json:"count"`
}

// questState is one entry of ActiveQuests.
type questState struct {
	Phase    string `json:"phase"`
	Progress int    `json:"progress"`
}

// doc is the on-disk JSON shape of the avatars.state column.
type doc struct {
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Level        int                   `json:"level"`
	RaceRef      string                `json:"race_ref,omitempty"`
	LocationRef  string                `json:"location_ref,omitempty"`
	Inventory    []item                `json:"inventory,omitempty"`
	Equipped     map[string]item       `json:"equipped,omitempty"`
	ActiveQuests map[string]questState `json:"active_quests,omitempty"`
	Skills       map[string]int        `json:"skills,omitempty"`
	TutorialsOn  bool                  `json:"tutorials_on"`
}

// Dump serializes av's persisted fields to a JSON string for storage in
// the avatars.state column.
func Dump(av *entity.Entity) (string, error) {
	if av.Kind != entity.KindAvatar {
		return "", fmt.Errorf("avatarstate: Dump requires a KindAvatar entity")
	}
	d := doc{
		Name:        av.Name,
		Description: av.Description,
		Level:       av.Level,
		TutorialsOn: av.TutorialsOn,
	}
	if av.RaceRef != (ast.Ref{}) {
		d.RaceRef = av.RaceRef.String()
	}
	if av.Container != nil {
		if r, ok := av.Container.ProtoRef(); ok {
			d.LocationRef = r.String()
		}
	}
	for _, it := range av.Inventory {
		r, ok := it.ProtoRef()
		if !ok {
			continue // unauthored item with no content ref: can't be reconstructed, so it's dropped rather than corrupt the save.
		}
		d.Inventory = append(d.Inventory, item{Ref: r.String(), Count: it.Count})
	}
	if len(av.Equipped) > 0 {
		d.Equipped = map[string]item{}
		for slot, it := range av.Equipped {
			r, ok := it.ProtoRef()
			if !ok {
				continue
			}
			d.Equipped[slot] = item{Ref: r.String(), Count: it.Count}
		}
	}
	if len(av.ActiveQuests) > 0 {
		d.ActiveQuests = map[string]questState{}
		for ref, qs := range av.ActiveQuests {
			d.ActiveQuests[ref] = questState{Phase: qs.Phase, Progress: qs.Progress}
		}
	}
	if len(av.Skills) > 0 {
		d.Skills = map[string]int{}
		for k, v := range av.Skills {
			d.Skills[k] = v
		}
	}
	out, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("avatarstate: marshal: %w", err)
	}
	return string(out), nil
}

// Load resolves state (as produced by Dump) against res, returning a
// freshly cloned Avatar entity with every field populated. base is the
// content-defined avatar prototype to clone from (typically the race's
// or world's default avatar template); its own prototype chain provides
// the typed accessor defaults Load doesn't otherwise set.
func Load(res Resolver, base *entity.Entity, state string) (*entity.Entity, *entity.Entity, error) {
	var d doc
	if err := json.Unmarshal([]byte(state), &d); err != nil {
		return nil, nil, fmt.Errorf("avatarstate: unmarshal: %w", err)
	}
	cloned, err := res.Clone(value.EntityV(base))
	if err != nil {
		return nil, nil, fmt.Errorf("avatarstate: clone base avatar: %w", err)
	}
	av, ok := cloned.Entity.(*entity.Entity)
	if !ok || av.Kind != entity.KindAvatar {
		return nil, nil, fmt.Errorf("avatarstate: base is not an avatar")
	}

	av.Name = d.Name
	av.Description = d.Description
	av.Level = d.Level
	av.TutorialsOn = d.TutorialsOn
	if d.RaceRef != "" {
		av.RaceRef = ast.ParseRef(d.RaceRef)
	}

	var location *entity.Entity
	if d.LocationRef != "" {
		locRef := ast.ParseRef(d.LocationRef)
		v, ok := res.Resolve(compiler.Ref{Module: locRef.Module, Name: locRef.Name}, "")
		if ok && v.Kind == value.EntityKind {
			location, _ = v.Entity.(*entity.Entity)
		}
	}

	for _, it := range d.Inventory {
		ent, err := resolveAndClone(res, it)
		if err != nil {
			continue // a ref that no longer resolves (content removed) is dropped silently rather than failing the whole load.
		}
		ent.Container = av
		av.Inventory = append(av.Inventory, ent)
	}
	if len(d.Equipped) > 0 {
		av.Equipped = map[string]*entity.Entity{}
		for slot, it := range d.Equipped {
			ent, err := resolveAndClone(res, it)
			if err != nil {
				continue
			}
			ent.Container = av
			av.Equipped[slot] = ent
		}
	}
	if len(d.ActiveQuests) > 0 {
		av.ActiveQuests = map[string]*entity.QuestState{}
		for ref, qs := range d.ActiveQuests {
			av.ActiveQuests[ref] = &entity.QuestState{Phase: qs.Phase, Progress: qs.Progress}
		}
	}
	if len(d.Skills) > 0 {
		av.Skills = map[string]int{}
		for k, v := range d.Skills {
			av.Skills[k] = v
		}
	}
	return av, location, nil
}

func resolveAndClone(res Resolver, it item) (*entity.Entity, error) {
	ref := ast.ParseRef(it.Ref)
	v, ok := res.Resolve(compiler.Ref{Module: ref.Module, Name: ref.Name}, "")
	if !ok || v.Kind != value.EntityKind {
		return nil, fmt.Errorf("avatarstate: unresolved ref %q", it.Ref)
	}
	cloned, err := res.Clone(v)
	if err != nil {
		return nil, err
	}
	ent, ok := cloned.Entity.(*entity.Entity)
	if !ok {
		return nil, fmt.Errorf("avatarstate: clone of %q is not an entity", it.Ref)
	}
	ent.Count = it.Count
	return ent, nil
}
