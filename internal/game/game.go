// Package game implements the reference command set of §4.L: look, go,
// take/drop, inventory, give, equip, and put. Every command that changes
// world state (all but look and inventory) is wrapped in the
// allow/before/when/after dispatch of §4.F.
package game

import (
	"fmt"
	"strings"

	"github.com/ehrlich-b/mudcore/internal/command"
	"github.com/ehrlich-b/mudcore/internal/lang/vm"
	"github.com/ehrlich-b/mudcore/internal/session"
	"github.com/ehrlich-b/mudcore/internal/world/clientupdate"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/event"
	"github.com/ehrlich-b/mudcore/internal/world/match"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// Game wires the verb table to the world's VM and event dispatch. It
// implements session.Dispatcher.
type Game struct {
	Table *command.Table
	VM    *vm.VM
}

func New(v *vm.VM) *Game {
	g := &Game{Table: command.NewTable(), VM: v}
	g.registerVerbs()
	return g
}

func (g *Game) registerVerbs() {
	g.Table.Register(&command.Verb{Name: "look", Aliases: []string{"l"},
		Clauses: []command.ClauseSpec{{Kind: command.ClausePhrase}}})
	g.Table.Register(&command.Verb{Name: "go", Aliases: []string{"move"},
		Clauses: []command.ClauseSpec{{Kind: command.ClauseWord}}})
	g.Table.Register(&command.Verb{Name: "take", Aliases: []string{"get"},
		Clauses: []command.ClauseSpec{{Kind: command.ClausePhrase}}})
	g.Table.Register(&command.Verb{Name: "drop",
		Clauses: []command.ClauseSpec{{Kind: command.ClausePhrase}}})
	g.Table.Register(&command.Verb{Name: "inventory", Aliases: []string{"i", "inv"}})
	g.Table.Register(&command.Verb{Name: "give",
		Clauses: []command.ClauseSpec{{Kind: command.ClausePhrase}, {Prepositions: []string{"to"}, Kind: command.ClausePhrase}}})
	g.Table.Register(&command.Verb{Name: "equip", Aliases: []string{"wear", "wield"},
		Clauses: []command.ClauseSpec{{Kind: command.ClausePhrase}}})
	g.Table.Register(&command.Verb{Name: "put",
		Clauses: []command.ClauseSpec{{Kind: command.ClausePhrase}, {Prepositions: []string{"in"}, Kind: command.ClausePhrase}}})
}

// Dispatch implements session.Dispatcher.
func (g *Game) Dispatch(s *session.Session, line string) {
	pc, err := command.Parse(g.Table, line)
	switch err.(type) {
	case nil:
	case command.ErrTooLong:
		// §8: input over the cap is silently dropped, not reported.
		return
	case command.ErrUnknownVerb, *command.ErrAmbiguous:
		s.SendText(err.Error())
		return
	default:
		s.SendError(err.Error())
		return
	}
	if pc == nil {
		// blank input: nothing to do, nothing to say.
		return
	}
	switch pc.Verb.Name {
	case "look":
		g.doLook(s, pc)
	case "go":
		g.doGo(s, pc)
	case "take":
		g.doTake(s, pc)
	case "drop":
		g.doDrop(s, pc)
	case "inventory":
		g.doInventory(s)
	case "give":
		g.doGive(s, pc)
	case "equip":
		g.doEquip(s, pc)
	case "put":
		g.doPut(s, pc)
	default:
		s.SendError("I don't understand that.")
	}
}

func (g *Game) doLook(s *session.Session, pc *command.ParsedCommand) {
	loc := s.Avatar.Container
	if loc == nil {
		s.SendText("You are nowhere.")
		return
	}
	if phrase, ok := pc.Clauses[""]; ok {
		r := match.Resolve(phrase, match.Scope(s.Avatar))
		if r.Match == nil {
			s.SendText("You don't see that here.")
			return
		}
		s.SendText(r.Match.Description)
		return
	}
	exits := make([]string, 0, len(loc.Exits))
	for _, ex := range loc.Exits {
		exits = append(exits, ex.Direction)
	}
	neighbors := make([]clientupdate.Neighbor, 0, len(loc.Contents))
	for _, c := range loc.Contents {
		if c.ID() == s.Avatar.ID() {
			continue
		}
		neighbors = append(neighbors, clientupdate.Neighbor{
			ID: c.ID(), Name: c.Name, Description: c.Description, Kind: c.Kind.String(),
		})
	}
	s.SendUpdates([]clientupdate.Update{
		clientupdate.ShowLocation{Name: loc.Name, Description: loc.Description, Exits: exits},
		clientupdate.SetNeighbors{Neighbors: neighbors},
	})
}

func (g *Game) doGo(s *session.Session, pc *command.ParsedCommand) {
	loc := s.Avatar.Container
	dir := pc.Clauses[""]
	if loc == nil || dir == "" {
		s.SendText("Go where?")
		return
	}
	var portal *entity.Entity
	for _, ex := range loc.Exits {
		if strings.HasPrefix(ex.Direction, strings.ToLower(dir)) {
			portal = ex
			break
		}
	}
	if portal == nil || portal.Destination == nil {
		s.SendText("You can't go that way.")
		return
	}
	args := []value.Value{value.EntityV(s.Avatar), value.EntityV(portal)}
	participants := []*entity.Entity{s.Avatar, portal}
	veto, err := event.Trigger(g.VM, "go", loc, participants, args, func() error {
		moveTo(s.Avatar, portal.Destination)
		return nil
	})
	if err != nil {
		s.SendError(fmt.Sprintf("something went wrong: %v", err))
		return
	}
	if veto.Kind != value.Nil {
		s.SendText("You can't do that.")
		return
	}
	g.doLook(s, &command.ParsedCommand{Clauses: map[string]string{}})
}

func (g *Game) doTake(s *session.Session, pc *command.ParsedCommand) {
	loc := s.Avatar.Container
	phrase := pc.Clauses[""]
	if loc == nil || phrase == "" {
		s.SendText("Take what?")
		return
	}
	r := match.Resolve(phrase, loc.Contents)
	if r.Match == nil {
		s.SendText("You don't see that here.")
		return
	}
	item := r.Match
	args := []value.Value{value.EntityV(s.Avatar), value.EntityV(item)}
	participants := []*entity.Entity{s.Avatar, item}
	veto, err := event.Trigger(g.VM, "take", loc, participants, args, func() error {
		removeFrom(&loc.Contents, item)
		s.Avatar.Inventory = append(s.Avatar.Inventory, item)
		item.Container = s.Avatar
		return nil
	})
	if err != nil {
		s.SendError(fmt.Sprintf("something went wrong: %v", err))
		return
	}
	if veto.Kind != value.Nil {
		s.SendText("You can't do that.")
		return
	}
	s.SendText(fmt.Sprintf("You take %s.", item.Name))
}

func (g *Game) doDrop(s *session.Session, pc *command.ParsedCommand) {
	loc := s.Avatar.Container
	phrase := pc.Clauses[""]
	if loc == nil || phrase == "" {
		s.SendText("Drop what?")
		return
	}
	r := match.Resolve(phrase, s.Avatar.Inventory)
	if r.Match == nil {
		s.SendText("You aren't carrying that.")
		return
	}
	item := r.Match
	args := []value.Value{value.EntityV(s.Avatar), value.EntityV(item)}
	participants := []*entity.Entity{s.Avatar, item}
	veto, err := event.Trigger(g.VM, "drop", loc, participants, args, func() error {
		removeFrom(&s.Avatar.Inventory, item)
		loc.Contents = append(loc.Contents, item)
		item.Container = loc
		return nil
	})
	if err != nil {
		s.SendError(fmt.Sprintf("something went wrong: %v", err))
		return
	}
	if veto.Kind != value.Nil {
		s.SendText("You can't do that.")
		return
	}
	s.SendText(fmt.Sprintf("You drop %s.", item.Name))
}

func (g *Game) doInventory(s *session.Session) {
	items := make([]clientupdate.ItemView, 0, len(s.Avatar.Inventory))
	for _, it := range s.Avatar.Inventory {
		items = append(items, clientupdate.ItemView{ID: it.ID(), Name: it.Name, Count: max(it.Count, 1)})
	}
	slots := map[string]clientupdate.ItemView{}
	for sl, eq := range s.Avatar.Equipped {
		if eq != nil {
			slots[sl] = clientupdate.ItemView{ID: eq.ID(), Name: eq.Name, Count: max(eq.Count, 1)}
		}
	}
	s.SendUpdates([]clientupdate.Update{
		clientupdate.SetItems{Items: items},
		clientupdate.SetEquipment{Slots: slots},
	})
}

func (g *Game) doGive(s *session.Session, pc *command.ParsedCommand) {
	loc := s.Avatar.Container
	itemPhrase, to := pc.Clauses[""], pc.Clauses["to"]
	if loc == nil || itemPhrase == "" || to == "" {
		s.SendText("Give what to whom?")
		return
	}
	itemR := match.Resolve(itemPhrase, s.Avatar.Inventory)
	if itemR.Match == nil {
		s.SendText("You aren't carrying that.")
		return
	}
	recvR := match.Resolve(to, loc.Contents)
	if recvR.Match == nil || recvR.Match.Kind != entity.KindAvatar && recvR.Match.Kind != entity.KindCreature {
		s.SendText("They aren't here.")
		return
	}
	item, recv := itemR.Match, recvR.Match
	args := []value.Value{value.EntityV(s.Avatar), value.EntityV(item), value.EntityV(recv)}
	participants := []*entity.Entity{s.Avatar, item, recv}
	veto, err := event.Trigger(g.VM, "give", loc, participants, args, func() error {
		removeFrom(&s.Avatar.Inventory, item)
		recv.Inventory = append(recv.Inventory, item)
		item.Container = recv
		return nil
	})
	if err != nil {
		s.SendError(fmt.Sprintf("something went wrong: %v", err))
		return
	}
	if veto.Kind != value.Nil {
		s.SendText("You can't do that.")
		return
	}
	s.SendText(fmt.Sprintf("You give %s to %s.", item.Name, recv.Name))
}

func (g *Game) doEquip(s *session.Session, pc *command.ParsedCommand) {
	phrase := pc.Clauses[""]
	if phrase == "" {
		s.SendText("Equip what?")
		return
	}
	r := match.Resolve(phrase, s.Avatar.Inventory)
	if r.Match == nil {
		s.SendText("You aren't carrying that.")
		return
	}
	item := r.Match
	if item.Kind != entity.KindEquipment && item.Kind != entity.KindWeapon {
		s.SendText("You can't equip that.")
		return
	}
	args := []value.Value{value.EntityV(s.Avatar), value.EntityV(item)}
	participants := []*entity.Entity{s.Avatar, item}
	veto, err := event.Trigger(g.VM, "equip", s.Avatar.Container, participants, args, func() error {
		if s.Avatar.Equipped == nil {
			s.Avatar.Equipped = map[string]*entity.Entity{}
		}
		s.Avatar.Equipped[item.Slot] = item
		return nil
	})
	if err != nil {
		s.SendError(fmt.Sprintf("something went wrong: %v", err))
		return
	}
	if veto.Kind != value.Nil {
		s.SendText("You can't do that.")
		return
	}
	s.SendUpdates([]clientupdate.Update{clientupdate.Equip{
		Slot: item.Slot, Item: clientupdate.ItemView{ID: item.ID(), Name: item.Name, Count: max(item.Count, 1)},
	}})
	s.SendText(fmt.Sprintf("You equip %s.", item.Name))
}

func (g *Game) doPut(s *session.Session, pc *command.ParsedCommand) {
	itemPhrase, containerPhrase := pc.Clauses[""], pc.Clauses["in"]
	loc := s.Avatar.Container
	if itemPhrase == "" || containerPhrase == "" || loc == nil {
		s.SendText("Put what in what?")
		return
	}
	itemR := match.Resolve(itemPhrase, s.Avatar.Inventory)
	if itemR.Match == nil {
		s.SendText("You aren't carrying that.")
		return
	}
	containerR := match.Resolve(containerPhrase, append(append([]*entity.Entity{}, loc.Contents...), s.Avatar.Inventory...))
	if containerR.Match == nil {
		s.SendText("You don't see that here.")
		return
	}
	item, container := itemR.Match, containerR.Match
	args := []value.Value{value.EntityV(s.Avatar), value.EntityV(item), value.EntityV(container)}
	participants := []*entity.Entity{s.Avatar, item, container}
	veto, err := event.Trigger(g.VM, "put", loc, participants, args, func() error {
		removeFrom(&s.Avatar.Inventory, item)
		container.Contents = append(container.Contents, item)
		item.Container = container
		return nil
	})
	if err != nil {
		s.SendError(fmt.Sprintf("something went wrong: %v", err))
		return
	}
	if veto.Kind != value.Nil {
		s.SendText("You can't do that.")
		return
	}
	s.SendText(fmt.Sprintf("You put %s in %s.", item.Name, container.Name))
}

func moveTo(ent, dest *entity.Entity) {
	if ent.Container != nil {
		removeFrom(&ent.Container.Contents, ent)
	}
	dest.Contents = append(dest.Contents, ent)
	ent.Container = dest
}

func removeFrom(list *[]*entity.Entity, ent *entity.Entity) {
	for i, e := range *list {
		if e == ent {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
