// Package clientupdate defines the JSON wire shapes sent down the
// WebSocket connection to a connected client: the fixed discriminated
// union §6 names (setNeighbors, updateNeighbor, removeNeighbor,
// setEquipment, equip, unequip, setItems, updateItem, removeItem,
// setSkills, updateSkill, removeSkill, setAttributes, updateAttribute,
// setQuests, updateQuest, removeQuest, showText, showNotice,
// showTutorial, showError, showSay, showList, showLinks, showLocation,
// startCast, stopCast, setMap, updateMap). The session/transport layer
// batches and flushes these once per tick (§4.I, §5).
package clientupdate

// Update is implemented by every concrete wire message below. Type returns
// the wire-level discriminator written into the envelope's "type" field.
type Update interface {
	Type() string
}

// Envelope is what actually gets marshaled: the discriminator plus the
// concrete payload inlined at encode time by the transport layer.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Neighbor is one entity visible to the client in its current location:
// another avatar, a creature, an item, or a fixture.
type Neighbor struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

// SetNeighbors replaces the full set of entities visible in the client's
// current location, sent on location entry/reconnect.
type SetNeighbors struct {
	Neighbors []Neighbor `json:"neighbors"`
}

func (SetNeighbors) Type() string { return "setNeighbors" }

// UpdateNeighbor reports one neighbor's changed name/description without
// resending the whole set.
type UpdateNeighbor struct {
	Neighbor Neighbor `json:"neighbor"`
}

func (UpdateNeighbor) Type() string { return "updateNeighbor" }

// RemoveNeighbor reports that a neighbor has left the client's location.
type RemoveNeighbor struct {
	ID int64 `json:"id"`
}

func (RemoveNeighbor) Type() string { return "removeNeighbor" }

// ItemView is one row of an inventory/equipment listing.
type ItemView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SetEquipment replaces the client's full equipped-slot map.
type SetEquipment struct {
	Slots map[string]ItemView `json:"slots"`
}

func (SetEquipment) Type() string { return "setEquipment" }

// Equip reports one slot newly filled.
type Equip struct {
	Slot string   `json:"slot"`
	Item ItemView `json:"item"`
}

func (Equip) Type() string { return "equip" }

// Unequip reports one slot newly emptied.
type Unequip struct {
	Slot string `json:"slot"`
}

func (Unequip) Type() string { return "unequip" }

// SetItems replaces the client's full inventory listing.
type SetItems struct {
	Items []ItemView `json:"items"`
}

func (SetItems) Type() string { return "setItems" }

// UpdateItem reports one inventory item's changed count (e.g. after a
// stack merge or partial consumption).
type UpdateItem struct {
	Item ItemView `json:"item"`
}

func (UpdateItem) Type() string { return "updateItem" }

// RemoveItem reports one inventory item fully consumed/dropped/given away.
type RemoveItem struct {
	ID int64 `json:"id"`
}

func (RemoveItem) Type() string { return "removeItem" }

// SkillView is one row of a skills listing.
type SkillView struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// SetSkills replaces the client's full skill listing.
type SetSkills struct {
	Skills []SkillView `json:"skills"`
}

func (SetSkills) Type() string { return "setSkills" }

// UpdateSkill reports one skill's rank change.
type UpdateSkill struct {
	Skill SkillView `json:"skill"`
}

func (UpdateSkill) Type() string { return "updateSkill" }

// RemoveSkill reports a skill no longer held (content-specific: unlearned,
// class-changed away from, ...).
type RemoveSkill struct {
	Ref string `json:"ref"`
}

func (RemoveSkill) Type() string { return "removeSkill" }

// SetAttributes replaces every avatar-level scalar field shown in the
// client's status panel at once (name, level, race, and the like).
type SetAttributes struct {
	Attributes map[string]string `json:"attributes"`
}

func (SetAttributes) Type() string { return "setAttributes" }

// UpdateAttribute reports one avatar-level scalar field's change, the
// per-field avatar setter form §6 calls out as its own variant.
type UpdateAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (UpdateAttribute) Type() string { return "updateAttribute" }

// QuestView is one row of a quest log listing.
type QuestView struct {
	Quest    string `json:"quest"`
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	Progress int    `json:"progress"`
}

// SetQuests replaces the client's full active-quest log.
type SetQuests struct {
	Quests []QuestView `json:"quests"`
}

func (SetQuests) Type() string { return "setQuests" }

// UpdateQuest reports one quest's phase/progress change.
type UpdateQuest struct {
	Quest QuestView `json:"quest"`
}

func (UpdateQuest) Type() string { return "updateQuest" }

// RemoveQuest reports a quest leaving the active log (completed or
// abandoned).
type RemoveQuest struct {
	Quest string `json:"quest"`
}

func (RemoveQuest) Type() string { return "removeQuest" }

// ShowText is a single line of narrative text.
type ShowText struct {
	Text string `json:"text"`
}

func (ShowText) Type() string { return "showText" }

// ShowNotice is a system notice, styled distinctly from ordinary text by
// the client.
type ShowNotice struct {
	Text string `json:"text"`
}

func (ShowNotice) Type() string { return "showNotice" }

// ShowTutorial shows a one-time tutorial hint, keyed so the client (and
// the store's tutorials-seen journal, §6) can avoid repeating it.
type ShowTutorial struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

func (ShowTutorial) Type() string { return "showTutorial" }

// ShowError is a player-facing command failure (§7.3): never a raw
// internal error, always pre-formatted prose.
type ShowError struct {
	Text string `json:"text"`
}

func (ShowError) Type() string { return "showError" }

// ShowSay is a spoken line attributed to a speaker (an avatar or
// creature), distinct from ShowText so the client can render it with a
// name tag / speech-bubble styling.
type ShowSay struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

func (ShowSay) Type() string { return "showSay" }

// ShowList presents an enumerated list (e.g. quest choices, vendor stock)
// the player picks from by number.
type ShowList struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

func (ShowList) Type() string { return "showList" }

// ShowLinks presents clickable command shortcuts (e.g. "[look] [go north]").
type ShowLinks struct {
	Links []Link `json:"links"`
}

// Link is one clickable shortcut: Label shown to the player, Command sent
// verbatim if clicked.
type Link struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

func (ShowLinks) Type() string { return "showLinks" }

// ShowLocation is the full room panel refresh sent on entry, look, and
// reconnect.
type ShowLocation struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Exits       []string `json:"exits"`
}

func (ShowLocation) Type() string { return "showLocation" }

// StartCast begins a client-rendered cast-bar animation for a
// multi-second script-driven activity.
type StartCast struct {
	Label    string  `json:"label"`
	Duration float64 `json:"duration"`
}

func (StartCast) Type() string { return "startCast" }

// StopCast ends a cast-bar animation, early (Cancelled) or on completion.
type StopCast struct {
	Cancelled bool `json:"cancelled"`
}

func (StopCast) Type() string { return "stopCast" }

// MapNode is one node of a client-rendered overview map.
type MapNode struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// SetMap replaces the client's full map data.
type SetMap struct {
	Nodes []MapNode `json:"nodes"`
}

func (SetMap) Type() string { return "setMap" }

// UpdateMap reports a single newly-discovered map node.
type UpdateMap struct {
	Node MapNode `json:"node"`
}

func (UpdateMap) Type() string { return "updateMap" }
