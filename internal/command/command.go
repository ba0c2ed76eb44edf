// Package command implements the verb/clause command grammar of §4.G:
// a verb word (possibly abbreviated to an unambiguous prefix), followed
// by zero or more clauses introduced by registered prepositions.
package command

import (
	"sort"
	"strings"
)

// ClauseKind distinguishes how a clause's raw text should be interpreted
// downstream.
type ClauseKind int

const (
	// ClausePhrase is a noun phrase to be resolved via internal/world/match.
	ClausePhrase ClauseKind = iota
	// ClauseWord is a single bare token (a direction, a yes/no, …).
	ClauseWord
	// ClauseRest is free text taken verbatim (a tell message, a command to
	// a vendor, …).
	ClauseRest
)

// ClauseSpec declares one clause a verb accepts. Prepositions lists every
// introducing word a phrase clause accepts (`"with|using|through:tool"`
// parses to ["with","using","through"]); it is empty for the primary
// clause, which may follow the verb with no preposition at all, and for
// single-word/rest clauses, which are never preposition-introduced.
type ClauseSpec struct {
	Prepositions []string
	Kind         ClauseKind
}

// Preposition is the canonical (first-listed) preposition for this
// clause, used as the map key clause text is stored/retrieved under.
func (c ClauseSpec) Preposition() string {
	if len(c.Prepositions) == 0 {
		return ""
	}
	return c.Prepositions[0]
}

// Clause is one parsed clause: the raw text between its introducing
// preposition (or the verb, for the primary clause) and the next.
type Clause struct {
	Preposition string
	Text        string
}

// Verb is one registered command.
type Verb struct {
	Name    string
	Aliases []string
	Clauses []ClauseSpec
}

// Table is a sorted verb registry supporting unambiguous-prefix lookup
// (§4.G: "go" and "g" both resolve to "go" as long as no other verb
// shares that prefix).
type Table struct {
	entries []tableEntry
}

type tableEntry struct {
	word string
	verb *Verb
}

func NewTable() *Table { return &Table{} }

// Register adds a verb under its name and every alias.
func (t *Table) Register(v *Verb) {
	t.entries = append(t.entries, tableEntry{word: v.Name, verb: v})
	for _, a := range v.Aliases {
		t.entries = append(t.entries, tableEntry{word: a, verb: v})
	}
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].word < t.entries[j].word })
}

// ErrAmbiguous reports a verb prefix matched by more than one registered
// word with no exact match to break the tie. Error() renders the exact
// player-facing wording §8's scenario 1 specifies.
type ErrAmbiguous struct {
	Prefix  string
	Matches []string
}

func (e *ErrAmbiguous) Error() string {
	return "Ambiguous command \"" + e.Prefix + "\". Did you mean " + joinOr(e.Matches) + "?"
}

// joinOr renders ["gather","go"] as "gather or go" and ["a","b","c"] as
// "a, b, or c".
func joinOr(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	case 2:
		return words[0] + " or " + words[1]
	}
	return strings.Join(words[:len(words)-1], ", ") + ", or " + words[len(words)-1]
}

// Lookup resolves word to a registered Verb by exact match first, then by
// unambiguous prefix.
func (t *Table) Lookup(word string) (*Verb, error) {
	word = strings.ToLower(word)
	for _, e := range t.entries {
		if e.word == word {
			return e.verb, nil
		}
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].word >= word })
	var matches []tableEntry
	for j := i; j < len(t.entries) && strings.HasPrefix(t.entries[j].word, word); j++ {
		matches = append(matches, t.entries[j])
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) == 1 {
		return matches[0].verb, nil
	}
	uniqueVerbs := map[*Verb]bool{}
	for _, m := range matches {
		uniqueVerbs[m.verb] = true
	}
	if len(uniqueVerbs) == 1 {
		return matches[0].verb, nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.word
	}
	return nil, &ErrAmbiguous{Prefix: word, Matches: names}
}
