// Package match resolves a player's noun phrase ("rusty sword", "2nd
// torch") against the entities visible from a scope: a location's
// contents and exits plus an avatar's own inventory and equipped items
// (§4.K). Articles such as "the" are not stripped: every word after an
// optional leading ordinal has to appear in the entity's name.
package match

import (
	"strconv"
	"strings"

	"github.com/ehrlich-b/mudcore/internal/world/entity"
)

// Result is the outcome of resolving one noun phrase.
type Result struct {
	Match      *entity.Entity
	Candidates []*entity.Entity // populated only when ambiguous
}

var ordinals = map[string]int{
	"1st": 1, "first": 1,
	"2nd": 2, "second": 2,
	"3rd": 3, "third": 3,
	"4th": 4, "fourth": 4,
	"5th": 5, "fifth": 5,
}

// Scope is everything a phrase can be matched against from a given
// observer's point of view.
func Scope(observer *entity.Entity) []*entity.Entity {
	var out []*entity.Entity
	if observer.Container != nil {
		out = append(out, observer.Container.Contents...)
		out = append(out, observer.Container.Exits...)
	}
	out = append(out, observer.Inventory...)
	for _, item := range observer.Equipped {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

// Resolve matches phrase against candidates. An empty match means no
// candidate's name contains every remaining word, or the ordinal is
// larger than the number of matching candidates; len(Candidates) > 1
// means the phrase needs disambiguation (e.g. "sword" with two swords
// present and no ordinal given).
func Resolve(phrase string, candidates []*entity.Entity) Result {
	words := strings.Fields(strings.ToLower(phrase))
	if len(words) == 0 {
		return Result{}
	}

	ordinal := 0
	if n, ok := ordinals[words[0]]; ok {
		ordinal = n
		words = words[1:]
	} else if n, err := strconv.Atoi(strings.TrimSuffix(words[0], ".")); err == nil && len(words) > 1 {
		ordinal = n
		words = words[1:]
	}
	if len(words) == 0 {
		return Result{}
	}

	var exact, prefix []*entity.Entity
	for _, c := range candidates {
		name := strings.ToLower(c.Name)
		if containsAllWords(name, words) {
			exact = append(exact, c)
			continue
		}
		if containsAnyPrefix(name, words) {
			prefix = append(prefix, c)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = prefix
	}
	if len(pool) == 0 {
		return Result{}
	}
	if ordinal > 0 {
		if ordinal > len(pool) {
			return Result{}
		}
		return Result{Match: pool[ordinal-1]}
	}
	if len(pool) == 1 {
		return Result{Match: pool[0]}
	}
	return Result{Candidates: pool}
}

func containsAllWords(name string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(name, w) {
			return false
		}
	}
	return true
}

func containsAnyPrefix(name string, words []string) bool {
	nameWords := strings.Fields(name)
	for _, w := range words {
		matched := false
		for _, nw := range nameWords {
			if strings.HasPrefix(nw, w) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
