package command

import "strings"

// MaxInputLength is the hard cap on a single command line, per §4.G/§8:
// anything longer is silently dropped rather than parsed or reported.
const MaxInputLength = 1000

// ErrTooLong reports that the input exceeded MaxInputLength. Callers must
// not surface this to the player at all (§8: "silently dropped"), unlike
// every other Parse error.
type ErrTooLong struct{}

func (ErrTooLong) Error() string { return "input exceeds the command length cap" }

// ErrUnknownVerb reports a candidate verb with no registered word or
// prefix match. Error() renders the exact §8 wording.
type ErrUnknownVerb struct{ Word string }

func (ErrUnknownVerb) Error() string { return "Unknown command." }

// ParsedCommand is one fully split input line: the resolved verb plus the
// text assigned to each of its declared clauses, keyed by the clause's
// canonical (first-listed) preposition ("" for the primary clause).
type ParsedCommand struct {
	Verb    *Verb
	Clauses map[string]string
}

// Parse splits line into a verb word and clause text per the verb's
// registered ClauseSpecs, scanning left to right for the first occurrence
// of any of a clause's declared prepositions as a standalone word. A line
// over MaxInputLength yields ErrTooLong, which callers drop silently; a
// blank line yields (nil, nil).
func Parse(t *Table, line string) (*ParsedCommand, error) {
	if len(line) > MaxInputLength {
		return nil, ErrTooLong{}
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	fields := strings.Fields(line)
	verb, err := t.Lookup(fields[0])
	if err != nil {
		return nil, err
	}
	if verb == nil {
		return nil, ErrUnknownVerb{Word: fields[0]}
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	clauses := map[string]string{}
	if len(verb.Clauses) == 0 {
		if rest != "" {
			clauses[""] = rest
		}
		return &ParsedCommand{Verb: verb, Clauses: clauses}, nil
	}

	type cut struct {
		clause ClauseSpec
		prep   string
		pos    int
	}
	var cuts []cut
	lower := strings.ToLower(rest)
	for _, cs := range verb.Clauses {
		if len(cs.Prepositions) == 0 {
			continue
		}
		// a clause introduced by several alternative prepositions binds at
		// whichever one occurs first in the input.
		best, bestPrep := -1, ""
		for _, prep := range cs.Prepositions {
			pos := findWord(lower, prep)
			if pos >= 0 && (best < 0 || pos < best) {
				best, bestPrep = pos, prep
			}
		}
		if best >= 0 {
			cuts = append(cuts, cut{clause: cs, prep: bestPrep, pos: best})
		}
	}
	if len(cuts) == 0 {
		if rest != "" {
			clauses[""] = rest
		}
		return &ParsedCommand{Verb: verb, Clauses: clauses}, nil
	}

	// sort cuts by position so each segment is bounded by the next cut.
	for i := 1; i < len(cuts); i++ {
		for j := i; j > 0 && cuts[j].pos < cuts[j-1].pos; j-- {
			cuts[j], cuts[j-1] = cuts[j-1], cuts[j]
		}
	}

	primary := strings.TrimSpace(rest[:cuts[0].pos])
	if primary != "" {
		clauses[""] = primary
	}
	for i, c := range cuts {
		start := c.pos + len(c.prep)
		end := len(rest)
		if i+1 < len(cuts) {
			end = cuts[i+1].pos
		}
		text := strings.TrimSpace(rest[start:end])
		if text != "" {
			clauses[c.clause.Preposition()] = text
		}
	}
	return &ParsedCommand{Verb: verb, Clauses: clauses}, nil
}

// findWord finds word as a standalone word in s, returning -1 if absent.
func findWord(s, word string) int {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return -1
		}
		pos := idx + i
		before := pos == 0 || s[pos-1] == ' '
		afterPos := pos + len(word)
		after := afterPos == len(s) || s[afterPos] == ' '
		if before && after {
			return pos
		}
		idx = pos + 1
	}
}
