package command

import "testing"

func newScenarioTable() *Table {
	t := NewTable()
	t.Register(&Verb{Name: "go"})
	t.Register(&Verb{Name: "gather"})
	return t
}

// TestVerbDisambiguation transcribes §8 scenario 1: "g" between "go" and
// "gather" is ambiguous, "go" and "gat" each resolve unambiguously.
func TestVerbDisambiguation(t *testing.T) {
	tbl := newScenarioTable()

	_, err := tbl.Lookup("g")
	amb, ok := err.(*ErrAmbiguous)
	if !ok {
		t.Fatalf("Lookup(g) err = %v, want *ErrAmbiguous", err)
	}
	const want = `Ambiguous command "g". Did you mean gather or go?`
	if amb.Error() != want {
		t.Errorf("Lookup(g) error = %q, want %q", amb.Error(), want)
	}

	v, err := tbl.Lookup("go")
	if err != nil || v == nil || v.Name != "go" {
		t.Fatalf("Lookup(go) = %v, %v, want the go verb", v, err)
	}

	v, err = tbl.Lookup("gat")
	if err != nil || v == nil || v.Name != "gather" {
		t.Fatalf("Lookup(gat) = %v, %v, want the gather verb", v, err)
	}
}

// newLookTable builds the grammar of §8 scenario 2 for the
// TestPrepositionalBinding* tests: "look at:target with|using|through:tool".
func newLookTable() *Table {
	t := NewTable()
	t.Register(&Verb{
		Name: "look",
		Clauses: []ClauseSpec{
			{Prepositions: []string{"at"}, Kind: ClausePhrase}, // target clause, introduced by "at"
			{Prepositions: []string{"with", "using", "through"}, Kind: ClausePhrase},
		},
	})
	return t
}

func TestPrepositionalBindingFullPhrase(t *testing.T) {
	tbl := newLookTable()
	cmd, err := Parse(tbl, "look at red door with key")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Clauses["at"] != "red door" {
		t.Errorf("target clause = %q, want %q", cmd.Clauses["at"], "red door")
	}
	if cmd.Clauses["with"] != "key" {
		t.Errorf("with clause = %q, want %q", cmd.Clauses["with"], "key")
	}
}

func TestPrepositionalBindingToolOnly(t *testing.T) {
	tbl := newLookTable()
	cmd, err := Parse(tbl, "look with torch")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := cmd.Clauses["at"]; ok {
		t.Errorf("expected no target clause, got %q", cmd.Clauses["at"])
	}
	if cmd.Clauses["with"] != "torch" {
		t.Errorf("with clause = %q, want %q", cmd.Clauses["with"], "torch")
	}
}

func TestPrepositionalBindingBareVerb(t *testing.T) {
	tbl := newLookTable()
	cmd, err := Parse(tbl, "look")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cmd.Clauses) != 0 {
		t.Errorf("expected no clauses for a bare verb, got %v", cmd.Clauses)
	}
}

// TestUnknownVerb transcribes the "Unknown command." boundary behavior.
func TestUnknownVerb(t *testing.T) {
	tbl := newScenarioTable()
	_, err := Parse(tbl, "frobnicate the widget")
	if err == nil {
		t.Fatal("expected an error for an unregistered verb")
	}
	if err.Error() != "Unknown command." {
		t.Errorf("error = %q, want %q", err.Error(), "Unknown command.")
	}
}

// TestInputLengthCapSilentlyDropped transcribes §8's boundary behavior:
// input over MaxInputLength yields ErrTooLong, the one Parse error callers
// drop without telling the player.
func TestInputLengthCapSilentlyDropped(t *testing.T) {
	tbl := newScenarioTable()
	line := make([]byte, MaxInputLength+1)
	for i := range line {
		line[i] = 'x'
	}
	_, err := Parse(tbl, string(line))
	if _, ok := err.(ErrTooLong); !ok {
		t.Fatalf("Parse(overlong) err = %v, want ErrTooLong", err)
	}
}

func TestAmbiguousVerbJoinWordingThreeWay(t *testing.T) {
	tbl := NewTable()
	tbl.Register(&Verb{Name: "alpha"})
	tbl.Register(&Verb{Name: "albatross"})
	tbl.Register(&Verb{Name: "almanac"})

	_, err := tbl.Lookup("al")
	amb, ok := err.(*ErrAmbiguous)
	if !ok {
		t.Fatalf("Lookup(al) err = %v, want *ErrAmbiguous", err)
	}
	const want = `Ambiguous command "al". Did you mean albatross, almanac, or alpha?`
	if amb.Error() != want {
		t.Errorf("Lookup(al) error = %q, want %q", amb.Error(), want)
	}
}
