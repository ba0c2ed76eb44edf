package lexer

import (
	"testing"

	"github.com/ehrlich-b/mudcore/internal/lang/token"
)

func tokenize(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New(src)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF || tok.Kind == token.Error {
			break
		}
	}
	return toks
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestPunctuationAndOperators(t *testing.T) {
	toks := tokenize(t, `( ) [ ] { } : , . @ + - * / % += -= *= /= %= = == != < <= > >= ! -> `)
	want := []token.Kind{
		token.LParen, token.RParen, token.LBracket, token.RBracket, token.LBrace, token.RBrace,
		token.Colon, token.Comma, token.Dot, token.At,
		token.Plus, token.Minus, token.Star, token.Slash, token.Percent,
		token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq, token.PercentEq,
		token.Assign, token.Eq, token.NotEq, token.Lt, token.LtEq, token.Gt, token.GtEq,
		token.Bang, token.Arrow, token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestKeywordsAndIdents(t *testing.T) {
	toks := tokenize(t, `def allow before when after phase func if else while for in let var await return fallthrough nil true false oneway to and or myVar _priv2`)
	kindsGot := kinds(toks)
	wantKinds := []token.Kind{
		token.KwDef, token.KwAllow, token.KwBefore, token.KwWhen, token.KwAfter, token.KwPhase,
		token.KwFunc, token.KwIf, token.KwElse, token.KwWhile, token.KwFor, token.KwIn,
		token.KwLet, token.KwVar, token.KwAwait, token.KwReturn, token.KwFallthrough,
		token.KwNil, token.KwTrue, token.KwFalse, token.KwOneway, token.KwTo,
		token.KwAnd, token.KwOr, token.Ident, token.Ident, token.EOF,
	}
	if len(kindsGot) != len(wantKinds) {
		t.Fatalf("got %d, want %d", len(kindsGot), len(wantKinds))
	}
	for i := range wantKinds {
		if kindsGot[i] != wantKinds[i] {
			t.Errorf("token %d: got %v want %v", i, kindsGot[i], wantKinds[i])
		}
	}
}

func TestNumberAndSymbol(t *testing.T) {
	toks := tokenize(t, `42 3.5 'foo`)
	if toks[0].Kind != token.Number || toks[0].Num != 42 {
		t.Errorf("got %+v", toks[0])
	}
	if toks[1].Kind != token.Number || toks[1].Num != 3.5 {
		t.Errorf("got %+v", toks[1])
	}
	if toks[2].Kind != token.Symbol || toks[2].Literal != "foo" {
		t.Errorf("got %+v", toks[2])
	}
}

func TestSingleLineStringEscapes(t *testing.T) {
	toks := tokenize(t, `"hi\n\"there\""`)
	if toks[0].Kind != token.String {
		t.Fatalf("got %+v", toks[0])
	}
	want := "hi\n\"there\""
	if toks[0].Literal != want {
		t.Errorf("got %q, want %q", toks[0].Literal, want)
	}
}

func TestSingleLineStringNewlineIsError(t *testing.T) {
	toks := tokenize(t, "\"abc\ndef\"")
	if toks[0].Kind != token.Error {
		t.Fatalf("expected error token, got %+v", toks[0])
	}
}

func TestTripleQuotedString(t *testing.T) {
	src := "\"\"\"\n    Hello,\n    world.\n    \"\"\"\n"
	toks := tokenize(t, src)
	if toks[0].Kind != token.String {
		t.Fatalf("got %+v", toks[0])
	}
	want := "Hello,\nworld."
	if toks[0].Literal != want {
		t.Errorf("got %q, want %q", toks[0].Literal, want)
	}
}

func TestTripleQuotedStringBadOpener(t *testing.T) {
	toks := tokenize(t, "\"\"\" not a newline\n\"\"\"\n")
	if toks[0].Kind != token.Error {
		t.Fatalf("expected error, got %+v", toks[0])
	}
}

func TestComments(t *testing.T) {
	toks := tokenize(t, "1 // comment\n/* block\ncomment */ 2")
	if toks[0].Kind != token.Number || toks[0].Num != 1 {
		t.Fatalf("got %+v", toks[0])
	}
	if toks[1].Kind != token.Number || toks[1].Num != 2 {
		t.Fatalf("got %+v", toks[1])
	}
}

func TestLineTracking(t *testing.T) {
	toks := tokenize(t, "1\n2\n3")
	for i, want := range []int{1, 2, 3} {
		if toks[i].Line != want {
			t.Errorf("token %d: line = %d, want %d", i, toks[i].Line, want)
		}
	}
}
