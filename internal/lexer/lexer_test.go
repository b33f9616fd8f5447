package lexer

import (
	"testing"

	"github.com/sarowish/dgeval/internal/token"
)

func scan(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New(src, "test")
	toks := l.ScanTokens()
	if l.HasErrors() {
		for _, e := range l.Errors() {
			t.Fatalf("unexpected lexer error: %v", e)
		}
	}
	return toks
}

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestScanOperatorsAndDelimiters(t *testing.T) {
	toks := scan(t, `a = 1 + 2 * (3 - 4) / 5; b == c != d <= e >= f && g || !h;`)
	got := types(toks)
	want := []token.Type{
		token.IDENT, token.ASSIGN, token.NUMBER, token.PLUS, token.NUMBER, token.STAR,
		token.LPAREN, token.NUMBER, token.MINUS, token.NUMBER, token.RPAREN, token.SLASH,
		token.NUMBER, token.SEMI,
		token.IDENT, token.EQ, token.IDENT, token.NEQ, token.IDENT, token.LE, token.IDENT,
		token.GE, token.IDENT, token.AND, token.IDENT, token.OR, token.BANG, token.IDENT,
		token.SEMI, token.EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanStringEscapes(t *testing.T) {
	toks := scan(t, `"line\nbreak\ttab\"quote"`)
	if toks[0].Type != token.STRING {
		t.Fatalf("expected STRING, got %s", toks[0].Type)
	}
	if want := "line\nbreak\ttab\"quote"; toks[0].Literal != want {
		t.Errorf("got %q, want %q", toks[0].Literal, want)
	}
}

func TestScanNumberForms(t *testing.T) {
	for _, src := range []string{"0", "42", "3.14", "1e10", "1.5e-3", "2E+2"} {
		toks := scan(t, src)
		if toks[0].Type != token.NUMBER || toks[0].Literal != src {
			t.Errorf("src %q: got %s %q", src, toks[0].Type, toks[0].Literal)
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := scan(t, "wait true false x1 _y")
	want := []token.Type{token.WAIT, token.TRUE, token.FALSE, token.IDENT, token.IDENT, token.EOF}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestLineCommentSkipped(t *testing.T) {
	toks := scan(t, "a; // trailing comment\nb;")
	got := types(toks)
	want := []token.Type{token.IDENT, token.SEMI, token.IDENT, token.SEMI, token.EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUnterminatedStringIsError(t *testing.T) {
	l := New(`"no closing quote`, "test")
	l.ScanTokens()
	if !l.HasErrors() {
		t.Fatal("expected an unterminated-string error")
	}
}

func TestUnexpectedCharacterIsError(t *testing.T) {
	l := New("a & b", "test")
	l.ScanTokens()
	if !l.HasErrors() {
		t.Fatal("expected an unexpected-character error for lone '&'")
	}
}
