package lexer

import (
	"testing"

	"github.com/fuhsnn/widccgo/internal/diag"
	"github.com/fuhsnn/widccgo/internal/token"
)

func lexAll(t *testing.T, src string) []*token.Token {
	t.Helper()
	d := diag.NewReporter()
	l := New(d)
	f := &token.File{Name: "t.c", Text: src}
	var out []*token.Token
	for tok := l.Tokenize(f); tok.Kind != token.EOF; tok = tok.Next {
		out = append(out, tok)
	}
	if d.HasErrors() {
		t.Fatalf("unexpected lex errors: %v", d.Diagnostics())
	}
	return out
}

func TestLexIdentifiersAndKeywords(t *testing.T) {
	toks := lexAll(t, "int foo_bar return")
	want := []struct {
		kind token.Kind
		text string
	}{
		{token.KEYWORD, "int"},
		{token.IDENT, "foo_bar"},
		{token.KEYWORD, "return"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Name() != w.text {
			t.Fatalf("token %d: got (%v,%q), want (%v,%q)", i, toks[i].Kind, toks[i].Name(), w.kind, w.text)
		}
	}
}

func TestLexNumberLiterals(t *testing.T) {
	toks := lexAll(t, "42 0x1F 010 3.14")
	if toks[0].Num != 42 {
		t.Fatalf("got %d, want 42", toks[0].Num)
	}
	if toks[1].Num != 31 {
		t.Fatalf("got %d, want 31 (0x1F)", toks[1].Num)
	}
	if toks[2].Num != 8 {
		t.Fatalf("got %d, want 8 (octal 010)", toks[2].Num)
	}
	if !toks[3].IsFloat {
		t.Fatalf("expected 3.14 classified as float")
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks := lexAll(t, `"hi\n"`)
	if len(toks) != 1 || toks[0].Kind != token.STR {
		t.Fatalf("expected one string token, got %v", toks)
	}
	want := "hi\n\x00"
	if string(toks[0].Str) != want {
		t.Fatalf("got %q, want %q", toks[0].Str, want)
	}
}

func TestLexCharConstant(t *testing.T) {
	toks := lexAll(t, `'a'`)
	if len(toks) != 1 || toks[0].Num != int64('a') {
		t.Fatalf("got %+v", toks)
	}
}

func TestLexPunctuatorsLongestMatch(t *testing.T) {
	toks := lexAll(t, "a <<= b << c < d")
	names := []string{"a", "<<=", "b", "<<", "c", "<", "d"}
	if len(toks) != len(names) {
		t.Fatalf("got %d tokens %v, want %d", len(toks), toks, len(names))
	}
	for i, n := range names {
		if toks[i].Name() != n {
			t.Fatalf("token %d: got %q, want %q", i, toks[i].Name(), n)
		}
	}
}

func TestLexLineContinuation(t *testing.T) {
	toks := lexAll(t, "foo\\\nbar")
	if len(toks) != 2 || toks[1].AtBOL {
		t.Fatalf("expected bar to not be at start of a new logical line, got %+v", toks[1])
	}
}

func TestLexCommentsSkippedAsSpace(t *testing.T) {
	toks := lexAll(t, "a/* comment */b // trailing\nc")
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3", len(toks))
	}
	if !toks[1].HasSpace {
		t.Fatalf("expected b to have HasSpace after block comment")
	}
	if !toks[2].AtBOL {
		t.Fatalf("expected c to be at start of line after line comment")
	}
}

func TestAtBOLTracking(t *testing.T) {
	toks := lexAll(t, "a\nb c\n")
	if !toks[0].AtBOL || !toks[1].AtBOL || toks[2].AtBOL {
		t.Fatalf("AtBOL flags wrong: %v %v %v", toks[0].AtBOL, toks[1].AtBOL, toks[2].AtBOL)
	}
}

func TestRetokenizeSingleToken(t *testing.T) {
	l := New(diag.NewReporter())
	tmpl := &token.Token{Line: 3}
	first, rest, ok := l.Retokenize("foobar", tmpl)
	if !ok || first.Name() != "foobar" || rest.Kind != token.EOF {
		t.Fatalf("got first=%v rest=%v ok=%v", first, rest, ok)
	}
}

func TestRetokenizeRejectsMultipleTokens(t *testing.T) {
	l := New(diag.NewReporter())
	_, _, ok := l.Retokenize("foo bar", &token.Token{})
	if ok {
		t.Fatalf("expected retokenizing two idents to fail")
	}
}
