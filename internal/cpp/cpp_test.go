package cpp

import (
	"testing"

	"github.com/fuhsnn/widccgo/internal/diag"
	"github.com/fuhsnn/widccgo/internal/token"
)

// lx is a tiny hand-rolled tokenizer sufficient for these tests: it splits
// on whitespace/newlines and treats common C punctuators as their own
// tokens, without needing internal/lexer. Real token production is the
// lexer's job; these tests only exercise the cpp package's own logic.
func lx(src string) *token.Token {
	f := &token.File{Name: "test.c", Text: src}
	var toks []*token.Token
	atBOL := true
	i := 0
	puncts := []string{"##", "...", "<=", ">=", "==", "!=", "&&", "||", "<<", ">>",
		"(", ")", ",", "#", "<", ">", "+", "-", "*", "/", "%", "&", "|", "^", "~", "!", "?", ":", ";"}
	hasSpace := false
	for i < len(src) {
		ch := src[i]
		if ch == '\n' {
			atBOL = true
			hasSpace = true
			i++
			continue
		}
		if ch == ' ' || ch == '\t' {
			hasSpace = true
			i++
			continue
		}
		start := i
		var kind token.Kind
		var matched string
		if ch == '"' {
			j := i + 1
			for j < len(src) && src[j] != '"' {
				j++
			}
			body := src[i+1 : j]
			t := &token.Token{Kind: token.STR, File: f, Text: src[i : j+1], Line: 1, AtBOL: atBOL, HasSpace: hasSpace}
			t.Str = append([]byte(body), 0)
			toks = append(toks, t)
			atBOL, hasSpace = false, false
			i = j + 1
			continue
		}
		for _, p := range puncts {
			if i+len(p) <= len(src) && src[i:i+len(p)] == p {
				matched = p
				break
			}
		}
		if matched != "" {
			kind = token.PUNCT
			i += len(matched)
		} else if isDigit(ch) {
			kind = token.NUM
			for i < len(src) && (isAlnum(src[i])) {
				i++
			}
			matched = src[start:i]
		} else if isIdentStart(ch) {
			kind = token.IDENT
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			matched = src[start:i]
		} else {
			i++
			continue
		}
		t := &token.Token{Kind: kind, File: f, Text: matched, Line: 1, AtBOL: atBOL, HasSpace: hasSpace}
		t.SetName(matched)
		if kind == token.NUM {
			t.Num = parseNum(matched)
		}
		toks = append(toks, t)
		atBOL = false
		hasSpace = false
	}
	head := &token.Token{}
	cur := head
	for _, t := range toks {
		cur.Next = t
		cur = cur.Next
	}
	cur.Next = token.NewEOF(cur)
	return head.Next
}

func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isIdentPart(b byte) bool  { return isIdentStart(b) || isDigit(b) }
func isAlnum(b byte) bool      { return isIdentPart(b) }

func parseNum(s string) int64 {
	var v int64
	for i := 0; i < len(s) && isDigit(s[i]); i++ {
		v = v*10 + int64(s[i]-'0')
	}
	return v
}

func dump(tok *token.Token) []string {
	var out []string
	for tok != nil && tok.Kind != token.EOF {
		out = append(out, tok.Name())
		tok = tok.Next
	}
	return out
}

type stubIncluder struct {
	files map[string]string
}

func (s *stubIncluder) ResolveQuote(cur *token.File, name string) (string, string, bool) {
	t, ok := s.files[name]
	return name, t, ok
}
func (s *stubIncluder) ResolveAngle(name string) (string, string, bool) {
	t, ok := s.files[name]
	return name, t, ok
}
func (s *stubIncluder) ResolveNext(cur *token.File, name string) (string, string, bool) {
	t, ok := s.files[name]
	return name, t, ok
}

func newTestContext() *Context {
	c := NewContext(&stubIncluder{files: map[string]string{}}, diag.NewReporter())
	c.SetFileLexer(func(f *token.File) *token.Token {
		first := lx(f.Text)
		for t := first; t != nil; t = t.Next {
			t.File = f
		}
		return first
	})
	return c
}

func eqSlice(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestObjLikeMacroExpansion(t *testing.T) {
	c := newTestContext()
	c.DefineObjLike("FOO", lx("1 + 2"))
	out := c.Preprocess(lx("FOO * 3"))
	eqSlice(t, dump(out), []string{"1", "+", "2", "*", "3"})
}

func TestFuncLikeMacroExpansion(t *testing.T) {
	c := newTestContext()
	c.DefineFuncLike("ADD", []string{"a", "b"}, "", lx("(a) + (b)"))
	out := c.Preprocess(lx("ADD(1, 2)"))
	eqSlice(t, dump(out), []string{"(", "1", ")", "+", "(", "2", ")"})
}

func TestSelfReferentialMacroDoesNotRecurse(t *testing.T) {
	c := newTestContext()
	c.DefineObjLike("X", lx("X + 1"))
	out := c.Preprocess(lx("X"))
	eqSlice(t, dump(out), []string{"X", "+", "1"})
}

func TestStringizeOperator(t *testing.T) {
	c := newTestContext()
	c.DefineFuncLike("STR", []string{"x"}, "", lx("#x"))
	out := c.Preprocess(lx("STR(hello)"))
	if len(dump(out)) != 1 || out.Kind != token.STR {
		t.Fatalf("expected one string token, got %v kind=%v", dump(out), out.Kind)
	}
	if string(out.Str) != "hello\x00" {
		t.Fatalf("got Str=%q", out.Str)
	}
}

func TestTokenPasteOperator(t *testing.T) {
	c := newTestContext()
	c.retokenize = func(text string, tmpl *token.Token) (*token.Token, *token.Token, bool) {
		tok := lx(text)
		if tok.Next.Kind != token.EOF {
			return tok, tok.Next, true
		}
		return tok, nil, true
	}
	c.DefineFuncLike("CAT", []string{"a", "b"}, "", lx("a##b"))
	out := c.Preprocess(lx("CAT(foo, bar)"))
	eqSlice(t, dump(out), []string{"foobar"})
}

func TestIfdefTakesDefinedBranch(t *testing.T) {
	c := newTestContext()
	c.DefineObjLike("FEATURE", lx("1"))
	out := c.Preprocess(lx("#ifdef FEATURE\nyes\n#else\nno\n#endif\n"))
	eqSlice(t, dump(out), []string{"yes"})
}

func TestIfdefTakesElseBranch(t *testing.T) {
	c := newTestContext()
	out := c.Preprocess(lx("#ifdef FEATURE\nyes\n#else\nno\n#endif\n"))
	eqSlice(t, dump(out), []string{"no"})
}

func TestIfArithmeticEvaluation(t *testing.T) {
	c := newTestContext()
	out := c.Preprocess(lx("#if 1 + 2 * 3 == 7\nok\n#endif\n"))
	eqSlice(t, dump(out), []string{"ok"})
}

func TestIfDefinedOperator(t *testing.T) {
	c := newTestContext()
	c.DefineObjLike("FOO", lx("1"))
	out := c.Preprocess(lx("#if defined(FOO) && !defined(BAR)\nok\n#endif\n"))
	eqSlice(t, dump(out), []string{"ok"})
}

func TestNestedConditionalSkipping(t *testing.T) {
	c := newTestContext()
	out := c.Preprocess(lx("#if 0\n#if 1\nhidden\n#endif\nstill_hidden\n#endif\nvisible\n"))
	eqSlice(t, dump(out), []string{"visible"})
}

func TestUndefRemovesMacro(t *testing.T) {
	c := newTestContext()
	c.DefineObjLike("FOO", lx("1"))
	out := c.Preprocess(lx("#undef FOO\n#ifdef FOO\nyes\n#else\nno\n#endif\n"))
	eqSlice(t, dump(out), []string{"no"})
}

func TestVariadicMacroCommaElision(t *testing.T) {
	c := newTestContext()
	c.DefineFuncLike("LOG", []string{"fmt"}, "__VA_ARGS__", lx("f(fmt, ##__VA_ARGS__)"))
	out := c.Preprocess(lx("LOG(\"hi\")"))
	eqSlice(t, dump(out), []string{"f", "(", "\"hi\"", ")"})
}

func TestIncludeSplicesFileContents(t *testing.T) {
	c := newTestContext()
	c.Includer = &stubIncluder{files: map[string]string{"a.h": "42\n"}}
	out := c.Preprocess(lx("#include \"a.h\"\nrest\n"))
	eqSlice(t, dump(out), []string{"42", "rest"})
}

func TestPragmaOnceSkipsSecondInclude(t *testing.T) {
	c := newTestContext()
	c.Includer = &stubIncluder{files: map[string]string{"a.h": "#pragma once\nbody\n"}}
	out := c.Preprocess(lx("#include \"a.h\"\n#include \"a.h\"\n"))
	eqSlice(t, dump(out), []string{"body"})
}

func TestCounterIncrementsPerUse(t *testing.T) {
	c := newTestContext()
	out := c.Preprocess(lx("__COUNTER__ __COUNTER__ __COUNTER__"))
	eqSlice(t, dump(out), []string{"0", "1", "2"})
}

func strTok(s string) *token.Token {
	return &token.Token{Kind: token.STR, Text: `"` + s + `"`, Str: append([]byte(s), 0), AtBOL: false}
}

func TestConcatAdjacentStrings(t *testing.T) {
	c := newTestContext()
	a, b := strTok("a"), strTok("b")
	a.Next = b
	b.Next = token.NewEOF(b)
	out := c.concatAdjacentStrings(a)
	if string(out.Str) != "ab\x00" {
		t.Fatalf("got %q", out.Str)
	}
}
