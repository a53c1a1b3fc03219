package token

import "testing"

func TestSetNameInterning(t *testing.T) {
	a := &Token{Kind: IDENT}
	b := &Token{Kind: IDENT}
	a.SetName("foo")
	b.SetName("foo")
	if a.NameID != b.NameID {
		t.Fatalf("expected interned ids to match, got %d and %d", a.NameID, b.NameID)
	}
	if a.Name() != "foo" {
		t.Fatalf("Name() = %q, want foo", a.Name())
	}
}

func TestIs(t *testing.T) {
	tok := &Token{Kind: PUNCT}
	tok.SetName("(")
	if !tok.Is("(") {
		t.Fatalf("expected Is(\"(\") to be true")
	}
	if tok.Is(")") {
		t.Fatalf("expected Is(\")\") to be false")
	}
	eof := &Token{Kind: EOF}
	if eof.Is("(") {
		t.Fatalf("EOF token must never match Is")
	}
}

func TestCopyClearsNext(t *testing.T) {
	a := &Token{Kind: IDENT, Text: "a"}
	b := &Token{Kind: IDENT, Text: "b"}
	a.Next = b
	c := a.Copy()
	if c.Next != nil {
		t.Fatalf("Copy must clear Next")
	}
	if c.Text != "a" {
		t.Fatalf("Copy must preserve fields")
	}
}

func TestNewEOFAtBOL(t *testing.T) {
	tok := &Token{Kind: IDENT, Text: "x", AtBOL: false}
	eof := NewEOF(tok)
	if eof.Kind != EOF || !eof.AtBOL {
		t.Fatalf("NewEOF must produce an at_bol EOF token")
	}
}

func TestPosWithLineControl(t *testing.T) {
	f := &File{Name: "a.c", Num: 1}
	tok := &Token{Kind: IDENT, File: f, Line: 10}
	if tok.Pos() != "a.c:10" {
		t.Fatalf("Pos() = %q", tok.Pos())
	}
	tok.DisplayFile = "b.h"
	tok.DisplayLine = 3
	if tok.Pos() != "b.h:3" {
		t.Fatalf("Pos() with display override = %q", tok.Pos())
	}
}
