package ast

import (
	"testing"

	"github.com/fuhsnn/widccgo/internal/ctype"
)

func TestScopeLookupWalksParents(t *testing.T) {
	file := NewScope(nil)
	fn := NewScope(file)
	block := NewScope(fn)

	file.Vars["g"] = &ScopeVar{Obj: &Obj{Name: "g", Type: ctype.Int}}

	if block.Lookup("g") == nil {
		t.Fatalf("expected to find file-scope variable from nested block")
	}
	if block.Lookup("missing") != nil {
		t.Fatalf("expected nil for undeclared name")
	}
}

func TestScopeShadowing(t *testing.T) {
	outer := NewScope(nil)
	inner := NewScope(outer)

	outer.Vars["x"] = &ScopeVar{Obj: &Obj{Name: "x", Type: ctype.Int}}
	inner.Vars["x"] = &ScopeVar{Obj: &Obj{Name: "x", Type: ctype.Double}}

	v := inner.Lookup("x")
	if v.Obj.Type != ctype.Double {
		t.Fatalf("inner scope binding must shadow outer")
	}
	if outer.Lookup("x").Obj.Type != ctype.Int {
		t.Fatalf("outer scope binding must be unaffected by inner shadow")
	}
}

func TestScopeInheritsCurrentVLA(t *testing.T) {
	outer := NewScope(nil)
	vla := &Obj{Name: "vla_size"}
	outer.CurrentVLA = vla
	inner := NewScope(outer)
	if inner.CurrentVLA != vla {
		t.Fatalf("child scope must inherit CurrentVLA from parent at creation time")
	}
}

func TestLookupTag(t *testing.T) {
	file := NewScope(nil)
	block := NewScope(file)
	st := ctype.NewStructType(nil, false)
	file.Tags["Point"] = st
	if block.LookupTag("Point") != st {
		t.Fatalf("expected nested scope to find file-scope tag")
	}
}
