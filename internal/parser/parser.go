// Package parser implements the recursive-descent parser and semantic
// analyzer: declarations, expressions, statements, initializers, constant
// evaluation, and scope/symbol resolution (spec.md §4.3). It consumes the
// preprocessed token.Token stream from internal/cpp and produces the
// ast.Node/ast.Obj graph internal/codegen emits from.
package parser

import (
	"fmt"

	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/diag"
	"github.com/fuhsnn/widccgo/internal/token"
)

// StdVer names the -std=cNN language version (SPEC_FULL.md §7, main.c's
// opt_std). The driver derives __STDC_VERSION__ from it; the Parser stores
// it, but no parser production reads it.
type StdVer int

const (
	C89 StdVer = iota
	C99
	C11
	C17
	C23
)

// VarAttr carries declaration-specifier-level attributes threaded from
// declspec down to declarator, per widcc's VarAttr struct (parse.c).
type VarAttr struct {
	IsTypedef bool
	IsStatic  bool
	IsExtern  bool
	IsInline  bool
	IsTLS     bool
	Align     int
}

// Parser holds one translation unit's parsing state: current scope chain,
// global object list, label bookkeeping, and VLA chain fields mirroring
// widcc's file-scope globals, now owned by a value instead of package
// state (spec.md §9 REDESIGN FLAGS).
type Parser struct {
	Diag   *diag.Reporter
	StdVer StdVer

	scope    *ast.Scope
	globals  []*ast.Obj
	curFn    *ast.Obj

	labels   map[string]string // label name -> unique label, per function
	gotos    []*ast.Node
	labelUses []*ast.Node

	uniqueCounter int
}

// currentVLA returns the innermost VLA object live at the parser's
// current scope, per widcc's current_vla. It lives on ast.Scope rather
// than the Parser so that leaving a block scope automatically reverts to
// the enclosing scope's VLA chain (spec.md §4.3, §4.5).
func (p *Parser) currentVLA() *ast.Obj {
	return p.scope.CurrentVLA
}

// New returns a Parser ready to parse one translation unit.
func New(d *diag.Reporter, std StdVer) *Parser {
	p := &Parser{Diag: d, StdVer: std}
	p.scope = ast.NewScope(nil)
	return p
}

// Globals returns every file-scope object (function or variable)
// discovered so far, in declaration order.
func (p *Parser) Globals() []*ast.Obj { return p.globals }

func (p *Parser) errorf(tok *token.Token, format string, args ...any) {
	p.Diag.Errorf(tok, format, args...)
}

func (p *Parser) warnf(tok *token.Token, format string, args ...any) {
	p.Diag.Warnf(tok, format, args...)
}

// Parse runs the top-level translation-unit loop, per widcc's parse():
// repeatedly read a declaration specifier, then either a typedef, a
// function definition, or a list of global variable declarators.
func Parse(tok *token.Token, d *diag.Reporter, std StdVer) []*ast.Obj {
	p := New(d, std)
	for tok.Kind != token.EOF {
		attr := &VarAttr{}
		basety := p.declspec(&tok, tok, attr)

		if attr.IsTypedef {
			tok = p.parseTypedef(tok, basety)
			continue
		}

		if p.isFunction(tok) {
			tok = p.globalDeclaration(tok, basety, attr, true)
			continue
		}

		tok = p.globalDeclaration(tok, basety, attr, false)
	}
	p.resolveGotoLabels()
	return p.globals
}

// isFunction parses one declarator and checks whether its resulting type
// is a function type, per widcc's is_function. The declarator is parsed
// for real (not merely peeked) and its tokens are simply re-parsed by the
// caller afterward, matching the original's own double-parse of the lead
// declarator.
func (p *Parser) isFunction(tok *token.Token) bool {
	if equal(tok, ";") {
		return false
	}
	var nameTok *token.Token
	rest := tok
	ty := p.declarator(&rest, tok, ctype.Void, &nameTok)
	return ty.Kind == ctype.FUNC
}

func equal(tok *token.Token, s string) bool {
	return tok != nil && tok.Kind != token.EOF && tok.Name() == s
}

func (p *Parser) skip(rest **token.Token, tok *token.Token, s string) *token.Token {
	if !equal(tok, s) {
		p.errorf(tok, "expected %q", s)
		*rest = tok
		return tok
	}
	*rest = tok.Next
	return tok.Next
}

func consume(rest **token.Token, tok *token.Token, s string) bool {
	if equal(tok, s) {
		*rest = tok.Next
		return true
	}
	*rest = tok
	return false
}

// --- scope management ---

func (p *Parser) enterScope() {
	p.scope = ast.NewScope(p.scope)
}

func (p *Parser) enterTmpScope() {
	p.scope = ast.NewScope(p.scope)
	p.scope.IsTemporary = true
}

func (p *Parser) leaveScope() {
	p.scope = p.scope.Parent
}

func (p *Parser) findVar(tok *token.Token) *ast.ScopeVar {
	return p.scope.Lookup(tok.Name())
}

func (p *Parser) findTag(tok *token.Token) *ctype.Type {
	return p.scope.LookupTag(tok.Name())
}

func (p *Parser) pushScopeVar(name string) *ast.ScopeVar {
	sv := &ast.ScopeVar{}
	p.scope.Vars[name] = sv
	return sv
}

func (p *Parser) pushTagScope(name string, ty *ctype.Type) {
	p.scope.Tags[name] = ty
}

func (p *Parser) findTypedef(tok *token.Token) *ctype.Type {
	if tok.Kind != token.IDENT {
		return nil
	}
	if sv := p.findVar(tok); sv != nil && sv.IsTypedef {
		return sv.Typedef
	}
	return nil
}

// --- object construction, per widcc's new_var/new_lvar/new_gvar family ---

func (p *Parser) newVar(name string, ty *ctype.Type) *ast.Obj {
	v := &ast.Obj{Kind: ast.ObjVar, Name: name, Type: ty}
	sv := p.pushScopeVar(name)
	sv.Obj = v
	return v
}

func (p *Parser) newLvar(name string, ty *ctype.Type) *ast.Obj {
	v := p.newVar(name, ty)
	v.IsLocal = true
	if p.curFn != nil {
		p.curFn.Locals = append(p.curFn.Locals, v)
	}
	return v
}

func (p *Parser) newGvar(name string, ty *ctype.Type) *ast.Obj {
	v := p.newVar(name, ty)
	v.IsDefinition = true
	p.globals = append(p.globals, v)
	return v
}

func (p *Parser) newUniqueName() string {
	p.uniqueCounter++
	return fmt.Sprintf(".L..%d", p.uniqueCounter)
}

func (p *Parser) newAnonGvar(ty *ctype.Type) *ast.Obj {
	return p.newGvar(p.newUniqueName(), ty)
}

func (p *Parser) newStringLiteral(str []byte) *ast.Obj {
	ty := ctype.ArrayOf(ctype.Char, len(str))
	v := p.newAnonGvar(ty)
	v.InitBytes = append([]byte(nil), str...)
	v.IsStatic = true
	return v
}

func (p *Parser) newStaticLvar(ty *ctype.Type) *ast.Obj {
	v := &ast.Obj{Kind: ast.ObjVar, Name: p.newUniqueName(), Type: ty, IsLocal: false, IsStatic: true, IsDefinition: true}
	p.globals = append(p.globals, v)
	if p.curFn != nil {
		p.curFn.StaticLocals = append(p.curFn.StaticLocals, v)
	}
	return v
}

func getIdent(tok *token.Token) string {
	if tok.Kind != token.IDENT {
		return ""
	}
	return tok.Name()
}

// --- AST node construction helpers, per widcc's new_node/new_binary/... ---

func newNode(op ast.Op, tok *token.Token) *ast.Node {
	return &ast.Node{Op: op, Tok: tok}
}

func newBinary(op ast.Op, lhs, rhs *ast.Node, tok *token.Token) *ast.Node {
	return &ast.Node{Op: op, Lhs: lhs, Rhs: rhs, Tok: tok}
}

func newUnary(op ast.Op, expr *ast.Node, tok *token.Token) *ast.Node {
	return &ast.Node{Op: op, Lhs: expr, Tok: tok}
}

func newNum(val int64, tok *token.Token) *ast.Node {
	n := newNode(ast.OpNum, tok)
	n.IntVal = val
	n.Type = ctype.Int
	return n
}

func newLong(val int64, tok *token.Token) *ast.Node {
	n := newNode(ast.OpNum, tok)
	n.IntVal = val
	n.Type = ctype.Long
	return n
}

func (p *Parser) newVarNode(v *ast.Obj, tok *token.Token) *ast.Node {
	n := newNode(ast.OpVar, tok)
	n.Var = v
	n.Type = v.Type
	n.TopVLA = p.currentVLA()
	return n
}

func chainExpr(lhs **ast.Node, rhs *ast.Node) {
	if rhs == nil {
		return
	}
	if *lhs == nil {
		*lhs = rhs
		return
	}
	c := newBinary(ast.OpChain, nil, rhs, rhs.Tok)
	c.Lhs = *lhs
	*lhs = c
}
