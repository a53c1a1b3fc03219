// Package ast defines the AST node, symbol (Obj), scope, and relocation
// types shared between the parser and the code generator (spec.md §3).
// Kinds are expressed as a sum type (one variant struct per kind) per the
// REDESIGN FLAGS in spec.md §9, with the shared fields (token, result
// type) pulled into the outer Node and kind-specific data in Kind-named
// fields, discriminated by Op.
package ast

import (
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/token"
)

// Op is the tag of an AST Node.
type Op int

const (
	// Arithmetic/logical/comparison
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr
	OpLogAnd
	OpLogOr
	OpLogNot
	OpEq
	OpNe
	OpLt
	OpLe

	// Control
	OpIf
	OpFor
	OpDo
	OpSwitch
	OpCase
	OpBlock
	OpReturn
	OpGoto
	OpGotoComputed
	OpLabel
	OpLabelVal
	OpBreak
	OpContinue

	// Expression
	OpVar
	OpNum
	OpMember
	OpDeref
	OpAddr
	OpAssign
	OpComma
	OpChain
	OpCast
	OpCond
	OpFuncall
	OpStmtExpr
	OpCompoundLit
	OpMemzero
	OpAlloca
	OpVaStart
	OpVaCopy
	OpVaArg

	// Special markers
	OpNullExpr
	OpExprStmt
	OpAsm
)

// Node is one AST node. Tok carries the source token for diagnostics;
// Type is filled by semantic analysis and is non-nil for every
// expression node once analysis completes (spec.md §8 invariant).
type Node struct {
	Op   Op
	Tok  *token.Token
	Type *ctype.Type

	Lhs, Rhs *Node
	Cond, Then, Else *Node
	Body     *Node // block/for/stmt-expr body (linked via Next)
	Init     *Node
	Inc      *Node
	Next     *Node // statement-list / block chaining

	Var    *Obj
	Member *ctype.Member

	// Numeric literal payload (OpNum).
	IntVal   int64
	FloatVal float64

	// Function call (OpFuncall).
	FuncName string
	Args     []*Node
	FuncType *ctype.Type

	// Label/goto bookkeeping (spec.md §4.5).
	Label      string
	UniqueLabel string
	TargetVLA  *Obj // VLA whose %rsp snapshot must be restored before this jump
	TopVLA     *Obj // the VLA scope in effect at this node's source point

	// case/switch
	CaseBegin, CaseEnd int64
	CaseLabel          string

	// compound literal / memzero
	CompoundInit *Node
}

// ObjKind distinguishes a function from a variable.
type ObjKind int

const (
	ObjVar ObjKind = iota
	ObjFunc
)

// Relocation is one byte offset inside a global initializer that refers
// to another symbol plus an addend (spec.md §3 Relocation).
type Relocation struct {
	Offset int
	Name   string
	Addend int64
}

// Obj is a named or anonymous symbol: a local/global variable or a
// function (spec.md §3 Object). Role flags mirror the spec exactly.
type Obj struct {
	Kind ObjKind
	Name string
	Type *ctype.Type
	Tok  *token.Token

	IsLocal      bool
	IsStatic     bool
	IsDefinition bool
	IsTentative  bool
	IsTLS        bool
	IsInline     bool
	IsLive       bool
	IsVariadic   bool

	// Locals
	Offset int // stack offset relative to %rbp, negative

	// Functions
	Body         *Node
	Params       *Obj // linked via ParamNext
	ParamNext    *Obj
	Locals       []*Obj
	StaticLocals []*Obj
	Refs         []*Obj // other functions referenced, for liveness DFS
	DeallocVLA   bool
	StackSize    int // peak_stk_usage, backpatched after codegen
	VLABaseOfs   int
	ReturnPtrOfs int

	// Globals
	InitBytes   []byte
	Relocations []Relocation
}

// ScopeVar is a variable/typedef/enum-constant binding inside a Scope.
type ScopeVar struct {
	Obj       *Obj
	Typedef   *ctype.Type
	EnumType  *ctype.Type
	EnumVal   int64
	IsTypedef bool
	IsEnum    bool
}

// Scope is a lexical scope: variables/typedefs/enum-constants by name,
// struct/union/enum tags by name, and local-variable bookkeeping for
// stack-offset assignment (spec.md §3 Scope).
type Scope struct {
	Parent   *Scope
	Children []*Scope

	Vars map[string]*ScopeVar
	Tags map[string]*ctype.Type

	Locals []*Obj

	IsTemporary        bool
	IsCompoundLitHost  bool
	CurrentVLA         *Obj // innermost VLA live at this point in the scope chain
}

// NewScope allocates a child scope of parent (nil for the file scope).
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		Parent: parent,
		Vars:   make(map[string]*ScopeVar),
		Tags:   make(map[string]*ctype.Type),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
		s.CurrentVLA = parent.CurrentVLA
	}
	return s
}

// Lookup searches this scope and its ancestors for a variable/typedef/
// enum-constant binding.
func (s *Scope) Lookup(name string) *ScopeVar {
	for cur := s; cur != nil; cur = cur.Parent {
		if v, ok := cur.Vars[name]; ok {
			return v
		}
	}
	return nil
}

// LookupTag searches this scope and its ancestors for a struct/union/enum
// tag.
func (s *Scope) LookupTag(name string) *ctype.Type {
	for cur := s; cur != nil; cur = cur.Parent {
		if t, ok := cur.Tags[name]; ok {
			return t
		}
	}
	return nil
}
