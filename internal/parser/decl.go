package parser

import (
	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/token"
)

var typenameKeywords = map[string]bool{
	"void": true, "_Bool": true, "char": true, "short": true, "int": true,
	"long": true, "float": true, "double": true,
	"struct": true, "union": true, "typedef": true,
	"enum": true, "static": true, "extern": true, "_Alignas": true,
	"signed": true, "unsigned": true, "const": true, "volatile": true,
	"auto": true, "register": true, "restrict": true, "_Noreturn": true,
	"_Thread_local": true, "__thread": true, "_Atomic": true,
	"typeof": true, "typeof_unqual": true, "inline": true, "__inline": true,
	"__restrict": true, "__restrict__": true, "__extension__": true,
	"__builtin_va_list": true,
}

// isTypename reports whether tok starts a declaration-specifier sequence:
// a type keyword or a name previously bound as a typedef, per widcc's
// is_typename.
func (p *Parser) isTypename(tok *token.Token) bool {
	if typenameKeywords[tok.Name()] {
		return true
	}
	return p.findTypedef(tok) != nil
}

// counting bitmask for the base-type keyword combinations declspec
// accepts, mirroring widcc's VOID/BOOL/CHAR/SHORT/INT/LONG/FLOAT/DOUBLE/
// OTHER/SIGNED/UNSIGNED enum-of-bits approach.
const (
	bVoid = 1 << (iota * 2)
	bBool
	bChar
	bShort
	bInt
	bLong
	bFloat
	bDouble
	bOther
	bSigned  = 1 << 20
	bUnsigned = 1 << 21
)

// declspec parses a declaration-specifier sequence, folding storage-class
// and type keywords, typedef names, struct/union/enum/typeof specifiers,
// and _Alignas, into one ctype.Type plus attr, per widcc's declspec.
func (p *Parser) declspec(rest **token.Token, tok *token.Token, attr *VarAttr) *ctype.Type {
	ty := ctype.Int
	counter := 0
	haveExplicitType := false

	for p.isTypename(tok) {
		if eq := tok.Name(); eq == "typedef" || eq == "static" || eq == "extern" ||
			eq == "inline" || eq == "__inline" || eq == "_Thread_local" || eq == "__thread" {
			if attr == nil {
				p.errorf(tok, "storage-class specifier not allowed in this context")
				tok = tok.Next
				continue
			}
			switch eq {
			case "typedef":
				attr.IsTypedef = true
			case "static":
				attr.IsStatic = true
			case "extern":
				attr.IsExtern = true
			case "inline", "__inline":
				attr.IsInline = true
			case "_Thread_local", "__thread":
				attr.IsTLS = true
			}
			if attr.IsTypedef && (attr.IsStatic || attr.IsExtern || attr.IsInline || attr.IsTLS) {
				p.errorf(tok, "typedef may not be used together with static, extern, inline, or thread_local")
			}
			tok = tok.Next
			continue
		}

		if eq := tok.Name(); eq == "const" || eq == "volatile" || eq == "auto" ||
			eq == "register" || eq == "restrict" || eq == "__restrict" ||
			eq == "__restrict__" || eq == "_Noreturn" || eq == "__extension__" {
			tok = tok.Next
			continue
		}

		if equal(tok, "_Atomic") {
			tok = tok.Next
			if equal(tok, "(") {
				tok = p.skip(rest, tok.Next, ")") // unsupported _Atomic(ty); consumed, not modeled
			}
			continue
		}

		if equal(tok, "_Alignas") {
			tok = tok.Next
			tok = p.skip(rest, tok, "(")
			if p.isTypename(tok) {
				t := p.typename(&tok, tok)
				if attr != nil {
					attr.Align = t.Align
				}
			} else {
				n, rest2 := p.constExpr(tok)
				if attr != nil {
					attr.Align = int(n)
				}
				tok = rest2
			}
			tok = p.skip(rest, tok, ")")
			continue
		}

		if td := p.findTypedef(tok); td != nil {
			if haveExplicitType || counter != 0 {
				break
			}
			ty = td
			haveExplicitType = true
			tok = tok.Next
			continue
		}

		switch tok.Name() {
		case "__builtin_va_list":
			ty = ctype.VaList
			haveExplicitType = true
			tok = tok.Next
			continue
		case "struct", "union":
			ty = p.structUnionDecl(&tok, tok)
			haveExplicitType = true
			continue
		case "enum":
			ty = p.enumSpecifier(&tok, tok)
			haveExplicitType = true
			continue
		case "typeof", "typeof_unqual":
			ty = p.typeofSpecifier(&tok, tok)
			haveExplicitType = true
			continue
		}

		if haveExplicitType {
			break
		}

		switch tok.Name() {
		case "void":
			counter += bVoid
		case "_Bool":
			counter += bBool
		case "char":
			counter += bChar
		case "short":
			counter += bShort
		case "int":
			counter += bInt
		case "long":
			counter += bLong
		case "float":
			counter += bFloat
		case "double":
			counter += bDouble
		case "signed":
			counter |= bSigned
		case "unsigned":
			counter |= bUnsigned
		default:
			goto done
		}
		tok = tok.Next
		continue
	done:
		break
	}

	if !haveExplicitType {
		ty = resolveBuiltinBaseType(p, tok, counter)
	}
	*rest = tok
	return ty
}

func resolveBuiltinBaseType(p *Parser, tok *token.Token, counter int) *ctype.Type {
	switch {
	case counter == 0:
		return ctype.Int
	case counter == bVoid:
		return ctype.Void
	case counter == bBool:
		return ctype.Bool
	case counter == bChar, counter == bChar|bSigned:
		return ctype.Char
	case counter == bChar|bUnsigned:
		return ctype.UChar
	case counter == bShort, counter == bShort|bInt, counter == bShort|bSigned, counter == bShort|bInt|bSigned:
		return ctype.Short
	case counter == (bShort|bUnsigned), counter == (bShort|bInt|bUnsigned):
		return ctype.UShort
	case counter == bInt, counter == bSigned, counter == bInt|bSigned:
		return ctype.Int
	case counter == bUnsigned, counter == bInt|bUnsigned:
		return ctype.UInt
	case counter == bLong, counter == bLong|bInt, counter == bLong|bSigned, counter == bLong|bInt|bSigned,
		counter == 2*bLong, counter == 2*bLong|bInt, counter == 2*bLong|bSigned, counter == 2*bLong|bInt|bSigned:
		return ctype.Long
	case counter == bLong|bUnsigned, counter == bLong|bInt|bUnsigned,
		counter == 2*bLong|bUnsigned, counter == 2*bLong|bInt|bUnsigned:
		return ctype.ULong
	case counter == bFloat:
		return ctype.Float
	case counter == bDouble:
		return ctype.Double
	case counter == bDouble|bLong:
		return ctype.LDouble
	default:
		p.errorf(tok, "invalid type")
		return ctype.Int
	}
}

// typename parses an abstract declarator used where no identifier is
// expected (sizeof(T), casts), per widcc's typename.
func (p *Parser) typename(rest **token.Token, tok *token.Token) *ctype.Type {
	ty := p.declspec(&tok, tok, nil)
	return p.abstractDeclarator(rest, tok, ty)
}

// declarator parses one declarator: pointer chain, then a direct
// declarator (identifier or parenthesized declarator), then a type-suffix
// (array/function), per widcc's declarator.
func (p *Parser) declarator(rest **token.Token, tok *token.Token, ty *ctype.Type, nameTok **token.Token) *ctype.Type {
	ty = p.pointers(&tok, tok, ty)

	if equal(tok, "(") {
		start := tok
		dummy := &ctype.Type{}
		tok2 := tok.Next
		p.declarator(&tok2, tok2, dummy, nameTok)
		tok2 = p.skip(&tok2, tok2, ")")
		ty = p.typeSuffix(rest, tok2, ty)
		var innerRest *token.Token
		result := p.declarator(&innerRest, start.Next, ty, nameTok)
		return result
	}

	var name *token.Token
	if tok.Kind == token.IDENT {
		name = tok
		tok = tok.Next
	}
	if nameTok != nil {
		*nameTok = name
	}
	return p.typeSuffix(rest, tok, ty)
}

// abstractDeclarator is declarator without requiring/consuming a name.
func (p *Parser) abstractDeclarator(rest **token.Token, tok *token.Token, ty *ctype.Type) *ctype.Type {
	var nameTok *token.Token
	return p.declarator(rest, tok, ty, &nameTok)
}

func (p *Parser) pointers(rest **token.Token, tok *token.Token, ty *ctype.Type) *ctype.Type {
	for consume(&tok, tok, "*") {
		ty = ctype.PointerTo(ty)
		for equal(tok, "const") || equal(tok, "volatile") || equal(tok, "restrict") ||
			equal(tok, "__restrict") || equal(tok, "__restrict__") || equal(tok, "_Atomic") {
			tok = tok.Next
		}
	}
	*rest = tok
	return ty
}

func (p *Parser) typeSuffix(rest **token.Token, tok *token.Token, ty *ctype.Type) *ctype.Type {
	if equal(tok, "(") {
		return p.funcParams(rest, tok.Next, ty)
	}
	if equal(tok, "[") {
		return p.arrayDimensions(rest, tok, ty)
	}
	*rest = tok
	return ty
}

func (p *Parser) arrayDimensions(rest **token.Token, tok *token.Token, ty *ctype.Type) *ctype.Type {
	tok = tok.Next // "["
	for equal(tok, "static") || equal(tok, "restrict") {
		tok = tok.Next
	}
	if equal(tok, "]") {
		base := p.typeSuffix(rest, tok.Next, ty)
		return ctype.ArrayOf(base, -1)
	}

	// Variable-length if the bound isn't a constant expression; modeled
	// minimally (spec.md §4.3 VLA lowering: the bound expression is kept
	// for compute_vla_size at the declaration site rather than evaluated
	// here).
	save := tok
	if n, r, ok := p.tryConstExpr(tok); ok {
		tok = r
		tok = p.skip(rest, tok, "]")
		base := p.typeSuffix(rest, *rest, ty)
		return ctype.ArrayOf(base, int(n))
	}
	expr := p.expr(&tok, save)
	tok = p.skip(rest, tok, "]")
	base := p.typeSuffix(rest, *rest, ty)
	return ctype.VLAOf(base, expr)
}

// computeVLASize builds the expression chain that computes ty.VLASizeVar
// (and every VLA base type's size it depends on), per widcc's
// compute_vla_size. Called even for non-VLA types, since ty may be a
// pointer to a VLA (e.g. int (*p)[n]).
func (p *Parser) computeVLASize(ty *ctype.Type, tok *token.Token) *ast.Node {
	if ty.VLASizeVar != nil {
		return nil
	}
	var node *ast.Node
	if ty.Base != nil {
		node = p.computeVLASize(ty.Base, tok)
	}
	if ty.Kind != ctype.VLA {
		return node
	}

	var baseSz *ast.Node
	if ty.Base.Kind == ctype.VLA {
		baseSz = p.newVarNode(ty.Base.VLASizeVar.(*ast.Obj), tok)
	} else {
		baseSz = newNum(int64(ty.Base.Size), tok)
	}

	sizeVar := p.newAnonLvar(ctype.ULong)
	ty.VLASizeVar = sizeVar
	lenExpr := ty.VLALenExpr.(*ast.Node)
	assign := newBinary(ast.OpAssign, p.newVarNode(sizeVar, tok),
		newBinary(ast.OpMul, lenExpr, baseSz, tok), tok)
	chainExpr(&node, assign)
	return p.typeExpr(node)
}

// newAnonLvar allocates a compiler-introduced local not bound to any
// source identifier, per widcc's new_lvar(NULL, ...) calls.
func (p *Parser) newAnonLvar(ty *ctype.Type) *ast.Obj {
	v := &ast.Obj{Kind: ast.ObjVar, Name: p.newUniqueName(), Type: ty, IsLocal: true}
	if p.curFn != nil {
		p.curFn.Locals = append(p.curFn.Locals, v)
	}
	return v
}

// newVLAAlloc builds the ND_ALLOCA-equivalent node that assigns var's
// storage from a runtime-computed byte size, per widcc's new_vla.
func newVLAAlloc(sz *ast.Node, v *ast.Obj, tok *token.Token) *ast.Node {
	n := newNode(ast.OpAlloca, tok)
	n.Lhs = sz
	n.Var = v
	n.Type = ctype.PointerTo(ctype.Void)
	return n
}

// funcParams handles both new-style (typed) and old-style (K&R, bare
// identifier list) parameter lists, per widcc's func_params /
// func_params_old_style.
func (p *Parser) funcParams(rest **token.Token, tok *token.Token, retTy *ctype.Type) *ctype.Type {
	if equal(tok, "void") && equal(tok.Next, ")") {
		*rest = tok.Next.Next
		return ctype.FuncType(retTy, nil, false, false)
	}

	if tok.Kind == token.IDENT && !p.isTypename(tok) {
		return p.funcParamsOldStyle(rest, tok, retTy)
	}

	var head, tail *ctype.Param
	variadic := false
	first := true
	for !equal(tok, ")") {
		if !first {
			tok = p.skip(&tok, tok, ",")
		}
		first = false
		if equal(tok, "...") {
			variadic = true
			tok = tok.Next
			break
		}
		ty2 := p.declspec(&tok, tok, nil)
		var nameTok *token.Token
		ty2 = p.declarator(&tok, tok, ty2, &nameTok)
		ty2 = ctype.Decay(ty2)
		param := &ctype.Param{Type: ty2}
		if nameTok != nil {
			param.Name = nameTok.Name()
		}
		if head == nil {
			head, tail = param, param
		} else {
			tail.Next = param
			tail = param
		}
	}
	tok = p.skip(rest, tok, ")")
	return ctype.FuncType(retTy, head, variadic, false)
}

func (p *Parser) funcParamsOldStyle(rest **token.Token, tok *token.Token, retTy *ctype.Type) *ctype.Type {
	var head, tail *ctype.Param
	first := true
	for !equal(tok, ")") {
		if !first {
			tok = p.skip(&tok, tok, ",")
		}
		first = false
		param := &ctype.Param{Name: tok.Name(), Type: ctype.Int}
		if head == nil {
			head, tail = param, param
		} else {
			tail.Next = param
			tail = param
		}
		tok = tok.Next
	}
	tok = p.skip(rest, tok, ")")
	ty := ctype.FuncType(retTy, head, false, true)
	return ty
}

// structUnionDecl / structDecl / unionDecl parse "struct"/"union" [tag]
// ["{" member-decl* "}"], per widcc's struct_union_decl / struct_decl /
// union_decl.
func (p *Parser) structUnionDecl(rest **token.Token, tok *token.Token) *ctype.Type {
	isUnion := equal(tok, "union")
	tok = tok.Next

	var tag *token.Token
	if tok.Kind == token.IDENT {
		tag = tok
		tok = tok.Next
	}

	if tag != nil && !equal(tok, "{") {
		*rest = tok
		if ty := p.findTag(tag); ty != nil {
			return ty
		}
		ty := ctype.NewType(ctype.STRUCT, -1, 1)
		if isUnion {
			ty.Kind = ctype.UNION
		}
		p.pushTagScope(tag.Name(), ty)
		return ty
	}

	tok = p.skip(rest, tok, "{")
	members, packed := p.memberList(rest, tok)

	var ty *ctype.Type
	if isUnion {
		ty = ctype.NewUnionType(members, packed)
	} else {
		ty = ctype.NewStructType(members, packed)
	}

	if tag != nil {
		if existing, ok := p.scope.Tags[tag.Name()]; ok && existing.Size < 0 {
			*existing = *ty
			ty = existing
		} else {
			p.pushTagScope(tag.Name(), ty)
		}
	}
	return ty
}

func (p *Parser) memberList(rest **token.Token, tok *token.Token) ([]*ctype.Member, bool) {
	var members []*ctype.Member
	packed := false
	idx := 0
	for !equal(tok, "}") {
		attr := &VarAttr{}
		basety := p.declspec(&tok, tok, attr)
		first := true
		for !consume(&tok, tok, ";") {
			if !first {
				tok = p.skip(&tok, tok, ",")
			}
			first = false
			var nameTok *token.Token
			ty := p.declarator(&tok, tok, basety, &nameTok)

			bitWidth := -1
			if consume(&tok, tok, ":") {
				n, r := p.constExpr(tok)
				bitWidth = int(n)
				tok = r
			}

			m := &ctype.Member{Type: ty, Index: idx}
			if nameTok != nil {
				m.Name = nameTok.Name()
			} else {
				m.Anonymous = true
			}
			if bitWidth >= 0 {
				m.IsBitfield = true
				m.BitWidth = bitWidth
			}
			members = append(members, m)
			idx++
		}
	}
	tok = tok.Next // "}"
	// __attribute__((packed)) lifted by the preprocessor onto the "}"
	// token's Attrs chain (spec.md §4.1); check there.
	for a := tokAttrs(tok); a != nil; a = a.Next {
		if a.Name == "packed" {
			packed = true
		}
	}
	*rest = tok
	return members, packed
}

func tokAttrs(tok *token.Token) *token.Attr {
	if tok == nil {
		return nil
	}
	return tok.Attrs
}

// enumSpecifier parses "enum" [tag] ["{" enumerator-list "}"], per widcc's
// enum_specifier. The underlying type defaults to int (spec.md §4.2).
func (p *Parser) enumSpecifier(rest **token.Token, tok *token.Token) *ctype.Type {
	ty := ctype.NewType(ctype.ENUM, 4, 4)
	ty.EnumUnderlying = ctype.Int
	tok = tok.Next

	var tag *token.Token
	if tok.Kind == token.IDENT {
		tag = tok
		tok = tok.Next
	}

	if tag != nil && !equal(tok, "{") {
		*rest = tok
		if existing := p.findTag(tag); existing != nil {
			return existing
		}
		p.errorf(tag, "unknown enum type")
		return ty
	}

	tok = p.skip(rest, tok, "{")
	val := int64(0)
	first := true
	for !equal(tok, "}") {
		if !first {
			tok = p.skip(&tok, tok, ",")
		}
		first = false
		if equal(tok, "}") {
			break
		}
		name := tok.Name()
		tok = tok.Next
		if consume(&tok, tok, "=") {
			v, r := p.constExpr(tok)
			val = v
			tok = r
		}
		sv := p.pushScopeVar(name)
		sv.IsEnum = true
		sv.EnumType = ty
		sv.EnumVal = val
		val++
	}
	tok = p.skip(rest, tok, "}")
	if tag != nil {
		p.pushTagScope(tag.Name(), ty)
	}
	return ty
}

// typeofSpecifier parses "typeof(" expr-or-typename ")", per widcc's
// typeof_specifier (a GNU extension widcc supports unconditionally).
func (p *Parser) typeofSpecifier(rest **token.Token, tok *token.Token) *ctype.Type {
	tok = tok.Next
	tok = p.skip(&tok, tok, "(")
	var ty *ctype.Type
	if p.isTypename(tok) {
		ty = p.typename(&tok, tok)
	} else {
		n := p.expr(&tok, tok)
		ty = n.Type
	}
	tok = p.skip(rest, tok, ")")
	return ty
}

// parseTypedef binds one or more declarator names to basety as typedefs,
// per widcc's parse_typedef.
func (p *Parser) parseTypedef(tok *token.Token, basety *ctype.Type) *token.Token {
	first := true
	for !consume(&tok, tok, ";") {
		if !first {
			tok = p.skip(&tok, tok, ",")
		}
		first = false
		var nameTok *token.Token
		ty := p.declarator(&tok, tok, basety, &nameTok)
		if nameTok == nil {
			p.errorf(tok, "typedef name omitted")
			continue
		}
		sv := p.pushScopeVar(nameTok.Name())
		sv.IsTypedef = true
		sv.Typedef = ty
	}
	return tok
}

// globalDeclaration parses one top-level declaration: either a function
// definition (isFn) or a list of global variable declarators, per widcc's
// function()/global_declaration pairing inside parse().
func (p *Parser) globalDeclaration(tok *token.Token, basety *ctype.Type, attr *VarAttr, isFn bool) *token.Token {
	if isFn {
		return p.function(tok, basety, attr)
	}

	first := true
	for !consume(&tok, tok, ";") {
		if !first {
			tok = p.skip(&tok, tok, ",")
		}
		first = false
		var nameTok *token.Token
		ty := p.declarator(&tok, tok, basety, &nameTok)
		if nameTok == nil {
			p.errorf(tok, "variable name omitted")
			continue
		}
		v := p.newGvar(nameTok.Name(), ty)
		v.IsStatic = attr.IsStatic
		v.Tok = nameTok
		if attr.IsExtern {
			v.IsDefinition = false
		}
		if consume(&tok, tok, "=") {
			tok = p.gvarInitializer(tok, v)
		} else if !attr.IsExtern {
			v.IsTentative = true
		}
	}
	return tok
}

// function parses a function prototype or definition, per widcc's
// func_prototype / the function-definition branch of parse().
func (p *Parser) function(tok *token.Token, basety *ctype.Type, attr *VarAttr) *token.Token {
	var nameTok *token.Token
	ty := p.declarator(&tok, tok, basety, &nameTok)
	if nameTok == nil {
		p.errorf(tok, "function name omitted")
		return tok
	}

	fn := p.newGvar(nameTok.Name(), ty)
	fn.Kind = ast.ObjFunc
	fn.Tok = nameTok
	fn.IsStatic = attr.IsStatic
	fn.IsInline = attr.IsInline
	fn.IsVariadic = ty.IsVariadic
	fn.IsDefinition = !consume(&tok, tok, ";")
	if !fn.IsDefinition {
		return tok
	}

	prevFn := p.curFn
	p.curFn = fn
	p.enterScope()
	p.bindParams(ty.Params)
	tok = p.skip(&tok, tok, "{")
	fn.Body = p.compoundStmt(&tok, tok)
	p.resolveGotoLabels()
	p.leaveScope()
	p.curFn = prevFn
	return tok
}

func (p *Parser) bindParams(params *ctype.Param) {
	var head, tail *ast.Obj
	for param := params; param != nil; param = param.Next {
		name := param.Name
		if name == "" {
			name = p.newUniqueName()
		}
		v := p.newLvar(name, param.Type)
		if head == nil {
			head, tail = v, v
		} else {
			tail.ParamNext = v
			tail = v
		}
	}
	if p.curFn != nil {
		p.curFn.Params = head
	}
}
