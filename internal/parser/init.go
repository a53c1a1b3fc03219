package parser

import (
	"math"

	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/token"
)

// initializer is the intermediate tree an initializer list parses into,
// before being lowered either to an assignment-expression chain (locals,
// createLvarInit) or a byte buffer plus relocations (globals,
// writeGvarData), per widcc's Initializer struct (parse.c).
type initializer struct {
	Type       *ctype.Type
	Tok        *token.Token
	IsFlexible bool

	Expr     *ast.Node   // set for a scalar leaf
	Children []*initializer // set for ARRAY/VLA/STRUCT/UNION
}

// newInitializerSkeleton builds the nested-but-empty initializer shape
// matching ty's structure, per widcc's new_initializer.
func newInitializerSkeleton(ty *ctype.Type, isRoot bool) *initializer {
	in := &initializer{Type: ty}

	switch ty.Kind {
	case ctype.ARRAY:
		if isRoot && ty.IsFlexible {
			in.IsFlexible = true
			return in
		}
		in.Children = make([]*initializer, ty.ArrayLen)
		for i := range in.Children {
			in.Children[i] = newInitializerSkeleton(ty.Base, false)
		}
	case ctype.STRUCT, ctype.UNION:
		members := ty.Members
		in.Children = make([]*initializer, len(members))
		for i, m := range members {
			if ty.IsFlexible && i == len(members)-1 && isRoot {
				in.Children[i] = &initializer{Type: m.Type, IsFlexible: true}
				continue
			}
			in.Children[i] = newInitializerSkeleton(m.Type, false)
		}
	}
	return in
}

// parseInitializer parses one initializer (possibly brace-enclosed,
// possibly a string literal into a char array) into the tree, per
// widcc's initializer2 dispatch.
func (p *Parser) parseInitializer(rest **token.Token, tok *token.Token, in *initializer) {
	switch in.Type.Kind {
	case ctype.ARRAY:
		if tok.Kind == token.STR && ctype.Unwrap(in.Type.Base).Size == 1 {
			p.stringInitializer(rest, tok, in)
			return
		}
		p.arrayInitializer(rest, tok, in)
		return
	case ctype.STRUCT:
		if consume(&tok, tok, "{") {
			p.structInitializer(rest, tok, in, true)
			return
		}
		p.structInitializer(rest, tok, in, false)
		*rest = tok
		return
	case ctype.UNION:
		p.unionInitializer(rest, tok, in)
		return
	}

	hadBrace := consume(&tok, tok, "{")
	in.Expr = p.typeExpr(p.assign(&tok, tok))
	if hadBrace {
		tok = p.skip(&tok, tok, "}")
	}
	*rest = tok
}

func (p *Parser) stringInitializer(rest **token.Token, tok *token.Token, in *initializer) {
	if in.Type.ArrayLen < 0 {
		in.Type = ctype.ArrayOf(in.Type.Base, len(tok.Str))
		in.Children = make([]*initializer, in.Type.ArrayLen)
		for i := range in.Children {
			in.Children[i] = &initializer{Type: in.Type.Base}
		}
	}
	n := len(tok.Str)
	if n > len(in.Children) {
		n = len(in.Children)
	}
	for i := 0; i < n; i++ {
		c := newNum(int64(tok.Str[i]), tok)
		in.Children[i].Expr = c
	}
	*rest = tok.Next
}

func (p *Parser) arrayInitializer(rest **token.Token, tok *token.Token, in *initializer) {
	hadBrace := consume(&tok, tok, "{")

	if in.IsFlexible {
		n := countArrayInitElements(tok, in.Type, hadBrace)
		in.Type = ctype.ArrayOf(in.Type.Base, n)
	}
	if in.Type.ArrayLen < 0 {
		n := countArrayInitElements(tok, in.Type, hadBrace)
		in.Type = ctype.ArrayOf(in.Type.Base, n)
	}
	if in.Children == nil {
		in.Children = make([]*initializer, in.Type.ArrayLen)
		for i := range in.Children {
			in.Children[i] = newInitializerSkeleton(in.Type.Base, false)
		}
	}

	i := 0
	first := true
	for {
		if hadBrace {
			if equal(tok, "}") {
				break
			}
		} else {
			if !p.moreInitializerTokens(tok) {
				break
			}
		}
		if !first {
			if !consume(&tok, tok, ",") {
				break
			}
		}
		first = false

		if equal(tok, "[") {
			idx, r := p.constExpr(tok.Next)
			tok = p.skip(&tok, r, "]")
			tok = p.skip(&tok, tok, "=")
			i = int(idx)
		}
		if i >= len(in.Children) {
			// extra initializer, discard the value but keep parsing
			p.assign(&tok, tok)
		} else {
			p.parseInitializer(&tok, tok, in.Children[i])
		}
		i++
	}
	if hadBrace {
		tok = p.skip(&tok, tok, "}")
	}
	*rest = tok
}

func countArrayInitElements(tok *token.Token, ty *ctype.Type, hadBrace bool) int {
	count := 0
	depth := 0
	first := true
	for {
		if depth == 0 {
			if hadBrace && equal(tok, "}") {
				break
			}
			if !hadBrace && tok.Kind == token.EOF {
				break
			}
		}
		if !first {
			if equal(tok, ",") {
				tok = tok.Next
				continue
			}
			if depth == 0 {
				break
			}
		}
		first = false
		if equal(tok, "{") {
			depth++
		} else if equal(tok, "}") {
			if depth == 0 {
				break
			}
			depth--
		}
		if depth == 0 {
			count++
		}
		tok = tok.Next
		if tok.Kind == token.EOF {
			break
		}
	}
	return count
}

// moreInitializerTokens is a conservative stop condition for a brace-less
// scalar-array initializer list: stop at ";" or "}" (the enclosing
// aggregate's own closing brace).
func (p *Parser) moreInitializerTokens(tok *token.Token) bool {
	return !equal(tok, ";") && !equal(tok, "}") && tok.Kind != token.EOF
}

func (p *Parser) structInitializer(rest **token.Token, tok *token.Token, in *initializer, hadBrace bool) {
	first := true
	idx := 0
	for {
		if hadBrace {
			if equal(tok, "}") {
				break
			}
		} else {
			if !p.moreInitializerTokens(tok) || idx >= len(in.Children) {
				break
			}
		}
		if !first {
			if !consume(&tok, tok, ",") {
				break
			}
		}
		first = false

		if equal(tok, ".") {
			name := tok.Next.Name()
			tok = tok.Next.Next
			tok = p.skip(&tok, tok, "=")
			found := -1
			for i, m := range in.Type.Members {
				if m.Name == name {
					found = i
					break
				}
			}
			if found < 0 {
				p.errorf(tok, "no such member: %s", name)
				p.assign(&tok, tok)
				continue
			}
			idx = found
		}
		if idx >= len(in.Children) {
			break
		}
		p.parseInitializer(&tok, tok, in.Children[idx])
		idx++
	}
	if hadBrace {
		tok = p.skip(&tok, tok, "}")
	}
	*rest = tok
}

func (p *Parser) unionInitializer(rest **token.Token, tok *token.Token, in *initializer) {
	hadBrace := consume(&tok, tok, "{")
	idx := 0
	if hadBrace && equal(tok, ".") {
		name := tok.Next.Name()
		tok = tok.Next.Next
		tok = p.skip(&tok, tok, "=")
		for i, m := range in.Type.Members {
			if m.Name == name {
				idx = i
				break
			}
		}
	}
	if len(in.Children) > idx {
		p.parseInitializer(&tok, tok, in.Children[idx])
	}
	if hadBrace {
		consume(&tok, tok, ",")
		tok = p.skip(&tok, tok, "}")
	}
	*rest = tok
}

// lvarInitializer parses "= initializer" for a local variable and lowers
// it straight to an assignment-expression chain, per widcc's
// lvar_initializer / create_lvar_init.
func (p *Parser) lvarInitializer(tok *token.Token, v *ast.Obj) (*ast.Node, *token.Token) {
	in := newInitializerSkeleton(v.Type, true)
	p.parseInitializer(&tok, tok, in)
	v.Type = in.Type

	varNode := p.newVarNode(v, tok)
	var expr *ast.Node
	p.createLvarInit(in, varNode, &expr, tok)
	return expr, tok
}

func (p *Parser) createLvarInit(in *initializer, dst *ast.Node, out **ast.Node, tok *token.Token) {
	if in.Type.Kind == ctype.ARRAY || in.Type.Kind == ctype.STRUCT || in.Type.Kind == ctype.UNION {
		if in.Type.Kind != ctype.UNION {
			memzero := newNode(ast.OpMemzero, tok)
			memzero.Lhs = dst
			chainExpr(out, memzero)
		}
		for i, c := range in.Children {
			if c == nil {
				continue
			}
			var elemDst *ast.Node
			switch in.Type.Kind {
			case ctype.ARRAY:
				idx := newNum(int64(i), tok)
				elemDst = newUnary(ast.OpDeref, p.newAdd(dst, idx, tok), tok)
			default:
				elemDst = newNode(ast.OpMember, tok)
				elemDst.Lhs = dst
				elemDst.Member = in.Type.Members[i]
				elemDst.Type = in.Type.Members[i].Type
			}
			p.createLvarInit(c, elemDst, out, tok)
		}
		return
	}

	if in.Expr == nil {
		return
	}
	assign := newBinary(ast.OpAssign, dst, in.Expr, tok)
	chainExpr(out, p.typeExpr(assign))
}

// gvarInitializer parses "= initializer" for a global and lowers it
// directly into a byte buffer plus relocation list, per widcc's
// gvar_initializer / write_gvar_data.
func (p *Parser) gvarInitializer(tok *token.Token, v *ast.Obj) *token.Token {
	var rest *token.Token
	in := newInitializerSkeleton(v.Type, true)
	p.parseInitializer(&rest, tok, in)
	v.Type = in.Type

	buf := make([]byte, v.Type.Size)
	var relocs []ast.Relocation
	p.writeGvarData(in, v.Type, buf, 0, &relocs)
	v.InitBytes = buf
	v.Relocations = relocs
	v.IsTentative = false
	return rest
}

func (p *Parser) writeGvarData(in *initializer, ty *ctype.Type, buf []byte, offset int, relocs *[]ast.Relocation) {
	if in == nil {
		return
	}
	switch ty.Kind {
	case ctype.ARRAY:
		for i, c := range in.Children {
			p.writeGvarData(c, ty.Base, buf, offset+i*ty.Base.Size, relocs)
		}
		return
	case ctype.STRUCT:
		for i, m := range ty.Members {
			if i >= len(in.Children) {
				break
			}
			p.writeGvarData(in.Children[i], m.Type, buf, offset+m.Offset, relocs)
		}
		return
	case ctype.UNION:
		if len(ty.Members) > 0 && len(in.Children) > 0 {
			p.writeGvarData(in.Children[0], ty.Members[0].Type, buf, offset, relocs)
		}
		return
	}

	if in.Expr == nil {
		return
	}
	p.evalConstInit(in.Expr, ty, buf, offset, relocs)
}

// evalConstInit evaluates a scalar global initializer expression, folding
// a plain address-of-global into a relocation entry rather than a value,
// per widcc's eval_rval-based constant folding during write_gvar_data.
func (p *Parser) evalConstInit(n *ast.Node, ty *ctype.Type, buf []byte, offset int, relocs *[]ast.Relocation) {
	if name, addend, ok := p.evalAddr(n); ok {
		*relocs = append(*relocs, ast.Relocation{Offset: offset, Name: name, Addend: addend})
		return
	}
	if ctype.IsFlonum(ty) {
		f, _ := p.evalDouble(n)
		writeFloatBuf(buf, offset, ty, f)
		return
	}
	v, _ := p.eval(n)
	writeIntBuf(buf, offset, ty.Size, v)
}

// evalAddr recognizes "&global", "&global[const]", "global" (array/func
// decay), and "string-literal" as a constant address, per widcc's
// eval_rval.
func (p *Parser) evalAddr(n *ast.Node) (name string, addend int64, ok bool) {
	switch n.Op {
	case ast.OpAddr:
		return p.evalAddr(n.Lhs)
	case ast.OpVar:
		if n.Var != nil && !n.Var.IsLocal {
			return n.Var.Name, 0, true
		}
		return "", 0, false
	case ast.OpDeref:
		return p.evalAddr(n.Lhs)
	case ast.OpCast:
		return p.evalAddr(n.Lhs)
	case ast.OpAdd:
		if name, add, ok := p.evalAddr(n.Lhs); ok {
			v, _ := p.eval(n.Rhs)
			return name, add + v, true
		}
		return "", 0, false
	case ast.OpSub:
		if name, add, ok := p.evalAddr(n.Lhs); ok {
			v, _ := p.eval(n.Rhs)
			return name, add - v, true
		}
		return "", 0, false
	}
	return "", 0, false
}

func writeIntBuf(buf []byte, offset, size int, v int64) {
	for i := 0; i < size && offset+i < len(buf); i++ {
		buf[offset+i] = byte(v >> (8 * i))
	}
}

func writeFloatBuf(buf []byte, offset int, ty *ctype.Type, f float64) {
	switch ty.Kind {
	case ctype.FLOAT:
		bits := math.Float32bits(float32(f))
		writeIntBuf(buf, offset, 4, int64(bits))
	default:
		bits := math.Float64bits(f)
		writeIntBuf(buf, offset, 8, int64(bits))
	}
}
