package parser

import (
	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/token"
)

// expr parses the comma operator down through assignment, per widcc's
// expr(): expr = assign ("," expr)?
func (p *Parser) expr(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.assign(&tok, tok)
	if equal(tok, ",") {
		rhs := p.expr(&tok, tok.Next)
		n = newBinary(ast.OpComma, n, rhs, tok)
	}
	*rest = tok
	return p.typeExpr(n)
}

// assign handles "=" and the compound-assignment operators, per widcc's
// assign(): assign = conditional (assign-op assign)?
func (p *Parser) assign(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.conditional(&tok, tok)

	if equal(tok, "=") {
		rhs := p.assign(&tok, tok.Next)
		n = newBinary(ast.OpAssign, n, rhs, tok)
		*rest = tok
		return p.typeExpr(n)
	}

	compound := map[string]ast.Op{
		"+=": ast.OpAdd, "-=": ast.OpSub, "*=": ast.OpMul, "/=": ast.OpDiv,
		"%=": ast.OpMod, "&=": ast.OpBitAnd, "|=": ast.OpBitOr, "^=": ast.OpBitXor,
		"<<=": ast.OpShl, ">>=": ast.OpShr,
	}
	for opTok, op := range compound {
		if equal(tok, opTok) {
			rhs := p.assign(&tok, tok.Next)
			n = p.toAssign(p.newBinaryArith(op, n, rhs, tok), tok)
			*rest = tok
			return p.typeExpr(n)
		}
	}

	*rest = tok
	return n
}

// toAssign desugars "a op= b" into a self-assignment, matching widcc's
// to_assign for operators with no single target-reuse instruction.
func (p *Parser) toAssign(binary *ast.Node, tok *token.Token) *ast.Node {
	n := newNode(ast.OpAssign, tok)
	n.Lhs = binary.Lhs
	n.Rhs = binary
	return n
}

// newIncDec desugars postfix ++/-- into "assign node += addend, then
// subtract addend back off and cast to the original type", per widcc's
// new_inc_dec: the assignment's value is the new value, so subtracting
// addend recovers the pre-increment value without a second memory read.
func (p *Parser) newIncDec(n *ast.Node, tok *token.Token, addend int64) *ast.Node {
	n = p.typeExpr(n)
	origTy := n.Type
	assigned := p.toAssign(p.newAdd(n, newNum(addend, tok), tok), tok)
	back := p.newAdd(assigned, newNum(-addend, tok), tok)
	return p.newCast(back, origTy, tok)
}

func (p *Parser) newBinaryArith(op ast.Op, lhs, rhs *ast.Node, tok *token.Token) *ast.Node {
	switch op {
	case ast.OpAdd:
		return p.newAdd(lhs, rhs, tok)
	case ast.OpSub:
		return p.newSub(lhs, rhs, tok)
	default:
		return newBinary(op, lhs, rhs, tok)
	}
}

// conditional handles "?:", per widcc's conditional().
func (p *Parser) conditional(rest **token.Token, tok *token.Token) *ast.Node {
	cond := p.logOr(&tok, tok)
	if !equal(tok, "?") {
		*rest = tok
		return cond
	}
	n := newNode(ast.OpCond, tok)
	n.Cond = cond
	if equal(tok.Next, ":") {
		// GNU extension: a?:b, the condition doubles as the then-branch.
		n.Then = nil
		n.Else = p.conditional(&tok, tok.Next.Next)
		*rest = tok
		return n
	}
	then := p.expr(&tok, tok.Next)
	tok = p.skip(&tok, tok, ":")
	els := p.conditional(rest, tok)
	n.Then = then
	n.Else = els
	return n
}

func (p *Parser) logOr(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.logAnd(&tok, tok)
	for equal(tok, "||") {
		start := tok
		n = newBinary(ast.OpLogOr, n, p.logAnd(&tok, start.Next), start)
	}
	*rest = tok
	return n
}

func (p *Parser) logAnd(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.bitOr(&tok, tok)
	for equal(tok, "&&") {
		start := tok
		n = newBinary(ast.OpLogAnd, n, p.bitOr(&tok, start.Next), start)
	}
	*rest = tok
	return n
}

func (p *Parser) bitOr(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.bitXor(&tok, tok)
	for equal(tok, "|") {
		start := tok
		n = newBinary(ast.OpBitOr, n, p.bitXor(&tok, start.Next), start)
	}
	*rest = tok
	return n
}

func (p *Parser) bitXor(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.bitAnd(&tok, tok)
	for equal(tok, "^") {
		start := tok
		n = newBinary(ast.OpBitXor, n, p.bitAnd(&tok, start.Next), start)
	}
	*rest = tok
	return n
}

func (p *Parser) bitAnd(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.equality(&tok, tok)
	for equal(tok, "&") {
		start := tok
		n = newBinary(ast.OpBitAnd, n, p.equality(&tok, start.Next), start)
	}
	*rest = tok
	return n
}

func (p *Parser) equality(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.relational(&tok, tok)
	for {
		start := tok
		if equal(tok, "==") {
			n = newBinary(ast.OpEq, n, p.relational(&tok, start.Next), start)
		} else if equal(tok, "!=") {
			n = newBinary(ast.OpNe, n, p.relational(&tok, start.Next), start)
		} else {
			break
		}
	}
	*rest = tok
	return n
}

func (p *Parser) relational(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.shift(&tok, tok)
	for {
		start := tok
		switch {
		case equal(tok, "<"):
			n = newBinary(ast.OpLt, n, p.shift(&tok, start.Next), start)
		case equal(tok, "<="):
			n = newBinary(ast.OpLe, n, p.shift(&tok, start.Next), start)
		case equal(tok, ">"):
			n = newBinary(ast.OpLt, p.shift(&tok, start.Next), n, start)
		case equal(tok, ">="):
			n = newBinary(ast.OpLe, p.shift(&tok, start.Next), n, start)
		default:
			*rest = tok
			return n
		}
	}
}

func (p *Parser) shift(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.add(&tok, tok)
	for {
		start := tok
		if equal(tok, "<<") {
			n = newBinary(ast.OpShl, n, p.add(&tok, start.Next), start)
		} else if equal(tok, ">>") {
			n = newBinary(ast.OpShr, n, p.add(&tok, start.Next), start)
		} else {
			break
		}
	}
	*rest = tok
	return n
}

func (p *Parser) add(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.mul(&tok, tok)
	for {
		start := tok
		if equal(tok, "+") {
			n = p.newAdd(n, p.mul(&tok, start.Next), start)
		} else if equal(tok, "-") {
			n = p.newSub(n, p.mul(&tok, start.Next), start)
		} else {
			break
		}
	}
	*rest = tok
	return n
}

// newAdd implements pointer arithmetic: ptr+int scales by the pointee
// size, int+ptr is commuted, per widcc's new_add.
func (p *Parser) newAdd(lhs, rhs *ast.Node, tok *token.Token) *ast.Node {
	lhs, rhs = p.typeExpr(lhs), p.typeExpr(rhs)

	if ctype.IsNumeric(lhs.Type) && ctype.IsNumeric(rhs.Type) {
		return newBinary(ast.OpAdd, lhs, rhs, tok)
	}
	if isPointerlike(lhs.Type) && isPointerlike(rhs.Type) {
		p.errorf(tok, "invalid operands")
		return newBinary(ast.OpAdd, lhs, rhs, tok)
	}
	if isPointerlike(lhs.Type) {
		return p.newPointerAdd(lhs, rhs, tok)
	}
	return p.newPointerAdd(rhs, lhs, tok)
}

func isPointerlike(ty *ctype.Type) bool {
	k := ctype.Unwrap(ty).Kind
	return k == ctype.POINTER || k == ctype.ARRAY || k == ctype.VLA
}

func (p *Parser) newPointerAdd(ptr, idx *ast.Node, tok *token.Token) *ast.Node {
	ptr = p.typeExpr(ptr)
	ptrDecayed := &ast.Node{Op: ast.OpCast, Lhs: ptr, Tok: tok, Type: ctype.Decay(ptr.Type)}
	elemSize := ctype.Unwrap(ptrDecayed.Type).Base.Size
	scaled := newBinary(ast.OpMul, idx, newLong(int64(elemSize), tok), tok)
	return newBinary(ast.OpAdd, ptrDecayed, p.typeExpr(scaled), tok)
}

func (p *Parser) newSub(lhs, rhs *ast.Node, tok *token.Token) *ast.Node {
	lhs, rhs = p.typeExpr(lhs), p.typeExpr(rhs)

	if ctype.IsNumeric(lhs.Type) && ctype.IsNumeric(rhs.Type) {
		return newBinary(ast.OpSub, lhs, rhs, tok)
	}
	if isPointerlike(lhs.Type) && ctype.IsNumeric(rhs.Type) {
		return p.newPointerSubScalar(lhs, rhs, tok)
	}
	if isPointerlike(lhs.Type) && isPointerlike(rhs.Type) {
		lhsD := p.typeExpr(&ast.Node{Op: ast.OpCast, Lhs: lhs, Tok: tok, Type: ctype.Decay(lhs.Type)})
		rhsD := p.typeExpr(&ast.Node{Op: ast.OpCast, Lhs: rhs, Tok: tok, Type: ctype.Decay(rhs.Type)})
		elemSize := ctype.Unwrap(lhsD.Type).Base.Size
		n := newBinary(ast.OpSub, lhsD, rhsD, tok)
		n.Type = ctype.Long
		return newBinary(ast.OpDiv, n, newLong(int64(elemSize), tok), tok)
	}
	p.errorf(tok, "invalid operands")
	return newBinary(ast.OpSub, lhs, rhs, tok)
}

func (p *Parser) newPointerSubScalar(ptr, idx *ast.Node, tok *token.Token) *ast.Node {
	ptrDecayed := &ast.Node{Op: ast.OpCast, Lhs: ptr, Tok: tok, Type: ctype.Decay(ptr.Type)}
	elemSize := ctype.Unwrap(ptrDecayed.Type).Base.Size
	scaled := newBinary(ast.OpMul, idx, newLong(int64(elemSize), tok), tok)
	return newBinary(ast.OpSub, ptrDecayed, p.typeExpr(scaled), tok)
}

func (p *Parser) mul(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.cast(&tok, tok)
	for {
		start := tok
		switch {
		case equal(tok, "*"):
			n = newBinary(ast.OpMul, n, p.cast(&tok, start.Next), start)
		case equal(tok, "/"):
			n = newBinary(ast.OpDiv, n, p.cast(&tok, start.Next), start)
		case equal(tok, "%"):
			n = newBinary(ast.OpMod, n, p.cast(&tok, start.Next), start)
		default:
			*rest = tok
			return n
		}
	}
}

// cast handles "(type)expr" and GNU compound literals, falling through to
// unary otherwise, per widcc's cast().
func (p *Parser) cast(rest **token.Token, tok *token.Token) *ast.Node {
	if equal(tok, "(") && p.isTypename(tok.Next) {
		start := tok
		ty := p.typename(&tok, tok.Next)
		tok = p.skip(&tok, tok, ")")

		if equal(tok, "{") {
			return p.postfixTail(rest, tok, p.compoundLiteral(&tok, tok, ty))
		}

		operand := p.cast(rest, tok)
		return p.newCast(operand, ty, start)
	}
	return p.unary(rest, tok)
}

func (p *Parser) newCast(n *ast.Node, ty *ctype.Type, tok *token.Token) *ast.Node {
	n = p.typeExpr(n)
	c := newNode(ast.OpCast, tok)
	c.Lhs = n
	c.Type = ty
	return c
}

// unary handles prefix unary operators, sizeof/_Alignof, and GNU
// &&label, per widcc's unary().
func (p *Parser) unary(rest **token.Token, tok *token.Token) *ast.Node {
	switch {
	case equal(tok, "+"):
		return p.cast(rest, tok.Next)
	case equal(tok, "-"):
		return newUnary(ast.OpNeg, p.cast(rest, tok.Next), tok)
	case equal(tok, "&"):
		return newUnary(ast.OpAddr, p.cast(rest, tok.Next), tok)
	case equal(tok, "*"):
		return newUnary(ast.OpDeref, p.cast(rest, tok.Next), tok)
	case equal(tok, "!"):
		return newUnary(ast.OpLogNot, p.cast(rest, tok.Next), tok)
	case equal(tok, "~"):
		return newUnary(ast.OpBitNot, p.cast(rest, tok.Next), tok)
	case equal(tok, "++"):
		n := p.unary(rest, tok.Next)
		return p.toAssign(p.newAdd(n, newNum(1, tok), tok), tok)
	case equal(tok, "--"):
		n := p.unary(rest, tok.Next)
		return p.toAssign(p.newSub(n, newNum(1, tok), tok), tok)
	case equal(tok, "&&"):
		// GNU computed-goto label address.
		n := newNode(ast.OpLabelVal, tok)
		n.Label = tok.Next.Name()
		*rest = tok.Next.Next
		return n
	case equal(tok, "sizeof"):
		return p.sizeofExpr(rest, tok)
	case equal(tok, "_Alignof"), equal(tok, "__alignof__"), equal(tok, "__alignof"):
		return p.alignofExpr(rest, tok)
	}
	return p.postfix(rest, tok)
}

func (p *Parser) sizeofExpr(rest **token.Token, tok *token.Token) *ast.Node {
	start := tok
	tok = tok.Next
	if equal(tok, "(") && p.isTypename(tok.Next) {
		ty := p.typename(&tok, tok.Next)
		tok = p.skip(rest, tok, ")")
		return newULongConst(int64(ty.Size), start)
	}
	n := p.unary(rest, tok)
	n = p.typeExpr(n)
	return newULongConst(int64(n.Type.Size), start)
}

func (p *Parser) alignofExpr(rest **token.Token, tok *token.Token) *ast.Node {
	start := tok
	tok = tok.Next
	tok = p.skip(&tok, tok, "(")
	var align int
	if p.isTypename(tok) {
		ty := p.typename(&tok, tok)
		align = ty.Align
	} else {
		n := p.expr(&tok, tok)
		align = p.typeExpr(n).Type.Align
	}
	tok = p.skip(rest, tok, ")")
	return newULongConst(int64(align), start)
}

func newULongConst(v int64, tok *token.Token) *ast.Node {
	n := newNode(ast.OpNum, tok)
	n.IntVal = v
	n.Type = ctype.ULong
	return n
}

// postfix parses array/member/call/postfix-incdec chains, per widcc's
// postfix(): primary (postfix-op)*
func (p *Parser) postfix(rest **token.Token, tok *token.Token) *ast.Node {
	n := p.primary(&tok, tok)
	return p.postfixTail(rest, tok, n)
}

func (p *Parser) postfixTail(rest **token.Token, tok *token.Token, n *ast.Node) *ast.Node {
	for {
		switch {
		case equal(tok, "["):
			start := tok
			idx := p.expr(&tok, tok.Next)
			tok = p.skip(&tok, tok, "]")
			n = newUnary(ast.OpDeref, p.newAdd(n, idx, start), start)
		case equal(tok, "."):
			n = p.structRef(n, tok.Next)
			tok = tok.Next.Next
		case equal(tok, "->"):
			n = newUnary(ast.OpDeref, p.typeExpr(n), tok)
			n = p.structRef(n, tok.Next)
			tok = tok.Next.Next
		case equal(tok, "++"):
			n = p.newIncDec(n, tok, 1)
			tok = tok.Next
		case equal(tok, "--"):
			n = p.newIncDec(n, tok, -1)
			tok = tok.Next
		case equal(tok, "("):
			n = p.funcall(&tok, tok, n)
		default:
			*rest = tok
			return n
		}
	}
}

func (p *Parser) structRef(n *ast.Node, nameTok *token.Token) *ast.Node {
	n = p.typeExpr(n)
	ty := ctype.Unwrap(n.Type)
	if ty.Kind != ctype.STRUCT && ty.Kind != ctype.UNION {
		p.errorf(nameTok, "not a struct nor a union")
		return n
	}
	m := ctype.FindMember(ty, nameTok.Name())
	if m == nil {
		p.errorf(nameTok, "no such member: %s", nameTok.Name())
		return n
	}
	out := newNode(ast.OpMember, nameTok)
	out.Lhs = n
	out.Member = m
	if m.IsBitfield {
		out.Type = ctype.PromoteBitfield(m.Type, m.BitWidth)
	} else {
		out.Type = m.Type
	}
	return out
}

func (p *Parser) funcall(rest **token.Token, tok *token.Token, fn *ast.Node) *ast.Node {
	start := tok
	tok = tok.Next // "("
	fn = p.typeExpr(fn)
	ty := ctype.Unwrap(fn.Type)
	if ty.Kind == ctype.POINTER {
		ty = ctype.Unwrap(ty.Base)
	}

	var args []*ast.Node
	first := true
	for !equal(tok, ")") {
		if !first {
			tok = p.skip(&tok, tok, ",")
		}
		first = false
		args = append(args, p.typeExpr(p.assign(&tok, tok)))
	}
	tok = p.skip(rest, tok, ")")

	n := newNode(ast.OpFuncall, start)
	n.Lhs = fn
	n.Args = args
	if ty.Kind == ctype.FUNC {
		n.FuncType = ty
		n.Type = ty.ReturnType
	} else {
		n.Type = ctype.Int
	}
	return n
}

func (p *Parser) compoundLiteral(rest **token.Token, tok *token.Token, ty *ctype.Type) *ast.Node {
	if p.curFn == nil {
		v := p.newAnonGvar(ty)
		tok = p.gvarInitializer(tok, v)
		*rest = tok
		return p.newVarNode(v, tok)
	}
	v := p.newLvar(p.newUniqueName(), ty)
	init, r := p.lvarInitializer(tok, v)
	*rest = r
	n := newNode(ast.OpChain, tok)
	n.Lhs = init
	n.Rhs = p.newVarNode(v, tok)
	return n
}

// primary parses the innermost expression forms: literals, identifiers,
// parenthesized expressions/statement-expressions, per widcc's primary().
func (p *Parser) primary(rest **token.Token, tok *token.Token) *ast.Node {
	switch {
	case equal(tok, "("):
		if equal(tok.Next, "{") {
			return p.stmtExpr(rest, tok)
		}
		n := p.expr(&tok, tok.Next)
		*rest = p.skip(rest, tok, ")")
		return n
	case equal(tok, "sizeof"), equal(tok, "_Alignof"):
		return p.unary(rest, tok)
	case tok.Kind == token.NUM || tok.Kind == token.PPNUM:
		return p.numLiteral(rest, tok)
	case tok.Kind == token.STR:
		v := p.newStringLiteral(tok.Str)
		*rest = tok.Next
		return p.newVarNode(v, tok)
	case equal(tok, "_Generic"):
		return p.genericSelection(rest, tok)
	case equal(tok, "__builtin_va_start"):
		return p.vaStartBuiltin(rest, tok)
	case equal(tok, "__builtin_va_copy"):
		return p.vaCopyBuiltin(rest, tok)
	case equal(tok, "__builtin_va_end"):
		return p.vaEndBuiltin(rest, tok)
	case equal(tok, "__builtin_va_arg"):
		return p.vaArgBuiltin(rest, tok)
	case tok.Kind == token.IDENT:
		return p.identPrimary(rest, tok)
	}
	p.errorf(tok, "expected an expression")
	*rest = tok.Next
	return newNum(0, tok)
}

func (p *Parser) numLiteral(rest **token.Token, tok *token.Token) *ast.Node {
	*rest = tok.Next
	if tok.IsFloat {
		n := newNode(ast.OpNum, tok)
		n.FloatVal = tok.FNum
		n.Type = ctype.Double
		return n
	}
	n := newNode(ast.OpNum, tok)
	n.IntVal = tok.Num
	n.Type = classifyIntLiteralType(tok)
	return n
}

func classifyIntLiteralType(tok *token.Token) *ctype.Type {
	switch tok.NumType {
	case "long":
		return ctype.Long
	case "ulong":
		return ctype.ULong
	case "uint":
		return ctype.UInt
	}
	if tok.Num > 0x7fffffff {
		return ctype.Long
	}
	return ctype.Int
}

func (p *Parser) identPrimary(rest **token.Token, tok *token.Token) *ast.Node {
	if equal(tok.Next, "(") {
		// No declaration seen for this identifier as a variable: could
		// still be an implicitly-declared function (pre-C99 tolerance),
		// handled by the caller resolving a funcall target below.
	}
	sv := p.findVar(tok)
	if sv == nil {
		p.errorf(tok, "undefined variable: %s", tok.Name())
		*rest = tok.Next
		return newNum(0, tok)
	}
	*rest = tok.Next
	if sv.IsEnum {
		n := newNode(ast.OpNum, tok)
		n.IntVal = sv.EnumVal
		n.Type = sv.EnumType
		return n
	}
	return p.newVarNode(sv.Obj, tok)
}

func (p *Parser) stmtExpr(rest **token.Token, tok *token.Token) *ast.Node {
	start := tok
	p.enterTmpScope()
	body := p.compoundStmt(&tok, tok.Next)
	p.leaveScope()
	tok = p.skip(rest, tok, ")")
	n := newNode(ast.OpStmtExpr, start)
	n.Body = body
	if body != nil {
		last := body
		for last.Next != nil {
			last = last.Next
		}
		if last.Op == ast.OpExprStmt {
			n.Type = last.Lhs.Type
		}
	}
	if n.Type == nil {
		n.Type = ctype.Void
	}
	return n
}

func (p *Parser) genericSelection(rest **token.Token, tok *token.Token) *ast.Node {
	start := tok
	tok = tok.Next
	tok = p.skip(&tok, tok, "(")
	ctrl := p.typeExpr(p.assign(&tok, tok))
	tok = p.skip(&tok, tok, ",")

	var matched, deflt *ast.Node
	for !equal(tok, ")") {
		tok = p.skip(&tok, tok, ",")
		if equal(tok, "default") {
			tok = tok.Next
			tok = p.skip(&tok, tok, ":")
			deflt = p.assign(&tok, tok)
			continue
		}
		ty := p.typename(&tok, tok)
		tok = p.skip(&tok, tok, ":")
		expr := p.assign(&tok, tok)
		if ctype.IsCompatible(ty, ctrl.Type) {
			matched = expr
		}
	}
	tok = p.skip(rest, tok, ")")
	if matched != nil {
		return p.typeExpr(matched)
	}
	if deflt != nil {
		return p.typeExpr(deflt)
	}
	p.errorf(start, "_Generic: no matching association")
	return newNum(0, start)
}

// --- GNU/stdarg builtins, per widcc's primary() __builtin_va_* forms ---

func (p *Parser) vaStartBuiltin(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpVaStart, tok)
	tok = p.skip(&tok, tok.Next, "(")
	n.Lhs = p.conditional(&tok, tok)
	if equal(tok, ",") {
		p.assign(&tok, tok.Next)
	}
	*rest = p.skip(rest, tok, ")")
	n.Type = ctype.Void
	return n
}

func (p *Parser) vaCopyBuiltin(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpVaCopy, tok)
	tok = p.skip(&tok, tok.Next, "(")
	n.Lhs = p.conditional(&tok, tok)
	tok = p.skip(&tok, tok, ",")
	n.Rhs = p.conditional(&tok, tok)
	*rest = p.skip(rest, tok, ")")
	n.Type = ctype.Void
	return n
}

func (p *Parser) vaEndBuiltin(rest **token.Token, tok *token.Token) *ast.Node {
	tok = p.skip(&tok, tok.Next, "(")
	n := p.conditional(&tok, tok)
	*rest = p.skip(rest, tok, ")")
	return n
}

// vaArgBuiltin parses __builtin_va_arg(ap, type), per widcc's ND_VA_ARG:
// the result is stashed in a hidden local of type ty, then the node's
// value is that local's value (chained via the node acting as its own
// "var" reference for codegen, mirroring widcc's add_type(node); node->ty
// = node->var->ty trick).
func (p *Parser) vaArgBuiltin(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpVaArg, tok)
	tok = p.skip(&tok, tok.Next, "(")
	apArg := p.conditional(&tok, tok)
	p.typeExpr(apArg)
	n.Lhs = apArg
	tok = p.skip(&tok, tok, ",")

	ty := p.typename(&tok, tok)
	n.Var = p.newAnonLvar(ty)
	n.Type = ty
	*rest = p.skip(rest, tok, ")")
	return n
}

// --- constant evaluation, per widcc's eval/eval2/eval_double ---

func (p *Parser) constExpr(tok *token.Token) (int64, *token.Token) {
	var rest *token.Token
	n := p.conditional(&rest, tok)
	n = p.typeExpr(n)
	v, _ := p.eval(n)
	return v, rest
}

func (p *Parser) tryConstExpr(tok *token.Token) (int64, *token.Token, bool) {
	save := *p.Diag
	var rest *token.Token
	n := p.cast(&rest, tok)
	n = p.typeExpr(n)
	if !isConstExprNode(n) {
		*p.Diag = save
		return 0, tok, false
	}
	v, ok := p.eval(n)
	if !ok {
		*p.Diag = save
		return 0, tok, false
	}
	return v, rest, true
}

func isConstExprNode(n *ast.Node) bool {
	switch n.Op {
	case ast.OpVar, ast.OpFuncall, ast.OpAssign, ast.OpStmtExpr, ast.OpCompoundLit:
		return false
	}
	if n.Lhs != nil && !isConstExprNode(n.Lhs) {
		return false
	}
	if n.Rhs != nil && !isConstExprNode(n.Rhs) {
		return false
	}
	return true
}

// eval evaluates n as an integer constant expression, per widcc's eval().
// The bool result mirrors eval_recover: false means a non-constant
// operand was found (e.g. an address), and the caller should fall back to
// VLA/runtime evaluation instead of reporting a hard error itself.
func (p *Parser) eval(n *ast.Node) (int64, bool) {
	if n.Type != nil && ctype.IsFlonum(n.Type) {
		f, ok := p.evalDouble(n)
		return int64(f), ok
	}
	switch n.Op {
	case ast.OpNum:
		return n.IntVal, true
	case ast.OpAdd:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return l + r, ok1 && ok2
	case ast.OpSub:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return l - r, ok1 && ok2
	case ast.OpMul:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return l * r, ok1 && ok2
	case ast.OpDiv:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		if r == 0 {
			return 0, false
		}
		if n.Type != nil && n.Type.IsUnsigned {
			return int64(uint64(l) / uint64(r)), ok1 && ok2
		}
		return l / r, ok1 && ok2
	case ast.OpMod:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		if r == 0 {
			return 0, false
		}
		if n.Type != nil && n.Type.IsUnsigned {
			return int64(uint64(l) % uint64(r)), ok1 && ok2
		}
		return l % r, ok1 && ok2
	case ast.OpBitAnd:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return l & r, ok1 && ok2
	case ast.OpBitOr:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return l | r, ok1 && ok2
	case ast.OpBitXor:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return l ^ r, ok1 && ok2
	case ast.OpShl:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return l << uint(r), ok1 && ok2
	case ast.OpShr:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		if n.Lhs.Type != nil && n.Lhs.Type.IsUnsigned {
			return int64(uint64(l) >> uint(r)), ok1 && ok2
		}
		return l >> uint(r), ok1 && ok2
	case ast.OpEq:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return b2i(l == r), ok1 && ok2
	case ast.OpNe:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return b2i(l != r), ok1 && ok2
	case ast.OpLt:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return b2i(l < r), ok1 && ok2
	case ast.OpLe:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return b2i(l <= r), ok1 && ok2
	case ast.OpLogAnd:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return b2i(l != 0 && r != 0), ok1 && ok2
	case ast.OpLogOr:
		l, ok1 := p.eval(n.Lhs)
		r, ok2 := p.eval(n.Rhs)
		return b2i(l != 0 || r != 0), ok1 && ok2
	case ast.OpLogNot:
		l, ok := p.eval(n.Lhs)
		return b2i(l == 0), ok
	case ast.OpBitNot:
		l, ok := p.eval(n.Lhs)
		return ^l, ok
	case ast.OpNeg:
		l, ok := p.eval(n.Lhs)
		return -l, ok
	case ast.OpCond:
		c, ok := p.eval(n.Cond)
		if !ok {
			return 0, false
		}
		if c != 0 {
			if n.Then == nil {
				return c, true
			}
			return p.eval(n.Then)
		}
		return p.eval(n.Else)
	case ast.OpComma:
		p.eval(n.Lhs)
		return p.eval(n.Rhs)
	case ast.OpCast:
		v, ok := p.eval(n.Lhs)
		return castIntValue(v, n.Type), ok
	case ast.OpMember:
		if n.Member != nil && n.Member.IsBitfield {
			return 0, false
		}
		return 0, false
	}
	return 0, false
}

func castIntValue(v int64, ty *ctype.Type) int64 {
	if ty == nil {
		return v
	}
	switch ty.Size {
	case 1:
		v &= 0xff
		if !ty.IsUnsigned && v&0x80 != 0 {
			v |= ^int64(0xff)
		}
	case 2:
		v &= 0xffff
		if !ty.IsUnsigned && v&0x8000 != 0 {
			v |= ^int64(0xffff)
		}
	case 4:
		v &= 0xffffffff
		if !ty.IsUnsigned && v&0x80000000 != 0 {
			v |= ^int64(0xffffffff)
		}
	}
	return v
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// evalDouble evaluates n as a floating constant expression, per widcc's
// eval_double.
func (p *Parser) evalDouble(n *ast.Node) (float64, bool) {
	if n.Type != nil && ctype.IsInteger(n.Type) {
		v, ok := p.eval(n)
		return float64(v), ok
	}
	switch n.Op {
	case ast.OpNum:
		return n.FloatVal, true
	case ast.OpAdd:
		l, ok1 := p.evalDouble(n.Lhs)
		r, ok2 := p.evalDouble(n.Rhs)
		return l + r, ok1 && ok2
	case ast.OpSub:
		l, ok1 := p.evalDouble(n.Lhs)
		r, ok2 := p.evalDouble(n.Rhs)
		return l - r, ok1 && ok2
	case ast.OpMul:
		l, ok1 := p.evalDouble(n.Lhs)
		r, ok2 := p.evalDouble(n.Rhs)
		return l * r, ok1 && ok2
	case ast.OpDiv:
		l, ok1 := p.evalDouble(n.Lhs)
		r, ok2 := p.evalDouble(n.Rhs)
		return l / r, ok1 && ok2
	case ast.OpNeg:
		l, ok := p.evalDouble(n.Lhs)
		return -l, ok
	case ast.OpCond:
		c, ok := p.evalDouble(n.Cond)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return p.evalDouble(n.Then)
		}
		return p.evalDouble(n.Else)
	case ast.OpComma:
		p.evalDouble(n.Lhs)
		return p.evalDouble(n.Rhs)
	case ast.OpCast:
		v, ok := p.evalDouble(n.Lhs)
		return v, ok
	}
	return 0, false
}

// typeExpr fills n.Type (and descends into children first) by running the
// same semantic rules as widcc's add_type, idempotently: a node whose
// Type is already set is left untouched.
func (p *Parser) typeExpr(n *ast.Node) *ast.Node {
	if n == nil || n.Type != nil {
		return n
	}
	if n.Lhs != nil {
		p.typeExpr(n.Lhs)
	}
	if n.Rhs != nil {
		p.typeExpr(n.Rhs)
	}
	if n.Cond != nil {
		p.typeExpr(n.Cond)
	}
	if n.Then != nil {
		p.typeExpr(n.Then)
	}
	if n.Else != nil {
		p.typeExpr(n.Else)
	}
	for _, a := range n.Args {
		p.typeExpr(a)
	}

	switch n.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		n.Type = ctype.CommonType(n.Lhs.Type, n.Rhs.Type)
	case ast.OpShl, ast.OpShr:
		n.Type = n.Lhs.Type
	case ast.OpNeg:
		ty := ctype.CommonType(ctype.Int, n.Lhs.Type)
		n.Type = ty
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpLogAnd, ast.OpLogOr, ast.OpLogNot:
		n.Type = ctype.Int
	case ast.OpBitNot:
		n.Type = n.Lhs.Type
	case ast.OpAssign:
		if n.Lhs.Type != nil && n.Lhs.Type.Kind == ctype.ARRAY {
			p.errorf(n.Tok, "not an lvalue")
		}
		n.Type = n.Lhs.Type
	case ast.OpComma, ast.OpChain:
		n.Type = n.Rhs.Type
	case ast.OpMember:
		// Type already assigned by structRef.
	case ast.OpAddr:
		t := n.Lhs.Type
		if t != nil && t.Kind == ctype.ARRAY {
			n.Type = ctype.PointerTo(t.Base)
		} else {
			n.Type = ctype.PointerTo(t)
		}
	case ast.OpDeref:
		t := n.Lhs.Type
		if t == nil {
			n.Type = ctype.Int
			break
		}
		switch ctype.Unwrap(t).Kind {
		case ctype.POINTER, ctype.ARRAY, ctype.VLA:
			base := ctype.Unwrap(t).Base
			if base.Kind == ctype.VOID {
				p.errorf(n.Tok, "dereferencing a void pointer")
			}
			n.Type = base
		default:
			p.errorf(n.Tok, "invalid pointer dereference")
			n.Type = ctype.Int
		}
	case ast.OpCond:
		if n.Then == nil {
			n.Type = n.Cond.Type
		} else if n.Then.Type != nil && n.Then.Type.Kind == ctype.VOID {
			n.Type = ctype.Void
		} else {
			n.Type = ctype.CommonType(n.Then.Type, n.Else.Type)
		}
	case ast.OpNum:
		if n.Type == nil {
			n.Type = ctype.Int
		}
	}
	return n
}
