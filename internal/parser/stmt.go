package parser

import (
	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/token"
)

// compoundStmt parses a "{" declaration-or-statement* "}" block, chaining
// the results through Node.Next, per widcc's compound_stmt.
func (p *Parser) compoundStmt(rest **token.Token, tok *token.Token) *ast.Node {
	tok = p.skip(&tok, tok, "{")
	var head, cur *ast.Node
	p.enterScope()
	for !equal(tok, "}") {
		var n *ast.Node
		if p.isTypename(tok) && !equal(tok.Next, ":") {
			attr := &VarAttr{}
			basety := p.declspec(&tok, tok, attr)
			if attr.IsTypedef {
				tok = p.parseTypedef(tok, basety)
				continue
			}
			if p.isFunction(tok) {
				// A nested function-looking declarator inside a block is
				// not supported (no nested functions); skip to ";".
				p.errorf(tok, "nested function declarations are not supported")
				for !equal(tok, ";") && tok.Kind != token.EOF {
					tok = tok.Next
				}
				if equal(tok, ";") {
					tok = tok.Next
				}
				continue
			}
			n = p.localDeclaration(&tok, tok, basety, attr)
		} else if equal(tok, "_Static_assert") {
			tok = p.staticAssertion(tok)
			continue
		} else {
			n = p.stmt(&tok, tok)
		}
		p.typeExpr(n)
		if head == nil {
			head, cur = n, n
		} else {
			cur.Next = n
			cur = n
		}
	}
	p.leaveScope()
	tok = p.skip(rest, tok, "}")
	block := newNode(ast.OpBlock, tok)
	block.Body = head
	return block
}

// localDeclaration parses one block-scope declaration list (a sequence of
// declarators sharing basety), wrapping each initializer as an assignment
// statement chained via OpChain, per widcc's declaration().
func (p *Parser) localDeclaration(rest **token.Token, tok *token.Token, basety *ctype.Type, attr *VarAttr) *ast.Node {
	var chain *ast.Node
	first := true
	for !consume(&tok, tok, ";") {
		if !first {
			tok = p.skip(&tok, tok, ",")
		}
		first = false

		var nameTok *token.Token
		ty := p.declarator(&tok, tok, basety, &nameTok)
		if ty.Kind == ctype.VOID {
			p.errorf(tok, "variable declared void")
			continue
		}
		if nameTok == nil {
			p.errorf(tok, "variable name omitted")
			continue
		}

		// Compute any VLA size this declarator's type depends on, even if
		// ty itself isn't a VLA (it may be a pointer to one), per widcc's
		// declaration().
		chainExpr(&chain, p.computeVLASize(ty, nameTok))

		if attr.IsStatic {
			if ty.Kind == ctype.VLA {
				p.errorf(tok, "variable length arrays cannot be 'static'")
			}
			v := p.newStaticLvar(ty)
			sv := p.pushScopeVar(nameTok.Name())
			sv.Obj = v
			if consume(&tok, tok, "=") {
				tok = p.gvarInitializer(tok, v)
			}
			continue
		}

		if ty.Kind == ctype.VLA {
			if equal(tok, "=") {
				p.errorf(tok, "variable-sized object may not be initialized")
			}
			v := p.newLvar(nameTok.Name(), ty)
			chainExpr(&chain, newVLAAlloc(p.newVarNode(ty.VLASizeVar.(*ast.Obj), nameTok), v, nameTok))
			if p.curFn != nil {
				p.curFn.DeallocVLA = true
			}
			p.scope.CurrentVLA = v
			continue
		}

		v := p.newLvar(nameTok.Name(), ty)
		if attr.Align > 0 {
			v.Type = cloneWithAlign(ty, attr.Align)
		}
		if consume(&tok, tok, "=") {
			init, r := p.lvarInitializer(tok, v)
			tok = r
			chainExpr(&chain, init)
		}
	}
	*rest = tok
	if chain == nil {
		n := newNode(ast.OpBlock, tok)
		return n
	}
	es := newNode(ast.OpExprStmt, tok)
	es.Lhs = chain
	return es
}

func cloneWithAlign(ty *ctype.Type, align int) *ctype.Type {
	c := *ty
	c.Align = align
	return &c
}

// staticAssertion consumes "_Static_assert(const-expr, string)? ;",
// checking the constant at parse time per widcc's static_assertion.
func (p *Parser) staticAssertion(tok *token.Token) *token.Token {
	tok = tok.Next
	tok = p.skip(&tok, tok, "(")
	v, rest := p.constExpr(tok)
	tok = rest
	if consume(&tok, tok, ",") {
		if tok.Kind == token.STR {
			if v == 0 {
				p.errorf(tok, "static assertion failed: %s", string(tok.Str))
			}
			tok = tok.Next
		}
	} else if v == 0 {
		p.errorf(tok, "static assertion failed")
	}
	tok = p.skip(&tok, tok, ")")
	return p.skip(&tok, tok, ";")
}

// stmt dispatches on the leading keyword, per widcc's stmt().
func (p *Parser) stmt(rest **token.Token, tok *token.Token) *ast.Node {
	switch {
	case equal(tok, "return"):
		return p.returnStmt(rest, tok)
	case equal(tok, "if"):
		return p.ifStmt(rest, tok)
	case equal(tok, "switch"):
		return p.switchStmt(rest, tok)
	case equal(tok, "case"):
		return p.caseStmt(rest, tok)
	case equal(tok, "default"):
		return p.defaultStmt(rest, tok)
	case equal(tok, "for"):
		return p.forStmt(rest, tok)
	case equal(tok, "while"):
		return p.whileStmt(rest, tok)
	case equal(tok, "do"):
		return p.doStmt(rest, tok)
	case equal(tok, "asm"), equal(tok, "__asm__"), equal(tok, "__asm"):
		return p.asmStmt(rest, tok)
	case equal(tok, "goto"):
		return p.gotoStmt(rest, tok)
	case equal(tok, "break"):
		n := newNode(ast.OpBreak, tok)
		*rest = p.skip(rest, tok.Next, ";")
		return n
	case equal(tok, "continue"):
		n := newNode(ast.OpContinue, tok)
		*rest = p.skip(rest, tok.Next, ";")
		return n
	case tok.Kind == token.IDENT && equal(tok.Next, ":"):
		return p.labelStmt(rest, tok)
	case equal(tok, "{"):
		return p.compoundStmt(rest, tok)
	}
	return p.exprStmt(rest, tok)
}

func (p *Parser) returnStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpReturn, tok)
	if consume(rest, tok.Next, ";") {
		return n
	}
	v := p.expr(&tok, tok.Next)
	*rest = p.skip(rest, tok, ";")
	n.Lhs = v
	return n
}

func (p *Parser) ifStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpIf, tok)
	tok = p.skip(&tok, tok.Next, "(")
	n.Cond = p.expr(&tok, tok)
	tok = p.skip(&tok, tok, ")")
	n.Then = p.stmt(&tok, tok)
	if equal(tok, "else") {
		n.Else = p.stmt(&tok, tok.Next)
	}
	*rest = tok
	return n
}

func (p *Parser) switchStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpSwitch, tok)
	tok = p.skip(&tok, tok.Next, "(")
	n.Cond = p.expr(&tok, tok)
	tok = p.skip(&tok, tok, ")")
	n.Body = p.stmt(rest, tok)
	return n
}

func (p *Parser) caseStmt(rest **token.Token, tok *token.Token) *ast.Node {
	start := tok
	v, r := p.constExpr(tok.Next)
	tok = r
	n := newNode(ast.OpCase, start)
	n.CaseBegin = v
	n.CaseEnd = v
	if equal(tok, "...") {
		v2, r2 := p.constExpr(tok.Next)
		tok = r2
		n.CaseEnd = v2
	}
	tok = p.skip(&tok, tok, ":")
	n.Lhs = p.stmt(rest, tok)
	return n
}

func (p *Parser) defaultStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpCase, tok)
	n.CaseLabel = "default"
	tok = p.skip(&tok, tok.Next, ":")
	n.Lhs = p.stmt(rest, tok)
	return n
}

func (p *Parser) forStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpFor, tok)
	tok = p.skip(&tok, tok.Next, "(")
	p.enterScope()

	if p.isTypename(tok) {
		basety := p.declspec(&tok, tok, nil)
		n.Init = p.localDeclaration(&tok, tok, basety, &VarAttr{})
	} else if !equal(tok, ";") {
		e := p.expr(&tok, tok)
		es := newNode(ast.OpExprStmt, tok)
		es.Lhs = e
		n.Init = es
		tok = p.skip(&tok, tok, ";")
	} else {
		tok = tok.Next
	}

	if !equal(tok, ";") {
		n.Cond = p.expr(&tok, tok)
	}
	tok = p.skip(&tok, tok, ";")

	if !equal(tok, ")") {
		n.Inc = p.expr(&tok, tok)
	}
	tok = p.skip(&tok, tok, ")")

	n.Then = p.loopBody(rest, tok)
	p.leaveScope()
	return n
}

func (p *Parser) whileStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpFor, tok)
	tok = p.skip(&tok, tok.Next, "(")
	n.Cond = p.expr(&tok, tok)
	tok = p.skip(&tok, tok, ")")
	n.Then = p.loopBody(rest, tok)
	return n
}

func (p *Parser) doStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpDo, tok)
	n.Then = p.loopBody(&tok, tok.Next)
	tok = p.skip(&tok, tok, "while")
	tok = p.skip(&tok, tok, "(")
	n.Cond = p.expr(&tok, tok)
	tok = p.skip(&tok, tok, ")")
	*rest = p.skip(rest, tok, ";")
	return n
}

// loopBody parses a loop's controlled statement. It is a plain stmt call:
// it opens no scope and records nothing about the enclosing VLA chain.
func (p *Parser) loopBody(rest **token.Token, tok *token.Token) *ast.Node {
	return p.stmt(rest, tok)
}

func (p *Parser) gotoStmt(rest **token.Token, tok *token.Token) *ast.Node {
	start := tok
	tok = tok.Next
	if equal(tok, "*") {
		// GNU computed goto: goto *expr;
		n := newNode(ast.OpGotoComputed, start)
		n.Lhs = p.expr(&tok, tok.Next)
		*rest = p.skip(rest, tok, ";")
		return n
	}
	n := newNode(ast.OpGoto, start)
	n.Label = tok.Name()
	n.TopVLA = p.currentVLA()
	p.gotos = append(p.gotos, n)
	tok = tok.Next
	*rest = p.skip(rest, tok, ";")
	return n
}

func (p *Parser) labelStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpLabel, tok)
	n.Label = tok.Name()
	n.UniqueLabel = p.newUniqueName()
	n.TopVLA = p.currentVLA()
	p.labelUses = append(p.labelUses, n)
	n.Lhs = p.stmt(rest, tok.Next.Next)
	return n
}

// asmStmt parses a GNU basic/extended inline-asm statement. Operands are
// not parsed: every string literal inside the parentheses (the template
// and, for extended asm, the constraint strings) is concatenated into
// Label, which codegen emits verbatim.
func (p *Parser) asmStmt(rest **token.Token, tok *token.Token) *ast.Node {
	n := newNode(ast.OpAsm, tok)
	tok = tok.Next
	for equal(tok, "volatile") || equal(tok, "__volatile__") || equal(tok, "inline") {
		tok = tok.Next
	}
	tok = p.skip(&tok, tok, "(")
	depth := 1
	for depth > 0 {
		if equal(tok, "(") {
			depth++
		} else if equal(tok, ")") {
			depth--
			if depth == 0 {
				break
			}
		} else if tok.Kind == token.STR {
			n.Label += string(tok.Str)
		}
		tok = tok.Next
	}
	tok = tok.Next // ")"
	*rest = p.skip(rest, tok, ";")
	return n
}

// exprStmt parses an expression statement or a bare ";", per widcc's
// expr_stmt.
func (p *Parser) exprStmt(rest **token.Token, tok *token.Token) *ast.Node {
	if equal(tok, ";") {
		*rest = tok.Next
		return newNode(ast.OpBlock, tok)
	}
	n := newNode(ast.OpExprStmt, tok)
	n.Lhs = p.expr(&tok, tok)
	*rest = p.skip(rest, tok, ";")
	return n
}

// resolveGotoLabels matches every goto against the labels declared in the
// same function, per widcc's resolve_goto_labels; function() runs it at
// the end of each function definition.
func (p *Parser) resolveGotoLabels() {
	for _, g := range p.gotos {
		for _, l := range p.labelUses {
			if g.Label == l.Label {
				g.UniqueLabel = l.UniqueLabel
				g.TargetVLA = l.TopVLA
				break
			}
		}
		if g.UniqueLabel == "" {
			p.errorf(g.Tok, "use of undeclared label: %s", g.Label)
		}
	}
	p.gotos = nil
	p.labelUses = nil
}
