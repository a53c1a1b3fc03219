package cpp

import (
	"strconv"

	"github.com/fuhsnn/widccgo/internal/token"
)

// condExprEval is a small self-contained integer constant-expression
// evaluator scoped to what `#if`/`#elif` actually need: integer literals
// and the subset of C operators with no types, variables, or function
// calls. The full dual (integer/floating) evaluator with eval_recover
// lives in internal/parser (spec.md §4.3) since ordinary constant
// expressions in initializers and case labels need the complete type
// system; #if expressions don't, so duplicating a tiny evaluator here
// avoids a parser<->cpp import cycle.
type condExprEval struct {
	c   *Context
	tok *token.Token
}

// readConstExpr macro-expands tok up to end-of-line, turning `defined X`
// / `defined(X)` into 1/0 and any remaining non-macro identifier into 0,
// per widcc's read_const_expr.
func (c *Context) readConstExpr(tok *token.Token) *token.Token {
	head := &token.Token{}
	cur := head

	for tok.Kind != token.EOF {
		if c.expandMacro(&tok, tok) {
			c.popMacroLock(tok)
			continue
		}
		if equal(tok, "defined") {
			start := tok
			tok = tok.Next
			hasParen := equal(tok, "(")
			if hasParen {
				tok = tok.Next
			}
			if tok.Kind != token.IDENT {
				c.errorf(start, "macro name must be an identifier")
			}
			val := int64(0)
			if c.FindMacro(tok) != nil {
				val = 1
			}
			numTok := start.Copy()
			numTok.Kind = token.NUM
			numTok.Num = val
			cur.Next = numTok
			cur = cur.Next
			tok = tok.Next
			if hasParen {
				tok = c.skip(tok, ")")
			}
			continue
		}
		if tok.Kind == token.IDENT {
			numTok := tok.Copy()
			numTok.Kind = token.NUM
			numTok.Num = 0
			cur.Next = numTok
			cur = cur.Next
			tok = tok.Next
			c.popMacroLock(tok)
			continue
		}
		cur.Next = tok
		cur = cur.Next
		tok = tok.Next
		c.popMacroLock(tok)
	}
	cur.Next = tok
	return head.Next
}

// EvalConstExpr reads and evaluates one `#if`/`#elif` line starting right
// after the directive keyword, returning the boolean result and the
// token following the consumed line.
func (c *Context) EvalConstExpr(afterKeyword *token.Token) (bool, *token.Token) {
	line, rest := splitLine(afterKeyword)
	line = c.readConstExpr(line)
	if line.Kind == token.EOF {
		c.errorf(afterKeyword, "no expression")
		return false, rest
	}
	e := &condExprEval{c: c, tok: line}
	val := e.expr()
	if e.tok.Kind != token.EOF {
		c.errorf(e.tok, "extra token")
	}
	return val != 0, rest
}

func (e *condExprEval) next() *token.Token { return e.tok }

func (e *condExprEval) advance() *token.Token {
	t := e.tok
	e.tok = e.tok.Next
	return t
}

func (e *condExprEval) expr() int64  { return e.ternary() }

func (e *condExprEval) ternary() int64 {
	cond := e.logOr()
	if equal(e.tok, "?") {
		e.advance()
		then := e.expr()
		if equal(e.tok, ":") {
			e.advance()
		} else {
			e.c.errorf(e.tok, "expected ':'")
		}
		els := e.ternary()
		if cond != 0 {
			return then
		}
		return els
	}
	return cond
}

func (e *condExprEval) logOr() int64 {
	v := e.logAnd()
	for equal(e.tok, "||") {
		e.advance()
		r := e.logAnd()
		if v != 0 || r != 0 {
			v = 1
		} else {
			v = 0
		}
	}
	return v
}

func (e *condExprEval) logAnd() int64 {
	v := e.bitOr()
	for equal(e.tok, "&&") {
		e.advance()
		r := e.bitOr()
		if v != 0 && r != 0 {
			v = 1
		} else {
			v = 0
		}
	}
	return v
}

func (e *condExprEval) bitOr() int64 {
	v := e.bitXor()
	for equal(e.tok, "|") {
		e.advance()
		v |= e.bitXor()
	}
	return v
}

func (e *condExprEval) bitXor() int64 {
	v := e.bitAnd()
	for equal(e.tok, "^") {
		e.advance()
		v ^= e.bitAnd()
	}
	return v
}

func (e *condExprEval) bitAnd() int64 {
	v := e.equality()
	for equal(e.tok, "&") {
		e.advance()
		v &= e.equality()
	}
	return v
}

func (e *condExprEval) equality() int64 {
	v := e.relational()
	for {
		if equal(e.tok, "==") {
			e.advance()
			v = b2i(v == e.relational())
		} else if equal(e.tok, "!=") {
			e.advance()
			v = b2i(v != e.relational())
		} else {
			return v
		}
	}
}

func (e *condExprEval) relational() int64 {
	v := e.shift()
	for {
		switch {
		case equal(e.tok, "<"):
			e.advance()
			v = b2i(v < e.shift())
		case equal(e.tok, "<="):
			e.advance()
			v = b2i(v <= e.shift())
		case equal(e.tok, ">"):
			e.advance()
			v = b2i(v > e.shift())
		case equal(e.tok, ">="):
			e.advance()
			v = b2i(v >= e.shift())
		default:
			return v
		}
	}
}

func (e *condExprEval) shift() int64 {
	v := e.additive()
	for {
		if equal(e.tok, "<<") {
			e.advance()
			v <<= uint(e.additive())
		} else if equal(e.tok, ">>") {
			e.advance()
			v >>= uint(e.additive())
		} else {
			return v
		}
	}
}

func (e *condExprEval) additive() int64 {
	v := e.mul()
	for {
		if equal(e.tok, "+") {
			e.advance()
			v += e.mul()
		} else if equal(e.tok, "-") {
			e.advance()
			v -= e.mul()
		} else {
			return v
		}
	}
}

func (e *condExprEval) mul() int64 {
	v := e.unary()
	for {
		switch {
		case equal(e.tok, "*"):
			e.advance()
			v *= e.unary()
		case equal(e.tok, "/"):
			e.advance()
			d := e.unary()
			if d == 0 {
				e.c.errorf(e.tok, "division by zero")
				return 0
			}
			v /= d
		case equal(e.tok, "%"):
			e.advance()
			d := e.unary()
			if d == 0 {
				e.c.errorf(e.tok, "division by zero")
				return 0
			}
			v %= d
		default:
			return v
		}
	}
}

func (e *condExprEval) unary() int64 {
	switch {
	case equal(e.tok, "+"):
		e.advance()
		return e.unary()
	case equal(e.tok, "-"):
		e.advance()
		return -e.unary()
	case equal(e.tok, "!"):
		e.advance()
		return b2i(e.unary() == 0)
	case equal(e.tok, "~"):
		e.advance()
		return ^e.unary()
	}
	return e.primary()
}

func (e *condExprEval) primary() int64 {
	if equal(e.tok, "(") {
		e.advance()
		v := e.expr()
		if equal(e.tok, ")") {
			e.advance()
		} else {
			e.c.errorf(e.tok, "expected ')'")
		}
		return v
	}
	t := e.tok
	if t.Kind == token.NUM || t.Kind == token.PPNUM {
		e.advance()
		if t.Num != 0 || t.Text == "" {
			return t.Num
		}
		n, err := strconv.ParseInt(trimIntSuffix(t.Text), 0, 64)
		if err != nil {
			return 0
		}
		return n
	}
	e.c.errorf(t, "expected an expression")
	e.advance()
	return 0
}

func trimIntSuffix(s string) string {
	end := len(s)
	for end > 0 {
		c := s[end-1]
		if c == 'u' || c == 'U' || c == 'l' || c == 'L' {
			end--
			continue
		}
		break
	}
	return s[:end]
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// splitLine splits tokens up to (not including) the next at_bol token
// into an EOF-terminated list, per widcc's split_line.
func splitLine(tok *token.Token) (line *token.Token, rest *token.Token) {
	head := &token.Token{Next: tok}
	cur := head
	for !cur.Next.AtBOL {
		cur = cur.Next
	}
	rest = cur.Next
	cur.Next = token.NewEOF(tok)
	return head.Next, rest
}
