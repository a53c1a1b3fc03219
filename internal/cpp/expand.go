package cpp

import "github.com/fuhsnn/widccgo/internal/token"

// Preprocess runs the full algorithm over tok (spec.md §4.1's top-level
// loop): directive handling interleaved with macro expansion. It returns
// the preprocessed, EOF-terminated token list.
func (c *Context) Preprocess(tok *token.Token) *token.Token {
	tok = c.preprocess2(tok)
	if c.cond != nil {
		c.errorf(c.cond.tok, "unterminated conditional directive")
	}
	tok = c.concatAdjacentStrings(tok)
	tok = c.liftAttributes(tok)
	return tok
}

// preprocess2 walks the token cursor once, splicing macro expansions and
// processing directives inline, per spec.md §4.1 "Expansion algorithm".
func (c *Context) preprocess2(tok *token.Token) *token.Token {
	head := &token.Token{}
	cur := head

	for tok.Kind != token.EOF {
		if c.expandMacro(&tok, tok) {
			continue
		}
		if isHash(tok) {
			tok = c.directive(&cur, tok)
			continue
		}
		cur.Next = tok
		cur = cur.Next
		tok = tok.Next
	}
	cur.Next = tok
	return head.Next
}

func isHash(tok *token.Token) bool {
	return tok.AtBOL && equal(tok, "#")
}

// expandMacro expands tok in place if it names an active macro, per
// widcc's expand_macro: the painter's-trick core of the whole algorithm.
func (c *Context) expandMacro(rest **token.Token, tok *token.Token) bool {
	if tok.DontExpand {
		return false
	}
	m := c.FindMacro(tok)
	if m == nil {
		return false
	}
	if m.IsLocked {
		tok.DontExpand = true
		return false
	}
	if m.Handler != nil {
		*rest = m.Handler(tok)
		alignToken(*rest, tok)
		return true
	}
	if !m.IsObjLike && !equal(tok.Next, "(") {
		return false
	}

	var stopTok *token.Token
	if m.IsObjLike {
		stopTok = tok.Next
		*rest = c.insertObjLike(m.Body, stopTok, tok)
	} else {
		stopTok = c.prepareFunclikeArgs(tok.Next)
		args := c.readMacroArgs(tok.Next.Next, m.Params, m.VaArgsName)
		body := c.subst(m.Body, args)
		*rest = c.insertFunclike(body, stopTok, tok)
	}

	if *rest != stopTok {
		c.pushMacroLock(m, stopTok)
		alignToken(*rest, tok)
	} else {
		(*rest).AtBOL = (*rest).AtBOL || tok.AtBOL
		(*rest).HasSpace = (*rest).HasSpace || tok.HasSpace
	}
	return true
}

// insertObjLike splices an object-like macro's body ahead of tok2,
// performing any `##` pastes that appear literally in the body (not
// parameter substitution, since object-like macros have no parameters),
// per widcc's insert_objlike.
func (c *Context) insertObjLike(body, tok2, orig *token.Token) *token.Token {
	head := &token.Token{}
	cur := head
	origin := orig
	if origin.Origin != nil {
		origin = origin.Origin
	}
	for tok := body; tok.Kind != token.EOF; tok = tok.Next {
		if equal(tok, "##") {
			if cur == head || tok.Next.Kind == token.EOF {
				c.errorf(tok, "'##' cannot appear at either end of macro expansion")
				return tok2
			}
			tok = tok.Next
			*cur = *c.paste(cur, tok)
		} else {
			cur.Next = copyToken(tok)
			cur = cur.Next
		}
		cur.Origin = origin
	}
	cur.Next = tok2
	return head.Next
}

// insertFunclike splices a (already parameter-substituted) function-like
// macro body ahead of tok2, dropping leftover paste markers, per widcc's
// insert_funclike.
func (c *Context) insertFunclike(body, tok2, orig *token.Token) *token.Token {
	head := &token.Token{}
	cur := head
	origin := orig
	if origin.Origin != nil {
		origin = origin.Origin
	}
	for tok := body; tok.Kind != token.EOF; tok = tok.Next {
		if tok.Kind == token.PMARK {
			continue
		}
		cur.Next = tok
		cur = cur.Next
		cur.Origin = origin
	}
	cur.Next = tok2
	return head.Next
}

// prepareFunclikeArgs scans from the opening "(" to its matching ")",
// releasing macro locks as it crosses their stop tokens and running
// directive processing over any nested lines, so that directives legally
// appearing inside a macro-call argument list are handled before the
// outer call is expanded (spec.md §4.1). Returns the token after ")".
func (c *Context) prepareFunclikeArgs(start *token.Token) *token.Token {
	c.popMacroLock(start)

	cur := start
	lvl := 0
	tok := start.Next
	for {
		if tok.Kind == token.EOF {
			c.errorf(start, "unterminated list")
			return tok
		}
		if c.locked == nil && isHash(tok) {
			var newCur *token.Token
			tok = c.directive(&newCur, tok)
			if newCur != nil {
				cur.Next = newCur
				cur = newCur
			}
			continue
		}
		if c.locked != nil {
			c.popMacroLock(tok)
			if m := c.FindMacro(tok); m != nil && m.IsLocked {
				tok.DontExpand = true
			}
		}
		cur.Next = tok
		cur = cur.Next

		if lvl == 0 && equal(tok, ")") {
			break
		}
		if equal(tok, "(") {
			lvl++
		} else if equal(tok, ")") {
			lvl--
		}
		tok = tok.Next
	}
	return cur.Next
}

// paste concatenates two tokens lexically and re-tokenizes the result; it
// must yield exactly one token (spec.md §4.1 substitution rule (b)).
// Since the full lexer lives in internal/lexer (out of the preprocessor's
// scope per spec.md §1), paste asks the Context's configured retokenizer.
func (c *Context) paste(lhs, rhs *token.Token) *token.Token {
	text := lhs.Text + rhs.Text
	tok, extra, ok := c.Retokenize(text, lhs)
	if !ok || extra != nil {
		c.errorf(lhs, "pasting forms %q, an invalid token", text)
		return lhs
	}
	alignToken(tok, lhs)
	return tok
}

// Retokenizer turns a short string (the result of ## paste or #include
// FOO macro expansion) back into exactly-one-or-more tokens. Implemented
// by internal/lexer; kept as a function value so cpp has no import-time
// dependency on the lexer package (avoids a cycle and matches spec.md's
// "lexer is an external collaborator" framing).
type RetokenizeFunc func(text string, tmpl *token.Token) (first, rest *token.Token, ok bool)

// defaultRetokenize is the fallback for a Context with no retokenizer of
// its own. Nothing in this module assigns it; the driver installs a
// retokenizer per Context with SetRetokenizer.
var defaultRetokenize RetokenizeFunc

func (c *Context) Retokenize(text string, tmpl *token.Token) (*token.Token, *token.Token, bool) {
	fn := c.retokenize
	if fn == nil {
		fn = defaultRetokenize
	}
	if fn == nil {
		return nil, nil, false
	}
	first, rest, ok := fn(text, tmpl)
	return first, rest, ok
}

// SetRetokenizer installs the lexer-backed retokenizer for this Context.
func (c *Context) SetRetokenizer(fn RetokenizeFunc) { c.retokenize = fn }
