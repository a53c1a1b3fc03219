package cpp

import (
	"strings"

	"github.com/fuhsnn/widccgo/internal/token"
)

// skipLine tolerates trailing tokens before a newline on directives that
// allow them (e.g. #endif foo), warning once, per widcc's skip_line.
func (c *Context) skipLine(tok *token.Token) *token.Token {
	if tok.AtBOL {
		return tok
	}
	c.warnf(tok, "extra token")
	for !tok.AtBOL {
		tok = tok.Next
	}
	return tok
}

// directive processes one "#"-introduced line starting at tok (tok is
// the "#" token). No directive here produces tokens of its own, so *cur
// is left unchanged. Returns the cursor positioned after the directive
// line.
func (c *Context) directive(cur **token.Token, tok *token.Token) *token.Token {
	start := tok
	tok = tok.Next // skip "#"

	if tok.AtBOL {
		// A lone "#" on its own line is a null directive; ignored.
		return tok
	}

	isFirstDirective := false
	if start.File != nil {
		isFirstDirective = !c.fileSeen[start.File.Name]
		c.fileSeen[start.File.Name] = true
	}

	name := tok.Name()
	switch name {
	case "define":
		return c.readMacroDefinition(tok.Next)
	case "undef":
		return c.directiveUndef(tok.Next)
	case "include":
		return c.directiveInclude(tok.Next, false)
	case "include_next":
		return c.directiveInclude(tok.Next, true)
	case "if":
		return c.directiveIf(start, tok.Next)
	case "ifdef":
		return c.directiveIfdef(start, tok.Next, true, false)
	case "ifndef":
		return c.directiveIfdef(start, tok.Next, false, isFirstDirective)
	case "elif":
		return c.directiveElif(start, tok.Next)
	case "else":
		return c.directiveElse(start, tok.Next)
	case "endif":
		return c.directiveEndif(start, tok.Next)
	case "line":
		return c.directiveLine(tok.Next)
	case "pragma":
		return c.directivePragma(tok.Next)
	case "error":
		c.errorf(tok, "#error %s", lineText(tok.Next))
		return skipToEOL(tok.Next)
	case "warning":
		c.warnf(tok, "#warning %s", lineText(tok.Next))
		return skipToEOL(tok.Next)
	default:
		if tok.Kind == token.NUM {
			// GCC-style line marker: "# 1 \"file\" flags"
			return c.directiveLineMarker(tok)
		}
		c.errorf(tok, "invalid preprocessing directive")
		return skipToEOL(tok)
	}
}

func skipToEOL(tok *token.Token) *token.Token {
	for !tok.AtBOL && tok.Kind != token.EOF {
		tok = tok.Next
	}
	return tok
}

func lineText(tok *token.Token) string {
	var b strings.Builder
	first := true
	for !tok.AtBOL && tok.Kind != token.EOF {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(tok.Text)
		tok = tok.Next
	}
	return b.String()
}

// readMacroDefinition handles #define, both object-like and
// function-like forms, per widcc's read_macro_definition /
// read_macro_params.
func (c *Context) readMacroDefinition(tok *token.Token) *token.Token {
	if tok.Kind != token.IDENT {
		c.errorf(tok, "macro name must be an identifier")
		return c.skipLine(tok)
	}
	name := tok.Name()
	tok = tok.Next

	if !tok.HasSpace && equal(tok, "(") {
		var params []string
		vaArgsName := ""
		tok = tok.Next // skip "("
		first := true
		for !equal(tok, ")") {
			if !first {
				tok = c.skip(tok, ",")
			}
			first = false
			if equal(tok, "...") {
				vaArgsName = "__VA_ARGS__"
				tok = c.skip(tok.Next, ")")
				break
			}
			if tok.Kind != token.IDENT {
				c.errorf(tok, "expected an identifier")
				break
			}
			if equal(tok.Next, "...") {
				vaArgsName = tok.Name()
				tok = c.skip(tok.Next.Next, ")")
				break
			}
			params = append(params, tok.Name())
			tok = tok.Next
		}
		if equal(tok, ")") {
			// only reachable when params is empty and loop exited via the
			// while-condition rather than a break above.
		}
		body, rest := splitLine(tok)
		c.DefineFuncLike(name, params, vaArgsName, body)
		return rest
	}

	body, rest := splitLine(tok)
	c.DefineObjLike(name, body)
	return rest
}

func (c *Context) directiveUndef(tok *token.Token) *token.Token {
	if tok.Kind != token.IDENT {
		c.errorf(tok, "macro name must be an identifier")
		return c.skipLine(tok)
	}
	c.Undef(tok.Name())
	return c.skipLine(tok.Next)
}

func (c *Context) directiveIf(hash, tok *token.Token) *token.Token {
	val, rest := c.EvalConstExpr(tok)
	c.pushCondIncl(hash, val)
	if !val {
		rest = skipCondIncl(rest)
	}
	return rest
}

func (c *Context) directiveIfdef(hash, tok *token.Token, wantDefined, guardCandidate bool) *token.Token {
	guardName := ""
	if tok.Kind == token.IDENT {
		guardName = tok.Name()
	}
	defined := c.FindMacro(tok) != nil
	included := defined == wantDefined
	ci := c.pushCondIncl(hash, included)
	if guardCandidate && guardName != "" && hash.File != nil {
		c.pendingGuard[ci] = guardCand{file: hash.File.Name, guard: guardName}
	}
	rest := c.skipLine(tok.Next)
	if !included {
		rest = skipCondIncl(rest)
	}
	return rest
}

func (c *Context) directiveElif(hash, tok *token.Token) *token.Token {
	if c.cond == nil || c.cond.ctx == CondElse {
		c.errorf(hash, "stray #elif")
		return skipToEOL(tok)
	}
	c.cond.ctx = CondElif
	if c.cond.included {
		// A branch in this group already taken; this elif is dead,
		// per spec.md §4.1: "#elif is evaluated only if no branch in
		// its group has yet been taken."
		return skipCondIncl(skipToEOL(tok))
	}
	val, rest := c.EvalConstExpr(tok)
	c.cond.included = val
	if !val {
		rest = skipCondIncl(rest)
	}
	return rest
}

func (c *Context) directiveElse(hash, tok *token.Token) *token.Token {
	if c.cond == nil || c.cond.ctx == CondElse {
		c.errorf(hash, "stray #else")
		return skipToEOL(tok)
	}
	c.cond.ctx = CondElse
	rest := c.skipLine(tok)
	if c.cond.included {
		return skipCondIncl(rest)
	}
	c.cond.included = true
	return rest
}

func (c *Context) directiveEndif(hash, tok *token.Token) *token.Token {
	if c.cond == nil {
		c.errorf(hash, "stray #endif")
		return skipToEOL(tok)
	}
	// Include-guard detection (spec.md §4.1): if this #endif matches a
	// top-level #ifndef GUARD that spans the whole file, remember the
	// guard name against the file so the next #include of it can be
	// skipped without rescanning, so long as GUARD stays defined.
	rest := c.skipLine(tok)
	if g, ok := c.pendingGuard[c.cond]; ok {
		if rest.Kind == token.EOF || rest.File == nil || rest.File.Name != g.file {
			c.includeGuards[g.file] = g.guard
		}
		delete(c.pendingGuard, c.cond)
	}
	c.cond = c.cond.next
	return rest
}

func (c *Context) directiveLine(tok *token.Token) *token.Token {
	line, rest := splitLine(tok)
	line = c.readConstExpr(line)
	if line.Kind == token.EOF || line.Kind != token.NUM {
		c.errorf(tok, "invalid line marker")
		return rest
	}
	n := int(line.Num)
	file := ""
	next := line.Next
	if next.Kind == token.STR {
		file = string(next.Str)
	}
	c.applyLineControl(rest, n, file)
	return rest
}

func (c *Context) directiveLineMarker(tok *token.Token) *token.Token {
	line, rest := splitLine(tok)
	n := int(line.Num)
	file := ""
	if line.Next != nil && line.Next.Kind == token.STR {
		file = string(line.Next.Str)
	}
	c.applyLineControl(rest, n, file)
	return rest
}

// applyLineControl updates DisplayFile/DisplayLine on every subsequent
// token until the next file boundary, per spec.md §4.1 "Line control".
// A production implementation threads this through the lexer's running
// state; here it is modeled as a direct rewrite of the remaining list's
// display fields up to the next FMARK, which is equivalent for a single
// pass and keeps the preprocessor stateless between calls.
func (c *Context) applyLineControl(tok *token.Token, startLine int, file string) {
	line := startLine
	for tok != nil && tok.Kind != token.EOF && tok.Kind != token.FMARK {
		tok.DisplayLine = line
		if file != "" {
			tok.DisplayFile = file
		}
		line++
		if tok.Next != nil && tok.Next.AtBOL {
			// next physical line
		}
		tok = tok.Next
	}
}

func (c *Context) directivePragma(tok *token.Token) *token.Token {
	if equal(tok, "once") {
		if tok.File != nil {
			c.pragmaOnce[tok.File.Name] = true
		}
		return c.skipLine(tok.Next)
	}
	// Other pragmas are recorded as a warning-free no-op; GCC-compatible
	// compilers largely ignore unknown pragmas rather than rejecting
	// them.
	return skipToEOL(tok)
}
