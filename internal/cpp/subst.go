package cpp

import (
	"strings"

	"github.com/fuhsnn/widccgo/internal/token"
)

// macroArg is one bound actual argument (spec.md §3 Macro, MacroArg).
type macroArg struct {
	name       string
	isVaArgs   bool
	omitComma  bool
	tok        *token.Token // raw (unexpanded) tokens
	expanded   *token.Token // cached expansion, filled lazily
}

// readMacroArgOne reads one comma/paren-delimited argument starting at
// tok, stopping at the matching ")" or (if readRest) consuming through
// the final ")", per widcc's read_macro_arg_one.
func (c *Context) readMacroArgOne(tok *token.Token, readRest bool) (*macroArg, *token.Token) {
	head := &token.Token{}
	cur := head
	level := 0
	start := tok
	for {
		if level == 0 && equal(tok, ")") {
			break
		}
		if level == 0 && !readRest && equal(tok, ",") {
			break
		}
		if tok.Kind == token.EOF {
			c.errorf(start, "unterminated argument list")
			break
		}
		if equal(tok, "(") {
			level++
		} else if equal(tok, ")") {
			level--
		}
		cur.Next = copyToken(tok)
		cur = cur.Next
		tok = tok.Next
	}
	cur.Next = newEOF(tok)
	return &macroArg{tok: head.Next}, tok
}

// readMacroArgs binds positional params and the variadic tail, per
// widcc's read_macro_args.
func (c *Context) readMacroArgs(tok *token.Token, params []string, vaArgsName string) []*macroArg {
	var args []*macroArg
	first := true
	for _, p := range params {
		if !first {
			tok = c.skip(tok, ",")
		}
		first = false
		arg, rest := c.readMacroArgOne(tok, false)
		arg.name = p
		args = append(args, arg)
		tok = rest
	}

	if vaArgsName != "" {
		start := tok
		if !equal(tok, ")") && len(params) > 0 {
			tok = c.skip(tok, ",")
		}
		arg, rest := c.readMacroArgOne(tok, true)
		arg.omitComma = equal(start, ")")
		arg.name = vaArgsName
		arg.isVaArgs = true
		args = append(args, arg)
		tok = rest
	}
	c.skip(tok, ")")
	return args
}

func (c *Context) skip(tok *token.Token, s string) *token.Token {
	if !equal(tok, s) {
		c.errorf(tok, "expected %q", s)
		return tok
	}
	return tok.Next
}

// expandArg fully macro-expands one argument's tokens, caching the result
// (spec.md §4.1 substitution rule (d)).
func (c *Context) expandArg(arg *macroArg) *token.Token {
	if arg.expanded != nil {
		return arg.expanded
	}
	head := &token.Token{}
	cur := head
	tok := arg.tok
	for tok.Kind != token.EOF {
		if c.expandMacro(&tok, tok) {
			c.popMacroLock(tok)
			continue
		}
		cur.Next = copyToken(tok)
		cur = cur.Next
		tok = tok.Next
		c.popMacroLock(tok)
	}
	cur.Next = newEOF(tok)
	arg.expanded = head.Next
	return arg.expanded
}

// findArg looks up tok's name among args, or handles __VA_OPT__(...).
func (c *Context) findArg(tok *token.Token, args []*macroArg) (*macroArg, *token.Token) {
	for _, a := range args {
		if equal(tok, a.name) {
			return a, tok.Next
		}
	}
	if equal(tok, "__VA_OPT__") && equal(tok.Next, "(") {
		arg, rest := c.readMacroArgOne(tok.Next.Next, true)
		var va *macroArg
		for _, a := range args {
			if a.isVaArgs {
				va = a
			}
		}
		if va != nil && c.expandArg(va).Kind != token.EOF {
			arg.tok = c.subst(arg.tok, args)
		} else {
			arg.tok = newEOF(tok)
		}
		arg.expanded = arg.tok
		return arg, rest
	}
	return nil, nil
}

// joinTokens concatenates token spellings with single spaces where the
// source had whitespace, per widcc's join_tokens. When addSlash is set
// (stringizing), backslash and double-quote bytes inside STR/NUM/PPNUM
// tokens are escaped with escapeForStringize so the result is a legal C
// string body.
func joinTokens(tok, end *token.Token, addSlash bool) string {
	var b strings.Builder
	first := true
	for t := tok; t != end; t = t.Next {
		if (t.HasSpace || t.AtBOL) && !first {
			b.WriteByte(' ')
		}
		first = false
		if addSlash && (t.Kind == token.STR || t.Kind == token.NUM || t.Kind == token.PPNUM) {
			b.WriteString(escapeForStringize(t.Text))
			continue
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// escapeForStringize backslash-escapes '"' and '\' the way the # operator
// requires (spec.md §4.1 substitution rule (a)), with plain byte-level
// string building from the standard library rather than cznic/strutil.
func escapeForStringize(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' || ch == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// stringize implements the "#" operator: concatenate tok..end's *raw*
// spelling (skipping paste markers) into a single string literal token.
func (c *Context) stringize(hash, tok *token.Token) *token.Token {
	head := &token.Token{}
	cur := head
	end := tok
	for end.Kind != token.EOF {
		if end.Kind != token.PMARK {
			cur.Next = end
			cur = cur.Next
		}
		end = end.Next
	}
	cur.Next = end
	str := joinTokens(head.Next, end, true)
	return c.newStrToken(str, hash)
}

func (c *Context) newStrToken(str string, tmpl *token.Token) *token.Token {
	t := tmpl.Copy()
	t.Kind = token.STR
	t.Str = append([]byte(str), 0)
	t.Text = `"` + str + `"`
	return t
}

// subst implements spec.md §4.1's substitution rules (a)-(e) in one pass,
// ported from widcc's subst.
func (c *Context) subst(tok *token.Token, args []*macroArg) *token.Token {
	head := &token.Token{}
	cur := head

	for tok.Kind != token.EOF {
		start := tok

		if equal(tok, "#") {
			arg, rest := c.findArg(tok.Next, args)
			if arg == nil {
				c.errorf(tok.Next, "'#' is not followed by a macro parameter")
				tok = tok.Next
				continue
			}
			s := c.stringize(start, arg.tok)
			cur.Next = s
			cur = cur.Next
			alignToken(cur, start)
			tok = rest
			continue
		}

		if equal(tok, ",") && equal(tok.Next, "##") {
			arg, _ := c.findArg(tok.Next.Next, args)
			if arg != nil && arg.isVaArgs {
				if arg.omitComma {
					tok = tok.Next.Next.Next
					continue
				}
				cur.Next = copyToken(tok)
				cur = cur.Next
				tok = tok.Next.Next
				continue
			}
		}

		if equal(tok, "##") {
			if cur == head {
				c.errorf(tok, "'##' cannot appear at start of macro expansion")
				tok = tok.Next
				continue
			}
			if tok.Next.Kind == token.EOF {
				c.errorf(tok, "'##' cannot appear at end of macro expansion")
				break
			}
			if cur.Kind == token.PMARK {
				tok = tok.Next
				continue
			}
			arg, rest := c.findArg(tok.Next, args)
			if arg != nil {
				if arg.tok.Kind == token.EOF {
					tok = rest
					continue
				}
				if arg.tok.Kind != token.PMARK {
					*cur = *c.paste(cur, arg.tok)
				}
				for t := arg.tok.Next; t.Kind != token.EOF; t = t.Next {
					cur.Next = copyToken(t)
					cur = cur.Next
				}
				tok = rest
				continue
			}
			*cur = *c.paste(cur, tok.Next)
			tok = tok.Next.Next
			continue
		}

		if arg, rest := c.findArg(tok, args); arg != nil {
			var t *token.Token
			if equal(rest, "##") {
				t = arg.tok
			} else {
				t = c.expandArg(arg)
			}
			if t.Kind == token.EOF {
				cur.Next = newPasteMark(t)
				cur = cur.Next
				tok = rest
				continue
			}
			alignToken(t, start)
			for ; t.Kind != token.EOF; t = t.Next {
				cur.Next = copyToken(t)
				cur = cur.Next
			}
			tok = rest
			continue
		}

		cur.Next = copyToken(tok)
		cur = cur.Next
		tok = tok.Next
	}
	cur.Next = tok
	return head.Next
}
