package cpp

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fuhsnn/widccgo/internal/token"
)

// installBuiltins defines every dynamic predefined macro, per widcc's
// init_macros. Time-of-day macros (__DATE__/__TIME__/__TIMESTAMP__) are
// fixed at Context construction so a translation unit sees one stable
// value throughout, matching a real compilation's single-process
// lifetime rather than recomputing per use.
func (c *Context) installBuiltins() {
	c.DefineObjLike("__STDC__", numToken("1"))
	c.DefineObjLike("__STDC_HOSTED__", numToken("1"))
	c.DefineObjLike("__STDC_VERSION__", numToken(c.stdVersion))
	c.DefineObjLike("__STDC_UTF_16__", numToken("1"))
	c.DefineObjLike("__STDC_UTF_32__", numToken("1"))

	c.DefineBuiltin("__FILE__", func(tok *token.Token) *token.Token {
		name := "<unknown>"
		if tok.File != nil {
			name = tok.File.Name
		}
		return strToken(fmt.Sprintf("%q", name), tok)
	})

	c.DefineBuiltin("__BASE_FILE__", func(tok *token.Token) *token.Token {
		return strToken(fmt.Sprintf("%q", c.baseFile), tok)
	})

	c.DefineBuiltin("__LINE__", func(tok *token.Token) *token.Token {
		line := tok.Line
		if tok.DisplayLine != 0 {
			line = tok.DisplayLine
		}
		return intToken(int64(line), tok)
	})

	c.DefineBuiltin("__COUNTER__", func(tok *token.Token) *token.Token {
		v := c.counter
		c.counter++
		return intToken(int64(v), tok)
	})

	now := time.Now()
	date := now.Format(`"Jan _2 2006"`)
	clock := now.Format(`"15:04:05"`)
	stamp := now.Format(`"Mon Jan _2 15:04:05 2006"`)
	c.DefineBuiltin("__DATE__", func(tok *token.Token) *token.Token { return strToken(date, tok) })
	c.DefineBuiltin("__TIME__", func(tok *token.Token) *token.Token { return strToken(clock, tok) })
	c.DefineBuiltin("__TIMESTAMP__", func(tok *token.Token) *token.Token { return strToken(stamp, tok) })

	c.DefineBuiltin("__has_include", func(tok *token.Token) *token.Token {
		return c.evalHasInclude(tok, false)
	})
	c.DefineBuiltin("__has_include_next", func(tok *token.Token) *token.Token {
		return c.evalHasInclude(tok, true)
	})
	c.DefineBuiltin("__has_attribute", func(tok *token.Token) *token.Token {
		return c.evalHasNamedThing(tok, knownAttributes)
	})
	c.DefineBuiltin("__has_builtin", func(tok *token.Token) *token.Token {
		return c.evalHasNamedThing(tok, knownBuiltins)
	})
}

var knownAttributes = map[string]bool{
	"packed": true,
}

var knownBuiltins = map[string]bool{
	"__builtin_alloca":  true,
	"__builtin_va_start": true,
	"__builtin_va_copy":  true,
	"__builtin_va_arg":   true,
	"__builtin_va_end":   true,
	"__builtin_offsetof": true,
	"__builtin_types_compatible_p": true,
	"__builtin_reg_class": true,
}

// evalHasInclude implements __has_include(...)/__has_include_next(...) as
// a builtin macro handler: consume the parenthesized filename argument
// and splice back a 0/1 integer token, per spec.md §4.1's predefined
// macro table.
func (c *Context) evalHasInclude(tok *token.Token, isNext bool) *token.Token {
	start := tok
	t := tok.Next
	if !equal(t, "(") {
		c.errorf(start, "expected '(' after __has_include")
		return intToken(0, start)
	}
	t = t.Next
	name, angle, rest := c.readIncludeName(t)
	if !equal(rest, ")") {
		c.errorf(rest, "expected ')'")
	} else {
		rest = rest.Next
	}

	var curFile *token.File
	if start.File != nil {
		curFile = start.File
	}

	found := false
	if name != "" {
		switch {
		case isNext:
			_, _, found = c.Includer.ResolveNext(curFile, name)
		case angle:
			_, _, found = c.Includer.ResolveAngle(name)
		default:
			_, _, found = c.Includer.ResolveQuote(curFile, name)
			if !found {
				_, _, found = c.Includer.ResolveAngle(name)
			}
		}
	}

	result := intToken(0, start)
	if found {
		result = intToken(1, start)
	}
	result.Next = rest
	return result
}

// evalHasNamedThing implements __has_attribute(X)/__has_builtin(X), both
// of which just check a parenthesized identifier against a static set.
func (c *Context) evalHasNamedThing(tok *token.Token, known map[string]bool) *token.Token {
	start := tok
	t := tok.Next
	if !equal(t, "(") {
		c.errorf(start, "expected '('")
		return intToken(0, start)
	}
	name := t.Next.Name()
	rest := t.Next.Next
	if !equal(rest, ")") {
		c.errorf(rest, "expected ')'")
	} else {
		rest = rest.Next
	}
	val := int64(0)
	if known[name] {
		val = 1
	}
	result := intToken(val, start)
	result.Next = rest
	return result
}

func numToken(text string) *token.Token {
	n, _ := strconv.ParseInt(text, 10, 64)
	t := &token.Token{Kind: token.NUM, Text: text, Num: n}
	t.Next = token.NewEOF(t)
	return t
}

func intToken(v int64, tmpl *token.Token) *token.Token {
	t := tmpl.Copy()
	t.Next = tmpl.Next
	t.NameID = 0
	t.Kind = token.NUM
	t.Num = v
	t.Text = strconv.FormatInt(v, 10)
	t.IsFloat = false
	return t
}

func strToken(text string, tmpl *token.Token) *token.Token {
	t := tmpl.Copy()
	t.Next = tmpl.Next
	t.NameID = 0
	t.Kind = token.STR
	t.Text = text
	raw := text
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	t.Str = append([]byte(raw), 0)
	return t
}
