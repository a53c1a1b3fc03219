package cpp

import (
	"strings"

	"github.com/fuhsnn/widccgo/internal/token"
)

// FileLexFunc turns a freshly-resolved header's source text into an
// EOF-terminated token list. Installed by the driver alongside
// RetokenizeFunc, for the same reason: internal/lexer is an external
// collaborator the preprocessor core never imports directly (spec.md §1).
type FileLexFunc func(file *token.File) (first *token.Token)

var defaultFileLexer FileLexFunc

// SetFileLexer installs the lexer-backed file reader for this Context.
func (c *Context) SetFileLexer(fn FileLexFunc) { c.lexFile = fn }

func (c *Context) lexFileTokens(f *token.File) *token.Token {
	fn := c.lexFile
	if fn == nil {
		fn = defaultFileLexer
	}
	if fn == nil {
		c.errorf(nil, "no lexer installed for #include of %q", f.Name)
		return &token.Token{Kind: token.EOF, AtBOL: true, File: f}
	}
	return fn(f)
}

// readIncludeName resolves the filename argument of #include /
// #include_next, returning the name text and whether it used angle
// brackets, per widcc's read_include_filename: a bare string or
// "<...>" token run is read literally; anything else is macro-expanded
// first and re-parsed.
func (c *Context) readIncludeName(tok *token.Token) (name string, angle bool, rest *token.Token) {
	if tok.Kind == token.STR {
		return string(tok.Str), false, tok.Next
	}
	if equal(tok, "<") {
		var b strings.Builder
		t := tok.Next
		for !equal(t, ">") {
			if t.AtBOL || t.Kind == token.EOF {
				c.errorf(tok, "expected '>'")
				return "", true, t
			}
			if t.HasSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t.Text)
			t = t.Next
		}
		return b.String(), true, t.Next
	}

	line, after := splitLine(tok)
	line = c.preprocess2(line)
	if line.Kind == token.STR {
		return string(line.Str), false, after
	}
	if equal(line, "<") {
		name, _, _ = c.readIncludeName(line)
		return name, true, after
	}
	c.errorf(tok, "expected a filename")
	return "", false, after
}

func (c *Context) directiveInclude(tok *token.Token, isNext bool) *token.Token {
	name, angle, rest := c.readIncludeName(tok)
	if name == "" {
		return c.skipLine(rest)
	}

	var curFile *token.File
	if tok.File != nil {
		curFile = tok.File
	}

	var path, text string
	var ok bool
	switch {
	case isNext:
		path, text, ok = c.Includer.ResolveNext(curFile, name)
	case angle:
		path, text, ok = c.Includer.ResolveAngle(name)
	default:
		path, text, ok = c.Includer.ResolveQuote(curFile, name)
		if !ok {
			path, text, ok = c.Includer.ResolveAngle(name)
		}
	}
	if !ok {
		c.errorf(tok, "%s: no such file or directory", name)
		return rest
	}

	if c.pragmaOnce[path] {
		return rest
	}
	if guard, tracked := c.includeGuards[path]; tracked {
		if m := c.macros[guard]; m != nil {
			return rest
		}
	}

	f := &token.File{Name: path, Text: text}
	c.RegisterFile(f)
	included := c.lexFileTokens(f)
	return appendTokenList(included, rest)
}

// appendTokenList replaces list's trailing EOF marker with rest, so the
// outer preprocess2 cursor continues straight into the included file's
// tokens and then back into the includer's remaining line.
func appendTokenList(list, rest *token.Token) *token.Token {
	if list == nil || list.Kind == token.EOF {
		return rest
	}
	cur := list
	for cur.Next != nil && cur.Next.Kind != token.EOF {
		cur = cur.Next
	}
	cur.Next = rest
	return list
}
