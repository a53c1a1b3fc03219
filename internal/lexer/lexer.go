// Package lexer turns raw source bytes into the token.Token stream the
// preprocessor and parser consume. It is explicitly driver glue, not core
// (see SPEC_FULL.md §1). The vendored reference's equivalent (cc.go) is
// itself generated by running golex over a .l grammar file; this tree has
// no .l grammar, so the scan loop here is hand-written directly in Go.
package lexer

import (
	"strconv"
	"strings"

	"github.com/fuhsnn/widccgo/internal/diag"
	"github.com/fuhsnn/widccgo/internal/token"
)

// cursor is a byte-offset-plus-line rune cursor over one file's source.
// It stays hand-written rather than built on
// github.com/cznic/golex/lex: that package is the runtime support library
// for scanners *golex generates* from a .l grammar file, and this tree has
// no .l grammar to generate from (the vendored reference's scanner.go is
// itself golex output, not something golex helps hand-write directly).
type cursor struct {
	src  string
	pos  int
	line int
}

func newCursor(src string) *cursor {
	return &cursor{src: src, line: 1}
}

func (c *cursor) peek() byte {
	if c.pos >= len(c.src) {
		return 0
	}
	return c.src[c.pos]
}

func (c *cursor) peekAt(n int) byte {
	if c.pos+n >= len(c.src) {
		return 0
	}
	return c.src[c.pos+n]
}

func (c *cursor) advance() byte {
	b := c.peek()
	c.pos++
	if b == '\n' {
		c.line++
	}
	return b
}

// Lexer holds the diagnostics sink used while tokenizing. The keyword
// table is package-level and each Tokenize call makes its own cursor.
type Lexer struct {
	diag *diag.Reporter
}

// New returns a Lexer reporting errors (unterminated strings, stray
// characters) to d.
func New(d *diag.Reporter) *Lexer {
	return &Lexer{diag: d}
}

var keywords = buildKeywordSet()

func buildKeywordSet() map[string]bool {
	words := []string{
		"void", "_Bool", "char", "short", "int", "long", "struct", "union",
		"typedef", "enum", "static", "extern", "_Alignas", "signed",
		"unsigned", "const", "volatile", "auto", "register", "restrict",
		"_Noreturn", "_Thread_local", "__thread", "_Atomic",
		"if", "else", "switch", "case", "default", "for", "while", "do",
		"goto", "break", "continue", "return",
		"sizeof", "_Alignof", "typeof", "typeof_unqual", "_Generic",
		"__attribute__", "asm", "__asm__", "inline", "__inline",
		"__restrict", "__restrict__", "__extension__",
		"_Static_assert",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Tokenize lexes f.Text into an EOF-terminated token.Token list, assigning
// f to every token's File field and tracking AtBOL/HasSpace the way the
// preprocessor expects (spec.md §3 Token).
func (l *Lexer) Tokenize(f *token.File) *token.Token {
	c := newCursor(f.Text)
	var head, tail *token.Token
	atBOL := true
	hasSpace := false

	emit := func(t *token.Token) {
		t.File = f
		t.Line = c.line
		t.AtBOL = atBOL
		t.HasSpace = hasSpace
		if head == nil {
			head = t
		} else {
			tail.Next = t
		}
		tail = t
		atBOL = false
		hasSpace = false
	}

	for c.pos < len(c.src) {
		ch := c.peek()

		switch {
		case ch == '\n':
			c.advance()
			atBOL = true
			hasSpace = true
			continue

		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\v' || ch == '\f':
			c.advance()
			hasSpace = true
			continue

		case ch == '\\' && c.peekAt(1) == '\n':
			// Line splice: invisible to AtBOL/token boundaries.
			c.advance()
			c.advance()
			continue

		case ch == '/' && c.peekAt(1) == '/':
			for c.pos < len(c.src) && c.peek() != '\n' {
				c.advance()
			}
			hasSpace = true
			continue

		case ch == '/' && c.peekAt(1) == '*':
			c.advance()
			c.advance()
			for c.pos < len(c.src) && !(c.peek() == '*' && c.peekAt(1) == '/') {
				c.advance()
			}
			if c.pos < len(c.src) {
				c.advance()
				c.advance()
			} else {
				l.diag.Errorf(nil, "%s: unterminated comment", f.Name)
			}
			hasSpace = true
			continue

		case ch == '"':
			emit(l.lexString(c, f))
			continue

		case ch == '\'':
			emit(l.lexChar(c, f))
			continue

		case isDigit(ch) || (ch == '.' && isDigit(c.peekAt(1))):
			emit(l.lexNumber(c))
			continue

		case isIdentStart(ch):
			emit(l.lexIdent(c))
			continue

		default:
			if t, ok := l.lexPunct(c); ok {
				emit(t)
				continue
			}
			l.diag.Errorf(nil, "%s: stray character %q", f.Name, ch)
			c.advance()
			continue
		}
	}

	eof := &token.Token{Kind: token.EOF, File: f, Line: c.line, AtBOL: true}
	if head == nil {
		return eof
	}
	tail.Next = eof
	return head
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b >= 0x80
}
func isIdentPart(b byte) bool { return isIdentStart(b) || isDigit(b) }

func (l *Lexer) lexIdent(c *cursor) *token.Token {
	start := c.pos
	for c.pos < len(c.src) && isIdentPart(c.peek()) {
		c.advance()
	}
	text := c.src[start:c.pos]
	kind := token.IDENT
	if keywords[text] {
		kind = token.KEYWORD
	}
	t := &token.Token{Kind: kind, Text: text}
	t.SetName(text)
	return t
}

// lexNumber reads a pp-number (spec.md GLOSSARY): digits, letters, '.',
// and sign characters directly following an 'e'/'E'/'p'/'P', exactly as
// widcc's read_int_literal/convert_pp_number pre-lexing stage does before
// the parser later reinterprets NumType. Payload classification (int vs
// float, suffix stripping) is deferred to the parser per spec.md §4.3; the
// lexer only produces a PPNUM with the raw text and a best-effort Num/
// FNum/IsFloat guess for callers (like the preprocessor's own #if
// evaluator) that work directly off lexer output without going through
// the parser.
func (l *Lexer) lexNumber(c *cursor) *token.Token {
	start := c.pos
	c.advance()
	for c.pos < len(c.src) {
		ch := c.peek()
		if ch == 'e' || ch == 'E' || ch == 'p' || ch == 'P' {
			if n := c.peekAt(1); n == '+' || n == '-' {
				c.advance()
				c.advance()
				continue
			}
		}
		if isIdentPart(ch) || ch == '.' {
			c.advance()
			continue
		}
		break
	}
	text := c.src[start:c.pos]
	t := &token.Token{Kind: token.PPNUM, Text: text}
	classifyNumber(t, text)
	return t
}

func classifyNumber(t *token.Token, text string) {
	lower := strings.ToLower(text)
	isHex := strings.HasPrefix(lower, "0x")

	if strings.ContainsAny(lower, ".") ||
		(!isHex && strings.ContainsAny(lower, "e")) ||
		(isHex && strings.ContainsAny(lower, "p")) {
		t.IsFloat = true
	}

	body := lower
	base := 10
	switch {
	case isHex:
		base = 16
		body = body[2:]
	case strings.HasPrefix(body, "0b"):
		base = 2
		body = body[2:]
	case len(body) > 1 && body[0] == '0':
		base = 8
	}
	// Stop at the first character that isn't a valid digit in this base;
	// that is exactly where an integer suffix (u/l/ll in any case) or a
	// float exponent/suffix begins, so no separate suffix-stripping pass
	// is needed.
	var v int64
	for i := 0; i < len(body); i++ {
		d := digitVal(body[i])
		if d < 0 || d >= base {
			break
		}
		v = v*int64(base) + int64(d)
	}
	if t.IsFloat {
		if f, err := parseFloatPrefix(lower); err == nil {
			t.FNum = f
		}
	}
	t.Num = v
}

// parseFloatPrefix trims trailing f/l suffix letters (Go's ParseFloat
// doesn't accept C's suffixes) and parses the rest of s with strconv. It
// fails, rather than parsing a shorter prefix, if anything else is left.
func parseFloatPrefix(s string) (float64, error) {
	s = strings.TrimRight(s, "fl")
	return strconv.ParseFloat(s, 64)
}

func digitVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'z':
		return int(b-'a') + 10
	default:
		return -1
	}
}

func (l *Lexer) lexString(c *cursor, f *token.File) *token.Token {
	c.advance() // opening quote
	var b strings.Builder
	for c.pos < len(c.src) && c.peek() != '"' {
		ch := c.advance()
		if ch == '\\' {
			b.WriteByte(decodeEscape(c))
			continue
		}
		if ch == '\n' {
			l.diag.Errorf(nil, "%s: unterminated string literal", f.Name)
			break
		}
		b.WriteByte(ch)
	}
	if c.pos < len(c.src) {
		c.advance() // closing quote
	} else {
		l.diag.Errorf(nil, "%s: unterminated string literal", f.Name)
	}
	bytes := append([]byte(b.String()), 0)
	return &token.Token{Kind: token.STR, Text: `"` + b.String() + `"`, Str: bytes}
}

func (l *Lexer) lexChar(c *cursor, f *token.File) *token.Token {
	c.advance() // opening quote
	var v int64
	if c.peek() == '\\' {
		c.advance()
		v = int64(decodeEscape(c))
	} else {
		v = int64(c.advance())
	}
	for c.pos < len(c.src) && c.peek() != '\'' {
		// multi-char constants: widcc keeps only the last byte's value
		if c.peek() == '\\' {
			c.advance()
			v = int64(decodeEscape(c))
		} else {
			v = int64(c.advance())
		}
	}
	if c.pos < len(c.src) {
		c.advance()
	} else {
		l.diag.Errorf(nil, "%s: unterminated character constant", f.Name)
	}
	return &token.Token{Kind: token.NUM, Text: "'...'", Num: v, NumType: "int"}
}

func decodeEscape(c *cursor) byte {
	ch := c.advance()
	switch ch {
	case 'a':
		return 7
	case 'b':
		return 8
	case 't':
		return 9
	case 'n':
		return 10
	case 'v':
		return 11
	case 'f':
		return 12
	case 'r':
		return 13
	case 'e':
		return 27
	case '\\', '\'', '"', '?':
		return ch
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(ch - '0')
		for i := 0; i < 2 && isOctalDigit(c.peek()); i++ {
			v = v*8 + int(c.advance()-'0')
		}
		return byte(v)
	case 'x':
		v := 0
		for isHexDigit(c.peek()) {
			v = v*16 + digitVal(toLowerByte(c.advance()))
		}
		return byte(v)
	default:
		return ch
	}
}

func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }
func toLowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

var punctsByLen = [][]string{
	3: {"<<=", ">>=", "...", "%:%:"},
	2: {"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
		"*=", "/=", "%=", "+=", "-=", "&=", "|=", "^=", "##", "::"},
	1: {"+", "-", "*", "/", "%", "&", "|", "^", "~", "!", "<", ">", "=",
		"(", ")", "{", "}", "[", "]", ";", ":", ",", ".", "?", "#"},
}

func (l *Lexer) lexPunct(c *cursor) (*token.Token, bool) {
	for ln := 3; ln >= 1; ln-- {
		if c.pos+ln > len(c.src) {
			continue
		}
		cand := c.src[c.pos : c.pos+ln]
		for _, p := range punctsByLen[ln] {
			if p == cand {
				for i := 0; i < ln; i++ {
					c.advance()
				}
				t := &token.Token{Kind: token.PUNCT, Text: p}
				t.SetName(p)
				return t, true
			}
		}
	}
	return nil, false
}

// Retokenize re-lexes a short string produced by a `##` paste and reports
// ok only when it forms exactly one token (spec.md §4.1 substitution rule
// (b)). It has cpp.RetokenizeFunc's signature, but on success rest is the
// trailing EOF token rather than nil, and cpp's paste treats any non-nil
// rest as a failed paste; the driver installs its own retokenizer.
func (l *Lexer) Retokenize(text string, tmpl *token.Token) (first, rest *token.Token, ok bool) {
	f := &token.File{Name: "<paste>", Text: text}
	toks := l.Tokenize(f)
	if toks == nil || toks.Kind == token.EOF {
		return nil, nil, false
	}
	t := toks.Copy()
	t.File = tmpl.File
	t.Line = tmpl.Line
	return t, toks.Next, toks.Next.Kind == token.EOF
}

// LexFile implements cpp.FileLexFunc.
func (l *Lexer) LexFile(f *token.File) *token.Token {
	return l.Tokenize(f)
}
