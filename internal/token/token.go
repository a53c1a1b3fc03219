// Package token defines the shared token, file, and position data the
// preprocessor, parser, and code generator all operate on. Tokens are
// produced by an external lexer (internal/lexer in this tree) and never
// constructed fresh except by the preprocessor when it splices macro
// bodies or synthesizes markers.
package token

import "github.com/cznic/xc"

// Kind is the lexical class of a Token.
type Kind int

const (
	IDENT      Kind = iota // identifier
	KEYWORD                // identifier spelled as a C keyword (assigned by the lexer)
	PUNCT                  // operator or punctuator
	NUM                    // numeric literal (payload in Num/NumType)
	STR                    // string literal (payload in Str/StrType)
	PPNUM                  // pre-lexed numeric literal before parse-time typing
	ATTR                   // __attribute__ marker
	FMARK                  // file-boundary marker (synthetic, emitted by the preprocessor)
	PMARK                  // paste marker, dropped after substitution
	EOF                    // end of token list; always at_bol
)

func (k Kind) String() string {
	switch k {
	case IDENT:
		return "ident"
	case KEYWORD:
		return "keyword"
	case PUNCT:
		return "punct"
	case NUM:
		return "num"
	case STR:
		return "str"
	case PPNUM:
		return "ppnum"
	case ATTR:
		return "attr"
	case FMARK:
		return "fmark"
	case PMARK:
		return "pmark"
	case EOF:
		return "eof"
	}
	return "?"
}

// File is one source file's text, kept alive for the whole compilation so
// that Token.Text slices remain valid.
type File struct {
	Name       string
	Num        int // file_no, assigned in inclusion order
	Text       string
	IsBaseFile bool
}

// Attr is one node of an __attribute__((...)) cluster chained off the
// token it was lifted in front of. Only "packed" is currently recognized
// (spec.md §4.1, §9 Open Questions).
type Attr struct {
	Name string
	Next *Attr
}

// Token is a typed lexeme. Tokens form a singly-linked sequence via Next,
// terminated by an EOF token. Fields mirror spec.md §3 Token exactly; the
// Name field interns identifier/keyword spellings through xc.Dict so that
// repeated identifiers (the overwhelming majority of tokens in real source)
// share one backing string and a cheap integer key for map lookups.
type Token struct {
	Kind Kind

	File *File
	Text string // raw source slice (pointer into File.Text conceptually; a Go substring in practice)
	Line int

	NameID int // xc.Dict string id for IDENT/KEYWORD/PUNCT spellings; 0 if unset

	AtBOL     bool // first token on its line
	HasSpace  bool // preceded by whitespace or a comment
	DontExpand bool // locked: this identifier must not be macro-expanded

	Origin *Token // macro-expansion-site token, for diagnostics; nil if not macro-derived
	Attrs  *Attr  // attribute-sibling chain attached to this token

	// Parsed payload, filled by the lexer/parser as appropriate.
	Num     int64
	FNum    float64
	IsFloat bool
	NumType string // one of "int","long","uint","ulong","float","double","ldouble" etc, set by parser
	Str     []byte // string literal bytes, NUL-terminated per C semantics
	StrWide int    // 0 = char, 1 = wchar_t, 2 = char16_t, 3 = char32_t

	DisplayFile string // after #line "file", else File.Name
	DisplayLine int    // after #line N, else Line

	Next *Token
}

// Name returns the interned spelling for IDENT/KEYWORD/PUNCT tokens.
func (t *Token) Name() string {
	if t.NameID == 0 {
		return t.Text
	}
	return xc.Dict.S(t.NameID)
}

// SetName interns s and stores both the id and the raw text.
func (t *Token) SetName(s string) {
	t.NameID = xc.Dict.SID(s)
	t.Text = s
}

// Is reports whether t is a PUNCT/KEYWORD/IDENT token spelled exactly s.
func (t *Token) Is(s string) bool {
	return t != nil && t.Kind != EOF && t.Name() == s
}

// Copy returns a shallow copy of t with Next cleared, matching widcc's
// copy_token (preprocess.c): macro substitution always works on copies so
// that the original macro body token list is never mutated.
func (t *Token) Copy() *Token {
	c := *t
	c.Next = nil
	return &c
}

// NewEOF returns an EOF token positioned at t, per widcc's new_eof.
func NewEOF(t *Token) *Token {
	c := t.Copy()
	c.Kind = EOF
	c.Text = ""
	c.AtBOL = true
	return c
}

// NewFileMark returns a synthetic file-boundary marker token, per widcc's
// new_fmark. Used by the preprocessor to bracket #include expansions so
// __FILE__/__LINE__ and #line bookkeeping can detect file transitions
// inside an already-spliced token list.
func NewFileMark(t *Token) *Token {
	c := t.Copy()
	c.Kind = FMARK
	c.Text = ""
	c.Line = 1
	return c
}

// NewPasteMark returns a synthetic token standing in for an empty-operand
// ## paste (spec.md §4.1 substitution (d)); it is dropped in a post-pass.
func NewPasteMark(t *Token) *Token {
	c := t.Copy()
	c.Kind = PMARK
	c.Text = ""
	return c
}

// Pos renders "file:line" for diagnostics, honoring #line-adjusted display
// fields when set.
func (t *Token) Pos() string {
	file := t.DisplayFile
	line := t.DisplayLine
	if file == "" {
		if t.File != nil {
			file = t.File.Name
		}
		line = t.Line
	}
	if file == "" {
		file = "<unknown>"
	}
	return file + ":" + itoa(line)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
