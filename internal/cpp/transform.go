package cpp

import "github.com/fuhsnn/widccgo/internal/token"

// concatAdjacentStrings merges runs of adjacent string-literal tokens into
// one, per widcc's join_adjacent_string_literals: "a" "b" becomes "ab",
// and if any literal in a run is wide the whole run takes that wide kind
// (mixing two distinct wide kinds is an error).
func (c *Context) concatAdjacentStrings(tok *token.Token) *token.Token {
	head := &token.Token{}
	cur := head

	for tok.Kind != token.EOF {
		if tok.Kind != token.STR || tok.Next.Kind != token.STR {
			cur.Next = tok
			cur = cur.Next
			tok = tok.Next
			continue
		}

		first := tok
		wide := first.StrWide
		var merged []byte
		merged = append(merged, first.Str[:len(first.Str)-1]...)
		t := first.Next
		for t.Kind == token.STR {
			if t.StrWide != 0 {
				if wide != 0 && wide != t.StrWide {
					c.errorf(t, "unsupported non-standard concatenation of string literals")
				}
				wide = t.StrWide
			}
			merged = append(merged, t.Str[:len(t.Str)-1]...)
			t = t.Next
		}
		merged = append(merged, 0)

		out := first.Copy()
		out.Str = merged
		out.StrWide = wide
		cur.Next = out
		cur = cur.Next
		tok = t
	}
	cur.Next = tok
	return head.Next
}

// liftAttributes moves a trailing __attribute__((packed)) cluster (parsed
// earlier into ATTR tokens by the lexer) onto the Attrs chain of the
// declarator token it modifies, per widcc's parsing of GNU attribute
// syntax in tokenize.c. Only "packed" is recognized (spec.md §9 Open
// Questions), so any other attribute name is dropped with a warning
// rather than silently accepted.
func (c *Context) liftAttributes(tok *token.Token) *token.Token {
	head := &token.Token{}
	cur := head

	for tok.Kind != token.EOF {
		if tok.Kind != token.ATTR {
			cur.Next = tok
			cur = cur.Next
			tok = tok.Next
			continue
		}

		name := tok.Name()
		if cur == head {
			c.warnf(tok, "attribute ignored: no preceding token to attach to")
			tok = tok.Next
			continue
		}
		if name == "packed" {
			cur.Attrs = &token.Attr{Name: name, Next: cur.Attrs}
		} else {
			c.warnf(tok, "unrecognized attribute %q ignored", name)
		}
		tok = tok.Next
	}
	cur.Next = tok
	return head.Next
}
