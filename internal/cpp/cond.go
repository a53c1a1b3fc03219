package cpp

import "github.com/fuhsnn/widccgo/internal/token"

// skipCondIncl2 skips from just after a nested #if/#ifdef/#ifndef to just
// after its matching #endif, ignoring #elif/#else along the way, per
// widcc's skip_cond_incl2.
func skipCondIncl2(tok *token.Token) *token.Token {
	for tok.Kind != token.EOF {
		if isHash(tok) && (equal(tok.Next, "if") || equal(tok.Next, "ifdef") || equal(tok.Next, "ifndef")) {
			tok = skipCondIncl2(tok.Next.Next)
			continue
		}
		if isHash(tok) && equal(tok.Next, "endif") {
			return tok.Next.Next
		}
		tok = tok.Next
	}
	return tok
}

// skipCondIncl skips a not-taken branch up to the next #elif/#else/#endif
// at this nesting level, per widcc's skip_cond_incl (the "fast-skip" in
// spec.md §4.1).
func skipCondIncl(tok *token.Token) *token.Token {
	for tok.Kind != token.EOF {
		if isHash(tok) && (equal(tok.Next, "if") || equal(tok.Next, "ifdef") || equal(tok.Next, "ifndef")) {
			tok = skipCondIncl2(tok.Next.Next)
			continue
		}
		if isHash(tok) && (equal(tok.Next, "elif") || equal(tok.Next, "else") || equal(tok.Next, "endif")) {
			break
		}
		tok = tok.Next
	}
	return tok
}

func (c *Context) pushCondIncl(tok *token.Token, included bool) *condIncl {
	ci := &condIncl{next: c.cond, ctx: CondThen, tok: tok, included: included}
	c.cond = ci
	return ci
}
