// Package cpp implements the C preprocessor: macro expansion, conditional
// inclusion, directive handling, and header inclusion (spec.md §4.1).
//
// State that the original keeps as process-wide globals (the macro table,
// the locked-macro LIFO stack, the conditional-inclusion stack,
// #pragma-once/include-guard caches) is instead owned by one *Context per
// translation unit, per spec.md §9's REDESIGN FLAGS.
package cpp

import "github.com/fuhsnn/widccgo/internal/token"

// MacroHandler computes a builtin dynamic macro's expansion at the use
// site (e.g. __LINE__, __COUNTER__). It returns the token list to splice
// in place of tok, sharing tok's Next.
type MacroHandler func(tok *token.Token) *token.Token

// Macro is either object-like or function-like (spec.md §3 Macro).
type Macro struct {
	Name       string
	IsObjLike  bool
	Params     []string
	VaArgsName string // "" if not variadic
	Body       *token.Token
	Handler    MacroHandler

	// Lock state: an active expansion marks the macro locked until the
	// cursor reaches StopTok, per the painter's-trick algorithm
	// (spec.md §4.1, GLOSSARY).
	IsLocked bool
	StopTok  *token.Token
}

// lockedMacro is one entry on the Context's LIFO lock stack.
type lockedMacro struct {
	macro *Macro
	next  *lockedMacro
}

// pushMacroLock locks m until the cursor reaches stop, per widcc's
// push_macro_lock (preprocess.c).
func (c *Context) pushMacroLock(m *Macro, stop *token.Token) {
	m.IsLocked = true
	m.StopTok = stop
	c.locked = &lockedMacro{macro: m, next: c.locked}
}

// popMacroLock releases every lock on the top of the stack whose StopTok
// equals tok, LIFO, per widcc's pop_macro_lock.
func (c *Context) popMacroLock(tok *token.Token) {
	for c.locked != nil && c.locked.macro.StopTok == tok {
		c.locked.macro.IsLocked = false
		c.locked = c.locked.next
	}
}

// FindMacro looks up an identifier token's macro definition, or nil.
func (c *Context) FindMacro(tok *token.Token) *Macro {
	if tok.Kind != token.IDENT && tok.Kind != token.KEYWORD {
		return nil
	}
	return c.macros[tok.Name()]
}

// DefineObjLike registers (or replaces) an object-like macro.
func (c *Context) DefineObjLike(name string, body *token.Token) *Macro {
	m := &Macro{Name: name, IsObjLike: true, Body: body}
	c.macros[name] = m
	return m
}

// DefineFuncLike registers (or replaces) a function-like macro.
func (c *Context) DefineFuncLike(name string, params []string, vaArgsName string, body *token.Token) *Macro {
	m := &Macro{Name: name, IsObjLike: false, Params: params, VaArgsName: vaArgsName, Body: body}
	c.macros[name] = m
	return m
}

// DefineBuiltin registers a dynamic builtin macro (e.g. __LINE__).
func (c *Context) DefineBuiltin(name string, h MacroHandler) *Macro {
	m := &Macro{Name: name, IsObjLike: true, Handler: h}
	c.macros[name] = m
	return m
}

// Undef removes a macro definition (#undef).
func (c *Context) Undef(name string) {
	delete(c.macros, name)
}

// copyToken / newEOF / newPasteMark are small local aliases kept for
// readability at call sites; they simply forward to the token package.
func copyToken(t *token.Token) *token.Token { return t.Copy() }
func newEOF(t *token.Token) *token.Token     { return token.NewEOF(t) }
func newPasteMark(t *token.Token) *token.Token {
	return token.NewPasteMark(t)
}

func alignToken(dst, src *token.Token) {
	dst.AtBOL = src.AtBOL
	dst.HasSpace = src.HasSpace
}

// equal reports whether tok is a non-EOF token spelled s.
func equal(tok *token.Token, s string) bool {
	return tok != nil && tok.Kind != token.EOF && tok.Name() == s
}
