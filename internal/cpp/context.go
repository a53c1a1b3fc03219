package cpp

import (
	"log"

	"github.com/fuhsnn/widccgo/internal/diag"
	"github.com/fuhsnn/widccgo/internal/token"
)

// CondCtx is the branch currently active inside one #if/#elif/#else group.
type CondCtx int

const (
	CondThen CondCtx = iota
	CondElif
	CondElse
)

// condIncl is one entry of the nested-#if stack (spec.md §4.1 Conditional
// inclusion).
type condIncl struct {
	next     *condIncl
	ctx      CondCtx
	tok      *token.Token
	included bool // whether any branch in this group has been taken yet
}

// Includer resolves #include targets to file content. It is the external
// collaborator spec.md §1/§6 calls out ("header file discovery on the
// filesystem... the core consumes a resolve-include-path capability").
type Includer interface {
	ResolveQuote(curFile *token.File, name string) (path, text string, ok bool)
	ResolveAngle(name string) (path, text string, ok bool)
	ResolveNext(curFile *token.File, name string) (path, text string, ok bool)
}

// Context is the translation-unit-scoped preprocessor state: the macro
// table, the locked-macro stack, the conditional-inclusion stack, the
// pragma-once and include-guard caches, and the __COUNTER__ counter. One
// Context serves exactly one compilation, per spec.md §5's concurrency
// model and §9's "explicit context instead of globals" REDESIGN FLAG.
type Context struct {
	macros map[string]*Macro
	locked *lockedMacro

	cond *condIncl

	pragmaOnce    map[string]bool
	includeGuards map[string]string // file name -> guard macro name

	fileSeen     map[string]bool          // file name -> at least one directive processed
	pendingGuard map[*condIncl]guardCand // candidate #ifndef guard awaiting its #endif

	counter int
	files   []*token.File

	baseFile string

	Includer Includer
	Diag     *diag.Reporter

	stdVersion string // e.g. "201710L", threads -std=cNN into __STDC_VERSION__

	retokenize RetokenizeFunc
	lexFile    FileLexFunc
}

// guardCand is a candidate include guard: the #ifndef IDENT that was the
// first directive encountered in a file, pending confirmation that
// nothing else of that file follows its matching #endif (spec.md §4.1).
type guardCand struct {
	file  string
	guard string
}

// NewContext returns a preprocessor Context ready for one translation
// unit.
func NewContext(includer Includer, d *diag.Reporter) *Context {
	c := &Context{
		macros:        make(map[string]*Macro),
		pragmaOnce:    make(map[string]bool),
		includeGuards: make(map[string]string),
		fileSeen:      make(map[string]bool),
		pendingGuard:  make(map[*condIncl]guardCand),
		Includer:      includer,
		Diag:          d,
		stdVersion:    "201710L",
	}
	c.installBuiltins()
	return c
}

// SetStdVersion overrides __STDC_VERSION__'s value per -std=cNN (spec.md
// §6 CLI surface; SPEC_FULL.md §7 restores the original's StdVer gating).
func (c *Context) SetStdVersion(v string) {
	c.stdVersion = v
	c.DefineObjLike("__STDC_VERSION__", numToken(v))
}

func (c *Context) errorf(tok *token.Token, format string, args ...any) {
	c.Diag.Errorf(tok, format, args...)
}

func (c *Context) warnf(tok *token.Token, format string, args ...any) {
	c.Diag.Warnf(tok, format, args...)
}

func (c *Context) trace(format string, args ...any) {
	log.Printf("[DEBUG] cpp: "+format, args...)
}

// RegisterFile tracks a file for __FILE__/diagnostics/file-table purposes,
// assigning the next file number in inclusion order.
func (c *Context) RegisterFile(f *token.File) {
	f.Num = len(c.files) + 1
	c.files = append(c.files, f)
	if c.baseFile == "" {
		c.baseFile = f.Name
		f.IsBaseFile = true
	}
}

// Files returns every registered file, in inclusion order.
func (c *Context) Files() []*token.File { return c.files }
