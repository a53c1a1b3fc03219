// Package driver wires internal/lexer, internal/cpp, internal/parser, and
// internal/codegen into the bytes→tokens→preprocessed-tokens→AST→assembly
// pipeline spec.md §2 describes, plus the CLI-level concerns (include
// paths, -D/-U, makefile dependency emission, -ftime-report) that
// spec.md §6 names but leaves to "the driver" (SPEC_FULL.md §1). This is
// explicitly driver glue, not core.
package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/codegen"
	"github.com/fuhsnn/widccgo/internal/cpp"
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/diag"
	"github.com/fuhsnn/widccgo/internal/lexer"
	"github.com/fuhsnn/widccgo/internal/parser"
	"github.com/fuhsnn/widccgo/internal/stats"
	"github.com/fuhsnn/widccgo/internal/token"
)

func init() {
	ctype.InitLP64()
}

// DepMode selects which makefile-dependency flag (if any) is active,
// per spec.md §6's -M/-MD/-MMD group.
type DepMode int

const (
	DepNone DepMode = iota
	DepM            // -M: dependencies only, implies no compile output
	DepMM           // like -M but omits system/bundled headers
	DepMD           // -MD: dependencies alongside normal compilation
	DepMMD          // like -MD but omits system/bundled headers
)

// Options configures one Compile invocation, covering the CLI surface
// named in spec.md §6 and its SPEC_FULL.md §7/§8 additions.
type Options struct {
	IncludePaths []string // -I
	Defines      []string // -D NAME or -D NAME=VALUE
	Undefs       []string // -U NAME
	IncludeFiles []string // -include FILE, spliced ahead of the main file

	Std parser.StdVer // -std=cNN

	PreprocessOnly bool // -E
	FCommon        bool // -fcommon (true) / -fno-common (false)
	TimeReport     bool // -ftime-report

	DepMode    DepMode
	DepFile    string   // -MF
	DepTargets []string // -MT/-MQ accumulate here
	DepPhony   bool     // -MP

	Output io.Writer
	Stats  *stats.Collector
}

func (o Options) lex(d *diag.Reporter, f *token.File) *token.Token {
	return lexer.New(d).Tokenize(f)
}

// timed runs fn, sampling its wall-clock duration into opts.Stats under
// phase p when a Collector was supplied.
func (o Options) timed(p stats.Phase, fn func()) {
	if o.Stats == nil {
		fn()
		return
	}
	done := o.Stats.Start(p)
	fn()
	done()
}

// Compile runs one translation unit (inputPath) through the full
// pipeline and writes its result (preprocessed source under -E,
// assembly text otherwise) to opts.Output.
func Compile(opts Options, inputPath string) error {
	d := diag.NewReporter()

	src, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	includer := newFSIncluder(opts.IncludePaths)
	cc := cpp.NewContext(includer, d)
	cc.SetStdVersion(stdVersionString(opts.Std))
	cc.SetFileLexer(func(f *token.File) *token.Token {
		return opts.lex(d, f)
	})
	cc.SetRetokenizer(func(text string, tmpl *token.Token) (*token.Token, *token.Token, bool) {
		f := &token.File{Name: tmpl.Pos(), Text: text}
		first := opts.lex(d, f)
		if first == nil {
			return nil, nil, false
		}
		if first.Next == nil || first.Next.Kind == token.EOF {
			return first, nil, true
		}
		return first, first.Next, true
	})

	for _, def := range opts.Defines {
		name, body := splitDefine(def)
		cc.DefineObjLike(name, opts.lex(d, &token.File{Name: "<command-line>", Text: body}))
	}
	for _, name := range opts.Undefs {
		cc.Undef(name)
	}

	var toks *token.Token
	for _, inc := range opts.IncludeFiles {
		text, err := os.ReadFile(inc)
		if err != nil {
			return err
		}
		f := &token.File{Name: inc, Text: string(text)}
		cc.RegisterFile(f)
		toks = appendTokens(toks, opts.lex(d, f))
	}

	mainFile := &token.File{Name: inputPath, Text: string(src), IsBaseFile: true}
	cc.RegisterFile(mainFile)
	toks = appendTokens(toks, opts.lex(d, mainFile))

	var preprocessed *token.Token
	opts.timed(stats.PhasePreprocess, func() {
		preprocessed = cc.Preprocess(toks)
	})
	if d.HasErrors() {
		return d.Flush()
	}

	if opts.DepMode != DepNone {
		if err := writeDepFile(opts, inputPath, cc.Files()); err != nil {
			return err
		}
		if opts.DepMode == DepM || opts.DepMode == DepMM {
			return nil
		}
	}

	if opts.PreprocessOnly {
		writePreprocessed(opts.Output, preprocessed)
		return d.Flush()
	}

	var objs []*ast.Obj
	opts.timed(stats.PhaseParse, func() {
		objs = parser.Parse(preprocessed, d, opts.Std)
	})
	if d.HasErrors() {
		return d.Flush()
	}

	var asm string
	opts.timed(stats.PhaseCodegen, func() {
		asm = codegen.GenFCommon(objs, d, opts.FCommon)
	})
	if d.HasErrors() {
		return d.Flush()
	}

	fmt.Fprint(opts.Output, asm)

	if opts.TimeReport && opts.Stats != nil {
		fmt.Fprint(os.Stderr, stats.NewReport(opts.Stats).String())
	}

	return d.Flush()
}

func stdVersionString(std parser.StdVer) string {
	switch std {
	case parser.C89:
		return "198909L"
	case parser.C99:
		return "199901L"
	case parser.C11:
		return "201112L"
	case parser.C23:
		return "202311L"
	default:
		return "201710L"
	}
}

func splitDefine(def string) (name, body string) {
	if i := strings.IndexByte(def, '='); i >= 0 {
		return def[:i], def[i+1:]
	}
	return def, "1"
}

func appendTokens(list, more *token.Token) *token.Token {
	if list == nil || list.Kind == token.EOF {
		return more
	}
	cur := list
	for cur.Next != nil && cur.Next.Kind != token.EOF {
		cur = cur.Next
	}
	cur.Next = more
	return list
}

func writePreprocessed(w io.Writer, tok *token.Token) {
	first := true
	for tok != nil && tok.Kind != token.EOF {
		if !first && (tok.HasSpace || tok.AtBOL) {
			fmt.Fprint(w, " ")
		}
		fmt.Fprint(w, tok.Text)
		first = false
		tok = tok.Next
	}
	fmt.Fprintln(w)
}

// writeDepFile renders a makefile dependency rule listing every file the
// preprocessor touched, per spec.md §6's -M/-MD/-MMD/-MF/-MP/-MT/-MQ group.
func writeDepFile(opts Options, inputPath string, files []*token.File) error {
	var target string
	if len(opts.DepTargets) > 0 {
		target = strings.Join(opts.DepTargets, " ")
	} else {
		base := filepath.Base(inputPath)
		ext := filepath.Ext(base)
		target = strings.TrimSuffix(base, ext) + ".o"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:", target)
	var names []string
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f.Name] || strings.HasPrefix(f.Name, "<builtin>") {
			continue
		}
		if (opts.DepMode == DepMM || opts.DepMode == DepMMD) && strings.HasPrefix(f.Name, "/usr/") {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
		fmt.Fprintf(&b, " \\\n  %s", f.Name)
	}
	b.WriteString("\n")
	if opts.DepPhony {
		for _, name := range names {
			fmt.Fprintf(&b, "\n%s:\n", name)
		}
	}

	out := opts.Output
	if opts.DepFile != "" {
		f, err := os.Create(opts.DepFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	_, err := io.WriteString(out, b.String())
	return err
}
