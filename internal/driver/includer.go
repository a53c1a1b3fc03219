package driver

import (
	"os"
	"path/filepath"

	"github.com/fuhsnn/widccgo/internal/token"
)

// fsIncluder resolves #include targets. A quoted include tries the
// including file's directory first; after that, and for angle-bracket
// includes, bundled headers are tried, then the -I search path list, per
// spec.md §6's "set of include-path resolver callbacks" input.
type fsIncluder struct {
	searchPaths []string
}

func newFSIncluder(paths []string) *fsIncluder {
	return &fsIncluder{searchPaths: paths}
}

func (f *fsIncluder) ResolveQuote(curFile *token.File, name string) (string, string, bool) {
	if curFile != nil {
		dir := filepath.Dir(curFile.Name)
		if path, text, ok := tryRead(filepath.Join(dir, name)); ok {
			return path, text, true
		}
	}
	return f.ResolveAngle(name)
}

func (f *fsIncluder) ResolveAngle(name string) (string, string, bool) {
	if text, ok := bundledHeaders[name]; ok {
		return "<builtin>/" + name, text, true
	}
	for _, dir := range f.searchPaths {
		if path, text, ok := tryRead(filepath.Join(dir, name)); ok {
			return path, text, true
		}
	}
	return "", "", false
}

// ResolveNext implements #include_next as a plain angle-bracket search.
// A faithful #include_next would resume the search path one entry past
// the directory that produced the currently-including file; since this
// driver doesn't track which search-path entry resolved each open file,
// it falls back to a full re-search (see DESIGN.md).
func (f *fsIncluder) ResolveNext(curFile *token.File, name string) (string, string, bool) {
	return f.ResolveAngle(name)
}

func tryRead(path string) (string, string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", false
	}
	return path, string(b), true
}
