// Package codegen lowers the parser's ast.Obj/ast.Node graph into x86-64
// SysV assembly text (spec.md §4.4). It mirrors the teacher's buffered,
// formatted-output style (main.go's bufio/fmt wiring) but targets an
// in-memory bytes.Buffer instead of a file handle, since one Gen call may
// be re-run against several Obj sets in tests.
package codegen

import (
	"bytes"
	"fmt"
)

// asmbuf accumulates emitted assembly lines. It is the Go-native stand-in
// for widcc's FILE*-based println helper (codegen.c): one buffer per
// compilation, flushed by the caller once generation completes.
type asmbuf struct {
	buf   bytes.Buffer
	depth int // not written by the generator; tmp-stack depth lives in gen.tmpStack
}

func newAsmbuf() *asmbuf {
	return &asmbuf{}
}

// P prints one formatted assembly line, per widcc's println.
func (a *asmbuf) P(format string, args ...any) {
	fmt.Fprintf(&a.buf, format, args...)
	a.buf.WriteByte('\n')
}

func (a *asmbuf) String() string { return a.buf.String() }

// labelCounter produces label suffixes unique within one Gen call, per
// widcc's count().
type labelCounter struct{ n int }

func (c *labelCounter) next() int {
	c.n++
	return c.n
}
