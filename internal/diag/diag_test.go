package diag

import (
	"testing"

	"github.com/fuhsnn/widccgo/internal/token"
)

func TestWarnDoesNotCountAsError(t *testing.T) {
	r := NewReporter()
	tok := &token.Token{Kind: token.IDENT}
	r.Warnf(tok, "suspicious construct")
	if r.HasErrors() {
		t.Fatalf("a warning must not be an error")
	}
	if len(r.Diagnostics()) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(r.Diagnostics()))
	}
}

func TestErrorfMarksFatal(t *testing.T) {
	r := NewReporter()
	tok := &token.Token{Kind: token.IDENT}
	r.Errorf(tok, "undeclared identifier %q", "foo")
	if !r.HasErrors() {
		t.Fatalf("expected HasErrors() true after Errorf")
	}
	if err := r.Flush(); err == nil {
		t.Fatalf("expected Flush() to return non-nil error")
	}
}

func TestFlushCleanReporter(t *testing.T) {
	r := NewReporter()
	if err := r.Flush(); err != nil {
		t.Fatalf("expected nil error from a clean reporter, got %v", err)
	}
}
