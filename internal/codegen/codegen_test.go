package codegen

import (
	"strings"
	"testing"

	"github.com/fuhsnn/widccgo/internal/diag"
	"github.com/fuhsnn/widccgo/internal/lexer"
	"github.com/fuhsnn/widccgo/internal/parser"
	"github.com/fuhsnn/widccgo/internal/token"
)

// compile runs one translation unit through the lexer, parser, and code
// generator, the same pipeline cmd/widccgo wires together minus the
// preprocessor (none of these tests need macro expansion).
func compile(t *testing.T, src string) string {
	t.Helper()
	d := diag.NewReporter()
	l := lexer.New(d)
	f := &token.File{Name: "t.c", Text: src, IsBaseFile: true}
	tok := l.Tokenize(f)
	objs := parser.Parse(tok, d, parser.C17)
	if d.HasErrors() {
		t.Fatalf("unexpected front-end errors: %v", d.Diagnostics())
	}
	out := Gen(objs, d)
	if d.HasErrors() {
		t.Fatalf("unexpected codegen errors: %v", d.Diagnostics())
	}
	return out
}

func mustContain(t *testing.T, asm string, substrs ...string) {
	t.Helper()
	for _, s := range substrs {
		if !strings.Contains(asm, s) {
			t.Fatalf("assembly missing %q:\n%s", s, asm)
		}
	}
}

func TestSimpleFunctionEmitsPrologueAndReturn(t *testing.T) {
	asm := compile(t, "int add(int a, int b) { return a + b; }")
	mustContain(t, asm,
		"add:",
		"push %rbp",
		"mov %rsp, %rbp",
		".L.return.add:",
		"pop %rbp",
		"ret",
	)
}

func TestGlobalVariableIsTentativeByDefault(t *testing.T) {
	asm := compile(t, "int counter;")
	mustContain(t, asm, ".comm counter, 4, 4")
}

func TestGlobalVariableInitializerInData(t *testing.T) {
	asm := compile(t, "int answer = 42;")
	mustContain(t, asm, ".data", "answer:")
}

func TestIfElseEmitsBothBranches(t *testing.T) {
	asm := compile(t, `
int f(int x) {
  if (x > 0) {
    return 1;
  } else {
    return -1;
  }
}`)
	mustContain(t, asm, "cmp", "je", "jmp")
}

func TestForLoopEmitsBeginAndEndLabels(t *testing.T) {
	asm := compile(t, `
int sum(int n) {
  int s = 0;
  for (int i = 0; i < n; i = i + 1) {
    s = s + i;
  }
  return s;
}`)
	if !strings.Contains(asm, ".L.begin.") || !strings.Contains(asm, ".L.break.") {
		t.Fatalf("expected for-loop labels, got:\n%s", asm)
	}
}

func TestSwitchCaseEmitsCompareAndJump(t *testing.T) {
	asm := compile(t, `
int f(int x) {
  switch (x) {
  case 1:
    return 10;
  case 2:
    return 20;
  default:
    return 0;
  }
}`)
	mustContain(t, asm, "cmp $1", "cmp $2", "je")
}

func TestSeventhIntegerArgumentPassedOnStack(t *testing.T) {
	asm := compile(t, `
int sum7(int a, int b, int c, int d, int e, int f, int g) {
  return a + b + c + d + e + f + g;
}
int caller(void) {
  return sum7(1, 2, 3, 4, 5, 6, 7);
}`)
	// Caller reserves an outgoing stack slot and restores %rsp afterward.
	mustContain(t, asm, "sub $16, %rsp", "call sum7", "add $16, %rsp")
	// Callee reads its 7th parameter from the caller's frame, not a
	// callee-local negative offset.
	mustContain(t, asm, "16(%rbp)")
}

func TestVariadicFunctionReservesRegSaveArea(t *testing.T) {
	asm := compile(t, `
int f(int fmt, ...) {
  __builtin_va_list ap;
  __builtin_va_start(ap, fmt);
  int v = __builtin_va_arg(ap, int);
  __builtin_va_end(ap);
  return v;
}`)
	mustContain(t, asm, "movq %rsi, -168(%rbp)", "movq %rdx, -160(%rbp)")
}

func TestVLAAllocatesFromStackPointer(t *testing.T) {
	asm := compile(t, `
int f(int n) {
  int a[n];
  return a[0];
}`)
	mustContain(t, asm, "sub %rax, %rsp", "and $-16, %rsp")
}

func TestCompoundAssignmentRoundtrips(t *testing.T) {
	asm := compile(t, `
int f(void) {
  int x = 1;
  x += 2;
  x *= 3;
  return x;
}`)
	mustContain(t, asm, "add", "imul")
}

func TestStringLiteralEmitsReadOnlyData(t *testing.T) {
	asm := compile(t, `
char *greet(void) {
  return "hello";
}`)
	if !strings.Contains(asm, ".byte") {
		t.Fatalf("expected string literal bytes, got:\n%s", asm)
	}
}

func TestStructMemberAccessComputesOffset(t *testing.T) {
	asm := compile(t, `
struct point { int x; int y; };
int getY(struct point *p) {
  return p->y;
}`)
	mustContain(t, asm, "add $4, %rax")
}

func TestOutputEndsWithNoteGNUStack(t *testing.T) {
	asm := compile(t, "int f(void) { return 0; }")
	if !strings.Contains(asm, `.section .note.GNU-stack,"",@progbits`) {
		t.Fatalf("missing GNU-stack note section, got:\n%s", asm)
	}
}

func TestTentativeGlobalUsesCommonByDefault(t *testing.T) {
	d := diag.NewReporter()
	l := lexer.New(d)
	f := &token.File{Name: "t.c", Text: "int counter;", IsBaseFile: true}
	objs := parser.Parse(l.Tokenize(f), d, parser.C17)
	if d.HasErrors() {
		t.Fatalf("unexpected front-end errors: %v", d.Diagnostics())
	}
	asm := GenFCommon(objs, d, true)
	mustContain(t, asm, ".comm counter, 4, 4")

	asm2 := GenFCommon(objs, d, false)
	mustContain(t, asm2, ".bss", "counter:")
	if strings.Contains(asm2, ".comm") {
		t.Fatalf("fno-common should not emit .comm, got:\n%s", asm2)
	}
}

func TestSmallStructArgumentPassesContentNotAddress(t *testing.T) {
	asm := compile(t, `
struct pair { int a; int b; };
int sum(struct pair p) {
  return p.a + p.b;
}
int caller(void) {
  struct pair p;
  p.a = 1;
  p.b = 2;
  return sum(p);
}`)
	// The argument's 8 actual content bytes are loaded into %rdi before
	// the call, via a plain frame-relative mov, not an address computed
	// with lea.
	mustContain(t, asm, "mov -", "(%rbp), %rdi", "call sum")
}

func TestSixteenByteStructArgumentUsesTwoRegisters(t *testing.T) {
	asm := compile(t, `
struct wide { long a; long b; };
long sum(struct wide w) {
  return w.a + w.b;
}
int caller(void) {
  struct wide w;
  w.a = 1;
  w.b = 2;
  return sum(w);
}`)
	mustContain(t, asm, "%rdi", "%rsi", "call sum")
}

func TestLargeStructArgumentIsMemoryClassCopiedOnStack(t *testing.T) {
	asm := compile(t, `
struct big { long a[3]; };
long first(struct big b) {
  return b.a[0];
}
int caller(void) {
  struct big b;
  b.a[0] = 7;
  return first(b);
}`)
	// A >16-byte struct argument is copied by value into the outgoing
	// stack area (byte-by-byte into %rsp-relative offsets), rounded up
	// to the 16-byte stack-alignment boundary, rather than having its
	// address pushed into an argument register.
	mustContain(t, asm, "sub $32, %rsp", "movb %r8b, 0(%rsp)", "call first")
}

func TestSmallStructReturnPacksIntoRegisters(t *testing.T) {
	asm := compile(t, `
struct mixed { double d; int i; };
struct mixed make(void) {
  struct mixed m;
  m.d = 1.5;
  m.i = 2;
  return m;
}`)
	// {double,int} is <=16 bytes and wholesale-classified INTEGER (not
	// every member is float), so it returns via {rax[,rdx]} per this
	// compiler's documented simplification.
	mustContain(t, asm, "mov %rax, %rcx", "mov 0(%rcx), %rax", "mov 8(%rcx), %rdx")
}

func TestLargeStructReturnUsesHiddenPointer(t *testing.T) {
	asm := compile(t, `
struct big { long a[3]; };
struct big make(void) {
  struct big b;
  b.a[0] = 1;
  return b;
}
int caller(void) {
  struct big b;
  b = make();
  return (int)b.a[0];
}`)
	// The hidden return pointer arrives in %rdi and is stashed at
	// function entry; the caller passes its own buffer's address the
	// same way.
	mustContain(t, asm, "mov %rdi, -", "lea -", "call make")
}

func TestUnusedStaticFunctionIsElided(t *testing.T) {
	asm := compile(t, `
static int unused(void) { return 1; }
int used(void) { return 2; }`)
	if strings.Contains(asm, "unused:") {
		t.Fatalf("expected dead static function to be elided, got:\n%s", asm)
	}
	mustContain(t, asm, "used:")
}
