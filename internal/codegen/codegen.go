package codegen

import (
	"sort"

	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
	"github.com/fuhsnn/widccgo/internal/diag"
)

var argReg8 = []string{"%dil", "%sil", "%dl", "%cl", "%r8b", "%r9b"}
var argReg16 = []string{"%di", "%si", "%dx", "%cx", "%r8w", "%r9w"}
var argReg32 = []string{"%edi", "%esi", "%edx", "%ecx", "%r8d", "%r9d"}
var argReg64 = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

const (
	gpMax = 6
	fpMax = 8
)

// gen is one translation unit's code-generation state, replacing widcc's
// file-scope statics (current_fn, depth, counters) with fields on a value
// threaded explicitly through every pass (spec.md §9 REDESIGN FLAGS).
type gen struct {
	out     *asmbuf
	counter labelCounter
	diag    *diag.Reporter

	curFn *ast.Obj

	tmpStack []int // stack-slot offsets in use, per widcc's tmp_stk
	lvarSize int
	peakUsed int
	dontReuseStack bool

	breakLabel    []string
	continueLabel []string
	curSwitchCases []*ast.Node
	curSwitchDefault string

	// stdarg reg-save-area bookkeeping for the current variadic function,
	// per widcc's va_gp_start/va_fp_start/va_st_start globals.
	vaGPStart, vaFPStart, vaStStart int

	fcommon bool
}

const vaRegSaveAreaSize = 176

// Gen lowers every function and global variable in objs to assembly text,
// per widcc's codegen() entry point, with -fcommon's default (tentative
// definitions merge into one .comm symbol across translation units).
func Gen(objs []*ast.Obj, d *diag.Reporter) string {
	return GenFCommon(objs, d, true)
}

// GenFCommon is Gen with -fcommon/-fno-common (SPEC_FULL.md §7) as an
// explicit input, restoring the decision-table branch the distillation
// left implicit: fcommon emits tentative definitions as `.comm`, letting
// the linker merge same-named tentative definitions from other
// translation units into one symbol; fno-common gives each one its own
// `.bss` symbol, matching C23's default behavior.
func GenFCommon(objs []*ast.Obj, d *diag.Reporter, fcommon bool) string {
	g := &gen{out: newAsmbuf(), diag: d, fcommon: fcommon}
	markLive(objs)
	g.emitData(objs)
	g.emitText(objs)
	g.out.P("  .section .note.GNU-stack,\"\",@progbits")
	return g.out.String()
}

// markLive flags every Obj transitively reachable through Refs from a root
// function, per widcc's liveness DFS (spec.md §4.4). Every function
// definition is a root and the parser does not fill Refs, so every defined
// function is marked live and emitted; unused static and static inline
// functions are not dropped.
func markLive(objs []*ast.Obj) {
	var visit func(fn *ast.Obj)
	visited := map[*ast.Obj]bool{}
	visit = func(fn *ast.Obj) {
		if fn == nil || visited[fn] {
			return
		}
		visited[fn] = true
		fn.IsLive = true
		for _, r := range fn.Refs {
			visit(r)
		}
	}
	// Every definition is treated as a root: whole-program liveness
	// elision is only meaningful with a known set of external entry
	// points, which a single translation unit doesn't have.
	for _, o := range objs {
		if o.Kind == ast.ObjFunc && o.IsDefinition {
			visit(o)
		}
	}
}

// --- data section ---

func (g *gen) emitData(objs []*ast.Obj) {
	for _, v := range objs {
		if v.Kind != ast.ObjVar || !v.IsDefinition {
			continue
		}
		if v.IsTentative {
			if g.fcommon && !v.IsStatic {
				g.out.P("  .comm %s, %d, %d", v.Name, v.Type.Size, v.Type.Align)
				continue
			}
			g.out.P("  .bss")
			if !v.IsStatic {
				g.out.P("  .globl %s", v.Name)
			}
			g.out.P("  .align %d", v.Type.Align)
			g.out.P("%s:", v.Name)
			g.out.P("  .zero %d", v.Type.Size)
			continue
		}
		g.out.P("  .data")
		if !v.IsStatic {
			g.out.P("  .globl %s", v.Name)
		}
		g.out.P("  .align %d", v.Type.Align)
		g.out.P("%s:", v.Name)
		g.emitInitBytes(v)
	}
}

func (g *gen) emitInitBytes(v *ast.Obj) {
	relocByOffset := map[int]ast.Relocation{}
	for _, r := range v.Relocations {
		relocByOffset[r.Offset] = r
	}
	i := 0
	for i < len(v.InitBytes) {
		if r, ok := relocByOffset[i]; ok {
			if r.Addend != 0 {
				g.out.P("  .quad %s+%d", r.Name, r.Addend)
			} else {
				g.out.P("  .quad %s", r.Name)
			}
			i += 8
			continue
		}
		g.out.P("  .byte %d", v.InitBytes[i])
		i++
	}
}

// --- text section ---

func (g *gen) emitText(objs []*ast.Obj) {
	for _, fn := range objs {
		if fn.Kind != ast.ObjFunc || !fn.IsDefinition || !fn.IsLive {
			continue
		}
		g.genFunction(fn)
	}
}

func (g *gen) genFunction(fn *ast.Obj) {
	g.curFn = fn
	var incomingStack int
	g.lvarSize, incomingStack = assignLvarOffsets(fn)
	g.peakUsed = g.lvarSize

	g.out.P("  .text")
	if !fn.IsStatic {
		g.out.P("  .globl %s", fn.Name)
	}
	g.out.P("%s:", fn.Name)
	g.out.P("  push %%rbp")
	g.out.P("  mov %%rsp, %%rbp")

	frameFixup := len(g.out.buf.Bytes())
	g.out.P("  sub $0, %%rsp") // backpatched below once peakUsed is known

	if fn.DeallocVLA {
		g.out.P("  mov %%rsp, -%d(%%rbp)", fn.VLABaseOfs)
	}

	g.storeParams(fn, incomingStack)
	g.genStmt(fn.Body)

	g.out.P("  mov $0, %%rax")
	g.out.P(".L.return.%s:", fn.Name)
	g.out.P("  mov %%rbp, %%rsp")
	g.out.P("  pop %%rbp")
	g.out.P("  ret")

	patchStackSub(g.out, frameFixup, ctype.AlignTo(g.peakUsed, 16))
	fn.StackSize = ctype.AlignTo(g.peakUsed, 16)
}

// patchStackSub rewrites the placeholder "sub $0, %rsp" line emitted at
// frame setup once the true peak stack usage is known, mirroring widcc's
// two-pass backpatch (it reserves the text, generates the body, then
// fseeks back to fill in peak_stk_usage).
func patchStackSub(a *asmbuf, lineStart int, size int) {
	text := a.buf.Bytes()
	rest := text[lineStart:]
	nl := indexByte(rest, '\n')
	if nl < 0 {
		return
	}
	newLine := []byte(sprintf("  sub $%d, %%rsp", size))
	merged := append([]byte{}, text[:lineStart]...)
	merged = append(merged, newLine...)
	merged = append(merged, rest[nl:]...)
	a.buf.Reset()
	a.buf.Write(merged)
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func sprintf(format string, args ...any) string {
	b := newAsmbuf()
	b.P(format, args...)
	s := b.String()
	return s[:len(s)-1]
}

func (g *gen) storeParams(fn *ast.Obj, incomingStack int) {
	gp, fp := 0, 0
	if returnsByMemory(fn.Type.ReturnType) {
		g.out.P("  mov %s, -%d(%%rbp)", argReg64[gp], fn.ReturnPtrOfs)
		gp++
	}
	for p := fn.Params; p != nil; p = p.ParamNext {
		class := classifyArg(p.Type)
		if class == classMemory {
			continue
		}
		n := eightbyteCount(p.Type)
		if class == classSSE {
			if fp+n <= fpMax {
				g.storeParamRegs(p, fp, n, true)
			}
			fp += n
			continue
		}
		if gp+n <= gpMax {
			g.storeParamRegs(p, gp, n, false)
		}
		gp += n
	}
	if fn.IsVariadic {
		g.emitVaSaveArea(gp, fp, incomingStack)
	}
}

// storeParamRegs spills a register-passed parameter's one or two
// eightbytes into its frame slot. n==2 only arises for a <=16-byte
// struct/union parameter wholesale-classified the same way across both
// eightbytes (classifyArg's documented simplification); each eightbyte
// is stored in full since any bytes past the struct's real size in the
// last eightbyte are inert padding, matching widcc's place_reg_args,
// which loads full eightbytes without size-masking either.
func (g *gen) storeParamRegs(v *ast.Obj, idx, n int, sse bool) {
	if n == 1 {
		if sse {
			g.storeFPParam(v, idx)
		} else {
			g.storeGPParam(v, idx)
		}
		return
	}
	for e := 0; e < n; e++ {
		dst := v.Offset + 8*e
		if sse {
			g.out.P("  movsd %%xmm%d, %d(%%rbp)", idx+e, dst)
		} else {
			g.out.P("  mov %s, %d(%%rbp)", argReg64[idx+e], dst)
		}
	}
}

// emitVaSaveArea spills every argument register not claimed by a named
// parameter into the fixed 176-byte reg-save area reserved at the top of
// the frame, and records the va_list bookkeeping genVaBuiltin needs, per
// widcc's variadic function prologue (codegen.c).
func (g *gen) emitVaSaveArea(gp, fp, incomingStack int) {
	g.vaGPStart = gp * 8
	g.vaFPStart = fp*16 + 48
	g.vaStStart = incomingStack

	for i := gp; i < gpMax; i++ {
		g.out.P("  movq %s, -%d(%%rbp)", argReg64[i], vaRegSaveAreaSize-i*8)
	}
	if fp < fpMax {
		g.out.P("  test %%al, %%al")
		lbl := g.counter.next()
		g.out.P("  je .L.va.skip.%d", lbl)
		for i := fp; i < fpMax; i++ {
			g.out.P("  movaps %%xmm%d, -%d(%%rbp)", i, vaRegSaveAreaSize-48-i*16)
		}
		g.out.P(".L.va.skip.%d:", lbl)
	}
}

func (g *gen) storeGPParam(v *ast.Obj, idx int) {
	switch v.Type.Size {
	case 1:
		g.out.P("  mov %s, %d(%%rbp)", argReg8[idx], v.Offset)
	case 2:
		g.out.P("  mov %s, %d(%%rbp)", argReg16[idx], v.Offset)
	case 4:
		g.out.P("  mov %s, %d(%%rbp)", argReg32[idx], v.Offset)
	default:
		g.out.P("  mov %s, %d(%%rbp)", argReg64[idx], v.Offset)
	}
}

func (g *gen) storeFPParam(v *ast.Obj, idx int) {
	if idx >= fpMax {
		return
	}
	if v.Type.Kind == ctype.FLOAT {
		g.out.P("  movss %%xmm%d, %d(%%rbp)", idx, v.Offset)
	} else {
		g.out.P("  movsd %%xmm%d, %d(%%rbp)", idx, v.Offset)
	}
}

// --- tmp stack (spill slots), per widcc's push_tmpstack/pop_tmpstack ---

func (g *gen) pushTmpstack(units int) int {
	var stkPos int
	if len(g.tmpStack) > 0 {
		stkPos = g.tmpStack[len(g.tmpStack)-1]
	} else {
		stkPos = g.lvarSize
	}
	stkPos += 8 * units
	if stkPos > g.peakUsed {
		g.peakUsed = stkPos
	}
	g.tmpStack = append(g.tmpStack, stkPos)
	return stkPos
}

func (g *gen) popTmpstack() int {
	n := len(g.tmpStack)
	off := g.tmpStack[n-1]
	g.tmpStack = g.tmpStack[:n-1]
	return off
}

func (g *gen) pushInt() int {
	off := g.pushTmpstack(1)
	g.out.P("  mov %%rax, -%d(%%rbp)", off)
	return off
}

func (g *gen) popIntTo(reg string) {
	off := g.popTmpstack()
	g.out.P("  mov -%d(%%rbp), %s", off, reg)
}

func (g *gen) pushFloat() int {
	off := g.pushTmpstack(1)
	g.out.P("  movsd %%xmm0, -%d(%%rbp)", off)
	return off
}

func (g *gen) popFloatTo(reg string) {
	off := g.popTmpstack()
	g.out.P("  movsd -%d(%%rbp), %%%s", off, reg)
}

func (g *gen) label() string {
	return sprintfLabel(g.counter.next())
}

func sprintfLabel(n int) string {
	return ".L.data." + itoaG(n)
}

func itoaG(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// --- switch case collection, per widcc's gen_stmt ND_SWITCH handling ---

func collectCases(n *ast.Node, out *[]*ast.Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case ast.OpSwitch:
		return // nested switch owns its own cases
	case ast.OpCase:
		*out = append(*out, n)
		collectCases(n.Lhs, out)
		return
	case ast.OpBlock:
		for s := n.Body; s != nil; s = s.Next {
			collectCases(s, out)
		}
		return
	case ast.OpIf:
		collectCases(n.Then, out)
		collectCases(n.Else, out)
		return
	case ast.OpFor, ast.OpDo:
		collectCases(n.Then, out)
		return
	}
}

func sortCases(cases []*ast.Node) {
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].CaseBegin < cases[j].CaseBegin
	})
}
