package codegen

import (
	"math"

	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
)

// genExpr evaluates n, leaving an integer/pointer result in %rax or a
// floating result in %xmm0, per widcc's gen_expr.
func (g *gen) genExpr(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case ast.OpNum:
		g.genNum(n)
		return
	case ast.OpVar, ast.OpMember:
		g.genAddr(n)
		g.load(n.Type)
		return
	case ast.OpDeref:
		g.genExpr(n.Lhs)
		g.load(n.Type)
		return
	case ast.OpAddr:
		g.genAddr(n.Lhs)
		return
	case ast.OpAssign:
		g.genAssign(n)
		return
	case ast.OpCast:
		g.genCast(n)
		return
	case ast.OpCond:
		g.genCond(n)
		return
	case ast.OpComma, ast.OpChain:
		g.genExpr(n.Lhs)
		g.genExpr(n.Rhs)
		return
	case ast.OpLogAnd:
		g.genLogAnd(n)
		return
	case ast.OpLogOr:
		g.genLogOr(n)
		return
	case ast.OpLogNot:
		g.genExpr(n.Lhs)
		g.compareZero(n.Lhs.Type)
		g.out.P("  sete %%al")
		g.out.P("  movzbl %%al, %%eax")
		return
	case ast.OpBitNot:
		g.genExpr(n.Lhs)
		g.out.P("  not %%rax")
		return
	case ast.OpNeg:
		if ctype.IsFlonum(n.Type) {
			g.genExpr(n.Lhs)
			if n.Type.Kind == ctype.FLOAT {
				g.out.P("  xorps %%xmm1, %%xmm1")
				g.out.P("  subss %%xmm0, %%xmm1")
				g.out.P("  movaps %%xmm1, %%xmm0")
			} else {
				g.out.P("  xorpd %%xmm1, %%xmm1")
				g.out.P("  subsd %%xmm0, %%xmm1")
				g.out.P("  movapd %%xmm1, %%xmm0")
			}
			return
		}
		g.genExpr(n.Lhs)
		g.out.P("  neg %%rax")
		return
	case ast.OpFuncall:
		g.genFuncall(n)
		return
	case ast.OpStmtExpr:
		g.genStmt(n.Body)
		return
	case ast.OpMemzero:
		g.genMemzero(n)
		return
	case ast.OpAlloca:
		g.genAlloca(n)
		return
	case ast.OpVaStart, ast.OpVaCopy, ast.OpVaArg:
		g.genVaBuiltin(n)
		return
	case ast.OpLabelVal:
		g.out.P("  lea %s(%%rip), %%rax", n.UniqueLabel)
		return
	}

	if isArithOp(n.Op) {
		g.genBinaryArith(n)
		return
	}
	if isCompareOp(n.Op) {
		g.genCompare(n)
		return
	}
	g.diag.Errorf(n.Tok, "invalid expression")
}

func isArithOp(op ast.Op) bool {
	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod,
		ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpShl, ast.OpShr:
		return true
	}
	return false
}

func isCompareOp(op ast.Op) bool {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe:
		return true
	}
	return false
}

func (g *gen) genNum(n *ast.Node) {
	if ctype.IsFlonum(n.Type) {
		lbl := g.label()
		if n.Type.Kind == ctype.FLOAT {
			g.out.P("  .section .rodata")
			g.out.P("%s:", lbl)
			g.out.P("  .long %d", floatBitsOf32(n.FloatVal))
			g.out.P("  .text")
			g.out.P("  movss %s(%%rip), %%xmm0", lbl)
		} else {
			g.out.P("  .section .rodata")
			g.out.P("%s:", lbl)
			g.out.P("  .quad %d", floatBitsOf64(n.FloatVal))
			g.out.P("  .text")
			g.out.P("  movsd %s(%%rip), %%xmm0", lbl)
		}
		return
	}
	g.out.P("  mov $%d, %%rax", n.IntVal)
}

func floatBitsOf32(f float64) uint32 { return math.Float32bits(float32(f)) }
func floatBitsOf64(f float64) uint64 { return math.Float64bits(f) }

func (g *gen) genAssign(n *ast.Node) {
	g.genAddr(n.Lhs)
	off := g.tmpStackPushAddr()
	g.genExpr(n.Rhs)
	g.restoreTmpStackAddr(off)
	g.store(n.Type)
}

// tmpStackPushAddr/restoreTmpStackAddr bracket evaluating the RHS while
// the LHS address (currently in %rax) is preserved on the spill stack,
// per widcc's push()/load() pairing around assignment.
func (g *gen) tmpStackPushAddr() int {
	return g.pushInt()
}

func (g *gen) restoreTmpStackAddr(off int) {
	g.tmpStack = append(g.tmpStack, off)
}

func (g *gen) genCast(n *ast.Node) {
	g.genExpr(n.Lhs)
	g.castTo(n.Lhs.Type, n.Type)
}

func (g *gen) castTo(from, to *ctype.Type) {
	if to.Kind == ctype.VOID {
		return
	}
	if to.Kind == ctype.BOOL {
		g.compareZero(from)
		g.out.P("  setne %%al")
		g.out.P("  movzbl %%al, %%eax")
		return
	}
	fromFlo := ctype.IsFlonum(from)
	toFlo := ctype.IsFlonum(to)
	switch {
	case fromFlo && toFlo:
		g.castFloatFloat(from, to)
	case fromFlo && !toFlo:
		g.castFloatInt(from, to)
	case !fromFlo && toFlo:
		g.castIntFloat(from, to)
	default:
		g.castIntInt(from, to)
	}
}

func (g *gen) castFloatFloat(from, to *ctype.Type) {
	if from.Kind == to.Kind {
		return
	}
	if to.Kind == ctype.FLOAT {
		g.out.P("  cvtsd2ss %%xmm0, %%xmm0")
	} else {
		g.out.P("  cvtss2sd %%xmm0, %%xmm0")
	}
}

func (g *gen) castFloatInt(from, to *ctype.Type) {
	cvt := "cvttsd2si"
	if from.Kind == ctype.FLOAT {
		cvt = "cvttss2si"
	}
	if to.Size == 8 {
		g.out.P("  %s %%xmm0, %%rax", cvt)
	} else {
		g.out.P("  %s %%xmm0, %%eax", cvt)
	}
}

func (g *gen) castIntFloat(from, to *ctype.Type) {
	cvt := "cvtsi2sd"
	if to.Kind == ctype.FLOAT {
		cvt = "cvtsi2ss"
	}
	if from.Size == 8 {
		g.out.P("  %s %%rax, %%xmm0", cvt)
	} else {
		g.out.P("  %s %%eax, %%xmm0", cvt)
	}
}

func (g *gen) castIntInt(from, to *ctype.Type) {
	switch to.Size {
	case 1:
		if to.IsUnsigned {
			g.out.P("  movzbl %%al, %%eax")
		} else {
			g.out.P("  movsbl %%al, %%eax")
		}
	case 2:
		if to.IsUnsigned {
			g.out.P("  movzwl %%ax, %%eax")
		} else {
			g.out.P("  movswl %%ax, %%eax")
		}
	case 4:
		g.out.P("  mov %%eax, %%eax")
	default:
		if from.Size < 8 {
			if from.IsUnsigned {
				g.out.P("  mov %%eax, %%eax")
			} else {
				g.out.P("  movsxd %%eax, %%rax")
			}
		}
	}
}

func (g *gen) compareZero(ty *ctype.Type) {
	if ctype.IsFlonum(ty) {
		if ty.Kind == ctype.FLOAT {
			g.out.P("  xorps %%xmm1, %%xmm1")
			g.out.P("  ucomiss %%xmm1, %%xmm0")
		} else {
			g.out.P("  xorpd %%xmm1, %%xmm1")
			g.out.P("  ucomisd %%xmm1, %%xmm0")
		}
		return
	}
	if ty.Size <= 4 {
		g.out.P("  cmp $0, %%eax")
	} else {
		g.out.P("  cmp $0, %%rax")
	}
}

func (g *gen) genCond(n *ast.Node) {
	lbl := g.counter.next()
	g.genExpr(n.Cond)
	g.compareZero(n.Cond.Type)
	g.out.P("  je .L.else.%d", lbl)
	if n.Then != nil {
		g.genExpr(n.Then)
	}
	g.out.P("  jmp .L.end.%d", lbl)
	g.out.P(".L.else.%d:", lbl)
	g.genExpr(n.Else)
	g.out.P(".L.end.%d:", lbl)
}

func (g *gen) genLogAnd(n *ast.Node) {
	lbl := g.counter.next()
	g.genExpr(n.Lhs)
	g.compareZero(n.Lhs.Type)
	g.out.P("  je .L.false.%d", lbl)
	g.genExpr(n.Rhs)
	g.compareZero(n.Rhs.Type)
	g.out.P("  je .L.false.%d", lbl)
	g.out.P("  mov $1, %%rax")
	g.out.P("  jmp .L.end.%d", lbl)
	g.out.P(".L.false.%d:", lbl)
	g.out.P("  mov $0, %%rax")
	g.out.P(".L.end.%d:", lbl)
}

func (g *gen) genLogOr(n *ast.Node) {
	lbl := g.counter.next()
	g.genExpr(n.Lhs)
	g.compareZero(n.Lhs.Type)
	g.out.P("  jne .L.true.%d", lbl)
	g.genExpr(n.Rhs)
	g.compareZero(n.Rhs.Type)
	g.out.P("  jne .L.true.%d", lbl)
	g.out.P("  mov $0, %%rax")
	g.out.P("  jmp .L.end.%d", lbl)
	g.out.P(".L.true.%d:", lbl)
	g.out.P("  mov $1, %%rax")
	g.out.P(".L.end.%d:", lbl)
}

func (g *gen) genBinaryArith(n *ast.Node) {
	if ctype.IsFlonum(n.Type) {
		g.genFloatArith(n)
		return
	}
	g.genExpr(n.Rhs)
	g.pushInt()
	g.genExpr(n.Lhs)
	g.popIntTo("%rdi")

	unsigned := n.Type != nil && n.Type.IsUnsigned
	switch n.Op {
	case ast.OpAdd:
		g.out.P("  add %%rdi, %%rax")
	case ast.OpSub:
		g.out.P("  sub %%rdi, %%rax")
	case ast.OpMul:
		g.out.P("  imul %%rdi, %%rax")
	case ast.OpDiv, ast.OpMod:
		if unsigned {
			g.out.P("  mov $0, %%rdx")
			g.out.P("  div %%rdi")
		} else {
			g.out.P("  cqo")
			g.out.P("  idiv %%rdi")
		}
		if n.Op == ast.OpMod {
			g.out.P("  mov %%rdx, %%rax")
		}
	case ast.OpBitAnd:
		g.out.P("  and %%rdi, %%rax")
	case ast.OpBitOr:
		g.out.P("  or %%rdi, %%rax")
	case ast.OpBitXor:
		g.out.P("  xor %%rdi, %%rax")
	case ast.OpShl:
		g.out.P("  mov %%rdi, %%rcx")
		g.out.P("  shl %%cl, %%rax")
	case ast.OpShr:
		g.out.P("  mov %%rdi, %%rcx")
		if unsigned {
			g.out.P("  shr %%cl, %%rax")
		} else {
			g.out.P("  sar %%cl, %%rax")
		}
	}
}

func (g *gen) genFloatArith(n *ast.Node) {
	isFloat := n.Type.Kind == ctype.FLOAT
	g.genExpr(n.Rhs)
	g.pushFloat()
	g.genExpr(n.Lhs)
	g.popFloatTo("xmm1")

	suffix := "sd"
	if isFloat {
		suffix = "ss"
	}
	switch n.Op {
	case ast.OpAdd:
		g.out.P("  add%s %%xmm1, %%xmm0", suffix)
	case ast.OpSub:
		g.out.P("  sub%s %%xmm1, %%xmm0", suffix)
	case ast.OpMul:
		g.out.P("  mul%s %%xmm1, %%xmm0", suffix)
	case ast.OpDiv:
		g.out.P("  div%s %%xmm1, %%xmm0", suffix)
	}
}

func (g *gen) genCompare(n *ast.Node) {
	if ctype.IsFlonum(n.Lhs.Type) {
		g.genFloatCompare(n)
		return
	}
	g.genExpr(n.Rhs)
	g.pushInt()
	g.genExpr(n.Lhs)
	g.popIntTo("%rdi")

	unsigned := n.Lhs.Type != nil && n.Lhs.Type.IsUnsigned
	g.out.P("  cmp %%rdi, %%rax")
	switch n.Op {
	case ast.OpEq:
		g.out.P("  sete %%al")
	case ast.OpNe:
		g.out.P("  setne %%al")
	case ast.OpLt:
		if unsigned {
			g.out.P("  setb %%al")
		} else {
			g.out.P("  setl %%al")
		}
	case ast.OpLe:
		if unsigned {
			g.out.P("  setbe %%al")
		} else {
			g.out.P("  setle %%al")
		}
	}
	g.out.P("  movzbl %%al, %%eax")
}

func (g *gen) genFloatCompare(n *ast.Node) {
	isFloat := n.Lhs.Type.Kind == ctype.FLOAT
	g.genExpr(n.Rhs)
	g.pushFloat()
	g.genExpr(n.Lhs)
	g.popFloatTo("xmm1")

	cmp := "ucomisd"
	if isFloat {
		cmp = "ucomiss"
	}
	g.out.P("  %s %%xmm1, %%xmm0", cmp)
	switch n.Op {
	case ast.OpEq:
		g.out.P("  sete %%al")
		g.out.P("  setnp %%dl")
		g.out.P("  and %%dl, %%al")
	case ast.OpNe:
		g.out.P("  setne %%al")
		g.out.P("  setp %%dl")
		g.out.P("  or %%dl, %%al")
	case ast.OpLt:
		g.out.P("  seta %%al")
	case ast.OpLe:
		g.out.P("  setae %%al")
	}
	g.out.P("  and $1, %%al")
	g.out.P("  movzbl %%al, %%eax")
}

func (g *gen) genMemzero(n *ast.Node) {
	g.genAddr(n.Lhs)
	g.out.P("  mov %%rax, %%rdi")
	g.out.P("  mov $%d, %%rcx", n.Lhs.Type.Size)
	g.out.P("  mov $0, %%al")
	g.out.P("  rep stosb")
}

// genAlloca lowers a VLA's storage allocation, per widcc's
// ND_ALLOCA/builtin_alloca: the size (already evaluated into %rax) shifts
// %rsp down, the result is 16-byte aligned, and the new %rsp is recorded
// either into the VLA's base-pointer slot or left in %rax.
func (g *gen) genAlloca(n *ast.Node) {
	g.genExpr(n.Lhs)
	g.out.P("  sub %%rax, %%rsp")
	g.out.P("  and $-16, %%rsp")
	if n.Var != nil {
		g.out.P("  mov %%rsp, %d(%%rbp)", n.Var.Offset)
	} else {
		g.out.P("  mov %%rsp, %%rax")
	}
}

// genVaBuiltin lowers __builtin_va_start/va_copy/va_arg against the
// standard x86-64 va_list layout (gp_offset, fp_offset, overflow_arg_area,
// reg_save_area), per widcc's ND_VA_START/ND_VA_COPY/ND_VA_ARG.
func (g *gen) genVaBuiltin(n *ast.Node) {
	switch n.Op {
	case ast.OpVaStart:
		g.genExpr(n.Lhs)
		g.out.P("  movl $%d, (%%rax)", g.vaGPStart)
		g.out.P("  movl $%d, 4(%%rax)", g.vaFPStart)
		g.out.P("  lea %d(%%rbp), %%rdx", g.vaStStart)
		g.out.P("  movq %%rdx, 8(%%rax)")
		g.out.P("  lea -%d(%%rbp), %%rdx", vaRegSaveAreaSize)
		g.out.P("  movq %%rdx, 16(%%rax)")
		return
	case ast.OpVaCopy:
		g.genExpr(n.Lhs)
		off := g.pushInt()
		g.genExpr(n.Rhs)
		g.tmpStack = append(g.tmpStack, off)
		g.popIntTo("%rcx")
		g.memCopyBytes("%rax", 0, "%rcx", 0, 24)
		return
	case ast.OpVaArg:
		g.genVaArg(n)
		return
	}
}

// genVaArg implements the fetch-from-reg-save-area-else-overflow-area
// logic of __builtin_va_arg, simplified to classify an aggregate wholesale
// as integer or floating (the same simplification classifyArg documents
// for call argument classification) rather than per-eightbyte.
func (g *gen) genVaArg(n *ast.Node) {
	g.genExpr(n.Lhs)
	ty := n.Type
	dstOfs := n.Var.Offset

	if ty.Size <= 16 {
		isFP := classifyArg(ty) == classSSE
		inc := eightbyteCount(ty)
		lbl := g.counter.next()
		if isFP {
			g.out.P("  cmpl $%d, 4(%%rax)", 176-inc*16)
		} else {
			g.out.P("  cmpl $%d, (%%rax)", 48-inc*8)
		}
		g.out.P("  ja .L.va.stk.%d", lbl)

		for ofs := 0; ofs < ty.Size; ofs += 8 {
			chunk := ty.Size - ofs
			if chunk > 8 {
				chunk = 8
			}
			if isFP {
				g.out.P("  movl 4(%%rax), %%ecx")
				g.out.P("  addq 16(%%rax), %%rcx")
				g.out.P("  addq $16, 4(%%rax)")
			} else {
				g.out.P("  movl (%%rax), %%ecx")
				g.out.P("  addq 16(%%rax), %%rcx")
				g.out.P("  addq $8, (%%rax)")
			}
			g.memCopyBytes("%rcx", 0, "%rbp", dstOfs+ofs, chunk)
		}
		g.out.P("  jmp .L.va.done.%d", lbl)
		g.out.P(".L.va.stk.%d:", lbl)
		g.genVaArgFromStack(ty, dstOfs)
		g.out.P(".L.va.done.%d:", lbl)
	} else {
		g.genVaArgFromStack(ty, dstOfs)
	}

	g.out.P("  lea %d(%%rbp), %%rax", dstOfs)
	g.load(ty)
}

func (g *gen) genVaArgFromStack(ty *ctype.Type, dstOfs int) {
	g.out.P("  movq 8(%%rax), %%rcx")
	if ty.Align > 8 {
		g.out.P("  addq $%d, %%rcx", ty.Align-1)
		g.out.P("  andq $-%d, %%rcx", ty.Align)
	}
	g.out.P("  movq %%rcx, %%rdx")
	g.out.P("  addq $%d, %%rdx", ctype.AlignTo(ty.Size, 8))
	g.out.P("  movq %%rdx, 8(%%rax)")
	g.memCopyBytes("%rcx", 0, "%rbp", dstOfs, ty.Size)
}

