package codegen

import (
	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
)

// genAddr computes the address of an lvalue into %rax, per widcc's
// gen_addr.
func (g *gen) genAddr(n *ast.Node) {
	switch n.Op {
	case ast.OpVar:
		g.genAddrVar(n.Var)
		return
	case ast.OpDeref:
		g.genExpr(n.Lhs)
		return
	case ast.OpComma, ast.OpChain:
		g.genExpr(n.Lhs)
		g.genAddr(n.Rhs)
		return
	case ast.OpMember:
		g.genAddr(n.Lhs)
		g.out.P("  add $%d, %%rax", n.Member.Offset)
		return
	case ast.OpAssign, ast.OpCond:
		// Compound-literal / comma-derived lvalues: evaluate for the
		// side effect, result already denotes an address-yielding var.
		g.genExpr(n)
		return
	case ast.OpCast:
		g.genAddr(n.Lhs)
		return
	}
	g.diag.Errorf(n.Tok, "not an lvalue")
}

func (g *gen) genAddrVar(v *ast.Obj) {
	if v.IsLocal {
		g.out.P("  lea %d(%%rbp), %%rax", v.Offset)
		return
	}
	g.out.P("  lea %s(%%rip), %%rax", v.Name)
}

// load dereferences the address currently in %rax into %rax (or %xmm0 for
// floats), honoring array-to-pointer non-loading and struct/union
// by-reference semantics, per widcc's load(). It does no bit-field
// shift/mask extraction: a bit-field member is loaded as a whole value of
// the node's type.
func (g *gen) load(ty *ctype.Type) {
	switch ty.Kind {
	case ctype.ARRAY, ctype.VLA, ctype.FUNC, ctype.STRUCT, ctype.UNION:
		// Arrays/functions decay to their address; aggregates are passed
		// by reference within expression evaluation (copied at the
		// point of use, e.g. assignment or argument passing).
		return
	case ctype.FLOAT:
		g.out.P("  movss (%%rax), %%xmm0")
		return
	case ctype.DOUBLE, ctype.LDOUBLE:
		g.out.P("  movsd (%%rax), %%xmm0")
		return
	}

	insn := "movs"
	if ty.IsUnsigned {
		insn = "movz"
	}
	switch ty.Size {
	case 1:
		g.out.P("  %sbl (%%rax), %%eax", insn)
	case 2:
		g.out.P("  %swl (%%rax), %%eax", insn)
	case 4:
		g.out.P("  movsxd (%%rax), %%rax")
		if ty.IsUnsigned {
			g.out.P("  mov %%eax, %%eax")
		}
	default:
		g.out.P("  mov (%%rax), %%rax")
	}
}

// store writes %rax/%xmm0 to the address on top of the tmp stack, per
// widcc's store().
func (g *gen) store(ty *ctype.Type) {
	addrOff := g.popTmpstack()
	switch ty.Kind {
	case ctype.STRUCT, ctype.UNION:
		g.out.P("  mov -%d(%%rbp), %%rdi", addrOff)
		for i := 0; i < ty.Size; i++ {
			g.out.P("  mov %d(%%rax), %%r8b", i)
			g.out.P("  mov %%r8b, %d(%%rdi)", i)
		}
		g.out.P("  mov %%rdi, %%rax")
		return
	case ctype.FLOAT:
		g.out.P("  mov -%d(%%rbp), %%rdi", addrOff)
		g.out.P("  movss %%xmm0, (%%rdi)")
		return
	case ctype.DOUBLE, ctype.LDOUBLE:
		g.out.P("  mov -%d(%%rbp), %%rdi", addrOff)
		g.out.P("  movsd %%xmm0, (%%rdi)")
		return
	}
	g.out.P("  mov -%d(%%rbp), %%rdi", addrOff)
	switch ty.Size {
	case 1:
		g.out.P("  mov %%al, (%%rdi)")
	case 2:
		g.out.P("  mov %%ax, (%%rdi)")
	case 4:
		g.out.P("  mov %%eax, (%%rdi)")
	default:
		g.out.P("  mov %%rax, (%%rdi)")
	}
}

// memCopyBytes emits a byte-at-a-time copy from srcOfs(srcReg) to
// dstOfs(dstReg), used by va_copy/va_arg to move reg-save-area and
// overflow-area bytes into a va_list or a hidden local.
func (g *gen) memCopyBytes(srcReg string, srcOfs int, dstReg string, dstOfs int, sz int) {
	for i := 0; i < sz; i++ {
		g.out.P("  movb %d(%s), %%r8b", srcOfs+i, srcReg)
		g.out.P("  movb %%r8b, %d(%s)", dstOfs+i, dstReg)
	}
}
