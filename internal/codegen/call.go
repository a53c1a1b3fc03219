package codegen

import (
	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
)

// argSlot is one evaluated-and-spilled call argument awaiting placement,
// per widcc's per-argument Obj consumed by calling_convention/
// place_stack_args/place_reg_args.
type argSlot struct {
	ty       *ctype.Type
	ofs      int // tmp-stack offset; content starts at -ofs(%rbp)
	class    argClass
	regs     int // eightbytes this occupies if register-passed; 0 for MEMORY class
	onStack  bool
	stackOfs int // offset into the outgoing stack area, once onStack is decided
}

// genFuncall evaluates every argument left-to-right, spilling each
// argument's actual content (not its address) into its own tmp-stack
// buffer, then runs a widcc-style two-pass placement: calling_convention
// first classifies every argument as register- or stack-passed without
// emitting code, then place_stack_args/place_reg_args emit the outgoing
// stack writes and register loads from those classifications (codegen.c's
// gen_expr ND_FUNCALL case). A struct/union return wider than 16 bytes
// (MEMORY class) is returned through a hidden pointer passed as an
// implicit first argument (spec.md §4.4 Frame Layout item 4).
func (g *gen) genFuncall(n *ast.Node) {
	indirect := !(n.Lhs != nil && n.Lhs.Op == ast.OpVar && n.Lhs.Var != nil && n.Lhs.Var.Kind == ast.ObjFunc)
	var fnPtrOfs int
	if indirect {
		g.genExpr(n.Lhs)
		fnPtrOfs = g.pushInt()
	}

	retByStack := n.Type != nil && returnsByMemory(n.Type)
	var retBufOfs int
	if retByStack {
		retBufOfs = g.pushTmpstack(eightbyteCount(n.Type))
	}

	var slots []argSlot
	for _, arg := range n.Args {
		g.genExpr(arg)
		slots = append(slots, g.spillArg(arg))
	}

	// calling_convention: decide register vs. stack placement for every
	// argument before emitting any of it. MEMORY-class arguments are
	// always stack-passed and never consume a GP/FP register.
	gp, fp := 0, 0
	if retByStack {
		gp++ // hidden return pointer occupies the first GP register
	}
	for i := range slots {
		s := &slots[i]
		switch s.class {
		case classMemory:
			s.onStack = true
		case classSSE:
			if fp+s.regs <= fpMax {
				fp += s.regs
			} else {
				s.onStack = true
			}
		default:
			if gp+s.regs <= gpMax {
				gp += s.regs
			} else {
				s.onStack = true
			}
		}
	}

	stackBytes := 0
	for i := range slots {
		if !slots[i].onStack {
			continue
		}
		sz := 8 * slots[i].regs
		if slots[i].class == classMemory {
			sz = ctype.AlignTo(slots[i].ty.Size, 8)
		}
		slots[i].stackOfs = stackBytes
		stackBytes += sz
	}
	stackArea := ctype.AlignTo(stackBytes, 16)
	if stackArea > 0 {
		g.out.P("  sub $%d, %%rsp", stackArea)
	}

	// place_stack_args: every stack-passed argument is written into the
	// reserved outgoing area, left to right; MEMORY-class arguments are
	// copied by value (their full byte content), never just an address.
	for _, s := range slots {
		if !s.onStack {
			continue
		}
		if s.class == classMemory {
			g.memCopyBytes("%rbp", -s.ofs, "%rsp", s.stackOfs, s.ty.Size)
			continue
		}
		for e := 0; e < s.regs; e++ {
			g.out.P("  mov -%d(%%rbp), %%r11", s.ofs-8*e)
			g.out.P("  mov %%r11, %d(%%rsp)", s.stackOfs+8*e)
		}
	}

	// place_reg_args: load every register-passed argument, left to
	// right, matching the gp/fp accumulation order decided above.
	gp, fp = 0, 0
	if retByStack {
		g.out.P("  lea -%d(%%rbp), %s", retBufOfs, argReg64[gp])
		gp++
	}
	for _, s := range slots {
		if s.onStack {
			continue
		}
		for e := 0; e < s.regs; e++ {
			srcOfs := s.ofs - 8*e
			if s.class == classSSE {
				g.out.P("  movsd -%d(%%rbp), %%xmm%d", srcOfs, fp)
				fp++
			} else {
				g.out.P("  mov -%d(%%rbp), %s", srcOfs, argReg64[gp])
				gp++
			}
		}
	}

	g.out.P("  mov $%d, %%al", fp)
	if indirect {
		g.out.P("  mov -%d(%%rbp), %%r10", fnPtrOfs)
		g.out.P("  call *%%r10")
	} else {
		g.out.P("  call %s", n.Lhs.Var.Name)
	}
	if stackArea > 0 {
		g.out.P("  add $%d, %%rsp", stackArea)
	}

	if n.Type == nil {
		return
	}
	switch {
	case n.Type.Kind == ctype.BOOL:
		g.out.P("  movzbl %%al, %%eax")
	case retByStack:
		// copy_struct_mem's contract: the callee already leaves the
		// buffer's own address in %rax; nothing further to do.
	case isAggregate(n.Type):
		g.copyRetRegsToBuffer(n.Type)
	}
}

// spillArg copies genExpr's result for one already-evaluated argument
// (an address in %rax for a struct/union, a value in %rax/%xmm0
// otherwise) into a fresh tmp-stack buffer sized to its own eightbyte
// count, so later placement can address its content directly instead of
// the address load() leaves behind for aggregates.
func (g *gen) spillArg(arg *ast.Node) argSlot {
	class := classifyArg(arg.Type)
	if isAggregate(arg.Type) {
		units := eightbyteCount(arg.Type)
		ofs := g.pushTmpstack(units)
		g.memCopyBytes("%rax", 0, "%rbp", -ofs, arg.Type.Size)
		regs := units
		if class == classMemory {
			regs = 0
		}
		return argSlot{ty: arg.Type, ofs: ofs, class: class, regs: regs}
	}
	if class == classSSE {
		return argSlot{ty: arg.Type, ofs: g.pushFloat(), class: class, regs: 1}
	}
	return argSlot{ty: arg.Type, ofs: g.pushInt(), class: class, regs: 1}
}

// copyRetRegsToBuffer unpacks a <=16-byte struct/union return value out
// of {xmm0[,xmm1]} or {rax[,rdx]} into a fresh caller-owned buffer and
// leaves that buffer's address in %rax, mirroring widcc's
// copy_ret_buffer()+lea so the rest of this compiler's pipeline can keep
// treating the call's value as a struct/union address (addr.go's load()
// convention), using this compiler's wholesale (not per-eightbyte)
// class assignment (documented as a simplification in DESIGN.md).
func (g *gen) copyRetRegsToBuffer(ty *ctype.Type) {
	units := eightbyteCount(ty)
	ofs := g.pushTmpstack(units)
	class := classifyArg(ty)
	for e := 0; e < units; e++ {
		dst := ofs - 8*e
		if class == classSSE {
			reg := "xmm0"
			if e == 1 {
				reg = "xmm1"
			}
			g.out.P("  movsd %%%s, -%d(%%rbp)", reg, dst)
		} else {
			reg := "%rax"
			if e == 1 {
				reg = "%rdx"
			}
			g.out.P("  mov %s, -%d(%%rbp)", reg, dst)
		}
	}
	g.out.P("  lea -%d(%%rbp), %%rax", ofs)
}
