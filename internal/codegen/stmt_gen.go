package codegen

import (
	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
)

// genStmt lowers one statement node, per widcc's gen_stmt.
func (g *gen) genStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case ast.OpBlock:
		for s := n.Body; s != nil; s = s.Next {
			g.genStmt(s)
		}
		return
	case ast.OpExprStmt:
		g.genExpr(n.Lhs)
		return
	case ast.OpIf:
		g.genIf(n)
		return
	case ast.OpFor:
		g.genFor(n)
		return
	case ast.OpDo:
		g.genDo(n)
		return
	case ast.OpSwitch:
		g.genSwitch(n)
		return
	case ast.OpCase:
		g.out.P("%s:", n.UniqueLabel)
		g.genStmt(n.Lhs)
		return
	case ast.OpReturn:
		g.genReturn(n)
		return
	case ast.OpGoto:
		g.genGotoDealloc(n)
		g.out.P("  jmp %s", n.UniqueLabel)
		return
	case ast.OpGotoComputed:
		g.genExpr(n.Lhs)
		g.out.P("  jmp *%%rax")
		return
	case ast.OpLabel:
		g.out.P("%s:", n.UniqueLabel)
		g.genStmt(n.Lhs)
		return
	case ast.OpBreak:
		if len(g.breakLabel) == 0 {
			g.diag.Errorf(n.Tok, "break statement not within a loop or switch")
			return
		}
		g.out.P("  jmp %s", g.breakLabel[len(g.breakLabel)-1])
		return
	case ast.OpContinue:
		if len(g.continueLabel) == 0 {
			g.diag.Errorf(n.Tok, "continue statement not within a loop")
			return
		}
		g.out.P("  jmp %s", g.continueLabel[len(g.continueLabel)-1])
		return
	case ast.OpAsm:
		g.out.P("  %s", n.Label)
		return
	}
	g.diag.Errorf(n.Tok, "invalid statement")
}

// genGotoDealloc restores %rsp if n jumps out of one or more VLA scopes
// without returning from the function, per widcc's dealloc_vla: jumping
// into a still-live VLA's scope (top_vla == target_vla) needs no action;
// jumping to a point with a shallower (or no) live VLA rewinds %rsp to
// that VLA's own base pointer, or to the function's pristine frame base
// if none is live there.
func (g *gen) genGotoDealloc(n *ast.Node) {
	if !g.curFn.DeallocVLA || n.TopVLA == n.TargetVLA {
		return
	}
	if n.TargetVLA != nil {
		g.out.P("  mov %d(%%rbp), %%rsp", n.TargetVLA.Offset)
		return
	}
	g.out.P("  mov -%d(%%rbp), %%rsp", g.curFn.VLABaseOfs)
}

func (g *gen) genIf(n *ast.Node) {
	lbl := g.counter.next()
	g.genExpr(n.Cond)
	g.compareZero(n.Cond.Type)
	if n.Else != nil {
		g.out.P("  je .L.else.%d", lbl)
		g.genStmt(n.Then)
		g.out.P("  jmp .L.end.%d", lbl)
		g.out.P(".L.else.%d:", lbl)
		g.genStmt(n.Else)
		g.out.P(".L.end.%d:", lbl)
		return
	}
	g.out.P("  je .L.end.%d", lbl)
	g.genStmt(n.Then)
	g.out.P(".L.end.%d:", lbl)
}

func (g *gen) genFor(n *ast.Node) {
	lbl := g.counter.next()
	if n.Init != nil {
		g.genStmt(n.Init)
	}
	g.out.P(".L.begin.%d:", lbl)
	if n.Cond != nil {
		g.genExpr(n.Cond)
		g.compareZero(n.Cond.Type)
		g.out.P("  je .L.break.%d", lbl)
	}
	breakLbl := ".L.break." + itoaG(lbl)
	contLbl := ".L.continue." + itoaG(lbl)
	g.breakLabel = append(g.breakLabel, breakLbl)
	g.continueLabel = append(g.continueLabel, contLbl)

	g.genStmt(n.Then)

	g.out.P("%s:", contLbl)
	if n.Inc != nil {
		g.genExpr(n.Inc)
	}
	g.out.P("  jmp .L.begin.%d", lbl)
	g.out.P("%s:", breakLbl)

	g.breakLabel = g.breakLabel[:len(g.breakLabel)-1]
	g.continueLabel = g.continueLabel[:len(g.continueLabel)-1]
}

func (g *gen) genDo(n *ast.Node) {
	lbl := g.counter.next()
	breakLbl := ".L.break." + itoaG(lbl)
	contLbl := ".L.continue." + itoaG(lbl)
	g.breakLabel = append(g.breakLabel, breakLbl)
	g.continueLabel = append(g.continueLabel, contLbl)

	g.out.P(".L.begin.%d:", lbl)
	g.genStmt(n.Then)
	g.out.P("%s:", contLbl)
	g.genExpr(n.Cond)
	g.compareZero(n.Cond.Type)
	g.out.P("  jne .L.begin.%d", lbl)
	g.out.P("%s:", breakLbl)

	g.breakLabel = g.breakLabel[:len(g.breakLabel)-1]
	g.continueLabel = g.continueLabel[:len(g.continueLabel)-1]
}

func (g *gen) genSwitch(n *ast.Node) {
	lbl := g.counter.next()
	breakLbl := ".L.break." + itoaG(lbl)
	g.breakLabel = append(g.breakLabel, breakLbl)

	var cases []*ast.Node
	collectCases(n.Body, &cases)

	savedCases, savedDefault := g.curSwitchCases, g.curSwitchDefault
	g.curSwitchCases = cases

	g.genExpr(n.Cond)

	defaultLbl := ""
	for i, c := range cases {
		c.UniqueLabel = ".L.case." + itoaG(lbl) + "." + itoaG(i)
		if c.CaseLabel == "default" {
			defaultLbl = c.UniqueLabel
			continue
		}
		if c.CaseBegin == c.CaseEnd {
			g.out.P("  cmp $%d, %%rax", c.CaseBegin)
			g.out.P("  je %s", c.UniqueLabel)
		} else {
			g.out.P("  mov %%rax, %%rdi")
			g.out.P("  sub $%d, %%rdi", c.CaseBegin)
			g.out.P("  cmp $%d, %%rdi", c.CaseEnd-c.CaseBegin)
			g.out.P("  jbe %s", c.UniqueLabel)
		}
	}
	if defaultLbl != "" {
		g.out.P("  jmp %s", defaultLbl)
	} else {
		g.out.P("  jmp %s", breakLbl)
	}

	g.genStmt(n.Body)
	g.out.P("%s:", breakLbl)

	g.curSwitchCases, g.curSwitchDefault = savedCases, savedDefault
	g.breakLabel = g.breakLabel[:len(g.breakLabel)-1]
}

func (g *gen) genReturn(n *ast.Node) {
	if n.Lhs != nil {
		g.genExpr(n.Lhs)
		g.genReturnValue(n.Lhs.Type)
	}
	g.out.P("  jmp .L.return.%s", g.curFn.Name)
}

// genReturnValue packs a struct/union return value out of the address
// load() leaves in %rax. A >16-byte (MEMORY class) value is copied
// through the hidden return pointer stashed at function entry
// (copy_struct_mem); a <=16-byte value is packed into {rax[,rdx]} or
// {xmm0[,xmm1]} (copy_struct_reg), using this compiler's wholesale
// class assignment (classifyArg's documented simplification).
func (g *gen) genReturnValue(ty *ctype.Type) {
	if !isAggregate(ty) {
		return
	}
	g.out.P("  mov %%rax, %%rcx")
	if classifyArg(ty) == classMemory {
		g.out.P("  mov -%d(%%rbp), %%rax", g.curFn.ReturnPtrOfs)
		g.memCopyBytes("%rcx", 0, "%rax", 0, ty.Size)
		return
	}
	units := eightbyteCount(ty)
	class := classifyArg(ty)
	for e := 0; e < units; e++ {
		if class == classSSE {
			reg := "xmm0"
			if e == 1 {
				reg = "xmm1"
			}
			g.out.P("  movsd %d(%%rcx), %%%s", 8*e, reg)
		} else {
			reg := "%rax"
			if e == 1 {
				reg = "%rdx"
			}
			g.out.P("  mov %d(%%rcx), %s", 8*e, reg)
		}
	}
}
