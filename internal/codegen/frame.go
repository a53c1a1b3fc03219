package codegen

import (
	"github.com/fuhsnn/widccgo/internal/ast"
	"github.com/fuhsnn/widccgo/internal/ctype"
)

// assignLvarOffsets lays out one function's locals on the stack, growing
// downward from %rbp, per widcc's assign_lvar_offsets (codegen.c). VLAs
// only reserve space for their base-pointer slot here; their actual
// storage is carved out of %rsp at the declaration point during
// generation (spec.md §4.3 VLA lowering).
func assignLvarOffsets(fn *ast.Obj) (int, int) {
	// Parameters beyond the 6 integer / 8 SSE registers already live on
	// the caller's stack (the MEMORY class of the SysV argument
	// classification); they keep their caller-assigned positive offset
	// instead of being copied into a callee-owned negative slot. A
	// MEMORY-class (>16-byte) struct/union parameter is always
	// stack-passed, by its full value, and never claims a GP/FP
	// register at all.
	stackParams := map[*ast.Obj]bool{}
	gp, fp := 0, 0
	stackOfs := 16
	if returnsByMemory(fn.Type.ReturnType) {
		gp++ // hidden return pointer occupies the first GP register
	}
	for p := fn.Params; p != nil; p = p.ParamNext {
		class := classifyArg(p.Type)
		if class == classMemory {
			stackParams[p] = true
			p.Offset = stackOfs
			stackOfs += ctype.AlignTo(p.Type.Size, 8)
			continue
		}
		n := eightbyteCount(p.Type)
		if class == classSSE {
			if fp+n > fpMax {
				stackParams[p] = true
				p.Offset = stackOfs
				stackOfs += 8 * n
			} else {
				fp += n
			}
			continue
		}
		if gp+n > gpMax {
			stackParams[p] = true
			p.Offset = stackOfs
			stackOfs += 8 * n
		} else {
			gp += n
		}
	}

	bottom := 0
	if fn.IsVariadic {
		bottom = vaRegSaveAreaSize
	}
	if returnsByMemory(fn.Type.ReturnType) {
		bottom += 8
		fn.ReturnPtrOfs = bottom
	}
	if fn.DeallocVLA {
		bottom += 8
		fn.VLABaseOfs = bottom
	}
	for _, v := range fn.Locals {
		if stackParams[v] {
			continue
		}
		align := v.Type.Align
		size := v.Type.Size
		if v.Type.Kind == ctype.VLA {
			size = 8
			align = 8
		}
		bottom += size
		bottom = ctype.AlignTo(bottom, align)
		v.Offset = -bottom
	}
	return ctype.AlignTo(bottom, 16), stackOfs
}

// classifyArg buckets one function-call/definition argument into the
// INTEGER/SSE/MEMORY SysV classes. Structs/unions larger than 16 bytes
// and a scalar long double pass in MEMORY; everything else <=16 bytes
// (including a small struct that holds a long double) passes in up to two
// eightbytes, classified wholesale as INTEGER unless every member is float
// or double, a deliberate simplification of the full eightbyte-merge
// algorithm in the SysV ABI (listed under internal/codegen's known
// simplifications in DESIGN.md).
type argClass int

const (
	classInteger argClass = iota
	classSSE
	classMemory
)

func classifyArg(ty *ctype.Type) argClass {
	u := ctype.Unwrap(ty)
	switch u.Kind {
	case ctype.FLOAT, ctype.DOUBLE:
		return classSSE
	case ctype.LDOUBLE:
		return classMemory
	case ctype.STRUCT, ctype.UNION:
		if u.Size > 16 {
			return classMemory
		}
		if allFloatMembers(u) {
			return classSSE
		}
		return classInteger
	default:
		return classInteger
	}
}

// isAggregate reports whether ty (after typedef/atomic unwrapping) is a
// struct or union, the two kinds load()'s "value is an address"
// convention applies to.
func isAggregate(ty *ctype.Type) bool {
	k := ctype.Unwrap(ty).Kind
	return k == ctype.STRUCT || k == ctype.UNION
}

// returnsByMemory reports whether a function returning ty needs the
// hidden-return-pointer calling convention: ty is a struct/union whose
// SysV class is MEMORY (spec.md §4.4 Frame Layout item 4).
func returnsByMemory(ty *ctype.Type) bool {
	return isAggregate(ty) && classifyArg(ty) == classMemory
}

func allFloatMembers(ty *ctype.Type) bool {
	for _, m := range ty.Members {
		mt := ctype.Unwrap(m.Type)
		switch mt.Kind {
		case ctype.FLOAT, ctype.DOUBLE:
			continue
		case ctype.STRUCT, ctype.UNION:
			if !allFloatMembers(mt) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// eightbyteCount reports how many 8-byte registers a <=16 byte
// struct/union argument consumes.
func eightbyteCount(ty *ctype.Type) int {
	return (ty.Size + 7) / 8
}
