// Package ctype implements the C type system: representation,
// compatibility, usual arithmetic conversions, and struct/union/bit-field
// layout (spec.md §4.2). Named ctype rather than "type" since the latter
// is a Go keyword.
package ctype

import "github.com/cznic/mathutil"

// Kind is the tag of the Type sum type (spec.md §3 Type, and the REDESIGN
// FLAGS note in spec.md §9 calling for sum types over switched structs).
type Kind int

const (
	VOID Kind = iota
	BOOL
	PCHAR // plain char, distinct from explicit signed/unsigned char for overload purposes
	CHAR
	SHORT
	INT
	LONG
	LLONG
	FLOAT
	DOUBLE
	LDOUBLE
	POINTER
	ARRAY
	VLA
	FUNC
	STRUCT
	UNION
	ENUM
)

// Member is one field of a struct/union, including bit-field layout.
type Member struct {
	Name       string
	Type       *Type
	Index      int
	Offset     int // byte offset within the aggregate
	IsBitfield bool
	BitOffset  int
	BitWidth   int
	Anonymous  bool // embedded unnamed struct/union member
}

// Param is one function parameter, kept as a list rather than a slice so
// it can be built incrementally the way the parser discovers it (mirrors
// widcc's Obj *param_next linked chain).
type Param struct {
	Name string
	Type *Type
	Next *Param
}

// Type is the tagged-variant C type representation (spec.md §3 Type).
// Every type records Size (bytes; negative means incomplete) and Align;
// kind-specific fields follow below.
type Type struct {
	Kind       Kind
	Size       int
	Align      int
	IsUnsigned bool
	IsAtomic   bool
	IsPacked   bool // struct/union only: __attribute__((packed))

	Base *Type // pointee / element / return type

	// ARRAY / VLA
	ArrayLen   int
	VLALenExpr any    // *ast.Node; untyped to avoid an import cycle with internal/ast
	VLASizeVar any    // *ast.Obj holding the computed byte size, assigned before first use

	// FUNC
	Params     *Param
	ReturnType *Type
	IsVariadic bool
	IsOldStyle bool
	FuncScope  any // *ast.Scope

	// STRUCT / UNION
	Members    []*Member
	IsFlexible bool

	// ENUM
	EnumUnderlying *Type

	Origin *Type // non-nil when this Type was copied from another (typedef chaining)
}

// Predefined base types, one shared instance per kind, exactly like
// widcc's ty_void/ty_int/... package-level singletons in type.c.
var (
	Void    = &Type{Kind: VOID, Size: 1, Align: 1}
	Bool    = &Type{Kind: BOOL, Size: 1, Align: 1, IsUnsigned: true}
	PChar   = &Type{Kind: PCHAR, Size: 1, Align: 1}
	Char    = &Type{Kind: CHAR, Size: 1, Align: 1}
	Short   = &Type{Kind: SHORT, Size: 2, Align: 2}
	Int     = &Type{Kind: INT, Size: 4, Align: 4}
	Long    = &Type{Kind: LONG, Size: 8, Align: 8}
	LLong   = &Type{Kind: LLONG, Size: 8, Align: 8}
	UChar   = &Type{Kind: CHAR, Size: 1, Align: 1, IsUnsigned: true}
	UShort  = &Type{Kind: SHORT, Size: 2, Align: 2, IsUnsigned: true}
	UInt    = &Type{Kind: INT, Size: 4, Align: 4, IsUnsigned: true}
	ULong   = &Type{Kind: LONG, Size: 8, Align: 8, IsUnsigned: true}
	ULLong  = &Type{Kind: LLONG, Size: 8, Align: 8, IsUnsigned: true}
	Float   = &Type{Kind: FLOAT, Size: 4, Align: 4}
	Double  = &Type{Kind: DOUBLE, Size: 8, Align: 8}
	LDouble = &Type{Kind: LDOUBLE, Size: 16, Align: 16}

	// SizeT/IntptrT/PtrdiffT are filled by InitLP64, matching widcc's
	// init_ty_lp64 (type.c) for the LP64 data model this compiler targets.
	SizeT    *Type
	IntptrT  *Type
	PtrdiffT *Type
)

// InitLP64 sets the LP64-model aliases. Call once per process; there is
// no per-compilation state here since these are data-model constants, not
// translation-unit state.
func InitLP64() {
	SizeT = ULong
	IntptrT = Long
	PtrdiffT = Long
}

// VaList is __builtin_va_list's type: the standard x86-64 SysV va_list
// record {gp_offset, fp_offset, overflow_arg_area, reg_save_area}. Real
// glibc types va_list as a one-element array of this struct so that
// passing it to a helper function auto-decays to a pointer; this compiler
// simplifies that to the bare struct (documented in DESIGN.md), since
// __builtin_va_start/va_arg/va_copy only ever need its address, which
// genExpr on a struct-typed operand already yields.
var VaList = &Type{
	Kind: STRUCT, Size: 24, Align: 8,
	Members: []*Member{
		{Name: "gp_offset", Type: Int, Offset: 0},
		{Name: "fp_offset", Type: Int, Offset: 4},
		{Name: "overflow_arg_area", Type: &Type{Kind: POINTER, Size: 8, Align: 8, Base: Void}, Offset: 8},
		{Name: "reg_save_area", Type: &Type{Kind: POINTER, Size: 8, Align: 8, Base: Void}, Offset: 16},
	},
}

// NewType allocates a fresh Type of the given kind/size/align.
func NewType(k Kind, size, align int) *Type {
	return &Type{Kind: k, Size: size, Align: align}
}

// PointerTo returns a new pointer type to base, per widcc's pointer_to.
func PointerTo(base *Type) *Type {
	return &Type{Kind: POINTER, Size: 8, Align: 8, Base: base}
}

// ArrayOf returns a new array type of len elements of base.
// Arrays of >=16 bytes take alignment max(16, base.Align) per the SysV
// ABI (spec.md §4.2 Layout, last bullet).
func ArrayOf(base *Type, length int) *Type {
	size := base.Size * length
	align := base.Align
	if size >= 16 && align < 16 {
		align = 16
	}
	return &Type{Kind: ARRAY, Size: size, Align: align, Base: base, ArrayLen: length}
}

// VLAOf returns a new variable-length array type; Size is left negative
// (incomplete) until the VLA size variable is computed at runtime.
func VLAOf(base *Type, lenExpr any) *Type {
	return &Type{Kind: VLA, Size: -1, Align: base.Align, Base: base, VLALenExpr: lenExpr}
}

// FuncType returns a new function type.
func FuncType(ret *Type, params *Param, variadic, oldStyle bool) *Type {
	return &Type{Kind: FUNC, Size: 1, Align: 1, ReturnType: ret, Params: params, IsVariadic: variadic, IsOldStyle: oldStyle}
}

// IsInteger reports whether ty is one of the integer kinds (spec.md §4.2).
func IsInteger(ty *Type) bool {
	switch Unwrap(ty).Kind {
	case BOOL, PCHAR, CHAR, SHORT, INT, LONG, LLONG, ENUM:
		return true
	}
	return false
}

// IsFlonum reports whether ty is a floating-point kind.
func IsFlonum(ty *Type) bool {
	switch Unwrap(ty).Kind {
	case FLOAT, DOUBLE, LDOUBLE:
		return true
	}
	return false
}

// IsNumeric reports whether ty is integer or floating-point.
func IsNumeric(ty *Type) bool { return IsInteger(ty) || IsFlonum(ty) }

// IsArrayLike reports whether ty is an ARRAY or VLA (spec.md's is_array).
func IsArrayLike(ty *Type) bool {
	k := Unwrap(ty).Kind
	return k == ARRAY || k == VLA
}

// Unwrap follows Origin chains to the underlying representation type,
// per widcc's repeated "if (ty->origin) ..." compatibility checks.
func Unwrap(ty *Type) *Type {
	for ty != nil && ty.Origin != nil {
		ty = ty.Origin
	}
	return ty
}

// IsCompatible implements spec.md §4.2 compatibility: structural for
// pointers, arrays (either-unknown-length compatible on element), and
// functions (return + params compatible, same variadicity); signed and
// unsigned variants of the same integer kind are NOT compatible.
func IsCompatible(t1, t2 *Type) bool {
	if t1 == t2 {
		return true
	}
	if t1.Origin != nil {
		return IsCompatible(t1.Origin, t2)
	}
	if t2.Origin != nil {
		return IsCompatible(t1, t2.Origin)
	}
	if (t1.Kind == VLA && t2.Kind == VLA) ||
		(t1.Kind == VLA && t2.Kind == ARRAY) ||
		(t1.Kind == ARRAY && t2.Kind == VLA) {
		return IsCompatible(t1.Base, t2.Base)
	}
	if t1.Kind != t2.Kind {
		return false
	}
	switch t1.Kind {
	case PCHAR, CHAR, SHORT, INT, LONG, LLONG:
		return t1.IsUnsigned == t2.IsUnsigned
	case POINTER:
		return IsCompatible(t1.Base, t2.Base)
	case ARRAY:
		if t1.ArrayLen >= 0 && t2.ArrayLen >= 0 && t1.ArrayLen != t2.ArrayLen {
			return false
		}
		return IsCompatible(t1.Base, t2.Base)
	case FUNC:
		if t1.IsVariadic != t2.IsVariadic {
			return false
		}
		if !IsCompatible(t1.ReturnType, t2.ReturnType) {
			return false
		}
		p1, p2 := t1.Params, t2.Params
		for p1 != nil && p2 != nil {
			if !IsCompatible(p1.Type, p2.Type) {
				return false
			}
			p1, p2 = p1.Next, p2.Next
		}
		return p1 == nil && p2 == nil
	case STRUCT, UNION, ENUM:
		return t1 == t2
	default:
		return true
	}
}

func intRank(ty *Type) int {
	switch Unwrap(ty).Kind {
	case BOOL, PCHAR, CHAR:
		return 1
	case SHORT:
		return 2
	case INT, ENUM:
		return 3
	case LONG:
		return 4
	case LLONG:
		return 5
	}
	return 0
}

// promote implements integer promotion, including the bit-field special
// case in spec.md §4.2: a bit-field width <= int-width promotes to int
// unless it equals int-width and is unsigned, in which case uint.
func promote(ty *Type, bitWidth int, isBitfield bool) *Type {
	if isBitfield {
		if bitWidth < Int.Size*8 {
			return Int
		}
		if bitWidth == Int.Size*8 && ty.IsUnsigned {
			return UInt
		}
		return Int
	}
	if intRank(ty) < intRank(Int) {
		return Int
	}
	return ty
}

// CommonType implements spec.md §4.2's usual arithmetic conversion.
func CommonType(t1, t2 *Type) *Type {
	if t1.Base != nil && (t1.Kind == POINTER || t1.Kind == ARRAY) {
		return PointerTo(t1.Base)
	}
	if IsFlonum(t1) || IsFlonum(t2) {
		if Unwrap(t1).Kind == LDOUBLE || Unwrap(t2).Kind == LDOUBLE {
			return LDouble
		}
		if Unwrap(t1).Kind == DOUBLE || Unwrap(t2).Kind == DOUBLE {
			return Double
		}
		return Float
	}
	a := promote(t1, 0, false)
	b := promote(t2, 0, false)
	if a.Size != b.Size {
		if a.Size > b.Size {
			return a
		}
		return b
	}
	if a.IsUnsigned == b.IsUnsigned {
		if intRank(a) >= intRank(b) {
			return a
		}
		return b
	}
	// same size, different signedness: take the unsigned variant of the
	// higher-ranked operand.
	hi := a
	if intRank(b) > intRank(a) {
		hi = b
	}
	if hi.IsUnsigned {
		return hi
	}
	return unsignedVariant(hi)
}

func unsignedVariant(ty *Type) *Type {
	switch Unwrap(ty).Kind {
	case PCHAR, CHAR:
		return UChar
	case SHORT:
		return UShort
	case INT:
		return UInt
	case LONG:
		return ULong
	case LLONG:
		return ULLong
	}
	return ty
}

// PromoteBitfield exposes the bit-field promotion special case to callers
// outside this package (the parser, evaluating a member-access expression
// type, spec.md §4.2).
func PromoteBitfield(storage *Type, bitWidth int) *Type {
	return promote(storage, bitWidth, true)
}

// Decay implements pointer decay: arrays/VLAs decay to pointer-to-element,
// functions decay to pointer-to-function, in rvalue contexts (spec.md
// §4.2).
func Decay(ty *Type) *Type {
	u := Unwrap(ty)
	switch u.Kind {
	case ARRAY, VLA:
		return PointerTo(u.Base)
	case FUNC:
		return PointerTo(ty)
	}
	return ty
}

// AlignTo rounds n up to the next multiple of align (align is always a
// power of two here: byte sizes or bit-widths-in-bits), per widcc's
// align_to macro in chibicc.h: ((n + align - 1) & ~(align - 1)).
func AlignTo(n, align int) int {
	if align <= 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// AlignDown rounds n down to the previous multiple of align.
func AlignDown(n, align int) int {
	if align <= 0 {
		return n
	}
	return n &^ (align - 1)
}

// maxAlign picks the larger of two member alignments while laying out a
// struct/union (spec.md §4.2). Built on mathutil.Max rather than a
// hand-rolled branch, matching the teacher's vendored dependency surface.
func maxAlign(a, b int) int {
	return mathutil.Max(a, b)
}
