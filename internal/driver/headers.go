package driver

// bundledHeaders serves a handful of libc-independent standard headers
// without a filesystem lookup, the way widcc ships include/float.h
// (SPEC_FULL.md §7). Angle-bracket #include of one of these names
// resolves here before any -I search path is consulted.
var bundledHeaders = map[string]string{
	"float.h":  floatH,
	"stdarg.h": stdargH,
}

// floatH restates original_source/include/float.h's numeric constants.
// The original's FLT_ROUNDS macro calls fegetround() from <fenv.h>, which
// this compiler doesn't bundle; that one macro is dropped rather than
// pulling in a header this tree has no runtime for (see DESIGN.md).
const floatH = `#ifndef __STDFLOAT_H
#define __STDFLOAT_H

#define DECIMAL_DIG 21
#define FLT_EVAL_METHOD 0
#define FLT_RADIX 2

#define FLT_DIG 6
#define FLT_EPSILON 0x1p-23
#define FLT_MANT_DIG 24
#define FLT_MAX 0x1.fffffep+127
#define FLT_MAX_10_EXP 38
#define FLT_MAX_EXP 128
#define FLT_MIN 0x1p-126
#define FLT_MIN_10_EXP -37
#define FLT_MIN_EXP -125
#define FLT_TRUE_MIN 0x1p-149

#define DBL_DIG 15
#define DBL_EPSILON 0x1p-52
#define DBL_MANT_DIG 53
#define DBL_MAX 0x1.fffffffffffffp+1023
#define DBL_MAX_10_EXP 308
#define DBL_MAX_EXP 1024
#define DBL_MIN 0x1p-1022
#define DBL_MIN_10_EXP -307
#define DBL_MIN_EXP -1021
#define DBL_TRUE_MIN 0x0.0000000000001p-1022

#define LDBL_DIG 15
#define LDBL_EPSILON 0x1p-52
#define LDBL_MANT_DIG 53
#define LDBL_MAX 0x1.fffffffffffffp+1023
#define LDBL_MAX_10_EXP 308
#define LDBL_MAX_EXP 1024
#define LDBL_MIN 0x1p-1022
#define LDBL_MIN_10_EXP -307
#define LDBL_MIN_EXP -1021
#define LDBL_TRUE_MIN 0x0.0000000000001p-1022

#endif
`

// stdargH defines va_list as the simplified non-array struct typedef
// internal/ctype.VaList/internal/parser's __builtin_va_* lowering expects
// (see DESIGN.md for the array-decay simplification this carries).
const stdargH = `#ifndef __STDARG_H
#define __STDARG_H

typedef __builtin_va_list va_list;

#define va_start(ap, last) __builtin_va_start(ap, last)
#define va_arg(ap, type) __builtin_va_arg(ap, type)
#define va_end(ap) __builtin_va_end(ap)
#define va_copy(dst, src) __builtin_va_copy(dst, src)

#endif
`
