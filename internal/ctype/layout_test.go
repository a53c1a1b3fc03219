package ctype

import "testing"

// TestPackedStructSize covers spec.md §8's scenario 3:
// struct __attribute__((packed)) S { char a; int b; } has sizeof==5,
// offsetof(b)==1.
func TestPackedStructSize(t *testing.T) {
	members := []*Member{
		{Name: "a", Type: Char},
		{Name: "b", Type: Int},
	}
	ty := NewStructType(members, true)
	if ty.Size != 5 {
		t.Fatalf("packed struct size = %d, want 5", ty.Size)
	}
	if members[1].Offset != 1 {
		t.Fatalf("offsetof(b) = %d, want 1", members[1].Offset)
	}
}

func TestNaturalStructAlignsMembers(t *testing.T) {
	members := []*Member{
		{Name: "a", Type: Char},
		{Name: "b", Type: Int},
	}
	ty := NewStructType(members, false)
	if members[1].Offset != 4 {
		t.Fatalf("offsetof(b) = %d, want 4 (natural alignment)", members[1].Offset)
	}
	if ty.Size != 8 {
		t.Fatalf("struct size = %d, want 8", ty.Size)
	}
	if ty.Align != 4 {
		t.Fatalf("struct align = %d, want 4", ty.Align)
	}
}

func TestBitfieldStraddleBumpsOffset(t *testing.T) {
	// int a:28; int b:8;  b would straddle the 4-byte storage unit
	// boundary at bit 28, so it's bumped to the next unit (offset 4).
	members := []*Member{
		{Name: "a", Type: Int, IsBitfield: true, BitWidth: 28},
		{Name: "b", Type: Int, IsBitfield: true, BitWidth: 8},
	}
	ty := NewStructType(members, false)
	if members[1].Offset != 4 {
		t.Fatalf("straddling bit-field offset = %d, want 4", members[1].Offset)
	}
	if members[1].BitOffset != 0 {
		t.Fatalf("straddling bit-field bit_offset = %d, want 0", members[1].BitOffset)
	}
	if ty.Size != 8 {
		t.Fatalf("size = %d, want 8", ty.Size)
	}
}

func TestBitfieldWidthEqualsIntWidthUnsignedPromotesUnsignedInt(t *testing.T) {
	// spec.md §8 boundary behavior.
	got := PromoteBitfield(UInt, 32)
	if got != UInt {
		t.Fatalf("expected uint promotion, got %+v", got)
	}
	gotSigned := PromoteBitfield(Int, 32)
	if gotSigned != Int {
		t.Fatalf("expected int (not unsigned) for a signed 32-bit bit-field, got %+v", gotSigned)
	}
	gotNarrow := PromoteBitfield(UInt, 4)
	if gotNarrow != Int {
		t.Fatalf("narrow bit-field must promote to plain int, got %+v", gotNarrow)
	}
}

func TestUnionSizeIsMaxMember(t *testing.T) {
	members := []*Member{
		{Name: "a", Type: Char},
		{Name: "b", Type: Double},
	}
	ty := NewUnionType(members, false)
	if ty.Size != 8 || ty.Align != 8 {
		t.Fatalf("union size/align = %d/%d, want 8/8", ty.Size, ty.Align)
	}
}

func TestFlexibleArrayMember(t *testing.T) {
	members := []*Member{
		{Name: "len", Type: Int},
		{Name: "data", Type: ArrayOf(Char, -1)}, // incomplete-length marker
	}
	members[1].Type.Size = -1
	ty := NewStructType(members, false)
	ApplyFlexibleArrayMember(ty)
	if !ty.IsFlexible {
		t.Fatalf("expected struct to be flagged flexible")
	}
	if ty.Members[len(ty.Members)-1].Type.Size != 0 {
		t.Fatalf("flexible array member must contribute 0 to sizeof")
	}
}

func TestIsCompatibleSignedUnsignedIncompatible(t *testing.T) {
	if IsCompatible(Int, UInt) {
		t.Fatalf("int and unsigned int must not be compatible")
	}
	if !IsCompatible(Int, Int) {
		t.Fatalf("int must be compatible with itself")
	}
}

func TestCommonTypeWidestWins(t *testing.T) {
	if got := CommonType(Int, Double); got != Double {
		t.Fatalf("CommonType(int, double) = %+v, want double", got)
	}
	if got := CommonType(Char, Int); got != Int {
		t.Fatalf("CommonType(char, int) = %+v, want int (promotion)", got)
	}
	if got := CommonType(UInt, Int); got != UInt {
		t.Fatalf("CommonType(uint, int) = %+v, want uint (same size, unsigned wins)", got)
	}
}

func TestFindMemberAnonymous(t *testing.T) {
	inner := NewStructType([]*Member{{Name: "x", Type: Int}}, false)
	outer := NewStructType([]*Member{
		{Name: "", Type: inner, Anonymous: true},
		{Name: "y", Type: Int},
	}, false)
	if FindMember(outer, "x") == nil {
		t.Fatalf("expected to find anonymous nested member x")
	}
	if FindMember(outer, "y") == nil {
		t.Fatalf("expected to find top-level member y")
	}
}
