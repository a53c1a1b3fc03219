package ctype

// NewStructType builds the STRUCT type from an ordered member list and
// lays it out, porting widcc's struct_decl (parse.c) rule-for-rule:
// non-bit-field members round their bit offset up to their own alignment
// (or just 8 bits under packed); a bit-field that would straddle its
// storage unit's boundary is bumped to the next boundary unless packed;
// the final struct alignment is the max member alignment (unless packed)
// and size rounds up to that alignment.
func NewStructType(members []*Member, packed bool) *Type {
	ty := &Type{Kind: STRUCT, IsPacked: packed, Align: 1}
	layoutStruct(ty, members)
	return ty
}

func layoutStruct(ty *Type, members []*Member) {
	bits := 0
	maxAl := 0
	var kept []*Member

	for _, mem := range members {
		if !mem.IsBitfield || mem.Name != "" {
			kept = append(kept, mem)
			maxAl = maxAlign(maxAl, mem.Type.Align)
		}
		if mem.IsBitfield {
			if mem.BitWidth == 0 {
				bits = AlignTo(bits, mem.Type.Size*8)
				continue
			}
			sz := mem.Type.Size
			if !ty.IsPacked {
				if bits/(sz*8) != (bits+mem.BitWidth-1)/(sz*8) {
					bits = AlignTo(bits, sz*8)
				}
			}
			mem.Offset = AlignDown(bits/8, sz)
			mem.BitOffset = bits % (sz * 8)
			bits += mem.BitWidth
			continue
		}
		if ty.IsPacked {
			bits = AlignTo(bits, 8)
		} else {
			bits = AlignTo(bits, mem.Type.Align*8)
		}
		mem.Offset = bits / 8
		bits += mem.Type.Size * 8
	}

	ty.Members = kept
	if !ty.IsPacked && maxAl > 0 {
		ty.Align = maxAl
	} else if ty.Align == 0 {
		ty.Align = 1
	}
	if ty.IsPacked {
		ty.Size = AlignTo(bits, 8) / 8
	} else {
		ty.Size = AlignTo(bits, ty.Align*8) / 8
	}
}

// NewUnionType builds the UNION type: size is the max member size
// (bit-fields contribute ceil(bit_width/8)), alignment the max member
// alignment, size then rounded up to that alignment.
func NewUnionType(members []*Member, packed bool) *Type {
	ty := &Type{Kind: UNION, IsPacked: packed, Align: 1}
	maxAl := 0
	var kept []*Member
	for _, mem := range members {
		if !mem.IsBitfield || mem.Name != "" {
			kept = append(kept, mem)
			maxAl = maxAlign(maxAl, mem.Type.Align)
		}
		var sz int
		if mem.IsBitfield {
			sz = AlignTo(mem.BitWidth, 8) / 8
		} else {
			sz = mem.Type.Size
		}
		if sz > ty.Size {
			ty.Size = sz
		}
	}
	ty.Members = kept
	if !ty.IsPacked && maxAl > 0 {
		ty.Align = maxAl
	}
	ty.Size = AlignTo(ty.Size, ty.Align)
	return ty
}

// ApplyFlexibleArrayMember marks ty flexible and zeroes the trailing
// array member's length when the last member is an incomplete array,
// per spec.md §4.2 / GLOSSARY "Flexible array member".
func ApplyFlexibleArrayMember(ty *Type) {
	if len(ty.Members) == 0 {
		return
	}
	last := ty.Members[len(ty.Members)-1]
	if last.Type.Kind == ARRAY && last.Type.Size < 0 {
		last.Type = ArrayOf(last.Type.Base, 0)
		ty.IsFlexible = true
	}
}

// FindMember looks up a (possibly anonymous-nested) struct/union member
// by name, per widcc's get_struct_member (parse.c): anonymous struct/
// union members are searched recursively before falling through to a
// named match at the current level.
func FindMember(ty *Type, name string) *Member {
	for _, mem := range ty.Members {
		if mem.Anonymous && (mem.Type.Kind == STRUCT || mem.Type.Kind == UNION) {
			if sub := FindMember(mem.Type, name); sub != nil {
				return sub
			}
		}
		if mem.Name == name && mem.Name != "" {
			return mem
		}
	}
	return nil
}
