package arm64

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type cond uint32

const (
	eq cond = iota
	ne
	hs
	lo
	mi
	pl
	vs
	vc
	hi
	ls
	ge
	lt
	gt
	le
)

func (c cond) invert() cond { return c ^ 1 }

func condOf(cc ir.IntCC) cond {
	switch cc {
	case ir.Eq:
		return eq
	case ir.Ne:
		return ne
	case ir.Slt:
		return lt
	case ir.Sge:
		return ge
	case ir.Sgt:
		return gt
	case ir.Sle:
		return le
	case ir.Ult:
		return lo
	case ir.Uge:
		return hs
	case ir.Ugt:
		return hi
	default:
		return ls
	}
}

// sf selects the 64 bit form of an instruction.
func sf(t ir.Type) uint32 {
	if t == ir.I64 {
		return 1 << 31
	}

	return 0
}

// rrr encodes a three register instruction.
func rrr(base uint32, rd, rn, rm ir.RegUnit) uint32 {
	return base | num(rm)<<16 | num(rn)<<5 | num(rd)
}

func rri(base uint32, rd, rn ir.RegUnit, imm12 uint32) uint32 {
	return base | imm12<<10 | num(rn)<<5 | num(rd)
}

// bfm encodes ubfm and sbfm.
func bfm(base uint32, rd, rn ir.RegUnit, immr, imms uint32) uint32 {
	return base | immr<<16 | imms<<10 | num(rn)<<5 | num(rd)
}

const (
	addRR  = 0x0b000000
	subRR  = 0x4b000000
	andRR  = 0x0a000000
	orrRR  = 0x2a000000
	eorRR  = 0x4a000000
	ornRR  = 0x2a200000
	addRI  = 0x11000000
	subRI  = 0x51000000
	madd   = 0x1b007c00
	udiv   = 0x1ac00800
	sdiv   = 0x1ac00c00
	lslv   = 0x1ac02000
	lsrv   = 0x1ac02400
	asrv   = 0x1ac02800
	ubfm32 = 0x53000000
	ubfm64 = 0xd3400000
	sbfm32 = 0x13000000
	sbfm64 = 0x93400000
	movz   = 0x52800000
	movk   = 0x72800000
	movn   = 0x12800000
	cmpRR  = 0x6b00001f
	cmpRI  = 0x7100001f
	cmnRI  = 0x3100001f
	cset   = 0x1a9f07e0
	csel   = 0x1a800000
	cbz    = 0x34000000
	cbnz   = 0x35000000
	b      = 0x14000000
	bl     = 0x94000000
	blr    = 0xd63f0000
	ret    = 0xd65f03c0
	udf    = 0x00000000
)

func put(s isa.CodeSink, w ...uint32) {
	for _, w := range w {
		s.Put4(w)
	}
}

func movRR(s isa.CodeSink, dst, src ir.RegUnit) {
	if dst == src {
		return
	}

	if dst >= v0 {
		put(s, 0x1e604000|num(src)<<5|num(dst)) // fmov d, d
		return
	}

	put(s, 0xaa0003e0|num(src)<<16|num(dst))
}

// movImm materializes c with the shortest movz or movn and movk sequence.
func movImm(s isa.CodeSink, rd ir.RegUnit, c int64, t ir.Type) {
	chunks := 2
	if t == ir.I64 {
		chunks = 4
	}

	var zeros, ones int

	for i := 0; i < chunks; i++ {
		switch uint16(c >> (16 * i)) {
		case 0:
			zeros++
		case 0xffff:
			ones++
		}
	}

	inv := ones > zeros
	skip := uint16(0)

	if inv {
		skip = 0xffff
	}

	first := true

	for i := 0; i < chunks; i++ {
		h := uint16(c >> (16 * i))
		if h == skip && !(first && i == chunks-1) {
			continue
		}

		hw := uint32(i) << 21

		switch {
		case first && inv:
			put(s, movn|sf(t)|hw|uint32(^h)<<5|num(rd))
		case first:
			put(s, movz|sf(t)|hw|uint32(h)<<5|num(rd))
		default:
			put(s, movk|sf(t)|hw|uint32(h)<<5|num(rd))
		}

		first = false
	}
}

// memBase is the unscaled form of a load or store.
// Scaled and register offset forms are derived from it.
func memBase(t ir.Type, size int, signed, store bool) uint32 {
	if t.IsFloat() {
		if store {
			if t == ir.F32 {
				return 0xbc000000
			}

			return 0xfc000000
		}

		if t == ir.F32 {
			return 0xbc400000
		}

		return 0xfc400000
	}

	if store {
		switch size {
		case 1:
			return 0x38000000
		case 2:
			return 0x78000000
		case 4:
			return 0xb8000000
		default:
			return 0xf8000000
		}
	}

	switch {
	case size == 1 && signed && t == ir.I64:
		return 0x38800000
	case size == 1 && signed:
		return 0x38c00000
	case size == 1:
		return 0x38400000
	case size == 2 && signed && t == ir.I64:
		return 0x78800000
	case size == 2 && signed:
		return 0x78c00000
	case size == 2:
		return 0x78400000
	case size == 4 && signed:
		return 0xb8800000
	case size == 4:
		return 0xb8400000
	default:
		return 0xf8400000
	}
}

// memImmOK reports whether off is encodable in a scaled or unscaled form.
func memImmOK(off int64, size int) bool {
	if off >= -256 && off <= 255 {
		return true
	}

	return off >= 0 && off%int64(size) == 0 && off/int64(size) < 4096
}

// mem emits a load or store of rt at [rn + off].
// Offsets out of range are materialized into the scratch register.
func mem(s isa.CodeSink, base uint32, size int, rt, rn ir.RegUnit, off int64) {
	switch {
	case off >= 0 && off%int64(size) == 0 && off/int64(size) < 4096:
		put(s, base|0x01000000|uint32(off/int64(size))<<10|num(rn)<<5|num(rt))
	case off >= -256 && off <= 255:
		put(s, base|uint32(off&0x1ff)<<12|num(rn)<<5|num(rt))
	default:
		movImm(s, x16, off, ir.I64)
		put(s, base|0x00206800|num(x16)<<16|num(rn)<<5|num(rt))
	}
}

func slotType(r ir.RegUnit, t ir.Type) ir.Type {
	if r >= v0 {
		if t == ir.F32 {
			return ir.F32
		}

		return ir.F64
	}

	return ir.I64
}

// spAdjust adds or subtracts a frame size from sp.
func spAdjust(s isa.CodeSink, size int32, sub bool) {
	add, addHi := uint32(0x910003ff), uint32(0x914003ff)
	if sub {
		add, addHi = 0xd10003ff, 0xd14003ff
	}

	if hi := uint32(size) >> 12; hi != 0 {
		put(s, addHi|(hi&0xfff)<<10)
	}

	if low := uint32(size) & 0xfff; low != 0 {
		put(s, add|low<<10)
	}
}

func branch19(base uint32, rt ir.RegUnit, disp int64) uint32 {
	return base | uint32(disp>>2)&0x7ffff<<5 | num(rt)
}

func branch26(base uint32, disp int64) uint32 {
	return base | uint32(disp>>2)&0x3ffffff
}
