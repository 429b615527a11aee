package riscv

import (
	"math/bits"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

const (
	opLoad   = 0x03
	opLoadFP = 0x07
	opImm    = 0x13
	opAuipc  = 0x17
	opImm32  = 0x1b
	opStore  = 0x23
	opStoreF = 0x27
	opReg    = 0x33
	opLui    = 0x37
	opReg32  = 0x3b
	opFP     = 0x53
	opBranch = 0x63
	opJalr   = 0x67
	opJal    = 0x6f

	unimp = 0xc0001073
)

// rType is an R-type template without registers.
func rType(op, f3, f7 uint32) uint32 { return f7<<25 | f3<<12 | op }

func r(tpl uint32, rd, rs1, rs2 ir.RegUnit) uint32 {
	return tpl | num(rs2)<<20 | num(rs1)<<15 | num(rd)<<7
}

func i(op, f3 uint32, rd, rs1 ir.RegUnit, imm int64) uint32 {
	return uint32(imm)&0xfff<<20 | num(rs1)<<15 | f3<<12 | num(rd)<<7 | op
}

func s(op, f3 uint32, rs1, rs2 ir.RegUnit, imm int64) uint32 {
	u := uint32(imm) & 0xfff
	return u>>5<<25 | num(rs2)<<20 | num(rs1)<<15 | f3<<12 | u&0x1f<<7 | op
}

func b(f3 uint32, rs1, rs2 ir.RegUnit, imm int64) uint32 {
	u := uint32(imm)
	return u>>12&1<<31 | u>>5&0x3f<<25 | num(rs2)<<20 | num(rs1)<<15 | f3<<12 | u>>1&0xf<<8 | u>>11&1<<7 | opBranch
}

func u(op uint32, rd ir.RegUnit, imm20 int64) uint32 {
	return uint32(imm20)&0xfffff<<12 | num(rd)<<7 | op
}

func j(rd ir.RegUnit, imm int64) uint32 {
	v := uint32(imm)
	return v>>20&1<<31 | v>>1&0x3ff<<21 | v>>11&1<<20 | v>>12&0xff<<12 | num(rd)<<7 | opJal
}

func fits12(c int64) bool { return c >= -2048 && c < 2048 }

func put(sk isa.CodeSink, w ...uint32) {
	for _, w := range w {
		sk.Put4(w)
	}
}

func addi(rd, rs ir.RegUnit, c int64) uint32 { return i(opImm, 0, rd, rs, c) }

// mv copies a register. Float registers are copied by fsgnj of the widest supported format.
func mv(sk isa.CodeSink, rd, rs ir.RegUnit, dbl bool) {
	if rd == rs {
		return
	}

	if rd >= f0 {
		f7 := uint32(0x10)
		if dbl {
			f7 = 0x11
		}

		put(sk, r(rType(opFP, 0, f7), rd, rs, rs))
		return
	}

	put(sk, addi(rd, rs, 0))
}

type step struct {
	shift int
	lo    int64
}

// li materializes c. Constants wider than 32 bits are built from
// their upper part by shifting and adding 12 bit chunks.
func li(sk isa.CodeSink, rd ir.RegUnit, c int64, rv64 bool) {
	if !rv64 {
		c = int64(int32(c))
	}

	var steps []step

	for rv64 && c != int64(int32(c)) {
		lo := c << 52 >> 52
		c = (c - lo) >> 12

		sh := 12 + bits.TrailingZeros64(uint64(c))
		c >>= sh - 12

		steps = append(steps, step{shift: sh, lo: lo})
	}

	addOp := uint32(opImm)
	if rv64 {
		addOp = opImm32
	}

	switch {
	case fits12(c):
		put(sk, addi(rd, zero, c))
	default:
		hi := (c + 0x800) >> 12
		lo := c - hi<<12

		put(sk, u(opLui, rd, hi))

		if lo != 0 {
			put(sk, i(addOp, 0, rd, rd, lo))
		}
	}

	for k := len(steps) - 1; k >= 0; k-- {
		put(sk, i(opImm, 1, rd, rd, int64(steps[k].shift)))

		if steps[k].lo != 0 {
			put(sk, addi(rd, rd, steps[k].lo))
		}
	}
}

// mem emits a load or store at [base + off] going through the scratch register for large offsets.
func mem(sk isa.CodeSink, load bool, op, f3 uint32, reg, base ir.RegUnit, off int64, rv64 bool) {
	if !fits12(off) {
		li(sk, t6, off, rv64)
		put(sk, r(rType(opReg, 0, 0), t6, t6, base))

		base, off = t6, 0
	}

	if load {
		put(sk, i(op, f3, reg, base, off))
		return
	}

	put(sk, s(op, f3, base, reg, off))
}

// loadOp returns the opcode and funct3 of a load into a register of type t.
func loadOp(t ir.Type, size int, signed bool, fpr bool) (op, f3 uint32) {
	if fpr {
		if t == ir.F32 {
			return opLoadFP, 2
		}

		return opLoadFP, 3
	}

	switch {
	case size == 1 && signed:
		return opLoad, 0
	case size == 1:
		return opLoad, 4
	case size == 2 && signed:
		return opLoad, 1
	case size == 2:
		return opLoad, 5
	case size == 4 && (signed || t != ir.I64):
		return opLoad, 2
	case size == 4:
		return opLoad, 6
	default:
		return opLoad, 3
	}
}

func storeOp(size int, fpr bool) (op, f3 uint32) {
	if fpr {
		if size == 4 {
			return opStoreF, 2
		}

		return opStoreF, 3
	}

	switch size {
	case 1:
		return opStore, 0
	case 2:
		return opStore, 1
	case 4:
		return opStore, 2
	default:
		return opStore, 3
	}
}
