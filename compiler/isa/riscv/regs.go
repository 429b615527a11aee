package riscv

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

const (
	zero ir.RegUnit = 0
	ra   ir.RegUnit = 1
	sp   ir.RegUnit = 2
	t6   ir.RegUnit = 31

	f0 ir.RegUnit = 32
)

var gprNames = [...]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var fprNames = [...]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

func fr(n int) ir.RegUnit { return f0 + ir.RegUnit(n) }

// num is the register number in instruction fields.
func num(r ir.RegUnit) uint32 { return uint32(r) & 31 }

func units(names []string, ns ...string) (r []ir.RegUnit) {
	for _, n := range ns {
		for i, name := range names {
			if name == n {
				r = append(r, ir.RegUnit(i))
			}
		}
	}

	return r
}

func regInfo(float bool) *isa.RegInfo {
	ri := &isa.RegInfo{}

	ri.Names = append(ri.Names, gprNames[:]...)
	ri.Names = append(ri.Names, fprNames[:]...)

	var gprs, fprs isa.RegSet

	for i := 0; i < 32; i++ {
		gprs = gprs.Set(i)
		fprs = fprs.Set(int(fr(i)))
	}

	gpr := isa.ClassInfo{Name: "gpr", Units: gprs, Scratch: t6}
	fpr := isa.ClassInfo{Name: "fpr", Units: fprs, Scratch: fr(31)}

	gpr.Allocatable = units(ri.Names,
		"t0", "t1", "t2", "a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7", "t3", "t4", "t5",
		"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11")

	calleeSaved := units(ri.Names,
		"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11")

	if float {
		fpr.Allocatable = units(ri.Names,
			"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
			"fa0", "fa1", "fa2", "fa3", "fa4", "fa5", "fa6", "fa7", "ft8", "ft9", "ft10",
			"fs0", "fs1", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7", "fs8", "fs9", "fs10", "fs11")

		calleeSaved = append(calleeSaved, units(ri.Names,
			"fs0", "fs1", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7", "fs8", "fs9", "fs10", "fs11")...)
	}

	ri.Classes[isa.GPR] = gpr
	ri.Classes[isa.FPR] = fpr

	ri.CalleeSaved = isa.RegSetOf(calleeSaved...)
	ri.CallerSaved = gprs.Or(fprs).AndNot(ri.CalleeSaved).AndNot(isa.RegSetOf(zero, sp, 3, 4))

	return ri
}

func convention(word int, float bool) *isa.Convention {
	c := &isa.Convention{
		ID:         ir.CallConvRiscV,
		IntArgs:    units(gprNames[:], "a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"),
		IntRets:    units(gprNames[:], "a0", "a1"),
		StackAlign: 16,
		SlotSize:   int32(word / 8),
	}

	if float {
		for _, u := range units(fprNames[:], "fa0", "fa1", "fa2", "fa3", "fa4", "fa5", "fa6", "fa7") {
			c.FloatArgs = append(c.FloatArgs, f0+u)
		}

		c.FloatRets = []ir.RegUnit{fr(10), fr(11)}
	}

	return c
}
