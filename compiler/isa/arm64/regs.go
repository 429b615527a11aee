package arm64

import (
	"fmt"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

const (
	x16 ir.RegUnit = 16
	x29 ir.RegUnit = 29
	x30 ir.RegUnit = 30

	// sp and the zero register share encoding 31.
	sp  ir.RegUnit = 31
	xzr ir.RegUnit = 31

	v0 ir.RegUnit = 32
)

func x(n int) ir.RegUnit { return ir.RegUnit(n) }
func v(n int) ir.RegUnit { return v0 + ir.RegUnit(n) }

// num is the register number in instruction fields.
func num(r ir.RegUnit) uint32 { return uint32(r) & 31 }

func regInfo() *isa.RegInfo {
	ri := &isa.RegInfo{}

	for i := 0; i < 31; i++ {
		ri.Names = append(ri.Names, fmt.Sprintf("x%d", i))
	}

	ri.Names = append(ri.Names, "sp")

	for i := 0; i < 32; i++ {
		ri.Names = append(ri.Names, fmt.Sprintf("v%d", i))
	}

	var gprs, fprs isa.RegSet

	for i := 0; i < 32; i++ {
		gprs = gprs.Set(i)
		fprs = fprs.Set(int(v(i)))
	}

	gpr := isa.ClassInfo{Name: "gpr", Units: gprs, Scratch: x16}
	fpr := isa.ClassInfo{Name: "fpr", Units: fprs, Scratch: v(31)}

	for i := 0; i < 16; i++ {
		gpr.Allocatable = append(gpr.Allocatable, x(i))
	}

	for i := 19; i < 29; i++ {
		gpr.Allocatable = append(gpr.Allocatable, x(i))
		ri.CalleeSaved = ri.CalleeSaved.Set(i)
	}

	for i := 0; i < 8; i++ {
		fpr.Allocatable = append(fpr.Allocatable, v(i))
	}

	for i := 16; i < 31; i++ {
		fpr.Allocatable = append(fpr.Allocatable, v(i))
	}

	for i := 8; i < 16; i++ {
		fpr.Allocatable = append(fpr.Allocatable, v(i))
		ri.CalleeSaved = ri.CalleeSaved.Set(int(v(i)))
	}

	ri.Classes[isa.GPR] = gpr
	ri.Classes[isa.FPR] = fpr

	ri.CalleeSaved = ri.CalleeSaved.Set(int(x29))
	ri.CallerSaved = gprs.Or(fprs).AndNot(ri.CalleeSaved).Clear(int(sp))

	return ri
}

func convention() *isa.Convention {
	c := &isa.Convention{
		ID:         ir.CallConvAAPCS64,
		IntRets:    []ir.RegUnit{x(0), x(1)},
		FloatRets:  []ir.RegUnit{v(0), v(1)},
		StackAlign: 16,
		SlotSize:   8,
	}

	for i := 0; i < 8; i++ {
		c.IntArgs = append(c.IntArgs, x(i))
		c.FloatArgs = append(c.FloatArgs, v(i))
	}

	return c
}
