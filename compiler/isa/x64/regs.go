package x64

import (
	"fmt"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

const (
	rax ir.RegUnit = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15

	xmm0
)

func xmm(n int) ir.RegUnit { return xmm0 + ir.RegUnit(n) }

var gprNames = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}

func regInfo(cc ir.CallConv) *isa.RegInfo {
	ri := &isa.RegInfo{}

	ri.Names = append(ri.Names, gprNames[:]...)
	for i := 0; i < 16; i++ {
		ri.Names = append(ri.Names, fmt.Sprintf("xmm%d", i))
	}

	var gprs, fprs isa.RegSet

	for i := 0; i < 16; i++ {
		gprs = gprs.Set(i)
		fprs = fprs.Set(int(xmm(i)))
	}

	ri.Classes[isa.GPR] = isa.ClassInfo{Name: "gpr", Units: gprs, Scratch: r11}
	ri.Classes[isa.FPR] = isa.ClassInfo{Name: "fpr", Units: fprs, Scratch: xmm(15)}

	switch cc {
	case ir.CallConvWindowsFastcall:
		ri.Classes[isa.GPR].Allocatable = []ir.RegUnit{rax, rcx, rdx, r8, r9, r10, rbx, rsi, rdi, r12, r13, r14, r15}
		ri.Classes[isa.FPR].Allocatable = []ir.RegUnit{xmm(0), xmm(1), xmm(2), xmm(3), xmm(4)}
		ri.Classes[isa.FPR].Scratch = xmm(5)

		ri.CalleeSaved = isa.RegSetOf(rbx, rbp, rsi, rdi, r12, r13, r14, r15)
		for i := 6; i < 16; i++ {
			ri.CalleeSaved = ri.CalleeSaved.Set(int(xmm(i)))
		}
	default:
		ri.Classes[isa.GPR].Allocatable = []ir.RegUnit{rax, rcx, rdx, rsi, rdi, r8, r9, r10, rbx, r12, r13, r14, r15}

		for i := 0; i < 15; i++ {
			ri.Classes[isa.FPR].Allocatable = append(ri.Classes[isa.FPR].Allocatable, xmm(i))
		}

		ri.CalleeSaved = isa.RegSetOf(rbx, rbp, r12, r13, r14, r15)
	}

	ri.CallerSaved = gprs.Or(fprs).AndNot(ri.CalleeSaved).Clear(int(rsp))

	return ri
}

func convention(cc ir.CallConv) *isa.Convention {
	if cc == ir.CallConvWindowsFastcall {
		return &isa.Convention{
			ID:          cc,
			IntArgs:     []ir.RegUnit{rcx, rdx, r8, r9},
			FloatArgs:   []ir.RegUnit{xmm(0), xmm(1), xmm(2), xmm(3)},
			IntRets:     []ir.RegUnit{rax},
			FloatRets:   []ir.RegUnit{xmm(0)},
			Positional:  true,
			ShadowSpace: 32,
			StackAlign:  16,
			SlotSize:    8,
		}
	}

	return &isa.Convention{
		ID:         ir.CallConvSystemV,
		IntArgs:    []ir.RegUnit{rdi, rsi, rdx, rcx, r8, r9},
		FloatArgs:  []ir.RegUnit{xmm(0), xmm(1), xmm(2), xmm(3), xmm(4), xmm(5), xmm(6), xmm(7)},
		IntRets:    []ir.RegUnit{rax, rdx},
		FloatRets:  []ir.RegUnit{xmm(0), xmm(1)},
		StackAlign: 16,
		SlotSize:   8,
	}
}
