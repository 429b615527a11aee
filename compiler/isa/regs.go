package isa

import (
	"slices"

	"tlog.app/go/errors"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/set"
)

type (
	RegClass uint8

	// RegSet is a set of register units. Units of all ISAs fit 64 bits.
	RegSet = set.Bitmap

	ClassInfo struct {
		Name string

		// Units are all registers of the class.
		Units RegSet

		// Allocatable registers in priority order.
		Allocatable []ir.RegUnit

		// Scratch is reserved for move sequences and large offsets.
		Scratch ir.RegUnit
	}

	RegInfo struct {
		Names   []string
		Classes [NumClasses]ClassInfo

		CallerSaved RegSet
		CalleeSaved RegSet
	}

	// Convention describes argument passing.
	Convention struct {
		ID ir.CallConv

		IntArgs   []ir.RegUnit
		FloatArgs []ir.RegUnit
		IntRets   []ir.RegUnit
		FloatRets []ir.RegUnit

		// Positional conventions assign argument N to the Nth register of its class.
		Positional bool

		// ShadowSpace is reserved by the caller below stack arguments.
		ShadowSpace int32
		StackAlign  int32
		SlotSize    int32
	}

	// FrameStyle describes the fixed part of a stack frame.
	FrameStyle struct {
		// SetupSize is pushed on entry and by the frame setup,
		// such as the return address and the frame pointer.
		SetupSize int32

		// SaveLink is set for targets where calls overwrite the link register.
		SaveLink bool
	}
)

const (
	GPR RegClass = iota
	FPR

	NumClasses
)

func (c RegClass) String() string {
	if c == FPR {
		return "fpr"
	}

	return "gpr"
}

func RegSetOf(units ...ir.RegUnit) (s RegSet) {
	for _, u := range units {
		s = s.Set(int(u))
	}

	return s
}

func (ri *RegInfo) Name(u ir.RegUnit) string {
	if int(u) < len(ri.Names) {
		return ri.Names[u]
	}

	return "r?"
}

func (ri *RegInfo) Unit(name string) (ir.RegUnit, bool) {
	i := slices.Index(ri.Names, name)

	return ir.RegUnit(i), i >= 0
}

func (ri *RegInfo) ClassOf(u ir.RegUnit) RegClass {
	if ri.Classes[FPR].Units.IsSet(int(u)) {
		return FPR
	}

	return GPR
}

func (ri *RegInfo) Clone() *RegInfo {
	c := *ri

	for i := range c.Classes {
		c.Classes[i].Allocatable = slices.Clone(ri.Classes[i].Allocatable)
	}

	return &c
}

// Restrict limits allocatable registers of the named classes to the listed ones, in that order.
func (ri *RegInfo) Restrict(classes map[string][]string) error {
	for cname, regs := range classes {
		ci := -1

		for i := range ri.Classes {
			if ri.Classes[i].Name == cname {
				ci = i
			}
		}

		if ci < 0 {
			return errors.New("unknown register class %q", cname)
		}

		c := &ri.Classes[ci]

		var alloc []ir.RegUnit

		for _, n := range regs {
			u, ok := ri.Unit(n)
			if !ok || !c.Units.IsSet(int(u)) {
				return errors.New("register %q is not in class %q", n, cname)
			}

			if u == c.Scratch {
				return errors.New("register %q is reserved", n)
			}

			alloc = append(alloc, u)
		}

		if len(alloc) == 0 {
			return errors.New("class %q: no allocatable registers", cname)
		}

		c.Allocatable = alloc
	}

	return nil
}
