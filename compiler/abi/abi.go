// Package abi lowers function signatures, calls and returns to the target calling convention
// and lays out the stack frame after register allocation.
package abi

import (
	"tlog.app/go/errors"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	// Part is one machine word of a value as it crosses a call boundary.
	Part struct {
		Type ir.Type

		// Reg is the register or NoReg if the part goes on the stack at Offset.
		Reg    ir.RegUnit
		Offset int32
	}

	// Assignment locates signature parameters and returns.
	// Values wider than a word are passed as several parts, least significant first.
	Assignment struct {
		Params  [][]Part
		Returns [][]Part

		// StackSize is the size of the stack argument area including shadow space.
		StackSize int32
	}

	assigner struct {
		t    isa.TargetISA
		conv *isa.Convention

		ints, floats int
		pos          int
		stack        int32
	}
)

func (p Part) OnStack() bool { return p.Reg == ir.NoReg }

// Split returns the types a value of type typ is passed as.
func Split(t isa.TargetISA, typ ir.Type) []ir.Type {
	if typ == ir.I64 && t.Descriptor().WordBits == 32 {
		return []ir.Type{ir.I32, ir.I32}
	}

	return []ir.Type{typ}
}

// Assign computes locations of sig parameters and returns under the target convention.
func Assign(t isa.TargetISA, sig *ir.Signature) (*Assignment, error) {
	conv := t.Convention()

	a := &assigner{t: t, conv: conv, stack: conv.ShadowSpace}
	r := &Assignment{}

	for k, typ := range sig.Params {
		var parts []Part

		for _, pt := range Split(t, typ) {
			p, err := a.param(pt)
			if err != nil {
				return nil, errors.Wrap(err, "param %d", k)
			}

			parts = append(parts, p)
		}

		r.Params = append(r.Params, parts)
	}

	r.StackSize = alignTo(a.stack, conv.SlotSize)

	a.ints, a.floats = 0, 0

	for k, typ := range sig.Returns {
		var parts []Part

		for _, pt := range Split(t, typ) {
			p, err := a.ret(pt)
			if err != nil {
				return nil, errors.Wrap(err, "return %d", k)
			}

			parts = append(parts, p)
		}

		r.Returns = append(r.Returns, parts)
	}

	return r, nil
}

func (a *assigner) check(typ ir.Type) error {
	if typ.Bits() > a.t.Descriptor().WordBits && a.t.ClassFor(typ) == isa.GPR {
		return errors.New("%v does not fit a register of %s", typ, a.t.Name())
	}

	return nil
}

func (a *assigner) param(typ ir.Type) (Part, error) {
	if err := a.check(typ); err != nil {
		return Part{}, err
	}

	float := a.t.ClassFor(typ) == isa.FPR

	if a.conv.Positional {
		k := a.pos
		a.pos++

		switch {
		case float && k < len(a.conv.FloatArgs):
			return Part{Type: typ, Reg: a.conv.FloatArgs[k]}, nil
		case !float && k < len(a.conv.IntArgs):
			return Part{Type: typ, Reg: a.conv.IntArgs[k]}, nil
		}

		return a.stackPart(typ), nil
	}

	switch {
	case float && a.floats < len(a.conv.FloatArgs):
		a.floats++
		return Part{Type: typ, Reg: a.conv.FloatArgs[a.floats-1]}, nil
	case !float && a.ints < len(a.conv.IntArgs):
		a.ints++
		return Part{Type: typ, Reg: a.conv.IntArgs[a.ints-1]}, nil
	}

	return a.stackPart(typ), nil
}

func (a *assigner) stackPart(typ ir.Type) Part {
	size := max(int32(typ.Bytes()), a.conv.SlotSize)

	off := alignTo(a.stack, size)
	a.stack = off + size

	return Part{Type: typ, Reg: ir.NoReg, Offset: off}
}

func (a *assigner) ret(typ ir.Type) (Part, error) {
	if err := a.check(typ); err != nil {
		return Part{}, err
	}

	if a.t.ClassFor(typ) == isa.FPR {
		if a.floats == len(a.conv.FloatRets) {
			return Part{}, errors.New("too many float return values")
		}

		a.floats++

		return Part{Type: typ, Reg: a.conv.FloatRets[a.floats-1]}, nil
	}

	if a.ints == len(a.conv.IntRets) {
		return Part{}, errors.New("too many integer return values")
	}

	a.ints++

	return Part{Type: typ, Reg: a.conv.IntRets[a.ints-1]}, nil
}

func alignTo(x, a int32) int32 {
	if a <= 1 {
		return x
	}

	return (x + a - 1) / a * a
}
