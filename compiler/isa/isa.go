// Package isa defines what a target backend provides to the pipeline.
//
// A backend is a set of capabilities: legality decisions, target specific
// expansions, encoding tables and the calling convention.
// Tables are built once per backend and are read-only afterwards.
package isa

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

type (
	// Action is what the legalizer must do with an instruction.
	Action uint8

	Legality interface {
		Action(f *ir.Function, inst ir.Inst) Action
	}

	Expander interface {
		// Expand rewrites inst in a target specific way.
		// It returns false to let the generic rule for the action apply.
		Expand(c *ir.Cursor, inst ir.Inst) bool
	}

	Encoder interface {
		Table() *Table
	}

	CallingConvention interface {
		RegInfo() *RegInfo
		Convention() *Convention
		Frame() FrameStyle
		// ClassFor returns the register class holding values of type t.
		ClassFor(t ir.Type) RegClass
	}

	TargetISA interface {
		Name() string
		Descriptor() *Descriptor

		Legality
		Expander
		Encoder
		CallingConvention
	}
)

const (
	Legal Action = iota
	Expand
	Narrow
	Widen
	Libcall
	Unsupported
)

var actionNames = [...]string{"legal", "expand", "narrow", "widen", "libcall", "unsupported"}

func (a Action) String() string { return actionNames[a] }

// IsWord reports whether t fits a general purpose register of the target.
func IsWord(t TargetISA, typ ir.Type) bool {
	return typ.IsInt() && typ.Bits() <= t.Descriptor().WordBits
}

// WordType returns the pointer sized integer type.
func WordType(t TargetISA) ir.Type {
	return ir.IntForBits(t.Descriptor().WordBits)
}
