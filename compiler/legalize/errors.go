package legalize

import (
	"fmt"

	"tlog.app/go/loc"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	// InternalError means the target description is inconsistent:
	// an instruction stays illegal and no rule makes progress.
	InternalError struct {
		Func   string
		Inst   ir.Inst
		Opcode ir.Opcode
		Type   ir.Type
		Action isa.Action
		Passes int

		from loc.PC
	}

	// UnsupportedError is an operation the target cannot perform at all.
	UnsupportedError struct {
		ISA    string
		Inst   ir.Inst
		Opcode ir.Opcode
		Type   ir.Type
	}
)

func (e *InternalError) Error() string {
	return fmt.Sprintf("legalize %s: %v: %v.%v is still %v after %d passes", e.Func, e.Inst, e.Opcode, e.Type, e.Action, e.Passes)
}

// From is where the error was detected.
func (e *InternalError) From() loc.PC { return e.from }

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %v: %v.%v is not supported", e.ISA, e.Inst, e.Opcode, e.Type)
}
