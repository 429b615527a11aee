package isa

import (
	"fmt"

	"github.com/spacemeshos/cranelift/compiler/ir"
)

// EncodingError is returned when a legal instruction has no encoding.
// It means the legalizer and the encoding tables disagree.
type EncodingError struct {
	ISA    string
	Inst   ir.Inst
	Opcode ir.Opcode
	Type   ir.Type
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: no encoding for %v: %v.%v", e.ISA, e.Inst, e.Opcode, e.Type)
}
