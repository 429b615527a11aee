package ir

type (
	// BlockCall is a branch destination with its arguments.
	BlockCall struct {
		Block Block
		Args  []Value
	}

	InstFlags uint8

	// InstData is the flattened representation of every instruction format.
	// Fields which are meaningless for the opcode are left zero.
	InstData struct {
		Opcode Opcode
		// Type is the controlling type.
		// Result type for most instructions, operand type for icmp, store and brif.
		Type  Type
		Cond  IntCC
		Trap  TrapCode
		Flags InstFlags

		Args    []Value
		Targets []BlockCall

		// Imm is the immediate operand, memory offset or constant bits.
		Imm int64

		Slot   StackSlot
		Func   FuncRef
		Sig    SigRef
		Global GlobalValue
		Table  JumpTable

		Results []Value
	}
)

const (
	// FlagABILowered marks calls and returns rewritten for the calling convention.
	FlagABILowered InstFlags = 1 << iota
)

// RegmoveUnits decodes source and destination registers of a regmove.
func (d *InstData) RegmoveUnits() (src, dst RegUnit) {
	return RegUnit(d.Imm), RegUnit(d.Imm >> 16)
}

func regmoveImm(src, dst RegUnit) int64 {
	return int64(src) | int64(dst)<<16
}

// Uses calls f for each value argument including branch arguments.
func (d *InstData) Uses(f func(v Value)) {
	for _, a := range d.Args {
		f(a)
	}

	for _, t := range d.Targets {
		for _, a := range t.Args {
			f(a)
		}
	}
}

// MapUses replaces each value argument including branch arguments.
func (d *InstData) MapUses(f func(v Value) Value) {
	for i, a := range d.Args {
		d.Args[i] = f(a)
	}

	for _, t := range d.Targets {
		for i, a := range t.Args {
			t.Args[i] = f(a)
		}
	}
}
