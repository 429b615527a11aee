package ir

type (
	// IntCC is an integer comparison condition.
	IntCC uint8

	TrapCode uint8
)

const (
	Eq IntCC = iota
	Ne
	Slt
	Sge
	Sgt
	Sle
	Ult
	Uge
	Ugt
	Ule
)

const (
	TrapUser TrapCode = iota
	TrapUnreachable
	TrapHeapOutOfBounds
	TrapIntegerDivisionByZero
	TrapIntegerOverflow
	TrapStackOverflow
)

var ccNames = [...]string{"eq", "ne", "slt", "sge", "sgt", "sle", "ult", "uge", "ugt", "ule"}

var trapNames = [...]string{"user", "unreachable", "heap_oob", "int_divz", "int_ovf", "stk_ovf"}

func (c IntCC) String() string { return ccNames[c] }

func IntCCByName(n string) (IntCC, bool) {
	for c, name := range ccNames {
		if name == n {
			return IntCC(c), true
		}
	}

	return 0, false
}

func (c TrapCode) String() string {
	if int(c) < len(trapNames) {
		return trapNames[c]
	}

	return "trap?"
}

// Inverse returns the condition which holds when c does not.
func (c IntCC) Inverse() IntCC {
	switch c {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Slt:
		return Sge
	case Sge:
		return Slt
	case Sgt:
		return Sle
	case Sle:
		return Sgt
	case Ult:
		return Uge
	case Uge:
		return Ult
	case Ugt:
		return Ule
	default:
		return Ugt
	}
}

// Swap returns the condition with operands exchanged.
func (c IntCC) Swap() IntCC {
	switch c {
	case Slt:
		return Sgt
	case Sgt:
		return Slt
	case Sge:
		return Sle
	case Sle:
		return Sge
	case Ult:
		return Ugt
	case Ugt:
		return Ult
	case Uge:
		return Ule
	case Ule:
		return Uge
	default:
		return c
	}
}

func (c IntCC) Signed() bool {
	return c >= Slt && c <= Sle
}

func (c IntCC) Unsigned() bool {
	return c >= Ult
}

// AsUnsigned returns the unsigned condition with the same ordering.
func (c IntCC) AsUnsigned() IntCC {
	switch c {
	case Slt:
		return Ult
	case Sge:
		return Uge
	case Sgt:
		return Ugt
	case Sle:
		return Ule
	default:
		return c
	}
}
