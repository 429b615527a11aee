package ir

import "fmt"

type (
	// Type is a value type.
	Type uint8
)

const (
	TypeInvalid Type = iota
	I8
	I16
	I32
	I64
	F32
	F64
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	I8:          "i8",
	I16:         "i16",
	I32:         "i32",
	I64:         "i64",
	F32:         "f32",
	F64:         "f64",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}

	return fmt.Sprintf("type%d", int(t))
}

func TypeByName(n string) (Type, bool) {
	for t, name := range typeNames {
		if t != 0 && name == n {
			return Type(t), true
		}
	}

	return TypeInvalid, false
}

func (t Type) Valid() bool { return t > TypeInvalid && t <= F64 }

func (t Type) IsInt() bool { return t >= I8 && t <= I64 }

func (t Type) IsFloat() bool { return t == F32 || t == F64 }

func (t Type) Bits() int {
	switch t {
	case I8:
		return 8
	case I16:
		return 16
	case I32, F32:
		return 32
	case I64, F64:
		return 64
	default:
		return 0
	}
}

func (t Type) Bytes() int { return t.Bits() / 8 }

// Half returns the integer type of half the width.
func (t Type) Half() Type {
	switch t {
	case I16:
		return I8
	case I32:
		return I16
	case I64:
		return I32
	default:
		return TypeInvalid
	}
}

// Double returns the integer type of twice the width.
func (t Type) Double() Type {
	switch t {
	case I8:
		return I16
	case I16:
		return I32
	case I32:
		return I64
	default:
		return TypeInvalid
	}
}

// IntOfSize returns the integer type of the same width.
func (t Type) IntOfSize() Type {
	switch t {
	case F32:
		return I32
	case F64:
		return I64
	default:
		return t
	}
}

// IntForBits returns an integer type by width.
func IntForBits(n int) Type {
	switch n {
	case 8:
		return I8
	case 16:
		return I16
	case 32:
		return I32
	case 64:
		return I64
	default:
		return TypeInvalid
	}
}
