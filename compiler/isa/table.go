package isa

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

type (
	ConstraintKind uint8

	// Constraint is an operand register requirement.
	Constraint struct {
		Kind ConstraintKind
		Reg  ir.RegUnit
	}

	// BranchForm links a short branch recipe to its long form.
	BranchForm struct {
		Long uint16
	}

	// Recipe is a family of machine instructions sharing operand
	// constraints and an emission routine.
	Recipe struct {
		Name string

		// Ins and Outs constrain arguments and results.
		// Missing entries mean any register of the value class.
		Ins  []Constraint
		Outs []Constraint

		// EarlyClobbers are written before arguments are read.
		// Clobbers are written along with results.
		EarlyClobbers RegSet
		Clobbers      RegSet

		// Call recipes also clobber all caller-saved registers.
		Call bool

		Branch *BranchForm

		Emit func(e *Emitter, d *ir.InstData, bits uint32)
	}

	// Entry maps an opcode and controlling type to a recipe.
	Entry struct {
		Opcode ir.Opcode
		Type   ir.Type

		// Requires names an ISA extension the entry depends on.
		Requires string

		Pred func(f *ir.Function, d *ir.InstData) bool

		Recipe uint16
		Bits   uint32
	}

	tableKey struct {
		op ir.Opcode
		t  ir.Type
	}

	Table struct {
		desc *Descriptor

		recipes []Recipe
		entries map[tableKey][]Entry
	}
)

const (
	Any ConstraintKind = iota
	Fixed
)

func FixedReg(r ir.RegUnit) Constraint { return Constraint{Kind: Fixed, Reg: r} }

// NewTable creates an empty table. Recipe 0 is reserved as invalid.
func NewTable(desc *Descriptor) *Table {
	return &Table{
		desc:    desc,
		recipes: []Recipe{{Name: "invalid"}},
		entries: map[tableKey][]Entry{},
	}
}

func (t *Table) AddRecipe(r Recipe) uint16 {
	t.recipes = append(t.recipes, r)

	return uint16(len(t.recipes) - 1)
}

func (t *Table) Recipe(id uint16) *Recipe {
	return &t.recipes[id]
}

func (t *Table) NumRecipes() int { return len(t.recipes) }

// RecipeByName is used by tests and tools.
func (t *Table) RecipeByName(name string) (uint16, bool) {
	for i := 1; i < len(t.recipes); i++ {
		if t.recipes[i].Name == name {
			return uint16(i), true
		}
	}

	return 0, false
}

func (t *Table) AddEntry(e Entry) {
	k := tableKey{e.Opcode, e.Type}
	t.entries[k] = append(t.entries[k], e)
}

// Add registers recipe for op at each of the types.
func (t *Table) Add(op ir.Opcode, types []ir.Type, recipe uint16, bits uint32) {
	for _, typ := range types {
		t.AddEntry(Entry{Opcode: op, Type: typ, Recipe: recipe, Bits: bits})
	}
}

// AddPred is Add with an applicability predicate.
func (t *Table) AddPred(op ir.Opcode, types []ir.Type, pred func(f *ir.Function, d *ir.InstData) bool, recipe uint16, bits uint32) {
	for _, typ := range types {
		t.AddEntry(Entry{Opcode: op, Type: typ, Pred: pred, Recipe: recipe, Bits: bits})
	}
}

// Lookup finds the first applicable encoding.
func (t *Table) Lookup(f *ir.Function, d *ir.InstData) (ir.Encoding, bool) {
	for _, e := range t.entries[tableKey{d.Opcode, d.Type}] {
		if e.Requires != "" && !t.desc.Has(e.Requires) {
			continue
		}

		if e.Pred != nil && !e.Pred(f, d) {
			continue
		}

		return ir.Encoding{Recipe: e.Recipe, Bits: e.Bits}, true
	}

	return ir.Encoding{}, false
}

// Has reports whether the instruction has an encoding.
func (t *Table) Has(f *ir.Function, d *ir.InstData) bool {
	_, ok := t.Lookup(f, d)
	return ok
}

// In is the constraint of argument k.
func (r *Recipe) In(k int) Constraint {
	if k < len(r.Ins) {
		return r.Ins[k]
	}

	return Constraint{}
}

// Out is the constraint of result k.
func (r *Recipe) Out(k int) Constraint {
	if k < len(r.Outs) {
		return r.Outs[k]
	}

	return Constraint{}
}

// ImmPred accepts immediates within [min, max].
func ImmPred(min, max int64) func(f *ir.Function, d *ir.InstData) bool {
	return func(f *ir.Function, d *ir.InstData) bool {
		return d.Imm >= min && d.Imm <= max
	}
}

// ArgTypePred accepts instructions whose first argument has type t.
func ArgTypePred(t ir.Type) func(f *ir.Function, d *ir.InstData) bool {
	return func(f *ir.Function, d *ir.InstData) bool {
		return len(d.Args) != 0 && f.DFG.ValueType(d.Args[0]) == t
	}
}

func AllPred(ps ...func(f *ir.Function, d *ir.InstData) bool) func(f *ir.Function, d *ir.InstData) bool {
	return func(f *ir.Function, d *ir.InstData) bool {
		for _, p := range ps {
			if !p(f, d) {
				return false
			}
		}

		return true
	}
}
