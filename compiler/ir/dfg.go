package ir

import (
	"fmt"

	"github.com/spacemeshos/cranelift/compiler/entity"
)

type (
	ValueKind uint8

	ValueData struct {
		Kind ValueKind
		Type Type

		// Inst defines a result, Block defines a parameter.
		Inst  Inst
		Block Block
		Num   int

		// Original is the aliased value.
		Original Value
	}

	BlockData struct {
		Params []Value
	}

	// ExtFuncData is an external function referenced by calls.
	ExtFuncData struct {
		Name string
		Sig  SigRef
	}

	// DataFlowGraph owns instructions, values and blocks of a function.
	DataFlowGraph struct {
		Insts  entity.Pool[Inst, InstData]
		Values entity.Pool[Value, ValueData]
		Blocks entity.Pool[Block, BlockData]

		Signatures entity.Pool[SigRef, Signature]
		ExtFuncs   entity.Pool[FuncRef, ExtFuncData]
	}
)

const (
	ValueResult ValueKind = iota
	ValueParam
	ValueAlias
	ValueDetached
)

func (d *DataFlowGraph) Clear() {
	d.Insts.Reset()
	d.Values.Reset()
	d.Blocks.Reset()
	d.Signatures.Reset()
	d.ExtFuncs.Reset()
}

func (d *DataFlowGraph) Inst(i Inst) *InstData { return d.Insts.Get(i) }

func (d *DataFlowGraph) Value(v Value) *ValueData { return d.Values.Get(v) }

func (d *DataFlowGraph) ValueType(v Value) Type { return d.Values.Get(v).Type }

func (d *DataFlowGraph) MakeBlock() Block {
	return d.Blocks.Push(BlockData{})
}

func (d *DataFlowGraph) BlockParams(b Block) []Value {
	return d.Blocks.Get(b).Params
}

func (d *DataFlowGraph) AppendBlockParam(b Block, t Type) Value {
	bd := d.Blocks.Get(b)

	v := d.Values.Push(ValueData{
		Kind:  ValueParam,
		Type:  t,
		Block: b,
		Inst:  NoInst,
		Num:   len(bd.Params),
	})

	bd.Params = append(bd.Params, v)

	return v
}

// DetachBlockParams removes all block parameters.
// Detached values must be attached to an instruction or aliased before use.
func (d *DataFlowGraph) DetachBlockParams(b Block) []Value {
	bd := d.Blocks.Get(b)
	ps := bd.Params
	bd.Params = nil

	for _, p := range ps {
		d.Values.Get(p).Kind = ValueDetached
	}

	return ps
}

// ReplaceBlockParam replaces parameter v by a set of new parameters of the given types.
// v is detached.
func (d *DataFlowGraph) ReplaceBlockParam(v Value, types ...Type) []Value {
	vd := d.Values.Get(v)
	if vd.Kind != ValueParam {
		panic(fmt.Sprintf("%v is not a block param", v))
	}

	b := vd.Block
	bd := d.Blocks.Get(b)

	old := bd.Params
	at := vd.Num

	bd.Params = append([]Value(nil), old[:at]...)

	r := make([]Value, len(types))
	for i, t := range types {
		r[i] = d.AppendBlockParam(b, t)
	}

	for _, p := range old[at+1:] {
		d.Values.Get(p).Num = len(bd.Params)
		bd.Params = append(bd.Params, p)
	}

	vd.Kind = ValueDetached

	return r
}

func (d *DataFlowGraph) MakeInst(data InstData) Inst {
	data.Results = nil

	return d.Insts.Push(data)
}

// MakeResults creates result values for a new instruction.
func (d *DataFlowGraph) MakeResults(i Inst) {
	data := d.Insts.Get(i)

	for _, t := range d.ResultTypes(data) {
		d.AttachResult(i, d.Values.Push(ValueData{Type: t}))
	}
}

// AttachResult appends v as the next result of inst.
func (d *DataFlowGraph) AttachResult(i Inst, v Value) {
	data := d.Insts.Get(i)
	vd := d.Values.Get(v)

	vd.Kind = ValueResult
	vd.Inst = i
	vd.Block = NoBlock
	vd.Num = len(data.Results)
	vd.Original = 0

	data.Results = append(data.Results, v)
}

// AppendResult creates a new result of type t for inst.
func (d *DataFlowGraph) AppendResult(i Inst, t Type) Value {
	v := d.Values.Push(ValueData{Type: t})
	d.AttachResult(i, v)

	return v
}

// DetachResults disconnects results from the instruction.
func (d *DataFlowGraph) DetachResults(i Inst) []Value {
	data := d.Insts.Get(i)
	rs := data.Results
	data.Results = nil

	for _, r := range rs {
		d.Values.Get(r).Kind = ValueDetached
	}

	return rs
}

// ReplaceResult gives result k of inst a fresh value and detaches the old one.
func (d *DataFlowGraph) ReplaceResult(i Inst, k int) Value {
	data := d.Insts.Get(i)
	old := data.Results[k]
	ovd := d.Values.Get(old)

	v := d.Values.Push(ValueData{
		Kind:  ValueResult,
		Type:  ovd.Type,
		Inst:  i,
		Block: NoBlock,
		Num:   k,
	})

	data.Results[k] = v
	ovd.Kind = ValueDetached

	return v
}

// RebindResult makes the detached value v result k of inst in place of the current one.
// Rewrites use it to keep value numbers stable.
func (d *DataFlowGraph) RebindResult(i Inst, k int, v Value) {
	data := d.Insts.Get(i)
	vd := d.Values.Get(v)

	if vd.Kind != ValueDetached {
		panic(fmt.Sprintf("rebind %v: value is attached", v))
	}

	d.Values.Get(data.Results[k]).Kind = ValueDetached

	vd.Kind = ValueResult
	vd.Type = d.Values.Get(data.Results[k]).Type
	vd.Inst = i
	vd.Block = NoBlock
	vd.Num = k

	data.Results[k] = v
}

// Replace changes the instruction keeping its results.
func (d *DataFlowGraph) Replace(i Inst, data InstData) {
	cur := d.Insts.Get(i)
	rs := cur.Results

	data.Results = rs
	*cur = data

	types := d.ResultTypes(cur)
	if len(types) != len(rs) {
		panic(fmt.Sprintf("replace %v with %v: %d results, want %d", i, data.Opcode, len(rs), len(types)))
	}

	for k, r := range rs {
		d.Values.Get(r).Type = types[k]
	}
}

// ChangeToAlias makes v an alias of target.
func (d *DataFlowGraph) ChangeToAlias(v, target Value) {
	target = d.Resolve(target)
	if v == target {
		panic(fmt.Sprintf("alias loop on %v", v))
	}

	vd := d.Values.Get(v)
	vd.Kind = ValueAlias
	vd.Original = target
	vd.Inst = NoInst
	vd.Block = NoBlock
}

// Resolve follows alias chain.
func (d *DataFlowGraph) Resolve(v Value) Value {
	for n := d.Values.Len(); n >= 0; n-- {
		vd := d.Values.Get(v)
		if vd.Kind != ValueAlias {
			return v
		}

		v = vd.Original
	}

	panic(fmt.Sprintf("alias loop on %v", v))
}

// ResolveArgs replaces aliases in instruction arguments.
func (d *DataFlowGraph) ResolveArgs(i Inst) {
	d.Insts.Get(i).MapUses(d.Resolve)
}

func (d *DataFlowGraph) InstResults(i Inst) []Value { return d.Insts.Get(i).Results }

func (d *DataFlowGraph) FirstResult(i Inst) Value {
	rs := d.Insts.Get(i).Results
	if len(rs) == 0 {
		panic(fmt.Sprintf("%v has no results", i))
	}

	return rs[0]
}

// ValueDef returns the defining instruction or block of a resolved value.
func (d *DataFlowGraph) ValueDef(v Value) (Inst, Block) {
	vd := d.Values.Get(d.Resolve(v))

	switch vd.Kind {
	case ValueResult:
		return vd.Inst, NoBlock
	case ValueParam:
		return NoInst, vd.Block
	default:
		return NoInst, NoBlock
	}
}

// Const returns the immediate of an iconst defining v.
func (d *DataFlowGraph) Const(v Value) (int64, bool) {
	i, _ := d.ValueDef(v)
	if i == NoInst {
		return 0, false
	}

	data := d.Insts.Get(i)
	if data.Opcode != Iconst {
		return 0, false
	}

	return data.Imm, true
}

func (d *DataFlowGraph) ImportSignature(s Signature) SigRef {
	return d.Signatures.Push(s)
}

func (d *DataFlowGraph) ImportFunction(name string, sig SigRef) FuncRef {
	return d.ExtFuncs.Push(ExtFuncData{Name: name, Sig: sig})
}

// CallSignature returns the signature of a call instruction.
func (d *DataFlowGraph) CallSignature(i Inst) (*Signature, bool) {
	data := d.Insts.Get(i)

	switch data.Opcode {
	case Call:
		if !d.ExtFuncs.Valid(data.Func) {
			return nil, false
		}

		sig := d.ExtFuncs.Get(data.Func).Sig
		if !d.Signatures.Valid(sig) {
			return nil, false
		}

		return d.Signatures.Get(sig), true
	case CallIndirect:
		if !d.Signatures.Valid(data.Sig) {
			return nil, false
		}

		return d.Signatures.Get(data.Sig), true
	default:
		return nil, false
	}
}

// ResultTypes computes result types from the opcode and controlling type.
func (d *DataFlowGraph) ResultTypes(data *InstData) []Type {
	t := data.Type

	switch data.Opcode {
	case Jump, Brif, BrTable, Return, Trap,
		Store, Istore8, Istore16, Istore32, StackStore,
		Regmove, Regspill, Regfill, Prologue, Epilogue:
		return nil
	case Call, CallIndirect:
		if data.Flags&FlagABILowered != 0 {
			r := make([]Type, len(data.Results))
			for k, v := range data.Results {
				r[k] = d.Values.Get(v).Type
			}

			return r
		}

		var sig *Signature

		if data.Opcode == Call && d.ExtFuncs.Valid(data.Func) && d.Signatures.Valid(d.ExtFuncs.Get(data.Func).Sig) {
			sig = d.Signatures.Get(d.ExtFuncs.Get(data.Func).Sig)
		} else if data.Opcode == CallIndirect && d.Signatures.Valid(data.Sig) {
			sig = d.Signatures.Get(data.Sig)
		}

		if sig == nil {
			return nil
		}

		return sig.Returns
	case Icmp, IcmpImm:
		return []Type{I8}
	case IaddCout, IsubBout:
		return []Type{t, I8}
	case Isplit:
		return []Type{t.Half(), t.Half()}
	default:
		return []Type{t}
	}
}
