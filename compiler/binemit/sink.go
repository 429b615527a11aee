package binemit

import (
	"encoding/binary"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	Reloc struct {
		Offset uint32
		Kind   isa.RelocKind
		Name   string
		Addend int64
	}

	TrapSite struct {
		Offset uint32
		Code   ir.TrapCode
	}

	Safepoint struct {
		Offset uint32
	}

	// MemSink collects code and side tables in memory.
	MemSink struct {
		Code []byte

		Relocs     []Reloc
		Traps      []TrapSite
		Safepoints []Safepoint

		order binary.AppendByteOrder
	}

	// sizer only counts bytes.
	sizer struct {
		off uint32
	}
)

var (
	_ isa.CodeSink = &MemSink{}
	_ isa.CodeSink = &sizer{}
)

func NewMemSink(e isa.Endianness) *MemSink {
	s := &MemSink{order: binary.LittleEndian}

	if e == isa.BigEndian {
		s.order = binary.BigEndian
	}

	return s
}

// Reset clears the sink keeping the buffers.
func (s *MemSink) Reset() {
	s.Code = s.Code[:0]
	s.Relocs = s.Relocs[:0]
	s.Traps = s.Traps[:0]
	s.Safepoints = s.Safepoints[:0]
}

func (s *MemSink) Offset() uint32 { return uint32(len(s.Code)) }

func (s *MemSink) Put1(b byte) { s.Code = append(s.Code, b) }

func (s *MemSink) Put2(x uint16) { s.Code = s.order.AppendUint16(s.Code, x) }

func (s *MemSink) Put4(x uint32) { s.Code = s.order.AppendUint32(s.Code, x) }

func (s *MemSink) Put8(x uint64) { s.Code = s.order.AppendUint64(s.Code, x) }

func (s *MemSink) Reloc(k isa.RelocKind, name string, addend int64) {
	s.Relocs = append(s.Relocs, Reloc{Offset: s.Offset(), Kind: k, Name: name, Addend: addend})
}

func (s *MemSink) Trap(code ir.TrapCode) {
	s.Traps = append(s.Traps, TrapSite{Offset: s.Offset(), Code: code})
}

func (s *MemSink) Safepoint() {
	s.Safepoints = append(s.Safepoints, Safepoint{Offset: s.Offset()})
}

func (s *sizer) Offset() uint32 { return s.off }

func (s *sizer) Put1(byte)   { s.off++ }
func (s *sizer) Put2(uint16) { s.off += 2 }
func (s *sizer) Put4(uint32) { s.off += 4 }
func (s *sizer) Put8(uint64) { s.off += 8 }

func (s *sizer) Reloc(isa.RelocKind, string, int64) {}
func (s *sizer) Trap(ir.TrapCode)                   {}
func (s *sizer) Safepoint()                         {}
