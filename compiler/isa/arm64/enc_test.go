package arm64

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/cranelift/compiler/binemit"
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

func TestEncode(t *testing.T) {
	for _, tc := range []struct {
		name string
		emit func(s isa.CodeSink)
		exp  []uint32
	}{
		{name: "mov x0, x1", emit: func(s isa.CodeSink) { movRR(s, x(0), x(1)) }, exp: []uint32{0xaa0103e0}},
		{name: "mov x3, x3", emit: func(s isa.CodeSink) { movRR(s, x(3), x(3)) }},
		{name: "fmov d0, d1", emit: func(s isa.CodeSink) { movRR(s, v(0), v(1)) }, exp: []uint32{0x1e604020}},
		{name: "add x0, x1, x2", emit: func(s isa.CodeSink) { put(s, rrr(addRR|sf(ir.I64), x(0), x(1), x(2))) }, exp: []uint32{0x8b020020}},
		{name: "sub w3, w4, w5", emit: func(s isa.CodeSink) { put(s, rrr(subRR|sf(ir.I32), x(3), x(4), x(5))) }, exp: []uint32{0x4b050083}},
		{name: "add x0, sp, 16", emit: func(s isa.CodeSink) { put(s, rri(addRI|1<<31, x(0), sp, 16)) }, exp: []uint32{0x910043e0}},
		{name: "movz movk", emit: func(s isa.CodeSink) { movImm(s, x(0), 0x12345678, ir.I64) }, exp: []uint32{0xd28acf00, 0xf2a24680}},
		{name: "movn", emit: func(s isa.CodeSink) { movImm(s, x(1), -1, ir.I64) }, exp: []uint32{0x92e00001}},
		{name: "movz zero", emit: func(s isa.CodeSink) { movImm(s, x(2), 0, ir.I32) }, exp: []uint32{0x52a00002}},
		{name: "ldr x0, [sp, 8]", emit: func(s isa.CodeSink) {
			mem(s, memBase(ir.I64, 8, false, false), 8, x(0), sp, 8)
		}, exp: []uint32{0xf94007e0}},
		{name: "stur x1, [sp, -8]", emit: func(s isa.CodeSink) {
			mem(s, memBase(ir.I64, 8, false, true), 8, x(1), sp, -8)
		}, exp: []uint32{0xf81f83e1}},
		{name: "ldr x0, [x1, x16]", emit: func(s isa.CodeSink) {
			mem(s, memBase(ir.I64, 8, false, false), 8, x(0), x(1), 0x10000)
		}, exp: []uint32{0xd2a00030, 0xf8706820}},
		{name: "str s2, [sp, 4]", emit: func(s isa.CodeSink) { spillSlot(s, v(2), ir.F32, 4, true) }, exp: []uint32{0xbd0007e2}},
		{name: "b 8", emit: func(s isa.CodeSink) { put(s, branch26(b, 8)) }, exp: []uint32{0x14000002}},
		{name: "bl -4", emit: func(s isa.CodeSink) { put(s, branch26(bl, -4)) }, exp: []uint32{0x97ffffff}},
		{name: "cbz w3, 16", emit: func(s isa.CodeSink) { put(s, branch19(cbz, x(3), 16)) }, exp: []uint32{0x34000083}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := binemit.NewMemSink(isa.LittleEndian)
			tc.emit(s)

			var exp []byte
			for _, w := range tc.exp {
				exp = binary.LittleEndian.AppendUint32(exp, w)
			}

			require.Equal(t, exp, s.Code)
		})
	}
}
