package x64

import (
	"encoding/hex"
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
		exp  string
	}{
		{name: "mov rax, rcx", emit: func(s isa.CodeSink) { movRR(s, rax, rcx) }, exp: "4889c8"},
		{name: "mov r8, rdi", emit: func(s isa.CodeSink) { movRR(s, r8, rdi) }, exp: "4989f8"},
		{name: "mov rax, rax", emit: func(s isa.CodeSink) { movRR(s, rax, rax) }, exp: ""},
		{name: "movaps xmm1, xmm2", emit: func(s isa.CodeSink) { movRR(s, xmm(1), xmm(2)) }, exp: "0f28ca"},
		{name: "mov eax, 1", emit: func(s isa.CodeSink) { movRI(s, rax, 1, true) }, exp: "b801000000"},
		{name: "mov rcx, -1", emit: func(s isa.CodeSink) { movRI(s, rcx, -1, true) }, exp: "48c7c1ffffffff"},
		{name: "movabs r9", emit: func(s isa.CodeSink) { movRI(s, r9, 1<<40, true) }, exp: "49b90000000000010000"},
		{name: "add rax, 8", emit: func(s isa.CodeSink) { aluRI(s, true, 0, rax, 8) }, exp: "4883c008"},
		{name: "sub rsp, 0x1000", emit: func(s isa.CodeSink) { aluRI(s, true, 5, rsp, 0x1000) }, exp: "4881ec00100000"},
		{name: "mov rax, [rsp+8]", emit: func(s isa.CodeSink) { load(s, ir.I64, 8, false, rax, rsp, 8) }, exp: "488b442408"},
		{name: "mov [rbp], ecx", emit: func(s isa.CodeSink) { store(s, ir.I32, 4, rcx, rbp, 0) }, exp: "894d00"},
		{name: "mov [rax], sil", emit: func(s isa.CodeSink) { store(s, ir.I8, 1, rsi, rax, 0) }, exp: "408830"},
		{name: "mov [rsp+16], rcx", emit: func(s isa.CodeSink) { slotStore(s, ir.I32, rcx, 16) }, exp: "48894c2410"},
		{name: "movsd xmm1, [rsp+8]", emit: func(s isa.CodeSink) { slotLoad(s, ir.F64, xmm(1), 8) }, exp: "f20f104c2408"},
		{name: "setl dil", emit: func(s isa.CodeSink) { setcc(s, ir.Slt, rdi) }, exp: "400f9cc7400fb6ff"},
		{name: "shlx rax, rcx, rdx", emit: func(s isa.CodeSink) { vex(s, 1, true, 0xf7, rax, rcx, rdx) }, exp: "c4e2e9f7c1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := binemit.NewMemSink(isa.LittleEndian)
			tc.emit(s)

			require.Equal(t, tc.exp, hex.EncodeToString(s.Code))
		})
	}
}
