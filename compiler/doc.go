/*
Package compiler turns IR functions into machine code.

Pipeline

	ir.Function ->
		verify ->
		legalize (abi lowering, expand, narrow, widen, libcalls) ->
		eliminate unreachable blocks ->
		verify ->
	Legal IR ->
		isa.Select ->
	Encoded IR ->
		regalloc ->
		verify locations ->
	Allocated IR ->
		abi.InsertPrologueEpilogue ->
		binemit.Relax ->
	Laid out IR ->
		binemit.Emit ->
	Code, relocations, traps, safepoints

Verification stages run only with Settings.EnableVerifier.
*/
package compiler
