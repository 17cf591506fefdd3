// Package asm implements a two-pass assembler for the machine's instruction set.
//
// Source is lexed into a stream of tokens (mnemonics, %-registers, #-literals,
// .-directives, $-labels) and assembled in two passes: pass one discovers
// symbols by walking the token stream and tracking a word counter; pass two
// re-lexes the same buffer and emits one 16-bit word per instruction or
// directive, resolving label references against the symbol table built in
// pass one.
//
//	$loop:  add %r0 %r0 #2
//	        add %r5 %r5 #-1
//	        br p $loop
//	        trap #x25
//
//	$msg:   .stringz "Hi"
//	        lea %r0 $msg
//
// See [Grammar] for the full syntax. Use [NewLexer] to tokenize source,
// [Pass1] to build the symbol table, and [NewGenerator] to run pass two and
// emit object code; [Assemble] runs both passes.
//
// # Bugs
//
// Comments are not part of the grammar; any text following an instruction
// or directive's operands is lexed as more operands and will fail to parse.
package asm
