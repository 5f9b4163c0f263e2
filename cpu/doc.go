// Package cpu implements the execution engine and assembler for the toyvm.
//
// The CPU consists of a program counter (PC), a stack pointer (SP), four
// 32-bit signed general-purpose registers (r1-r4), and an eight bit status
// register holding five sticky fault flags and three comparison flags. All
// code, data, and the downward growing stack share a single memory tape.
//
// Instructions are one to six bytes long: an opcode byte followed by
// register index bytes, an interrupt number, or little-endian 32-bit words.
// Dispatch is through a fixed 256 entry opcode table.
//
// The assembler provides a small assembly language for the instruction set,
// supporting macros, labels, equates, data directives, and compile-time
// expression evaluation.
package cpu
