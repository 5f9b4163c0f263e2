package cpu

import (
	"fmt"
)

// Opcode is the first byte of every instruction.
type Opcode uint8

const (
	// Arithmetic
	OP_ADD = Opcode(0x01) // add
	OP_NEG = Opcode(0x02) // neg
	OP_MUL = Opcode(0x03) // mul
	OP_DIV = Opcode(0x04) // div
	OP_MOD = Opcode(0x05) // mod

	// Comparison & branches
	OP_CMP = Opcode(0x10) // cmp
	OP_JA  = Opcode(0x11) // ja
	OP_JE  = Opcode(0x12) // je
	OP_JB  = Opcode(0x13) // jb
	OP_JMP = Opcode(0x14) // jmp

	// Subroutines
	OP_CALL = Opcode(0x20) // call
	OP_RET  = Opcode(0x21) // ret

	// Data movement
	OP_LOAD   = Opcode(0x30) // load
	OP_STORE  = Opcode(0x31) // store
	OP_CONST  = Opcode(0x32) // const
	OP_RLOAD  = Opcode(0x33) // rload
	OP_RSTORE = Opcode(0x34) // rstore

	// Auxiliary
	OP_HALT = Opcode(0x40) // halt
	OP_INT  = Opcode(0x41) // int
	OP_NOP  = Opcode(0x42) // nop

	// Stack
	OP_PUSH     = Opcode(0x50) // push
	OP_PUSH_ALL = Opcode(0x51) // pushall
	OP_POP      = Opcode(0x52) // pop
	OP_POP_ALL  = Opcode(0x53) // popall
	OP_LSP      = Opcode(0x54) // lsp
)

// Interrupt numbers for OP_INT.
const (
	INT_PRINT_INTEGER = 0x01 // Pop and print a signed decimal.
	INT_PRINT_STRING  = 0x02 // Pop an address and print the NUL terminated string there.
)

// Operand is the encoding of an instruction operand: a register index
// byte, an immediate byte, or a little-endian 32-bit word.
type Operand int

//go:generate go tool stringer -linecomment -type=Operand
const (
	OPERAND_REGISTER = Operand(1) // reg
	OPERAND_BYTE     = Operand(2) // imm8
	OPERAND_WORD     = Operand(3) // word
)

// Size returns the encoded size of the operand in bytes.
func (op Operand) Size() int32 {
	if op == OPERAND_WORD {
		return WORD_SIZE
	}
	return 1
}

// Execute is the execution rule of an instruction.
// Returns true if the CPU must halt.
type Execute func(cpu *Cpu, inst *Instruction) (halt bool)

// Instruction describes an opcode, its encoding, and its execution rule.
type Instruction struct {
	Opcode   Opcode
	Length   int32 // Length in bytes, including the opcode byte.
	Name     string
	Operands []Operand
	Execute  Execute
}

var (
	opReg  = OPERAND_REGISTER
	opImm8 = OPERAND_BYTE
	opWord = OPERAND_WORD
)

// opcodeMap maps an opcode to its index in instructions.
var opcodeMap [256]uint8

// mnemonicMap maps an instruction name to its descriptor.
var mnemonicMap = map[string]*Instruction{}

// instructions is the compact descriptor table. Index 0 is the sentinel for
// unassigned opcodes.
//
// Assigned in init(), as the execution rules refer back to the table.
var instructions []Instruction

func init() {
	instructions = []Instruction{
		{},
		{OP_ADD, 3, "add", []Operand{opReg, opReg}, execAdd},
		{OP_NEG, 2, "neg", []Operand{opReg}, execNeg},
		{OP_MUL, 3, "mul", []Operand{opReg, opReg}, execMul},
		{OP_DIV, 3, "div", []Operand{opReg, opReg}, execDiv},
		{OP_MOD, 3, "mod", []Operand{opReg, opReg}, execMod},

		{OP_CMP, 3, "cmp", []Operand{opReg, opReg}, execCmp},
		{OP_JA, 5, "ja", []Operand{opWord}, execJumpIf(COMPARISON_ABOVE)},
		{OP_JE, 5, "je", []Operand{opWord}, execJumpIf(COMPARISON_EQUAL)},
		{OP_JB, 5, "jb", []Operand{opWord}, execJumpIf(COMPARISON_BELOW)},
		{OP_JMP, 5, "jmp", []Operand{opWord}, execJump},

		{OP_CALL, 5, "call", []Operand{opWord}, execCall},
		{OP_RET, 1, "ret", nil, execRet},

		{OP_LOAD, 6, "load", []Operand{opReg, opWord}, execLoad},
		{OP_STORE, 6, "store", []Operand{opReg, opWord}, execStore},
		{OP_CONST, 6, "const", []Operand{opReg, opWord}, execConst},
		{OP_RLOAD, 3, "rload", []Operand{opReg, opReg}, execRload},
		{OP_RSTORE, 3, "rstore", []Operand{opReg, opReg}, execRstore},

		{OP_HALT, 1, "halt", nil, execHalt},
		{OP_INT, 2, "int", []Operand{opImm8}, execInt},
		{OP_NOP, 1, "nop", nil, execNop},

		{OP_PUSH, 2, "push", []Operand{opReg}, execPush},
		{OP_PUSH_ALL, 1, "pushall", nil, execPushAll},
		{OP_POP, 2, "pop", []Operand{opReg}, execPop},
		{OP_POP_ALL, 1, "popall", nil, execPopAll},
		{OP_LSP, 2, "lsp", []Operand{opReg}, execLsp},
	}

	for n := 1; n < len(instructions); n++ {
		inst := &instructions[n]

		length := int32(1)
		for _, operand := range inst.Operands {
			length += operand.Size()
		}
		if length != inst.Length {
			panic(fmt.Sprintf("%v: length %d does not match operands %d", inst.Name, inst.Length, length))
		}
		if opcodeMap[inst.Opcode] != 0 {
			panic(fmt.Sprintf("%v: opcode 0x%02x duplicated", inst.Name, uint8(inst.Opcode)))
		}

		opcodeMap[inst.Opcode] = uint8(n)
		mnemonicMap[inst.Name] = inst
	}
}

// Lookup returns the instruction descriptor for an opcode.
func Lookup(op Opcode) (inst *Instruction, ok bool) {
	index := opcodeMap[op]
	if index == 0 {
		return
	}

	return &instructions[index], true
}

// LookupName returns the instruction descriptor for a mnemonic.
func LookupName(name string) (inst *Instruction, ok bool) {
	inst, ok = mnemonicMap[name]
	return
}

// Valid returns true if the opcode has an instruction.
func (op Opcode) Valid() bool {
	return opcodeMap[op] != 0
}

// Length returns the length in bytes of the opcode's instruction, or 0 if
// the opcode is unassigned.
func (op Opcode) Length() int32 {
	return instructions[opcodeMap[op]].Length
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	inst, ok := Lookup(op)
	if !ok {
		return fmt.Sprintf("Opcode(0x%02x)", uint8(op))
	}
	return inst.Name
}
