// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/toyvm/io"
	"github.com/ezrec/toyvm/memory"
)

// Console is the interrupt output device.
type Console io.Console

const (
	REGISTER_COUNT = 4                // Number of general purpose registers.
	WORD_SIZE      = memory.WORD_SIZE // Size of a register, in bytes.
)

// Register indices, as encoded in register operands.
const (
	REG1 = 0 // r1
	REG2 = 1 // r2
	REG3 = 2 // r3
	REG4 = 3 // r4
)

var _cpu_defines = map[string]string{
	"INT_PRINT_INTEGER": fmt.Sprintf("%d", INT_PRINT_INTEGER),
	"INT_PRINT_STRING":  fmt.Sprintf("%d", INT_PRINT_STRING),
	"WORD_SIZE":         fmt.Sprintf("%d", WORD_SIZE),
	"REGISTER_COUNT":    fmt.Sprintf("%d", REGISTER_COUNT),
}

// Cpu is the simulation context for the toyvm processor and its memory.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Tape    *memory.Tape // Memory shared by code, data, and stack.
	Console Console      // Interrupt output device. Output is discarded if nil.

	Register   [REGISTER_COUNT]int32 // Register bank.
	Pc         int32                 // Program counter.
	Sp         int32                 // Stack pointer.
	StackLimit int32                 // Lowest address the stack may grow to.
	Status     Status                // Status flags.

	Halted bool // Set once an instruction has requested a halt.
	Ticks  int  // Instructions executed since reset.

	reason error // Cause of the most recent halt, if any.
}

// NewCpu creates a new CPU with memorySize bytes of memory and the stack
// fence at stackLimit. Both are rounded up to a multiple of WORD_SIZE.
func NewCpu(memorySize int32, stackLimit int32) (cpu *Cpu) {
	cpu = &Cpu{
		Tape:       memory.NewTape(memorySize),
		StackLimit: memory.Align(stackLimit),
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// MemorySize returns the size of memory in bytes.
func (cpu *Cpu) MemorySize() int32 {
	return cpu.Tape.Size()
}

// Reset the CPU state.
// - Clears the registers and status flags.
// - Sets the program counter to 0.
// - Empties the stack.
// - Zeros statistics counters.
//
// Memory is left untouched.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.Pc = 0
	cpu.Sp = cpu.Tape.Size()
	cpu.Status.Reset()
	cpu.Halted = false
	cpu.Ticks = 0
	cpu.reason = nil
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	regs := []string{
		"pc",
		"sp",
		"r1", "r2", "r3", "r4",
		"status",
	}
	for _, reg := range regs {
		var strval string
		switch reg {
		case "pc":
			strval = fmt.Sprintf("%08X", uint32(cpu.Pc))
		case "sp":
			strval = fmt.Sprintf("%08X", uint32(cpu.Sp))
		case "r1", "r2", "r3", "r4":
			val := cpu.Register[byte(reg[1]-'1')]
			strval = fmt.Sprintf("%08X (%d)", uint32(val), val)
		case "status":
			strval = cpu.Status.String()
		}
		text += fmt.Sprintf("% 6s: %v\n", reg, strval)
	}

	return
}

// Reason returns the cause of the most recent halt, or nil for a
// deliberate HALT.
func (cpu *Cpu) Reason() error {
	return cpu.reason
}

// Err returns the error that halted the CPU, or nil if the CPU has not
// faulted.
func (cpu *Cpu) Err() (err error) {
	if cpu.Status.Faulted() {
		err = ErrFault(cpu.Status)
		if cpu.reason != nil {
			err = errors.Join(err, cpu.reason)
		}
		return
	}

	if errors.Is(cpu.reason, ErrConsole) {
		err = cpu.reason
	}

	return
}

// Tick executes a single instruction.
//
// done is set when the CPU has halted, either deliberately or from a
// fault. err is set if the halt was caused by a fault or a console error.
func (cpu *Cpu) Tick() (done bool, err error) {
	if cpu.Halted {
		return true, cpu.Err()
	}

	halt := cpu.step()
	if !halt {
		return
	}

	cpu.Halted = true
	if cpu.Verbose {
		log.Printf("cpu: halt at 0x%08x: %v", uint32(cpu.Pc), cpu.Status)
	}

	return true, cpu.Err()
}

// Run executes instructions until the CPU halts.
func (cpu *Cpu) Run() (err error) {
	for {
		var done bool
		done, err = cpu.Tick()
		if done {
			return
		}
	}
}

// step fetches and executes the instruction at the program counter.
func (cpu *Cpu) step() (halt bool) {
	pc := cpu.Pc
	if pc < 0 || pc >= cpu.Tape.Size() {
		return cpu.fault(BAD_ACCESS, ErrPcRange)
	}

	op := Opcode(cpu.Tape.ReadUint8(pc))
	index := opcodeMap[op]
	if index == 0 {
		return cpu.fault(BAD_INSTRUCTION, ErrOpcodeUnknown)
	}

	inst := &instructions[index]
	if !cpu.Tape.Contains(pc, inst.Length) {
		return cpu.fault(BAD_ACCESS, ErrOperandRange)
	}

	if cpu.Verbose {
		dec, _ := Decode(cpu.Tape.Bytes(), pc)
		log.Printf("%08x: %v", uint32(pc), dec)
	}

	cpu.Ticks++

	return inst.Execute(cpu, inst)
}

// fault sets a fault flag, records the cause, and requests a halt.
func (cpu *Cpu) fault(flag Flag, reason error) (halt bool) {
	cpu.Status.Set(flag)
	cpu.reason = reason
	return true
}

// stop requests a halt without setting a fault flag.
func (cpu *Cpu) stop(reason error) (halt bool) {
	cpu.reason = reason
	return true
}

// next advances the program counter past inst.
func (cpu *Cpu) next(inst *Instruction) (halt bool) {
	cpu.Pc += inst.Length
	return false
}

// operandByte returns the n'th byte following the opcode.
func (cpu *Cpu) operandByte(n int32) byte {
	return cpu.Tape.ReadUint8(cpu.Pc + n)
}

// operandWord returns the word starting at the n'th byte following the opcode.
func (cpu *Cpu) operandWord(n int32) int32 {
	return cpu.Tape.ReadWord(cpu.Pc + n)
}

// operandRegister returns the register index in the n'th byte following the
// opcode. INVALID_REGISTER_INDEX is flagged if it is not a register.
func (cpu *Cpu) operandRegister(n int32) (index int, ok bool) {
	index = int(cpu.operandByte(n))
	if index >= REGISTER_COUNT {
		cpu.fault(INVALID_REGISTER_INDEX, ErrRegisterIndex)
		return
	}

	return index, true
}

// operandRegisters returns the register indices of the first two operands.
func (cpu *Cpu) operandRegisters() (a, b int, ok bool) {
	a, ok = cpu.operandRegister(1)
	if !ok {
		return
	}

	b, ok = cpu.operandRegister(2)
	return
}

// readWord reads a word from memory. BAD_ACCESS is flagged if the word is
// not in memory.
func (cpu *Cpu) readWord(address int32) (value int32, ok bool) {
	if !cpu.Tape.Contains(address, WORD_SIZE) {
		cpu.fault(BAD_ACCESS, ErrAddressRange)
		return
	}

	return cpu.Tape.ReadWord(address), true
}

// writeWord writes a word to memory. BAD_ACCESS is flagged if the word is
// not in memory.
func (cpu *Cpu) writeWord(address int32, value int32) (ok bool) {
	if !cpu.Tape.Contains(address, WORD_SIZE) {
		cpu.fault(BAD_ACCESS, ErrAddressRange)
		return
	}

	cpu.Tape.WriteWord(address, value)
	return true
}
