package cpu

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/toyvm/io"
	"github.com/ezrec/toyvm/memory"
)

// program builds a code image from opcodes, byte operands (int), and word
// operands (int32).
func program(items ...any) (code []byte) {
	for _, item := range items {
		switch value := item.(type) {
		case Opcode:
			code = append(code, byte(value))
		case int:
			code = append(code, byte(value))
		case int32:
			code = memory.AppendWord(code, value)
		default:
			panic(fmt.Sprintf("program: unexpected %T", item))
		}
	}

	return
}

// newTestCpu creates a 64 byte CPU, with the stack fence at 32, with code
// loaded at address 0.
func newTestCpu(code []byte) (cpu *Cpu) {
	cpu = NewCpu(64, 32)
	cpu.Tape.Load(code)

	return
}

func TestCpuNew(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(61, 30)
	assert.Equal(int32(64), cpu.MemorySize())
	assert.Equal(int32(32), cpu.StackLimit)
	assert.Equal(int32(64), cpu.Sp)
	assert.Equal(int32(0), cpu.Pc)
	assert.Equal(Status(0), cpu.Status)
	assert.False(cpu.Halted)
	assert.True(cpu.StackEmpty())
	assert.NoError(cpu.Err())
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(OP_POP, REG1))
	cpu.Register = [REGISTER_COUNT]int32{1, 2, 3, 4}

	done, err := cpu.Tick()
	assert.True(done)
	assert.Error(err)

	cpu.Reset()
	assert.Equal([REGISTER_COUNT]int32{}, cpu.Register)
	assert.Equal(Status(0), cpu.Status)
	assert.Equal(int32(64), cpu.Sp)
	assert.Equal(0, cpu.Ticks)
	assert.False(cpu.Halted)
	assert.NoError(cpu.Reason())
	assert.Equal(byte(OP_POP), cpu.Tape.ReadUint8(0))
}

func TestCpuAdd(t *testing.T) {
	assert := assert.New(t)

	for src := range REGISTER_COUNT {
		for tgt := range REGISTER_COUNT {
			cpu := newTestCpu(program(OP_ADD, src, tgt))
			cpu.Register = [REGISTER_COUNT]int32{10, -200, 3000, math.MaxInt32}
			before := cpu.Register

			done, err := cpu.Tick()
			assert.NoError(err)
			assert.False(done)

			here := fmt.Sprintf("add r%d r%d", src+1, tgt+1)
			assert.Equal(before[tgt]+before[src], cpu.Register[tgt], here)
			assert.Equal(int32(3), cpu.Pc, here)
			for n := range REGISTER_COUNT {
				if n != tgt {
					assert.Equal(before[n], cpu.Register[n], here)
				}
			}
		}
	}
}

func TestCpuArith(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		code   []byte
		source int32
		target int32
		result int32
	}){
		{program(OP_ADD, REG1, REG2), 5, 7, 12},
		{program(OP_MUL, REG1, REG2), -5, 7, -35},
		{program(OP_DIV, REG1, REG2), 5, 17, 3},
		{program(OP_DIV, REG1, REG2), -1, math.MinInt32, math.MinInt32},
		{program(OP_MOD, REG1, REG2), 17, 5, 2},
		{program(OP_MOD, REG1, REG2), 5, 17, 5},
		{program(OP_MOD, REG1, REG2), -7, 3, -1},
	}

	for _, entry := range table {
		cpu := newTestCpu(entry.code)
		cpu.Register[REG1] = entry.source
		cpu.Register[REG2] = entry.target

		done, err := cpu.Tick()
		assert.NoError(err)
		assert.False(done)

		assert.Equal(entry.result, cpu.Register[REG2], entry.code)
		assert.Equal(entry.source, cpu.Register[REG1], entry.code)
		assert.Equal(int32(3), cpu.Pc)
	}

	cpu := newTestCpu(program(OP_NEG, REG3))
	cpu.Register[REG3] = 42
	done, err := cpu.Tick()
	assert.NoError(err)
	assert.False(done)
	assert.Equal(int32(-42), cpu.Register[REG3])
	assert.Equal(int32(2), cpu.Pc)
}

func TestCpuConst(t *testing.T) {
	assert := assert.New(t)

	for _, value := range []int32{0, 1, -1, 0x12345678, math.MaxInt32, math.MinInt32} {
		cpu := newTestCpu(program(
			OP_CONST, REG3, value,
			OP_STORE, REG3, int32(40),
			OP_LOAD, REG4, int32(40),
			OP_HALT,
		))

		assert.NoError(cpu.Run())
		assert.Equal(value, cpu.Register[REG3])
		assert.Equal(value, cpu.Register[REG4])
		assert.Equal(value, cpu.Tape.ReadWord(40))
		assert.Equal(int32(18), cpu.Pc)
		assert.Equal(4, cpu.Ticks)
	}
}

func TestCpuIndirect(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(
		OP_RSTORE, REG1, REG2, // [r2] = r1
		OP_RLOAD, REG2, REG3, // r3 = [r2]
		OP_HALT,
	))
	cpu.Register[REG1] = -12345
	cpu.Register[REG2] = 44

	assert.NoError(cpu.Run())
	assert.Equal(int32(-12345), cpu.Tape.ReadWord(44))
	assert.Equal(int32(-12345), cpu.Register[REG3])
	assert.Equal(int32(6), cpu.Pc)
}

func TestCpuPushPop(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(
		OP_PUSH, REG1,
		OP_PUSH, REG2,
		OP_LSP, REG4,
		OP_POP, REG3,
		OP_POP, REG2,
		OP_HALT,
	))
	cpu.Register[REG1] = 111
	cpu.Register[REG2] = 222

	assert.NoError(cpu.Run())
	assert.Equal(int32(111), cpu.Register[REG2])
	assert.Equal(int32(222), cpu.Register[REG3])
	assert.Equal(int32(64-8), cpu.Register[REG4])
	assert.Equal(int32(64), cpu.Sp)
	assert.True(cpu.StackEmpty())
}

func TestCpuPushAll(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(
		OP_PUSH_ALL,
		OP_CONST, REG1, int32(0),
		OP_CONST, REG4, int32(0),
		OP_POP_ALL,
		OP_HALT,
	))
	cpu.Register = [REGISTER_COUNT]int32{1, 2, 3, 4}

	_, err := cpu.Tick()
	assert.NoError(err)
	assert.Equal(int32(64-16), cpu.Sp)
	assert.Equal(int32(1), cpu.Tape.ReadWord(60))
	assert.Equal(int32(4), cpu.Tape.ReadWord(48))

	assert.NoError(cpu.Run())
	assert.Equal([REGISTER_COUNT]int32{1, 2, 3, 4}, cpu.Register)
	assert.Equal(int32(64), cpu.Sp)
}

func TestCpuPopAllUnderflow(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(
		OP_PUSH, REG1,
		OP_PUSH, REG2,
		OP_PUSH, REG3,
		OP_POP_ALL,
	))
	cpu.Register = [REGISTER_COUNT]int32{1, 2, 3, 4}

	err := cpu.Run()
	assert.ErrorIs(err, ErrStackEmpty)
	assert.True(cpu.Status.Has(STACK_UNDERFLOW))
	assert.Equal([REGISTER_COUNT]int32{1, 2, 3, 4}, cpu.Register)
	assert.Equal(int32(64-12), cpu.Sp)
	assert.Equal(int32(6), cpu.Pc)
}

func TestCpuCallRet(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(
		OP_NOP,            // 0
		OP_CALL, int32(8), // 1
		OP_HALT,            // 6
		OP_NOP,             // 7
		OP_ADD, REG1, REG1, // 8
		OP_RET, // 11
	))
	cpu.Register[REG1] = 21

	_, err := cpu.Tick()
	assert.NoError(err)
	_, err = cpu.Tick()
	assert.NoError(err)
	assert.Equal(int32(8), cpu.Pc)
	top, ok := cpu.Peek()
	assert.True(ok)
	assert.Equal(int32(1+5), top)

	assert.NoError(cpu.Run())
	assert.Equal(int32(6), cpu.Pc)
	assert.Equal(int32(42), cpu.Register[REG1])
	assert.Equal(int32(64), cpu.Sp)
}

func TestCpuCompare(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		a, b   int32
		flag   Flag
		taken  Opcode
		others []Opcode
	}){
		{5, 5, COMPARISON_EQUAL, OP_JE, []Opcode{OP_JA, OP_JB}},
		{6, 5, COMPARISON_ABOVE, OP_JA, []Opcode{OP_JE, OP_JB}},
		{-6, 5, COMPARISON_BELOW, OP_JB, []Opcode{OP_JA, OP_JE}},
		{math.MinInt32, math.MaxInt32, COMPARISON_BELOW, OP_JB, []Opcode{OP_JA, OP_JE}},
	}

	for _, entry := range table {
		for _, jump := range append([]Opcode{entry.taken}, entry.others...) {
			cpu := newTestCpu(program(
				OP_CMP, REG1, REG2,
				jump, int32(40),
			))
			cpu.Register[REG1] = entry.a
			cpu.Register[REG2] = entry.b
			cpu.Status.Set(COMPARISON_MASK)

			_, err := cpu.Tick()
			assert.NoError(err)
			assert.Equal(Status(entry.flag), cpu.Status, entry.flag)

			_, err = cpu.Tick()
			assert.NoError(err)
			if jump == entry.taken {
				assert.Equal(int32(40), cpu.Pc, jump)
			} else {
				assert.Equal(int32(8), cpu.Pc, jump)
			}
		}
	}

	cpu := newTestCpu(program(OP_JMP, int32(0x20)))
	_, err := cpu.Tick()
	assert.NoError(err)
	assert.Equal(int32(0x20), cpu.Pc)
}

func TestCpuHalt(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(OP_NOP, OP_HALT, OP_NOP))

	assert.NoError(cpu.Run())
	assert.True(cpu.Halted)
	assert.Equal(int32(1), cpu.Pc)
	assert.Equal(2, cpu.Ticks)
	assert.False(cpu.Status.Faulted())
	assert.NoError(cpu.Reason())

	// Stays halted.
	done, err := cpu.Tick()
	assert.True(done)
	assert.NoError(err)
	assert.Equal(int32(1), cpu.Pc)
	assert.Equal(2, cpu.Ticks)
}

func TestCpuFault(t *testing.T) {
	table := [](struct {
		name   string
		code   []byte
		setup  func(cpu *Cpu)
		flag   Flag
		reason error
		pc     int32
	}){
		{"unknown opcode", program(0xff), nil, BAD_INSTRUCTION, ErrOpcodeUnknown, 0},
		{"zero opcode", program(OP_NOP, 0x00), nil, BAD_INSTRUCTION, ErrOpcodeUnknown, 1},
		{"pc high", nil, func(cpu *Cpu) { cpu.Pc = 64 }, BAD_ACCESS, ErrPcRange, 64},
		{"pc low", nil, func(cpu *Cpu) { cpu.Pc = -1 }, BAD_ACCESS, ErrPcRange, -1},
		{"jump away", program(OP_JMP, int32(1000)), nil, BAD_ACCESS, ErrPcRange, 1000},
		{"operand range", nil, func(cpu *Cpu) {
			cpu.Tape.WriteUint8(60, byte(OP_CONST))
			cpu.Pc = 60
		}, BAD_ACCESS, ErrOperandRange, 60},
		{"register", program(OP_ADD, REG1, 4), nil, INVALID_REGISTER_INDEX, ErrRegisterIndex, 0},
		{"register neg", program(OP_NEG, 0x80), nil, INVALID_REGISTER_INDEX, ErrRegisterIndex, 0},
		{"register push", program(OP_PUSH, 7), nil, INVALID_REGISTER_INDEX, ErrRegisterIndex, 0},
		{"register rload", program(OP_RLOAD, 4, REG2), nil, INVALID_REGISTER_INDEX, ErrRegisterIndex, 0},
		{"register rstore", program(OP_RSTORE, REG1, 9), nil, INVALID_REGISTER_INDEX, ErrRegisterIndex, 0},
		{"load range", program(OP_LOAD, REG1, int32(61)), nil, BAD_ACCESS, ErrAddressRange, 0},
		{"store range", program(OP_STORE, REG1, int32(-4)), nil, BAD_ACCESS, ErrAddressRange, 0},
		{"rload range", program(OP_RLOAD, REG1, REG2), func(cpu *Cpu) {
			cpu.Register[REG1] = 64
		}, BAD_ACCESS, ErrAddressRange, 0},
		{"rstore range", program(OP_RSTORE, REG1, REG2), func(cpu *Cpu) {
			cpu.Register[REG2] = math.MinInt32
		}, BAD_ACCESS, ErrAddressRange, 0},
		{"div zero", program(OP_DIV, REG1, REG2), nil, BAD_INSTRUCTION, ErrDivideByZero, 0},
		{"mod zero", program(OP_MOD, REG1, REG2), func(cpu *Cpu) {
			cpu.Register[REG1] = 5
		}, BAD_INSTRUCTION, ErrDivideByZero, 0},
		{"push full", program(OP_PUSH, REG1), func(cpu *Cpu) {
			cpu.Sp = cpu.StackLimit
		}, STACK_OVERFLOW, ErrStackFull, 0},
		{"pushall full", program(OP_PUSH_ALL), func(cpu *Cpu) {
			cpu.Sp = cpu.StackLimit + 12
		}, STACK_OVERFLOW, ErrStackFull, 0},
		{"call full", program(OP_CALL, int32(0)), func(cpu *Cpu) {
			cpu.Sp = cpu.StackLimit
		}, STACK_OVERFLOW, ErrStackFull, 0},
		{"pop empty", program(OP_POP, REG1), nil, STACK_UNDERFLOW, ErrStackEmpty, 0},
		{"ret empty", program(OP_RET), nil, STACK_UNDERFLOW, ErrStackEmpty, 0},
		{"int empty", program(OP_INT, INT_PRINT_INTEGER), nil, STACK_UNDERFLOW, ErrStackEmpty, 0},
		{"int unknown empty", program(OP_INT, 99), nil, STACK_UNDERFLOW, ErrStackEmpty, 0},
		{"int string range", program(OP_INT, INT_PRINT_STRING), func(cpu *Cpu) {
			cpu.push(64)
		}, BAD_ACCESS, ErrAddressRange, 0},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			cpu := newTestCpu(entry.code)
			if entry.setup != nil {
				entry.setup(cpu)
			}

			err := cpu.Run()
			assert.ErrorIs(err, entry.reason)
			assert.ErrorIs(err, ErrFault(0))
			assert.True(cpu.Halted)
			assert.True(cpu.Status.Faulted())
			assert.True(cpu.Status.Has(entry.flag))
			assert.Equal(Status(entry.flag), cpu.Status&Status(FAULT_MASK))
			assert.Equal(entry.pc, cpu.Pc)
			assert.Equal(entry.reason, cpu.Reason())
			assert.Contains(err.Error(), entry.flag.String())
		})
	}
}

func TestCpuInt(t *testing.T) {
	assert := assert.New(t)

	out := &bytes.Buffer{}

	cpu := newTestCpu(program(
		OP_PUSH, REG1,
		OP_INT, INT_PRINT_INTEGER,
		OP_PUSH, REG2,
		OP_INT, INT_PRINT_STRING,
		OP_HALT,
	))
	cpu.Console = &io.Terminal{Output: out}
	cpu.Register[REG1] = -42
	cpu.Register[REG2] = 24
	copy(cpu.Tape.Bytes()[24:], "hi\n\000ignored")

	assert.NoError(cpu.Run())
	assert.Equal("-42hi\n", out.String())
	assert.Equal(int32(64), cpu.Sp)
	assert.Equal(int32(8), cpu.Pc)
}

func TestCpuIntNoConsole(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(OP_PUSH, REG1, OP_INT, INT_PRINT_INTEGER, OP_HALT))

	assert.NoError(cpu.Run())
	assert.Equal(int32(4), cpu.Pc)
	assert.True(cpu.StackEmpty())
}

func TestCpuIntUnknown(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(OP_PUSH, REG1, OP_INT, 3, OP_HALT))
	cpu.Register[REG1] = 77

	assert.NoError(cpu.Run())
	assert.True(cpu.Halted)
	assert.Equal(int32(2), cpu.Pc)
	assert.False(cpu.Status.Faulted())
	assert.ErrorIs(cpu.Reason(), ErrInterruptNumber)

	top, ok := cpu.Peek()
	assert.True(ok)
	assert.Equal(int32(77), top)
}

func TestCpuIntStringRange(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(OP_INT, INT_PRINT_STRING))
	cpu.push(-1)

	err := cpu.Run()
	assert.ErrorIs(err, ErrAddressRange)
	assert.True(cpu.Status.Has(BAD_ACCESS))

	// The faulting address is left on the stack.
	assert.Equal(int32(60), cpu.Sp)
	value, ok := cpu.Peek()
	assert.True(ok)
	assert.Equal(int32(-1), value)
}

type brokenConsole struct{}

var errBroken = errors.New("broken")

func (brokenConsole) PrintInteger(value int32) error { return errBroken }
func (brokenConsole) PrintString(text []byte) error  { return errBroken }

func TestCpuIntConsoleError(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(program(OP_PUSH, REG1, OP_INT, INT_PRINT_INTEGER, OP_HALT))
	cpu.Console = brokenConsole{}

	err := cpu.Run()
	assert.ErrorIs(err, ErrConsole)
	assert.ErrorIs(err, errBroken)
	assert.False(cpu.Status.Faulted())
	assert.Equal(int32(2), cpu.Pc)
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(nil)
	cpu.Register[REG2] = -1

	text := cpu.String()
	assert.Contains(text, "    pc: 00000000\n")
	assert.Contains(text, "    sp: 00000040\n")
	assert.Contains(text, "    r2: FFFFFFFF (-1)\n")
	assert.Contains(text, "status: -\n")
}

func TestCpuDefines(t *testing.T) {
	assert := assert.New(t)

	defines := map[string]string{}
	for key, value := range newTestCpu(nil).Defines() {
		defines[key] = value
	}

	assert.Equal("1", defines["INT_PRINT_INTEGER"])
	assert.Equal("2", defines["INT_PRINT_STRING"])
	assert.Equal("4", defines["WORD_SIZE"])
	assert.Equal("4", defines["REGISTER_COUNT"])
}
