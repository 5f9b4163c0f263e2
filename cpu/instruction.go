package cpu

import (
	"errors"
	"log"
)

// execArith applies a two register arithmetic operation.
//
// The first operand is the source, the second the target. The result
// replaces the target.
func execArith(cpu *Cpu, inst *Instruction, op func(source, target int32) (int32, error)) (halt bool) {
	src, tgt, ok := cpu.operandRegisters()
	if !ok {
		return true
	}

	value, err := op(cpu.Register[src], cpu.Register[tgt])
	if err != nil {
		return cpu.fault(BAD_INSTRUCTION, err)
	}

	cpu.Register[tgt] = value

	return cpu.next(inst)
}

func execAdd(cpu *Cpu, inst *Instruction) (halt bool) {
	return execArith(cpu, inst, func(source, target int32) (int32, error) {
		return target + source, nil
	})
}

func execMul(cpu *Cpu, inst *Instruction) (halt bool) {
	return execArith(cpu, inst, func(source, target int32) (int32, error) {
		return target * source, nil
	})
}

func execDiv(cpu *Cpu, inst *Instruction) (halt bool) {
	return execArith(cpu, inst, func(source, target int32) (int32, error) {
		if source == 0 {
			return 0, ErrDivideByZero
		}
		return target / source, nil
	})
}

// execMod stores source % target into the target register.
func execMod(cpu *Cpu, inst *Instruction) (halt bool) {
	return execArith(cpu, inst, func(source, target int32) (int32, error) {
		if target == 0 {
			return 0, ErrDivideByZero
		}
		return source % target, nil
	})
}

func execNeg(cpu *Cpu, inst *Instruction) (halt bool) {
	index, ok := cpu.operandRegister(1)
	if !ok {
		return true
	}

	cpu.Register[index] = -cpu.Register[index]

	return cpu.next(inst)
}

func execCmp(cpu *Cpu, inst *Instruction) (halt bool) {
	a, b, ok := cpu.operandRegisters()
	if !ok {
		return true
	}

	cpu.Status.Compare(cpu.Register[a], cpu.Register[b])

	return cpu.next(inst)
}

// execJumpIf creates a conditional jump on a comparison flag.
func execJumpIf(flag Flag) Execute {
	return func(cpu *Cpu, inst *Instruction) (halt bool) {
		if !cpu.Status.Has(flag) {
			return cpu.next(inst)
		}

		cpu.Pc = cpu.operandWord(1)
		return false
	}
}

func execJump(cpu *Cpu, inst *Instruction) (halt bool) {
	cpu.Pc = cpu.operandWord(1)
	return false
}

func execCall(cpu *Cpu, inst *Instruction) (halt bool) {
	if cpu.StackAvailable() < WORD_SIZE {
		return cpu.fault(STACK_OVERFLOW, ErrStackFull)
	}

	address := cpu.operandWord(1)
	cpu.push(cpu.Pc + inst.Length)
	cpu.Pc = address

	return false
}

func execRet(cpu *Cpu, inst *Instruction) (halt bool) {
	address, ok := cpu.pop()
	if !ok {
		return true
	}

	cpu.Pc = address

	return false
}

func execLoad(cpu *Cpu, inst *Instruction) (halt bool) {
	index, ok := cpu.operandRegister(1)
	if !ok {
		return true
	}

	value, ok := cpu.readWord(cpu.operandWord(2))
	if !ok {
		return true
	}

	cpu.Register[index] = value

	return cpu.next(inst)
}

func execStore(cpu *Cpu, inst *Instruction) (halt bool) {
	index, ok := cpu.operandRegister(1)
	if !ok {
		return true
	}

	if !cpu.writeWord(cpu.operandWord(2), cpu.Register[index]) {
		return true
	}

	return cpu.next(inst)
}

func execConst(cpu *Cpu, inst *Instruction) (halt bool) {
	index, ok := cpu.operandRegister(1)
	if !ok {
		return true
	}

	cpu.Register[index] = cpu.operandWord(2)

	return cpu.next(inst)
}

// execRload loads the word addressed by the first register into the second.
func execRload(cpu *Cpu, inst *Instruction) (halt bool) {
	addr, data, ok := cpu.operandRegisters()
	if !ok {
		return true
	}

	value, ok := cpu.readWord(cpu.Register[addr])
	if !ok {
		return true
	}

	cpu.Register[data] = value

	return cpu.next(inst)
}

// execRstore stores the first register at the word addressed by the second.
func execRstore(cpu *Cpu, inst *Instruction) (halt bool) {
	src, addr, ok := cpu.operandRegisters()
	if !ok {
		return true
	}

	if !cpu.writeWord(cpu.Register[addr], cpu.Register[src]) {
		return true
	}

	return cpu.next(inst)
}

func execHalt(cpu *Cpu, inst *Instruction) (halt bool) {
	return cpu.stop(nil)
}

func execNop(cpu *Cpu, inst *Instruction) (halt bool) {
	return cpu.next(inst)
}

// execInt runs an interrupt on the value at the top of the stack.
//
// An unknown interrupt number halts without consuming the stack, and
// without setting a fault flag.
func execInt(cpu *Cpu, inst *Instruction) (halt bool) {
	number := cpu.operandByte(1)

	if cpu.StackEmpty() {
		return cpu.fault(STACK_UNDERFLOW, ErrStackEmpty)
	}

	var err error
	switch number {
	case INT_PRINT_INTEGER:
		value, _ := cpu.pop()
		if cpu.Console != nil {
			err = cpu.Console.PrintInteger(value)
		}
	case INT_PRINT_STRING:
		address, _ := cpu.Peek()
		if address < 0 || address >= cpu.Tape.Size() {
			return cpu.fault(BAD_ACCESS, ErrAddressRange)
		}
		cpu.pop()
		if cpu.Console != nil {
			err = cpu.Console.PrintString(cpu.Tape.CString(address))
		}
	default:
		if cpu.Verbose {
			log.Printf("cpu: int 0x%02x unknown", number)
		}
		return cpu.stop(ErrInterruptNumber)
	}

	if err != nil {
		return cpu.stop(errors.Join(ErrConsole, err))
	}

	return cpu.next(inst)
}

func execPush(cpu *Cpu, inst *Instruction) (halt bool) {
	if cpu.StackFull() {
		return cpu.fault(STACK_OVERFLOW, ErrStackFull)
	}

	index, ok := cpu.operandRegister(1)
	if !ok {
		return true
	}

	cpu.push(cpu.Register[index])

	return cpu.next(inst)
}

func execPop(cpu *Cpu, inst *Instruction) (halt bool) {
	if cpu.StackEmpty() {
		return cpu.fault(STACK_UNDERFLOW, ErrStackEmpty)
	}

	index, ok := cpu.operandRegister(1)
	if !ok {
		return true
	}

	cpu.Register[index], _ = cpu.pop()

	return cpu.next(inst)
}

// execPushAll pushes r1, r2, r3, then r4.
func execPushAll(cpu *Cpu, inst *Instruction) (halt bool) {
	if cpu.StackAvailable() < REGISTER_COUNT*WORD_SIZE {
		return cpu.fault(STACK_OVERFLOW, ErrStackFull)
	}

	for _, value := range cpu.Register {
		cpu.push(value)
	}

	return cpu.next(inst)
}

// execPopAll pops r4, r3, r2, then r1.
func execPopAll(cpu *Cpu, inst *Instruction) (halt bool) {
	if cpu.StackOccupied() < REGISTER_COUNT*WORD_SIZE {
		return cpu.fault(STACK_UNDERFLOW, ErrStackEmpty)
	}

	for n := REGISTER_COUNT - 1; n >= 0; n-- {
		cpu.Register[n], _ = cpu.pop()
	}

	return cpu.next(inst)
}

func execLsp(cpu *Cpu, inst *Instruction) (halt bool) {
	index, ok := cpu.operandRegister(1)
	if !ok {
		return true
	}

	cpu.Register[index] = cpu.Sp

	return cpu.next(inst)
}
