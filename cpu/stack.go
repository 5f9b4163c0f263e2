package cpu

// The stack lives at the top of memory, from StackLimit up to the end of
// the tape, and grows downward. Sp points at the most recently pushed word;
// Sp == MemorySize() is the empty stack.

// StackAvailable returns the number of bytes that may still be pushed.
func (cpu *Cpu) StackAvailable() int32 {
	return cpu.Sp - cpu.StackLimit
}

// StackOccupied returns the number of bytes on the stack.
func (cpu *Cpu) StackOccupied() int32 {
	return cpu.Tape.Size() - cpu.Sp
}

// StackEmpty returns true if there is no word on the stack.
func (cpu *Cpu) StackEmpty() bool {
	return cpu.StackOccupied() < WORD_SIZE
}

// StackFull returns true if no word may be pushed.
func (cpu *Cpu) StackFull() bool {
	return cpu.StackAvailable() < WORD_SIZE
}

// Peek returns the word at the top of the stack.
func (cpu *Cpu) Peek() (value int32, ok bool) {
	if cpu.StackEmpty() {
		return
	}

	return cpu.Tape.ReadWord(cpu.Sp), true
}

// push pushes a word. STACK_OVERFLOW is flagged if the stack is full.
func (cpu *Cpu) push(value int32) (ok bool) {
	if cpu.StackFull() {
		cpu.fault(STACK_OVERFLOW, ErrStackFull)
		return
	}

	cpu.Sp -= WORD_SIZE
	cpu.Tape.WriteWord(cpu.Sp, value)

	return true
}

// pop pops a word. STACK_UNDERFLOW is flagged if the stack is empty.
func (cpu *Cpu) pop() (value int32, ok bool) {
	value, ok = cpu.Peek()
	if !ok {
		cpu.fault(STACK_UNDERFLOW, ErrStackEmpty)
		return
	}

	cpu.Sp += WORD_SIZE

	return
}
