// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"
	"io"
	"iter"
	"log"
	"os"

	"github.com/ezrec/toyvm/cpu"
	vmio "github.com/ezrec/toyvm/io"
)

// Emulator state. CPU + memory + console.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently loaded program listing.

	Terminal vmio.Terminal // Console for interrupt output.

	config Config
}

// NewEmulator creates a new emulator with the given memory layout.
//
// Console output goes to os.Stdout until Terminal.Output is replaced.
func NewEmulator(config Config) (emu *Emulator, err error) {
	err = config.Validate()
	if err != nil {
		return
	}

	emu = &Emulator{
		Cpu:     cpu.NewCpu(config.MemorySize, config.StackLimit),
		Program: &cpu.Program{},
		config:  config,
	}

	emu.Terminal.Output = os.Stdout
	emu.Cpu.Console = &emu.Terminal

	return
}

// Config returns the memory layout of the emulator.
func (emu *Emulator) Config() Config {
	return emu.config
}

// Defines returns an iterator over all of the defines for the emulator's
// memory layout and cpu.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return emu.config.Defines()
}

// Load a raw program image from a reader, and reset the emulator.
func (emu *Emulator) Load(input io.Reader) (err error) {
	data, err := io.ReadAll(input)
	if err != nil {
		err = errors.Join(ErrLoad, err)
		return
	}

	err = emu.load(data)
	if err != nil {
		return
	}

	emu.Program = &cpu.Program{}

	return
}

// LoadProgram loads an assembled program, and resets the emulator.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	err = emu.load(prog.Binary())
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

func (emu *Emulator) load(data []byte) (err error) {
	if len(data) > int(emu.Cpu.MemorySize()) {
		err = errors.Join(ErrLoad, ErrProgramSize)
		return
	}

	emu.Cpu.Tape.Reset()
	emu.Cpu.Tape.Load(data)

	if emu.Verbose {
		log.Printf("emulator: loaded %d bytes", len(data))
	}

	emu.Reset()

	return
}

// Reset the processor state, leaving memory intact.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Reset()
	emu.Terminal.Rewind()
}

// LineNo returns the current line number for the executing instruction,
// or 0 if the program counter is not within the program listing.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Statement == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single instruction of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Cpu.Pc
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	done, err = emu.Cpu.Tick()
	if done && emu.Verbose {
		log.Printf("emulator: halted after %d ticks\n%v", emu.Cpu.Ticks, emu.Cpu)
	}

	return
}

// Run the emulator until the processor halts.
func (emu *Emulator) Run() (err error) {
	for {
		var done bool
		done, err = emu.Tick()
		if done {
			return
		}
	}
}

// Report writes the status flag report to w if the processor has faulted.
// Nothing is written after a clean halt.
func (emu *Emulator) Report(w io.Writer) (err error) {
	if !emu.Cpu.Status.Faulted() {
		return
	}

	_, err = io.WriteString(w, emu.Cpu.Status.Report())

	return
}
