// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Command toyvm assembles, lists, and runs toyvm programs.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"strings"

	"github.com/retroenv/retrogolib/buildinfo"

	"github.com/ezrec/toyvm/cpu"
	"github.com/ezrec/toyvm/emulator"
	"github.com/ezrec/toyvm/translate"
)

var (
	version = "0.1.0"
	commit  = ""
	date    = ""
)

// MAX_PROGRAM_SIZE keeps the derived memory size within an int32.
const MAX_PROGRAM_SIZE = 1 << 29

type options struct {
	verbose    bool
	assembly   bool
	output     string
	listing    bool
	memorySize int
	stackLimit int
	version    bool

	input string
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes the command, returning the process exit code.
func run(args []string, stdout io.Writer, stderr io.Writer) (code int) {
	var opts options

	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.BoolVar(&opts.verbose, "v", false, "Verbose mode")
	flags.BoolVar(&opts.assembly, "a", false, "FILE is assembly source")
	flags.StringVar(&opts.output, "o", "", "Write the program binary to this file, do not execute")
	flags.BoolVar(&opts.listing, "l", false, "Print a disassembly listing, do not execute")
	flags.IntVar(&opts.memorySize, "m", 0, "Memory size, in bytes (default 2 × program size)")
	flags.IntVar(&opts.stackLimit, "s", -1, "Stack limit address (default program size)")
	flags.BoolVar(&opts.version, "version", false, "Print the version and exit")

	usage := func() {
		translate.Fprintf(stdout, "Usage: toyvm [options] FILE.brick\n")
	}
	flags.Usage = func() {
		usage()
		flags.PrintDefaults()
	}

	err := flags.Parse(args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "toyvm %s\n", buildinfo.Version(version, commit, date))
		return 0
	}

	if flags.NArg() != 1 {
		usage()
		return 0
	}
	opts.input = flags.Arg(0)

	log.SetOutput(stderr)

	err = execute(&opts, stdout)
	if err != nil {
		translate.Fprintf(stderr, "ERROR: %v: %v\n", opts.input, err)
		return 1
	}

	return 0
}

// layout returns the memory layout for a program of programSize bytes,
// with any -m and -s overrides applied.
func (opts *options) layout(programSize int) (config emulator.Config) {
	config = emulator.ConfigFor(programSize)
	if opts.memorySize > 0 {
		config.MemorySize = int32(min(opts.memorySize, 2*MAX_PROGRAM_SIZE))
	}
	if opts.stackLimit >= 0 {
		config.StackLimit = int32(min(opts.stackLimit, 2*MAX_PROGRAM_SIZE))
	}

	return
}

// assemble parses source, with defines predefined as equates.
func assemble(source []byte, verbose bool, defines iter.Seq2[string, string]) (prog *cpu.Program, err error) {
	asm := &cpu.Assembler{Verbose: verbose}
	for key, value := range defines {
		asm.Predefine(key, value)
	}

	prog, err = asm.Parse(bytes.NewReader(source))

	return
}

// execute loads, then assembles, lists, or runs the input file.
func execute(opts *options, stdout io.Writer) (err error) {
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return
	}

	var prog *cpu.Program
	source := data
	sizing := opts.layout(0)
	if opts.assembly {
		// The first pass sizes the program, and so the memory layout.
		prog, err = assemble(source, opts.verbose, sizing.Defines())
		if err != nil {
			return
		}
		data = prog.Binary()
	}

	if len(data) > MAX_PROGRAM_SIZE {
		err = emulator.ErrProgramSize
		return
	}

	emu, err := emulator.NewEmulator(opts.layout(len(data)))
	if err != nil {
		return
	}
	emu.Verbose = opts.verbose
	emu.Terminal.Output = stdout

	if prog != nil && emu.Config() != sizing {
		prog, err = assemble(source, opts.verbose, emu.Defines())
		if err != nil {
			return
		}
		data = prog.Binary()
	}

	if len(opts.output) != 0 {
		err = os.WriteFile(opts.output, data, 0o644)
		return
	}

	if prog != nil {
		err = emu.LoadProgram(prog)
	} else {
		err = emu.Load(bytes.NewReader(data))
	}
	if err != nil {
		return
	}

	if opts.listing {
		err = listing(stdout, data, emu.Program)
		return
	}

	err = emu.Run()
	if err != nil && opts.verbose {
		log.Printf("toyvm: %v", err)
	}

	// Faults are reported as status flags, not as a failed exit.
	if err != nil && !errors.Is(err, cpu.ErrConsole) {
		err = nil
	}
	if err != nil {
		return
	}

	err = emu.Report(stdout)

	return
}

// listing writes a disassembly of code, annotated with source lines when
// the program has them.
func listing(w io.Writer, code []byte, prog *cpu.Program) (err error) {
	for dec := range cpu.Disassemble(code) {
		var hex []string
		for _, b := range dec.Bytes {
			hex = append(hex, fmt.Sprintf("%02x", b))
		}

		line := fmt.Sprintf("%08x  %-17s  %v", uint32(dec.Address), strings.Join(hex, " "), dec)
		if dbg := prog.Debug(dec.Address); dbg.Statement != nil {
			line = fmt.Sprintf("%-52s ; %d: %v", line, dbg.LineNo, strings.Join(dbg.Words, " "))
		}

		_, err = fmt.Fprintln(w, strings.TrimRight(line, " "))
		if err != nil {
			return
		}
	}

	return
}
