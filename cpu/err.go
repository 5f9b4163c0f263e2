package cpu

import (
	"errors"
	"strings"

	"github.com/ezrec/toyvm/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrPcRange         = errors.New(f("program counter out of range"))
	ErrOperandRange    = errors.New(f("instruction runs past end of memory"))
	ErrAddressRange    = errors.New(f("address out of range"))
	ErrOpcodeUnknown   = errors.New(f("unknown opcode"))
	ErrRegisterIndex   = errors.New(f("invalid register index"))
	ErrStackFull       = errors.New(f("stack full"))
	ErrStackEmpty      = errors.New(f("stack empty"))
	ErrDivideByZero    = errors.New(f("divide by zero"))
	ErrInterruptNumber = errors.New(f("unknown interrupt"))
	ErrConsole         = errors.New(f("console"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("value missing"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrByteRange          = errors.New(f("byte value out of range"))
	ErrStringSyntax       = errors.New(f("string syntax"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
)

// ErrFault reports the status register of a CPU halted by a fault.
type ErrFault Status

func (ef ErrFault) Error() string {
	var names []string
	for _, flag := range FAULT_FLAGS {
		if Status(ef).Has(flag) {
			names = append(names, flag.String())
		}
	}
	return f("fault %v", strings.Join(names, "|"))
}

func (ef ErrFault) Is(err error) (ok bool) {
	_, ok = err.(ErrFault)
	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}
