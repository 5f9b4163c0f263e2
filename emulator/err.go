package emulator

import (
	"errors"

	"github.com/ezrec/toyvm/translate"
)

var f = translate.From

var (
	ErrLoad        = errors.New(f("program load failed"))
	ErrProgramSize = errors.New(f("program larger than memory"))
	ErrConfig      = errors.New(f("invalid memory configuration"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pc     int32
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo == 0 {
		return f("pc 0x%08x %v", uint32(err.Pc), err.Err)
	}
	return f("line %d (pc 0x%08x) %v", err.LineNo, uint32(err.Pc), err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
