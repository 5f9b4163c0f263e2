package io

import (
	"io"
	"strconv"
)

// Terminal is a Console writing to an io.Writer.
type Terminal struct {
	Output io.Writer

	Written int // Bytes written since the last Rewind.
}

var _ Console = (*Terminal)(nil)

// Rewind resets the written byte counter.
func (tc *Terminal) Rewind() {
	tc.Written = 0
}

// PrintInteger writes value in signed decimal, with no separator.
func (tc *Terminal) PrintInteger(value int32) (err error) {
	return tc.write(strconv.AppendInt(nil, int64(value), 10))
}

// PrintString writes text verbatim.
func (tc *Terminal) PrintString(text []byte) (err error) {
	return tc.write(text)
}

func (tc *Terminal) write(data []byte) (err error) {
	if tc.Output == nil {
		err = ErrNoOutput
		return
	}

	n, err := tc.Output.Write(data)
	tc.Written += n

	return
}
