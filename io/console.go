package io

// Console is the output device driven by the interrupt instruction.
type Console interface {
	// PrintInteger prints a signed decimal integer.
	PrintInteger(value int32) error
	// PrintString prints a run of bytes verbatim.
	PrintString(text []byte) error
}
