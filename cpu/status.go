package cpu

import (
	"fmt"
	"strings"

	"github.com/ezrec/toyvm/translate"
)

// Flag is a single bit of the CPU status register.
type Flag uint8

const (
	BAD_INSTRUCTION        = Flag(1 << 0) // Opcode has no instruction.
	STACK_UNDERFLOW        = Flag(1 << 1) // Pop from an empty stack.
	STACK_OVERFLOW         = Flag(1 << 2) // Push past the stack fence.
	INVALID_REGISTER_INDEX = Flag(1 << 3) // Register operand not in r1-r4.
	BAD_ACCESS             = Flag(1 << 4) // Out of range memory access.
	COMPARISON_BELOW       = Flag(1 << 5) // Last CMP was a < b.
	COMPARISON_EQUAL       = Flag(1 << 6) // Last CMP was a == b.
	COMPARISON_ABOVE       = Flag(1 << 7) // Last CMP was a > b.

	FAULT_MASK      = BAD_INSTRUCTION | STACK_UNDERFLOW | STACK_OVERFLOW | INVALID_REGISTER_INDEX | BAD_ACCESS
	COMPARISON_MASK = COMPARISON_BELOW | COMPARISON_EQUAL | COMPARISON_ABOVE
)

// FAULT_FLAGS lists the sticky fault flags.
var FAULT_FLAGS = []Flag{
	BAD_INSTRUCTION,
	STACK_UNDERFLOW,
	STACK_OVERFLOW,
	INVALID_REGISTER_INDEX,
	BAD_ACCESS,
}

// REPORT_FLAGS is the order of flags in a status report.
var REPORT_FLAGS = []Flag{
	BAD_INSTRUCTION,
	STACK_UNDERFLOW,
	STACK_OVERFLOW,
	INVALID_REGISTER_INDEX,
	BAD_ACCESS,
	COMPARISON_ABOVE,
	COMPARISON_EQUAL,
	COMPARISON_BELOW,
}

var _flag_names = map[Flag]string{
	BAD_INSTRUCTION:        "BAD_INSTRUCTION",
	STACK_UNDERFLOW:        "STACK_UNDERFLOW",
	STACK_OVERFLOW:         "STACK_OVERFLOW",
	INVALID_REGISTER_INDEX: "INVALID_REGISTER_INDEX",
	BAD_ACCESS:             "BAD_ACCESS",
	COMPARISON_BELOW:       "COMPARISON_BELOW",
	COMPARISON_EQUAL:       "COMPARISON_EQUAL",
	COMPARISON_ABOVE:       "COMPARISON_ABOVE",
}

func (flag Flag) String() string {
	name, ok := _flag_names[flag]
	if !ok {
		return fmt.Sprintf("Flag(0x%02x)", uint8(flag))
	}
	return name
}

// Status is the CPU status register.
//
// Fault flags are sticky: the engine only clears them on Reset(). At most
// one of the comparison flags is set at any time.
type Status uint8

// Has returns true if all of the bits of flag are set.
func (st Status) Has(flag Flag) bool {
	return Flag(st)&flag == flag
}

// Set sets flag.
func (st *Status) Set(flag Flag) {
	*st |= Status(flag)
}

// Clear clears flag.
func (st *Status) Clear(flag Flag) {
	*st &^= Status(flag)
}

// Faulted returns true if any fault flag is set.
func (st Status) Faulted() bool {
	return Flag(st)&FAULT_MASK != 0
}

// Compare replaces the comparison flags with the signed comparison of a to b.
func (st *Status) Compare(a, b int32) {
	st.Clear(COMPARISON_MASK)
	switch {
	case a < b:
		st.Set(COMPARISON_BELOW)
	case a > b:
		st.Set(COMPARISON_ABOVE)
	default:
		st.Set(COMPARISON_EQUAL)
	}
}

// Reset clears all flags.
func (st *Status) Reset() {
	*st = 0
}

// Report renders every flag, one per line, as 'NAME : 0|1'.
func (st Status) Report() string {
	var text strings.Builder
	for _, flag := range REPORT_FLAGS {
		value := 0
		if st.Has(flag) {
			value = 1
		}
		translate.Fprintf(&text, "%-22s: %d\n", flag.String(), value)
	}

	return text.String()
}

// String returns the set flags joined with '|', or '-' when none are set.
func (st Status) String() string {
	var names []string
	for _, flag := range REPORT_FLAGS {
		if st.Has(flag) {
			names = append(names, flag.String())
		}
	}
	if len(names) == 0 {
		return "-"
	}

	return strings.Join(names, "|")
}
