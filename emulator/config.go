package emulator

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/toyvm/cpu"
	"github.com/ezrec/toyvm/internal"
	"github.com/ezrec/toyvm/memory"
)

// Config is the memory layout of an emulator.
type Config struct {
	MemorySize int32 // Total memory, in bytes.
	StackLimit int32 // Lowest address the stack may grow down to.
}

// ConfigFor returns the layout used for a program image of programSize
// bytes: memory twice the program size, with the stack allowed to grow
// down to the end of the program.
func ConfigFor(programSize int) (config Config) {
	config.MemorySize = memory.Align(int32(2 * programSize))
	config.StackLimit = memory.Align(int32(programSize))

	return
}

// Validate checks that the layout is usable.
func (config Config) Validate() (err error) {
	switch {
	case config.MemorySize < 0, config.StackLimit < 0:
		err = ErrConfig
	case memory.Align(config.StackLimit) > memory.Align(config.MemorySize):
		err = ErrConfig
	}

	return
}

// Defines returns the assembler defines for the layout, MEMORY_SIZE and
// STACK_LIMIT, followed by the defines of the cpu.
func (config Config) Defines() iter.Seq2[string, string] {
	layout := map[string]string{
		"MEMORY_SIZE": fmt.Sprintf("%d", memory.Align(config.MemorySize)),
		"STACK_LIMIT": fmt.Sprintf("%d", memory.Align(config.StackLimit)),
	}

	return internal.IterSeq2Concat(maps.All(layout),
		(&cpu.Cpu{}).Defines(),
	)
}
