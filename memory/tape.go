// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package memory implements the byte addressable tape shared by program
// code, static data, and the downward growing stack of the toyvm.
package memory

import (
	"math"
)

const (
	WORD_SIZE = 4 // Size in bytes of a machine word.
)

// MAX_ALIGNED is the largest WORD_SIZE multiple that fits in an int32.
const MAX_ALIGNED = int32(math.MaxInt32 &^ (WORD_SIZE - 1))

// Align rounds size up to the next multiple of WORD_SIZE, clamped to
// MAX_ALIGNED.
func Align(size int32) int32 {
	if size <= 0 {
		return 0
	}

	return int32(min((int64(size)+WORD_SIZE-1)&^(WORD_SIZE-1), int64(MAX_ALIGNED)))
}

// DecodeWord decodes the little-endian word in the first WORD_SIZE bytes of b.
func DecodeWord(b []byte) int32 {
	_ = b[3]
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// EncodeWord encodes value as a little-endian word into the first
// WORD_SIZE bytes of b.
func EncodeWord(b []byte, value int32) {
	_ = b[3]
	u := uint32(value)
	b[0] = byte(u >> 0)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
}

// AppendWord appends value as a little-endian word to b.
func AppendWord(b []byte, value int32) []byte {
	var w [WORD_SIZE]byte
	EncodeWord(w[:], value)
	return append(b, w[:]...)
}

// Tape is a fixed size, zero initialized byte buffer.
//
// Accesses are not range checked beyond what the Go runtime enforces;
// callers use Contains() before touching the tape.
type Tape struct {
	data []byte
}

// NewTape creates a zeroed tape of size bytes, rounded up to a word multiple.
func NewTape(size int32) (tape *Tape) {
	tape = &Tape{
		data: make([]byte, Align(size)),
	}

	return
}

// Size returns the size of the tape in bytes.
func (tape *Tape) Size() int32 {
	return int32(len(tape.data))
}

// Bytes returns the backing store of the tape.
func (tape *Tape) Bytes() []byte {
	return tape.data
}

// Contains reports whether an access of size bytes at address fits in the tape.
func (tape *Tape) Contains(address int32, size int32) bool {
	if address < 0 || size < 0 {
		return false
	}

	return int64(address)+int64(size) <= int64(len(tape.data))
}

// Reset zeroes the tape.
func (tape *Tape) Reset() {
	clear(tape.data)
}

// Load copies program to the start of the tape, and returns the number
// of bytes copied.
func (tape *Tape) Load(program []byte) (count int) {
	count = copy(tape.data, program)
	return
}

// ReadUint8 reads the byte at address.
func (tape *Tape) ReadUint8(address int32) byte {
	return tape.data[address]
}

// WriteUint8 writes value at address.
func (tape *Tape) WriteUint8(address int32, value byte) {
	tape.data[address] = value
}

// ReadWord reads a little-endian 32-bit word at address.
func (tape *Tape) ReadWord(address int32) int32 {
	return DecodeWord(tape.data[address : address+WORD_SIZE])
}

// WriteWord writes value as a little-endian 32-bit word at address.
func (tape *Tape) WriteWord(address int32, value int32) {
	EncodeWord(tape.data[address:address+WORD_SIZE], value)
}

// CString returns the bytes from address up to, but not including, the
// next NUL byte. If no NUL is found, the run ends at the end of the tape.
func (tape *Tape) CString(address int32) (text []byte) {
	for n := address; n < int32(len(tape.data)); n++ {
		if tape.data[n] == 0 {
			break
		}
		text = append(text, tape.data[n])
	}

	return
}
