package cpu

import (
	"fmt"
	"iter"
	"strings"

	"github.com/ezrec/toyvm/memory"
)

// Decoded is a single instruction decoded from memory.
type Decoded struct {
	Address     int32
	Instruction *Instruction // nil if the byte at Address is not an opcode.
	Operands    []int32
	Bytes       []byte
}

// Decode decodes the instruction at address in code.
//
// An unassigned opcode decodes to a single byte with a nil Instruction.
// An instruction that runs past the end of code is an error.
func Decode(code []byte, address int32) (dec Decoded, err error) {
	dec.Address = address

	if address < 0 || int(address) >= len(code) {
		err = ErrPcRange
		return
	}

	inst, ok := Lookup(Opcode(code[address]))
	if !ok {
		dec.Bytes = code[address : address+1]
		return
	}

	if int64(address)+int64(inst.Length) > int64(len(code)) {
		dec.Bytes = code[address:]
		err = ErrOperandRange
		return
	}

	dec.Instruction = inst
	dec.Bytes = code[address : address+inst.Length]

	offset := int32(1)
	for _, operand := range inst.Operands {
		var value int32
		switch operand {
		case OPERAND_WORD:
			value = memory.DecodeWord(dec.Bytes[offset:])
		default:
			value = int32(dec.Bytes[offset])
		}
		dec.Operands = append(dec.Operands, value)
		offset += operand.Size()
	}

	return
}

// Length returns the number of bytes decoded.
func (dec Decoded) Length() int32 {
	return int32(len(dec.Bytes))
}

// String returns the assembly language representation of the instruction.
func (dec Decoded) String() string {
	if dec.Instruction == nil {
		var bytes []string
		for _, b := range dec.Bytes {
			bytes = append(bytes, fmt.Sprintf("0x%02x", b))
		}
		return ".byte " + strings.Join(bytes, " ")
	}

	words := []string{dec.Instruction.Name}
	for n, operand := range dec.Instruction.Operands {
		value := dec.Operands[n]
		switch operand {
		case OPERAND_REGISTER:
			if value < REGISTER_COUNT {
				words = append(words, fmt.Sprintf("r%d", value+1))
			} else {
				words = append(words, fmt.Sprintf("0x%02x", value))
			}
		case OPERAND_BYTE:
			words = append(words, fmt.Sprintf("%d", value))
		case OPERAND_WORD:
			if dec.Instruction.Opcode == OP_CONST {
				words = append(words, fmt.Sprintf("%d", value))
			} else {
				words = append(words, fmt.Sprintf("0x%x", uint32(value)))
			}
		}
	}

	return strings.Join(words, " ")
}

// Disassemble returns an iterator that decodes code from address 0.
//
// Decoding stops at the first instruction that runs past the end of code;
// the trailing bytes are yielded as data.
func Disassemble(code []byte) iter.Seq[Decoded] {
	return func(yield func(dec Decoded) bool) {
		for address := int32(0); int(address) < len(code); {
			dec, err := Decode(code, address)
			if err != nil {
				dec.Instruction = nil
				dec.Operands = nil
			}
			if !yield(dec) {
				return
			}
			address += dec.Length()
		}
	}
}
