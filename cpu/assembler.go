// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/toyvm/memory"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
	"HERE":   "0",
}

// Assembler is a single pass macro assembler for the toyvm.
type Assembler struct {
	Verbose   bool        // If set, verbosely logs the assembler actions.
	Statement []Statement // List of generated statements.

	predefine  map[string]string   // Predefines
	Label      map[string]int32    // Map of labels to addresses.
	Equate     map[string]string   // Map of equates.
	Macro      map[string](*Macro) // Map of macros.
	expansions int                 // Count of macro expansions.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// regMap is a map of register names to register indices.
var regMap = map[string]byte{
	"r1": REG1,
	"r2": REG2,
	"r3": REG3,
	"r4": REG4,
}

var (
	reLabel     = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)
	reString    = regexp.MustCompile(`"(\\.|[^"\\])*"`)
	reCharacter = regexp.MustCompile(`'\\?[^']'`)
	reParen     = regexp.MustCompile(`\$\([^\$]*\)`)
)

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int32, err error) {
	invert := false
	if len(word) > 1 && word[0] == '~' {
		invert = true
		word = word[1:]
	}
	v64, err := strconv.ParseInt(word, 0, 64)
	if err != nil || v64 > 0xffffffff || v64 < -0x80000000 {
		err = ErrParseNumber(word)
		return
	}

	value = int32(uint32(v64))

	if invert {
		value = ^value
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value32 int32
		value32, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(int(value32))
	}
	err = nil
	for key, address := range asm.Label {
		if _, ok := pred[key]; !ok {
			pred[key] = starlark.MakeInt(int(address))
		}
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok || st_int64 > 0xffffffff || st_int64 < -0x80000000 {
		err = ErrParseExpression(expr)
		return
	}
	value = int32(uint32(st_int64))
	return
}

// stripComment removes a ';' comment, ignoring any ';' in a string or
// character literal.
func stripComment(text string) string {
	quoted := false
	for n := 0; n < len(text); n++ {
		switch text[n] {
		case '\\':
			if quoted {
				n++
			}
		case '"':
			quoted = !quoted
		case '\'':
			if !quoted {
				if loc := reCharacter.FindStringIndex(text[n:]); loc != nil && loc[0] == 0 {
					n += loc[1] - 1
				}
			}
		case ';':
			if !quoted {
				return text[:n]
			}
		}
	}

	return text
}

// splitWords splits a line on whitespace and commas.
func splitWords(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

// parseLine parses a single line as a statement.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number and address.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)
	asm.Equate["HERE"] = fmt.Sprintf("%v", asm.currentAddress())

	// Do "string" evaluations, to a list of byte values.
	line = reString.ReplaceAllStringFunc(line, func(word string) string {
		str, _err := strconv.Unquote(word)
		if _err != nil {
			err = ErrStringSyntax
			return word
		}
		var values []string
		for _, b := range []byte(str) {
			values = append(values, fmt.Sprintf("%d", b))
		}
		return " " + strings.Join(values, " ") + " "
	})
	if err != nil {
		return
	}

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "t":
				str = "\t"
			case "0":
				str = "\000"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reParen.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	if err != nil {
		return
	}

	words = splitWords(line)

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		if !reLabel.MatchString(label) {
			err = ErrInstructionInvalid
			return
		}
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		asm.Label[label] = asm.currentAddress()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		defer func() {
			asm.Equate = old_equate
		}()

		asm.expansions++
		local := fmt.Sprintf("%v_%v_", name, asm.expansions)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", local)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentAddress gets the address of the next statement.
func (asm *Assembler) currentAddress() int32 {
	if len(asm.Statement) == 0 {
		return 0
	}

	last := asm.Statement[len(asm.Statement)-1]

	return last.Address + int32(len(last.Bytes))
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]int32, 16)
	asm.Statement = asm.Statement[:0]
	asm.Macro = make(map[string](*Macro))
	asm.expansions = 0
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		line = strings.TrimSpace(stripComment(text))
		words := splitWords(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of labels.
	for n := range asm.Statement {
		st := &asm.Statement[n]

		for _, link := range st.Links {
			address, ok := asm.Label[link.Label]
			if !ok {
				lineno = st.LineNo
				line = strings.Join(st.Words, " ")
				err = ErrLabelMissing(link.Label)
				return
			}
			memory.EncodeWord(st.Bytes[link.Offset:], address)
		}
	}

	prog = &Program{
		Statements: slices.Clone(asm.Statement),
		Labels:     maps.Clone(asm.Label),
	}

	return
}

// appendRegister encodes a register operand.
func (asm *Assembler) appendRegister(code []byte, word string) (out []byte, err error) {
	index, ok := regMap[word]
	if !ok {
		err = ErrRegisterInvalid
		return
	}

	out = append(code, index)
	return
}

// appendByte encodes a byte operand.
func (asm *Assembler) appendByte(code []byte, word string) (out []byte, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if value < -0x80 || value > 0xff {
		err = ErrByteRange
		return
	}

	out = append(code, byte(value))
	return
}

// appendWord encodes a word operand, which may be a label to link later.
func (asm *Assembler) appendWord(code []byte, word string, links []Link) (out []byte, linked []Link, err error) {
	linked = links

	value, err := asm.valueOf(word)
	if err != nil {
		if !reLabel.MatchString(word) {
			return
		}
		err = nil
		linked = append(linked, Link{Offset: int32(len(code)), Label: word})
	}

	out = memory.AppendWord(code, value)
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var code []byte
	var links []Link

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if err != nil || len(code) == 0 {
			return
		}
		st := Statement{
			LineNo:  lineno,
			Address: asm.currentAddress(),
			Words:   initial_words,
			Bytes:   code,
			Links:   links,
		}
		asm.Statement = append(asm.Statement, st)
	}()

	args := words[1:]

	switch words[0] {
	case ".byte", ".string":
		if len(args) == 0 && words[0] == ".byte" {
			err = ErrOpcodeValueMissing
			return
		}
		for _, arg := range args {
			code, err = asm.appendByte(code, arg)
			if err != nil {
				return
			}
		}
		if words[0] == ".string" {
			code = append(code, 0)
		}
		return
	case ".word":
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		for _, arg := range args {
			code, links, err = asm.appendWord(code, arg, links)
			if err != nil {
				return
			}
		}
		return
	case ".zero":
		if len(args) != 1 {
			err = ErrOpcodeValueMissing
			return
		}
		var count int32
		count, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if count < 0 {
			err = ErrParseNumber(args[0])
			return
		}
		code = make([]byte, count)
		return
	}

	inst, ok := LookupName(strings.ToLower(words[0]))
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	if len(args) < len(inst.Operands) {
		err = ErrOpcodeValueMissing
		return
	}
	if len(args) > len(inst.Operands) {
		err = ErrOpcodeExtraArgs
		return
	}

	code = append(code, byte(inst.Opcode))
	for n, operand := range inst.Operands {
		switch operand {
		case OPERAND_REGISTER:
			code, err = asm.appendRegister(code, args[n])
		case OPERAND_BYTE:
			code, err = asm.appendByte(code, args[n])
		case OPERAND_WORD:
			code, links, err = asm.appendWord(code, args[n], links)
		}
		if err != nil {
			return
		}
	}

	return
}
