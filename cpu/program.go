package cpu

// Link is a reference to a label, patched as a word once all labels are known.
type Link struct {
	Offset int32  // Offset of the word within the statement's bytes.
	Label  string // Label to link to.
}

// Statement is a line of assembled code with its source location and generated bytes.
type Statement struct {
	LineNo  int
	Address int32
	Words   []string
	Bytes   []byte
	Links   []Link
}

// Program is an assembled program.
type Program struct {
	Statements []Statement
	Labels     map[string]int32
}

type Debug struct {
	*Statement
	Index int32
}

// Debug returns the statement that generated the byte at address.
func (prog *Program) Debug(address int32) (dbg Debug) {
	for n, st := range prog.Statements {
		if address >= st.Address && address < st.Address+int32(len(st.Bytes)) {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     address - st.Address,
			}
			break
		}
	}

	return
}

// Size returns the size of the program's binary image.
func (prog *Program) Size() (size int32) {
	for _, st := range prog.Statements {
		size = max(size, st.Address+int32(len(st.Bytes)))
	}

	return
}

// Binary returns the binary image of the program, to be loaded at address 0.
func (prog *Program) Binary() (bin []byte) {
	bin = make([]byte, prog.Size())
	for _, st := range prog.Statements {
		copy(bin[st.Address:], st.Bytes)
	}

	return
}
