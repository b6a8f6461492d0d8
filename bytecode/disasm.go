package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instruction is a single decoded instruction.
type Instruction struct {
	Offset int    // Byte offset of the tag within the program
	Op     Opcode // Instruction tag
	Args   []uint32
}

// String renders the instruction the way the disassembler prints it.
func (in Instruction) String() string {
	info := GetOpcodeInfo(in.Op)
	if len(info.Operands) == 0 {
		return info.Name
	}
	parts := make([]string, 0, len(info.Operands))
	for i, k := range info.Operands {
		if i >= len(in.Args) {
			break
		}
		v := in.Args[i]
		switch k {
		case OperandAddr:
			parts = append(parts, fmt.Sprintf("%04X", v))
		case OperandReg:
			parts = append(parts, fmt.Sprintf("r%d", v))
		case OperandLock:
			parts = append(parts, fmt.Sprintf("lock%d", v))
		default:
			parts = append(parts, fmt.Sprintf("%d", v))
		}
	}
	return info.Name + " " + strings.Join(parts, " ")
}

// Decode splits a compiled program into its instructions.
// It fails on unknown tags and on operands truncated by the end of the
// program.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		info, ok := opcodeInfoTable[op]
		if !ok {
			return nil, fmt.Errorf("bytecode: unknown opcode %d at offset %d", code[offset], offset)
		}

		in := Instruction{Offset: offset, Op: op}
		pos := offset + 1
		for _, k := range info.Operands {
			w := k.Width()
			if pos+w > len(code) {
				return nil, fmt.Errorf("bytecode: truncated %s operand for %s at offset %d", k, info.Name, offset)
			}
			switch w {
			case 1:
				in.Args = append(in.Args, uint32(code[pos]))
			case 2:
				in.Args = append(in.Args, uint32(binary.LittleEndian.Uint16(code[pos:])))
			case 4:
				in.Args = append(in.Args, binary.LittleEndian.Uint32(code[pos:]))
			}
			pos += w
		}

		out = append(out, in)
		offset = pos
	}
	return out, nil
}

// Disassemble returns a human-readable listing of a compiled program,
// one instruction per line prefixed with its offset.
func Disassemble(code []byte) (string, error) {
	instrs, err := Decode(code)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, in := range instrs {
		sb.WriteString(fmt.Sprintf("%04X  %s\n", in.Offset, in))
	}
	return sb.String(), nil
}
