package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the whole program.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; C0 bytecode v%d (%d-bit)\n", p.Version>>1, 32<<(p.Version&1)))
	sb.WriteString("\n")

	if len(p.Ints) > 0 {
		sb.WriteString("; Int pool:\n")
		for i, v := range p.Ints {
			sb.WriteString(fmt.Sprintf(";   [%3d] %d\n", i, v))
		}
		sb.WriteString("\n")
	}

	if len(p.Strings) > 0 {
		sb.WriteString("; String pool:\n")
		for off := 0; off < len(p.Strings); {
			s := p.StringAt(off)
			sb.WriteString(fmt.Sprintf(";   @%-4d %q\n", off, truncate(s)))
			off += len(s) + 1
		}
		sb.WriteString("\n")
	}

	if len(p.Natives) > 0 {
		sb.WriteString("; Natives:\n")
		for i, n := range p.Natives {
			sb.WriteString(fmt.Sprintf(";   [%3d] table=%d args=%d\n", i, n.TableIndex, n.NumArgs))
		}
		sb.WriteString("\n")
	}

	for i := range p.Functions {
		sb.WriteString(p.DisassembleFunction(i))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleFunction returns the listing of a single function.
func (p *Program) DisassembleFunction(index int) string {
	var sb strings.Builder
	f := &p.Functions[index]

	name := f.Name
	if name == "" {
		name = fmt.Sprintf("fn%d", index)
	}
	sb.WriteString(fmt.Sprintf("; === %s (#%d) args=%d locals=%d ===\n", name, index, f.NumArgs, f.NumVars))

	for offset := 0; offset < len(f.Code); {
		line, n := p.disassembleInstruction(f.Code, offset)
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		offset += n
	}
	return sb.String()
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (p *Program) disassembleInstruction(code []byte, offset int) (string, int) {
	op := Opcode(code[offset])
	info := GetOpcodeInfo(op)
	n := op.InstructionLen()
	if offset+n > len(code) {
		return fmt.Sprintf("%-14s <truncated>", info.Name), len(code) - offset
	}

	switch {
	case op.IsBranch():
		return fmt.Sprintf("%-14s %+d -> %04X", info.Name, int16(binary.BigEndian.Uint16(code[offset+1:])), BranchTarget(code, offset)), n

	case op == OpBIPush:
		return fmt.Sprintf("%-14s %d", info.Name, int8(code[offset+1])), n

	case op == OpILdc:
		idx := binary.BigEndian.Uint16(code[offset+1:])
		if int(idx) < len(p.Ints) {
			return fmt.Sprintf("%-14s #%d ; %d", info.Name, idx, p.Ints[idx]), n
		}
		return fmt.Sprintf("%-14s #%d", info.Name, idx), n

	case op == OpALdc:
		off := binary.BigEndian.Uint16(code[offset+1:])
		return fmt.Sprintf("%-14s @%d ; %q", info.Name, off, truncate(p.StringAt(int(off)))), n

	case op == OpInvokeStatic:
		idx := binary.BigEndian.Uint16(code[offset+1:])
		if int(idx) < len(p.Functions) && p.Functions[idx].Name != "" {
			return fmt.Sprintf("%-14s #%d ; %s", info.Name, idx, p.Functions[idx].Name), n
		}
		return fmt.Sprintf("%-14s #%d", info.Name, idx), n

	case op == OpInvokeNative:
		idx := binary.BigEndian.Uint16(code[offset+1:])
		if int(idx) < len(p.Natives) {
			return fmt.Sprintf("%-14s #%d ; table=%d", info.Name, idx, p.Natives[idx].TableIndex), n
		}
		return fmt.Sprintf("%-14s #%d", info.Name, idx), n

	case info.OperandLen == 1:
		return fmt.Sprintf("%-14s %d", info.Name, code[offset+1]), n
	}

	return info.Name, n
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
