package bytecode

import (
	"encoding/binary"
	"fmt"
)

// FormatVersion is the .bc0 format version this package reads and writes.
const FormatVersion uint16 = 11

// Arch64 marks programs compiled for 64-bit addresses. It occupies the low
// bit of the version field.
const Arch64 uint16 = 1

// Function is an entry in the function pool.
type Function struct {
	Name    string `cbor:"1,keyasint,omitempty"` // Debug name, empty when unknown
	NumArgs uint16 `cbor:"2,keyasint"`           // Declared argument count
	NumVars uint16 `cbor:"3,keyasint"`           // Local variable slots, arguments included
	Code    []byte `cbor:"4,keyasint"`
}

// Native is an entry in the native pool. TableIndex selects the host
// function; NumArgs is how many values the call pops.
type Native struct {
	NumArgs    uint16 `cbor:"1,keyasint"`
	TableIndex uint16 `cbor:"2,keyasint"`
}

// Program is a fully resolved C0 bytecode program. Function 0 is the entry
// point and takes no arguments.
type Program struct {
	Version   uint16     `cbor:"1,keyasint"`
	Ints      []int32    `cbor:"2,keyasint"`
	Strings   []byte     `cbor:"3,keyasint"`
	Functions []Function `cbor:"4,keyasint"`
	Natives   []Native   `cbor:"5,keyasint"`
}

// NewProgram creates an empty program with the current version.
func NewProgram() *Program {
	return &Program{Version: FormatVersion<<1 | Arch64}
}

// AddInt adds an integer constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (p *Program) AddInt(v int32) uint16 {
	for i, x := range p.Ints {
		if x == v {
			return uint16(i)
		}
	}
	p.Ints = append(p.Ints, v)
	return uint16(len(p.Ints) - 1)
}

// AddString appends a NUL-terminated string to the string pool and returns
// its byte offset.
func (p *Program) AddString(s string) uint16 {
	off := uint16(len(p.Strings))
	p.Strings = append(p.Strings, s...)
	p.Strings = append(p.Strings, 0)
	return off
}

// StringAt returns the NUL-terminated string starting at offset in the
// string pool.
func (p *Program) StringAt(offset int) string {
	if offset < 0 || offset >= len(p.Strings) {
		return ""
	}
	end := offset
	for end < len(p.Strings) && p.Strings[end] != 0 {
		end++
	}
	return string(p.Strings[offset:end])
}

// AddFunction appends a function and returns its pool index.
func (p *Program) AddFunction(f Function) uint16 {
	p.Functions = append(p.Functions, f)
	return uint16(len(p.Functions) - 1)
}

// AddNative appends a native descriptor and returns its pool index.
func (p *Program) AddNative(numArgs, tableIndex uint16) uint16 {
	p.Natives = append(p.Natives, Native{NumArgs: numArgs, TableIndex: tableIndex})
	return uint16(len(p.Natives) - 1)
}

// Validate checks that every instruction is a known opcode with its full
// operand bytes present, that pool indices are in range, that branch targets
// land on instruction boundaries, and that local slots fit the frame.
func (p *Program) Validate() error {
	if len(p.Functions) == 0 {
		return fmt.Errorf("program has no functions")
	}
	if p.Functions[0].NumArgs != 0 {
		return fmt.Errorf("entry function takes %d arguments, want 0", p.Functions[0].NumArgs)
	}
	for fi := range p.Functions {
		if err := p.validateFunction(fi); err != nil {
			return err
		}
	}
	for i, n := range p.Natives {
		if n.NumArgs > 255 {
			return fmt.Errorf("native %d: argument count %d out of range", i, n.NumArgs)
		}
	}
	return nil
}

func (p *Program) validateFunction(fi int) error {
	f := &p.Functions[fi]
	if f.NumArgs > f.NumVars {
		return fmt.Errorf("function %d: %d arguments exceed %d locals", fi, f.NumArgs, f.NumVars)
	}

	starts := make(map[int]bool)
	var branches []int
	for pc := 0; pc < len(f.Code); {
		op := Opcode(f.Code[pc])
		if !op.Valid() {
			return fmt.Errorf("function %d: invalid opcode 0x%02X at %d", fi, byte(op), pc)
		}
		starts[pc] = true
		if pc+op.InstructionLen() > len(f.Code) {
			return fmt.Errorf("function %d: truncated %s at %d", fi, op, pc)
		}
		switch op {
		case OpILdc:
			if idx := int(binary.BigEndian.Uint16(f.Code[pc+1:])); idx >= len(p.Ints) {
				return fmt.Errorf("function %d: ildc index %d out of range at %d", fi, idx, pc)
			}
		case OpALdc:
			if off := int(binary.BigEndian.Uint16(f.Code[pc+1:])); off >= len(p.Strings) {
				return fmt.Errorf("function %d: aldc offset %d out of range at %d", fi, off, pc)
			}
		case OpInvokeStatic:
			if idx := int(binary.BigEndian.Uint16(f.Code[pc+1:])); idx >= len(p.Functions) {
				return fmt.Errorf("function %d: invokestatic index %d out of range at %d", fi, idx, pc)
			}
		case OpInvokeNative:
			if idx := int(binary.BigEndian.Uint16(f.Code[pc+1:])); idx >= len(p.Natives) {
				return fmt.Errorf("function %d: invokenative index %d out of range at %d", fi, idx, pc)
			}
		case OpVLoad, OpVStore:
			if slot := f.Code[pc+1]; uint16(slot) >= f.NumVars {
				return fmt.Errorf("function %d: local %d out of range at %d", fi, slot, pc)
			}
		}
		if op.IsBranch() {
			branches = append(branches, pc)
		}
		pc += op.InstructionLen()
	}

	for _, pc := range branches {
		target := BranchTarget(f.Code, pc)
		if !starts[target] {
			return fmt.Errorf("function %d: branch at %d targets %d, not an instruction", fi, pc, target)
		}
	}
	return nil
}

// BranchTarget decodes the signed 16-bit offset of the branch at pc and
// returns the absolute target. Offsets are relative to the branch opcode.
func BranchTarget(code []byte, pc int) int {
	return pc + int(int16(binary.BigEndian.Uint16(code[pc+1:])))
}

// Builder assembles the code of a single function.
type Builder struct {
	Code []byte
}

// Emit appends a single-byte opcode and returns its offset.
func (b *Builder) Emit(op Opcode) int {
	offset := len(b.Code)
	b.Code = append(b.Code, byte(op))
	return offset
}

// EmitByte appends an opcode with a one-byte operand.
func (b *Builder) EmitByte(op Opcode, operand byte) int {
	offset := b.Emit(op)
	b.Code = append(b.Code, operand)
	return offset
}

// EmitU16 appends an opcode with a big-endian 16-bit operand.
func (b *Builder) EmitU16(op Opcode, operand uint16) int {
	offset := b.Emit(op)
	b.Code = binary.BigEndian.AppendUint16(b.Code, operand)
	return offset
}

// BIPush emits BIPUSH with a signed byte immediate.
func (b *Builder) BIPush(v int8) int {
	return b.EmitByte(OpBIPush, byte(v))
}

// EmitJump emits a branch with a placeholder offset.
// Returns the offset of the branch opcode for later patching.
func (b *Builder) EmitJump(op Opcode) int {
	return b.EmitU16(op, 0xFFFF)
}

// PatchJump points the branch at jumpAt to the current position.
func (b *Builder) PatchJump(jumpAt int) {
	b.PatchJumpTo(jumpAt, len(b.Code))
}

// PatchJumpTo points the branch at jumpAt to target.
func (b *Builder) PatchJumpTo(jumpAt, target int) {
	binary.BigEndian.PutUint16(b.Code[jumpAt+1:], uint16(int16(target-jumpAt)))
}

// Offset returns the current offset in the code.
func (b *Builder) Offset() int {
	return len(b.Code)
}

// Function wraps the assembled code in a Function.
func (b *Builder) Function(name string, numArgs, numVars uint16) Function {
	return Function{Name: name, NumArgs: numArgs, NumVars: numVars, Code: b.Code}
}
