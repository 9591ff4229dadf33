package bytecode

import "fmt"

// Opcode represents a C0 bytecode instruction.
// The numeric values are fixed by the .bc0 format and follow the JVM
// numbering the C0 compiler was modeled on.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation
	// ========================================================================

	OpPop  Opcode = 0x57 // Pop top of stack
	OpDup  Opcode = 0x59 // Duplicate top of stack
	OpSwap Opcode = 0x5F // Swap top two stack elements

	// ========================================================================
	// Arithmetic and logic (32-bit two's complement)
	// ========================================================================

	OpIAdd Opcode = 0x60 // x, y -> x+y
	OpISub Opcode = 0x64 // x, y -> x-y
	OpIMul Opcode = 0x68 // x, y -> x*y
	OpIDiv Opcode = 0x6C // x, y -> x/y
	OpIRem Opcode = 0x70 // x, y -> x%y
	OpIAnd Opcode = 0x7E // x, y -> x&y
	OpIOr  Opcode = 0x80 // x, y -> x|y
	OpIXor Opcode = 0x82 // x, y -> x^y
	OpIShl Opcode = 0x78 // x, y -> x<<y
	OpIShr Opcode = 0x7A // x, y -> x>>y (arithmetic)

	// ========================================================================
	// Constants
	// ========================================================================

	OpBIPush     Opcode = 0x10 // Push sign-extended byte: BIPUSH <b:i8>
	OpILdc       Opcode = 0x13 // Push int constant: ILDC <index:u16>
	OpALdc       Opcode = 0x14 // Push string address: ALDC <offset:u16>
	OpAConstNull Opcode = 0x01 // Push null address

	// ========================================================================
	// Local variables
	// ========================================================================

	OpVLoad  Opcode = 0x15 // Push local: VLOAD <slot:u8>
	OpVStore Opcode = 0x36 // Pop into local: VSTORE <slot:u8>

	// ========================================================================
	// Control flow
	// ========================================================================

	OpNop      Opcode = 0x00 // No operation
	OpIfCmpEq  Opcode = 0x9F // Branch if v1 == v2: IF_CMPEQ <offset:i16>
	OpIfCmpNe  Opcode = 0xA0 // Branch if v1 != v2
	OpIfICmpLt Opcode = 0xA1 // Branch if x < y
	OpIfICmpGe Opcode = 0xA2 // Branch if x >= y
	OpIfICmpGt Opcode = 0xA3 // Branch if x > y
	OpIfICmpLe Opcode = 0xA4 // Branch if x <= y
	OpGoto     Opcode = 0xA7 // Unconditional branch: GOTO <offset:i16>
	OpAThrow   Opcode = 0xBF // Abort with user error message
	OpAssert   Opcode = 0xCF // Abort with assertion failure if condition is zero

	// ========================================================================
	// Function calls
	// ========================================================================

	OpInvokeStatic Opcode = 0xB8 // Call function: INVOKESTATIC <index:u16>
	OpInvokeNative Opcode = 0xB7 // Call native: INVOKENATIVE <index:u16>
	OpReturn       Opcode = 0xB0 // Return top of stack to caller

	// ========================================================================
	// Memory allocation
	// ========================================================================

	OpNew         Opcode = 0xBB // Allocate block: NEW <size:u8>
	OpNewArray    Opcode = 0xBC // Allocate array: NEWARRAY <elt_size:u8>
	OpArrayLength Opcode = 0xBE // Push element count of array

	// ========================================================================
	// Memory access
	// ========================================================================

	OpAAddF   Opcode = 0x62 // Field address: AADDF <offset:u8>
	OpAAddS   Opcode = 0x63 // Element address: a, i -> &a[i]
	OpIMLoad  Opcode = 0x2E // Load 32-bit int through address
	OpIMStore Opcode = 0x4E // Store 32-bit int through address
	OpAMLoad  Opcode = 0x2F // Load address through address
	OpAMStore Opcode = 0x4F // Store address through address
	OpCMLoad  Opcode = 0x34 // Load byte through address
	OpCMStore Opcode = 0x55 // Store low 7 bits through address
)

// OpcodeInfo provides metadata about each opcode for disassembly and validation.
type OpcodeInfo struct {
	Name       string // Mnemonic as printed by the C0 toolchain
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpPop:  {"pop", 1, 0, 0},
	OpDup:  {"dup", 1, 2, 0},
	OpSwap: {"swap", 2, 2, 0},

	// Arithmetic
	OpIAdd: {"iadd", 2, 1, 0},
	OpISub: {"isub", 2, 1, 0},
	OpIMul: {"imul", 2, 1, 0},
	OpIDiv: {"idiv", 2, 1, 0},
	OpIRem: {"irem", 2, 1, 0},
	OpIAnd: {"iand", 2, 1, 0},
	OpIOr:  {"ior", 2, 1, 0},
	OpIXor: {"ixor", 2, 1, 0},
	OpIShl: {"ishl", 2, 1, 0},
	OpIShr: {"ishr", 2, 1, 0},

	// Constants
	OpBIPush:     {"bipush", 0, 1, 1},
	OpILdc:       {"ildc", 0, 1, 2},
	OpALdc:       {"aldc", 0, 1, 2},
	OpAConstNull: {"aconst_null", 0, 1, 0},

	// Locals
	OpVLoad:  {"vload", 0, 1, 1},
	OpVStore: {"vstore", 1, 0, 1},

	// Control flow
	OpNop:      {"nop", 0, 0, 0},
	OpIfCmpEq:  {"if_cmpeq", 2, 0, 2},
	OpIfCmpNe:  {"if_cmpne", 2, 0, 2},
	OpIfICmpLt: {"if_icmplt", 2, 0, 2},
	OpIfICmpGe: {"if_icmpge", 2, 0, 2},
	OpIfICmpGt: {"if_icmpgt", 2, 0, 2},
	OpIfICmpLe: {"if_icmple", 2, 0, 2},
	OpGoto:     {"goto", 0, 0, 2},
	OpAThrow:   {"athrow", 1, 0, 0},
	OpAssert:   {"assert", 2, 0, 0},

	// Calls
	OpInvokeStatic: {"invokestatic", -1, 1, 2},
	OpInvokeNative: {"invokenative", -1, 1, 2},
	OpReturn:       {"return", 1, 0, 0},

	// Allocation
	OpNew:         {"new", 0, 1, 1},
	OpNewArray:    {"newarray", 1, 1, 1},
	OpArrayLength: {"arraylength", 1, 1, 0},

	// Memory access
	OpAAddF:   {"aaddf", 1, 1, 1},
	OpAAddS:   {"aadds", 2, 1, 0},
	OpIMLoad:  {"imload", 1, 1, 0},
	OpIMStore: {"imstore", 2, 0, 0},
	OpAMLoad:  {"amload", 1, 1, 0},
	OpAMStore: {"amstore", 2, 0, 0},
	OpCMLoad:  {"cmload", 1, 1, 0},
	OpCMStore: {"cmstore", 2, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Valid reports whether op is a recognized opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsBranch returns true for the conditional branches and GOTO.
func (op Opcode) IsBranch() bool {
	return (op >= OpIfCmpEq && op <= OpIfICmpLe) || op == OpGoto
}

// IsInvoke returns true for INVOKESTATIC and INVOKENATIVE.
func (op Opcode) IsInvoke() bool {
	return op == OpInvokeStatic || op == OpInvokeNative
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
