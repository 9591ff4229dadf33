// Package bytecode defines C0 bytecode programs: the opcode set, the
// in-memory Program with its constant, function and native pools, and the
// file formats programs travel in.
//
// # Formats
//
// The .bc0 format produced by the C0 compiler is a big-endian byte image,
// usually written as whitespace-separated hex pairs with '#' comments:
//
//	magic       C0 C0 FF EE
//	version     u16  (format version << 1 | arch, arch 1 = 64-bit)
//	int pool    u16 count, count x i32
//	string pool u16 size, size bytes of NUL-terminated strings
//	functions   u16 count, per function: u16 args, u16 locals, u16 len, code
//	natives     u16 count, per native: u16 args, u16 table index
//
// ParseBC0 reads the text form and DecodeBC0 the raw image; a "#<name>"
// comment before a function header names that function. WriteBC0 produces
// the text form back.
//
// A .c0b snapshot is the canonical CBOR encoding of a Program. It keeps
// function names and is what Program.Hash digests (with names stripped),
// so a program has the same hash whichever format it was loaded from.
//
// # Instructions
//
// Every instruction is a one-byte opcode followed by zero, one or two
// operand bytes (see OpcodeInfo.OperandLen). Branch offsets are signed
// 16-bit values relative to the address of the branch opcode itself.
//
// Programs should pass Validate before they are executed. The vm package
// still checks pool indices as it runs and reports a bad one as a
// malformed program.
package bytecode
