// Package vm implements the C0 virtual machine.
//
// This package contains:
//   - Value cells holding an int32 or a heap Address
//   - The block heap behind NEW and NEWARRAY
//   - Operand stacks and the call stack of suspended frames
//   - The bytecode interpreter (Machine)
//   - The native function registry consulted by INVOKENATIVE
//   - An optional opcode and call profiler
//
// Build with -tags c0vmdebug to tag every Value with its kind; reading an
// int cell as an address, or the reverse, then panics.
package vm
