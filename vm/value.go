package vm

import "fmt"

// Address identifies a byte inside a heap block. The high 32 bits select the
// block and the low 32 bits are the byte offset within it. Block 0 is never
// allocated, so the zero Address is null and differs from every valid one.
type Address uint64

// Null is the null address pushed by ACONST_NULL.
const Null Address = 0

// MakeAddress builds an address from a block handle and a byte offset.
func MakeAddress(block, offset uint32) Address {
	return Address(uint64(block)<<32 | uint64(offset))
}

// Block returns the heap block handle.
func (a Address) Block() uint32 { return uint32(a >> 32) }

// Offset returns the byte offset within the block.
func (a Address) Offset() uint32 { return uint32(a) }

// IsNull reports whether a is the null address.
func (a Address) IsNull() bool { return a == Null }

// Add returns a displaced by n bytes. No bounds are checked here: struct
// field arithmetic is unchecked, and a bad address faults when dereferenced.
func (a Address) Add(n int) Address {
	return MakeAddress(a.Block(), a.Offset()+uint32(n))
}

func (a Address) String() string {
	if a.IsNull() {
		return "NULL"
	}
	return fmt.Sprintf("0x%x+%d", a.Block(), a.Offset())
}

// ---------------------------------------------------------------------------
// Value
// ---------------------------------------------------------------------------

// Value is the fixed-width cell held by operand stacks and locals. It is an
// int32 or an Address; which one is decided by the instruction reading it,
// never by the cell. See value_release.go and value_debug.go for the two
// representations.

// NullValue is the value of ACONST_NULL.
var NullValue = FromAddress(Null)

// Equal compares the underlying bit patterns. Two ints are equal iff they
// are numerically equal; two addresses iff they denote the same byte.
func (v Value) Equal(w Value) bool {
	return v.bits() == w.bits()
}

// FromBool returns 1 for true and 0 for false, the C0 encoding of bool.
func FromBool(b bool) Value {
	if b {
		return FromInt(1)
	}
	return FromInt(0)
}

// Bool interprets v as a C0 bool.
func (v Value) Bool() bool {
	return v.Int() != 0
}

func (v Value) String() string {
	return fmt.Sprintf("%#x", v.bits())
}
