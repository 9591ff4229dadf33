//go:build !c0vmdebug

package vm

// Value is an untagged 64-bit cell. Ints occupy the low 32 bits.
type Value uint64

// FromInt wraps a 32-bit integer.
func FromInt(i int32) Value { return Value(uint32(i)) }

// Int reads v as a 32-bit integer.
func (v Value) Int() int32 { return int32(uint32(v)) }

// FromAddress wraps an address.
func FromAddress(a Address) Value { return Value(a) }

// Address reads v as an address.
func (v Value) Address() Address { return Address(v) }

func (v Value) bits() uint64 { return uint64(v) }
