//go:build c0vmdebug

package vm

type valueTag uint8

const (
	tagNone valueTag = iota // zero-initialized local, readable as either
	tagInt
	tagAddress
)

// Value carries its tag in debug builds so that reading a cell with the
// wrong accessor panics with a KindMalformed error, which Step reports.
// Equality still ignores the tag.
type Value struct {
	raw uint64
	tag valueTag
}

// FromInt wraps a 32-bit integer.
func FromInt(i int32) Value { return Value{raw: uint64(uint32(i)), tag: tagInt} }

// Int reads v as a 32-bit integer.
func (v Value) Int() int32 {
	if v.tag == tagAddress {
		panic(newError(KindMalformed, "address %#x read as int", v.raw))
	}
	return int32(uint32(v.raw))
}

// FromAddress wraps an address.
func FromAddress(a Address) Value { return Value{raw: uint64(a), tag: tagAddress} }

// Address reads v as an address.
func (v Value) Address() Address {
	if v.tag == tagInt {
		panic(newError(KindMalformed, "int %d read as address", int32(uint32(v.raw))))
	}
	return Address(v.raw)
}

func (v Value) bits() uint64 { return v.raw }
