package natives

import (
	"strconv"
	"strings"

	"github.com/chazu/c0vm/vm"
)

var stringNatives = []entry{
	native(IndexStringLength, "string_length", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		s, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		return vm.FromInt(int32(len(s))), nil
	}),
	native(IndexStringCharat, "string_charat", 2, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		s, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		i := args[1].Int()
		if err := requires(0 <= i && int(i) < len(s), "string_charat: index %d out of bounds for length %d", i, len(s)); err != nil {
			return void, err
		}
		return vm.FromInt(int32(s[i])), nil
	}),
	native(IndexStringJoin, "string_join", 2, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		a, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		b, err := cstring(m, args[1])
		if err != nil {
			return void, err
		}
		return newString(m, a+b)
	}),
	native(IndexStringSub, "string_sub", 3, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		s, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		start, end := args[1].Int(), args[2].Int()
		if err := requires(0 <= start && start <= end && int(end) <= len(s),
			"string_sub: range [%d, %d) invalid for length %d", start, end, len(s)); err != nil {
			return void, err
		}
		return newString(m, s[start:end])
	}),
	native(IndexStringEqual, "string_equal", 2, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		a, b, err := stringPair(m, args)
		if err != nil {
			return void, err
		}
		return vm.FromBool(a == b), nil
	}),
	native(IndexStringCompare, "string_compare", 2, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		a, b, err := stringPair(m, args)
		if err != nil {
			return void, err
		}
		return vm.FromInt(int32(strings.Compare(a, b))), nil
	}),
	native(IndexStringFromint, "string_fromint", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return newString(m, strconv.Itoa(int(args[0].Int())))
	}),
	native(IndexStringFrombool, "string_frombool", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return newString(m, boolString(args[0].Bool()))
	}),
	native(IndexStringFromchar, "string_fromchar", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		c := byte(args[0].Int())
		if err := requires(c != 0, "string_fromchar: NUL character"); err != nil {
			return void, err
		}
		return newString(m, string([]byte{c}))
	}),
	native(IndexStringTolower, "string_tolower", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		s, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		return newString(m, strings.ToLower(s))
	}),
	native(IndexStringTerminated, "string_terminated", 2, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		arr, n := args[0].Address(), args[1].Int()
		chars, err := readChars(m, arr)
		if err != nil {
			return void, err
		}
		if err := requires(0 <= n && int(n) <= len(chars), "string_terminated: length %d out of bounds", n); err != nil {
			return void, err
		}
		for _, c := range chars[:n] {
			if c == 0 {
				return vm.FromBool(true), nil
			}
		}
		return vm.FromBool(false), nil
	}),
	native(IndexStringToChararray, "string_to_chararray", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		s, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		h := m.Heap()
		arr, err := h.AllocArray(int32(len(s)+1), 1)
		if err != nil {
			return void, err
		}
		for i := 0; i < len(s); i++ {
			elt, err := h.ElementAddress(arr, int32(i))
			if err != nil {
				return void, err
			}
			if err := h.StoreByte(elt, s[i]); err != nil {
				return void, err
			}
		}
		return vm.FromAddress(arr), nil
	}),
	native(IndexStringFromChararray, "string_from_chararray", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		chars, err := readChars(m, args[0].Address())
		if err != nil {
			return void, err
		}
		end := strings.IndexByte(string(chars), 0)
		if err := requires(end >= 0, "string_from_chararray: array is not NUL-terminated"); err != nil {
			return void, err
		}
		return newString(m, string(chars[:end]))
	}),
	native(IndexCharOrd, "char_ord", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return vm.FromInt(int32(byte(args[0].Int()))), nil
	}),
	native(IndexCharChr, "char_chr", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		n := args[0].Int()
		if err := requires(0 <= n && n <= 127, "char_chr: %d is not an ASCII code", n); err != nil {
			return void, err
		}
		return vm.FromInt(n), nil
	}),
}

func stringPair(m *vm.Machine, args []vm.Value) (string, string, error) {
	a, err := cstring(m, args[0])
	if err != nil {
		return "", "", err
	}
	b, err := cstring(m, args[1])
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

// readChars returns a copy of the elements of a char array.
func readChars(m *vm.Machine, arr vm.Address) ([]byte, error) {
	h := m.Heap()
	n, err := h.ArrayLength(arr)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := int32(0); i < n; i++ {
		elt, err := h.ElementAddress(arr, i)
		if err != nil {
			return nil, err
		}
		if out[i], err = h.LoadByte(elt); err != nil {
			return nil, err
		}
	}
	return out, nil
}
