package natives

import (
	"fmt"
	"math"

	"github.com/chazu/c0vm/vm"
)

var utilNatives = []entry{
	native(IndexIntSize, "int_size", 0, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return vm.FromInt(32), nil
	}),
	native(IndexIntMax, "int_max", 0, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return vm.FromInt(math.MaxInt32), nil
	}),
	native(IndexIntMin, "int_min", 0, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return vm.FromInt(math.MinInt32), nil
	}),
	native(IndexAbs, "abs", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		x := args[0].Int()
		if err := requires(x > math.MinInt32, "abs: int_min has no absolute value"); err != nil {
			return void, err
		}
		if x < 0 {
			x = -x
		}
		return vm.FromInt(x), nil
	}),
	native(IndexMax, "max", 2, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return vm.FromInt(max(args[0].Int(), args[1].Int())), nil
	}),
	native(IndexMin, "min", 2, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return vm.FromInt(min(args[0].Int(), args[1].Int())), nil
	}),
	// 8 uppercase hex digits, no prefix
	native(IndexInt2hex, "int2hex", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		return newString(m, fmt.Sprintf("%08X", uint32(args[0].Int())))
	}),
}
