package natives

import (
	"fmt"
	"io"
	"strings"

	"github.com/chazu/c0vm/vm"
)

var conioNatives = []entry{
	native(IndexPrint, "print", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		s, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		_, err = io.WriteString(m.Stdout(), s)
		return void, err
	}),
	native(IndexPrintln, "println", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		s, err := cstring(m, args[0])
		if err != nil {
			return void, err
		}
		_, err = io.WriteString(m.Stdout(), s+"\n")
		return void, err
	}),
	native(IndexPrintint, "printint", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		_, err := fmt.Fprintf(m.Stdout(), "%d", args[0].Int())
		return void, err
	}),
	native(IndexPrintbool, "printbool", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		_, err := io.WriteString(m.Stdout(), boolString(args[0].Bool()))
		return void, err
	}),
	native(IndexPrintchar, "printchar", 1, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		_, err := m.Stdout().Write([]byte{byte(args[0].Int())})
		return void, err
	}),
	native(IndexFlush, "flush", 0, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		if f, ok := m.Stdout().(interface{ Flush() error }); ok {
			return void, f.Flush()
		}
		return void, nil
	}),
	native(IndexEOF, "eof", 0, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		_, err := m.Stdin().Peek(1)
		if err == io.EOF {
			return vm.FromBool(true), nil
		}
		return vm.FromBool(false), err
	}),
	native(IndexReadline, "readline", 0, func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
		line, err := m.Stdin().ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return void, requires(false, "readline: end of input")
			}
			return void, err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return newString(m, line)
	}),
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
