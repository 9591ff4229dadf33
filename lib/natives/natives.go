// Package natives provides the host side of the C0 standard libraries:
// console I/O, strings and integer utilities, bound to INVOKENATIVE table
// indices.
package natives

import (
	"fmt"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/c0vm/vm"
)

var log = commonlog.GetLogger("c0vm.natives")

// Library names accepted by Register.
const (
	Conio  = "conio"
	String = "string"
	Util   = "util"
)

// Table indices. A compiler targeting this VM writes these into the native
// pool; they are stable across releases.
const (
	IndexPrint uint16 = iota
	IndexPrintln
	IndexPrintint
	IndexPrintbool
	IndexPrintchar
	IndexFlush
	IndexEOF
	IndexReadline

	IndexStringLength
	IndexStringCharat
	IndexStringJoin
	IndexStringSub
	IndexStringEqual
	IndexStringCompare
	IndexStringFromint
	IndexStringFrombool
	IndexStringFromchar
	IndexStringTolower
	IndexStringTerminated
	IndexStringToChararray
	IndexStringFromChararray
	IndexCharOrd
	IndexCharChr

	IndexIntSize
	IndexIntMax
	IndexIntMin
	IndexAbs
	IndexMax
	IndexMin
	IndexInt2hex
)

type entry struct {
	index uint16
	fn    vm.NativeFunc
}

// native wraps fn with an arity check against the caller's native pool.
func native(index uint16, name string, arity int, fn func(m *vm.Machine, args []vm.Value) (vm.Value, error)) entry {
	return entry{index: index, fn: vm.NativeFunc{
		Name: name,
		Func: func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
			if len(args) != arity {
				return void, fmt.Errorf("expects %d arguments, got %d", arity, len(args))
			}
			return fn(m, args)
		},
	}}
}

var libraries = map[string][]entry{
	Conio:  conioNatives,
	String: stringNatives,
	Util:   utilNatives,
}

// Libraries returns the names of the available libraries.
func Libraries() []string {
	names := make([]string, 0, len(libraries))
	for name := range libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register binds every function of the named libraries into n.
func Register(n *vm.Natives, libs ...string) error {
	for _, lib := range libs {
		entries, ok := libraries[lib]
		if !ok {
			return fmt.Errorf("unknown native library %q", lib)
		}
		for _, e := range entries {
			n.Register(e.index, e.fn)
		}
		log.Debugf("registered %d natives from %s", len(entries), lib)
	}
	return nil
}

// Default returns a registry holding every library.
func Default() *vm.Natives {
	n := vm.NewNatives()
	if err := Register(n, Libraries()...); err != nil {
		panic(err)
	}
	return n
}

// New returns a registry holding the named libraries.
func New(libs ...string) (*vm.Natives, error) {
	n := vm.NewNatives()
	if err := Register(n, libs...); err != nil {
		return nil, err
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Helpers shared by the libraries
// ---------------------------------------------------------------------------

var void = vm.FromInt(0)

// requires reports a violated precondition the way C0 contracts do.
func requires(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return vm.NewError(vm.KindAssertion, format, args...)
}

// cstring reads a C0 string argument. NULL is the empty string.
func cstring(m *vm.Machine, v vm.Value) (string, error) {
	a := v.Address()
	if a.IsNull() {
		return "", nil
	}
	return m.Heap().CString(a)
}

func newString(m *vm.Machine, s string) (vm.Value, error) {
	a, err := m.Heap().NewCString(s)
	if err != nil {
		return void, err
	}
	return vm.FromAddress(a), nil
}
