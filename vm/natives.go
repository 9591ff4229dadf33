package vm

import (
	"errors"
	"fmt"
	"sort"
)

// NativeFunc is a host function callable through INVOKENATIVE. Args arrive
// in declaration order: args[0] is the first argument the program pushed.
type NativeFunc struct {
	Name string
	Func func(m *Machine, args []Value) (Value, error)
}

// Call invokes the host function.
func (n NativeFunc) Call(m *Machine, args []Value) (Value, error) {
	if n.Func == nil {
		return FromInt(0), fmt.Errorf("native function %s is missing", n.Name)
	}
	return n.Func(m, args)
}

// Natives maps native table indices to host functions. A registry is built
// once at startup and handed to every machine that should see it.
type Natives struct {
	table map[uint16]NativeFunc
}

// NewNatives returns an empty registry.
func NewNatives() *Natives {
	return &Natives{table: make(map[uint16]NativeFunc)}
}

// Register binds fn to index, replacing any previous binding.
func (n *Natives) Register(index uint16, fn NativeFunc) {
	n.table[index] = fn
}

// Lookup returns the function bound to index.
func (n *Natives) Lookup(index uint16) (NativeFunc, bool) {
	if n == nil {
		return NativeFunc{}, false
	}
	fn, ok := n.table[index]
	return fn, ok
}

// Len returns the number of registered functions.
func (n *Natives) Len() int {
	if n == nil {
		return 0
	}
	return len(n.table)
}

// Indices returns the registered indices in ascending order.
func (n *Natives) Indices() []uint16 {
	if n == nil {
		return nil
	}
	out := make([]uint16, 0, len(n.table))
	for idx := range n.table {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// callNative runs the host function at index. A *Error returned by the host
// keeps its kind; any other error becomes a KindNative error.
func (m *Machine) callNative(index uint16, args []Value) (Value, *Error) {
	fn, ok := m.natives.Lookup(index)
	if !ok {
		return FromInt(0), newError(KindNative, "no native function registered at table index %d", index)
	}
	v, err := fn.Call(m, args)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return FromInt(0), e
		}
		return FromInt(0), newError(KindNative, "%s: %v", fn.Name, err)
	}
	return v, nil
}
