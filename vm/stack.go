package vm

// Stack is the operand stack of one activation.
type Stack struct {
	items []Value
}

// NewStack returns an empty operand stack.
func NewStack() *Stack {
	return &Stack{items: make([]Value, 0, 16)}
}

// Push pushes v.
func (s *Stack) Push(v Value) {
	s.items = append(s.items, v)
}

// Pop removes and returns the top value. Popping an empty stack means the
// program is malformed; the machine turns the panic into a KindMalformed error.
func (s *Stack) Pop() Value {
	n := len(s.items)
	if n == 0 {
		panic(newError(KindMalformed, "operand stack underflow"))
	}
	v := s.items[n-1]
	s.items = s.items[:n-1]
	return v
}

// IsEmpty reports whether the stack holds no values.
func (s *Stack) IsEmpty() bool {
	return len(s.items) == 0
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int {
	return len(s.items)
}

// release drops the backing storage.
func (s *Stack) release() {
	s.items = nil
}
