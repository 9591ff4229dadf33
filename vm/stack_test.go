package vm

import (
	"errors"
	"testing"
)

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	if !s.IsEmpty() {
		t.Fatal("new stack should be empty")
	}

	s.Push(FromInt(1))
	s.Push(FromInt(2))
	s.Push(FromInt(3))
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	for _, want := range []int32{3, 2, 1} {
		if got := s.Pop().Int(); got != want {
			t.Errorf("Pop() = %d, want %d", got, want)
		}
	}
	if !s.IsEmpty() {
		t.Error("stack should be empty after popping everything")
	}
}

func TestStackUnderflow(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(*Error)
		if !ok {
			t.Fatalf("recovered %v, want *Error", r)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("underflow error = %v, want malformed program", err)
		}
	}()
	NewStack().Pop()
}

func TestCallStack(t *testing.T) {
	var c CallStack
	if !c.IsEmpty() {
		t.Fatal("new call stack should be empty")
	}

	c.push(&frame{fn: 1, pc: 3})
	c.push(&frame{fn: 2, pc: 6})
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	f := c.pop()
	if f.fn != 2 || f.pc != 6 {
		t.Errorf("pop() = fn %d pc %d, want fn 2 pc 6", f.fn, f.pc)
	}

	c.push(&frame{fn: 4, stack: NewStack(), locals: make([]Value, 2)})
	c.release()
	if !c.IsEmpty() {
		t.Errorf("release left %d frames", c.Len())
	}
}
