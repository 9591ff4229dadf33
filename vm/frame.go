package vm

// frame is the saved state of a suspended caller.
type frame struct {
	stack  *Stack
	fn     int
	code   []byte
	pc     int
	locals []Value
}

// CallStack holds the suspended frames. Records are owned by the stack
// while pushed and handed back to the machine on return.
type CallStack struct {
	frames []*frame
}

func (c *CallStack) push(f *frame) {
	c.frames = append(c.frames, f)
}

func (c *CallStack) pop() *frame {
	n := len(c.frames)
	if n == 0 {
		panic(newError(KindMalformed, "call stack underflow"))
	}
	f := c.frames[n-1]
	c.frames[n-1] = nil
	c.frames = c.frames[:n-1]
	return f
}

// IsEmpty reports whether no caller is suspended.
func (c *CallStack) IsEmpty() bool {
	return len(c.frames) == 0
}

// Len returns the number of suspended frames.
func (c *CallStack) Len() int {
	return len(c.frames)
}

// release frees every suspended frame, innermost first.
func (c *CallStack) release() {
	for i := len(c.frames) - 1; i >= 0; i-- {
		f := c.frames[i]
		f.stack.release()
		f.locals = nil
		c.frames[i] = nil
	}
	c.frames = nil
}
