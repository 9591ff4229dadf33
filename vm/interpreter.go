package vm

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/c0vm/pkg/bytecode"
)

var log = commonlog.GetLogger("c0vm.vm")

// Options configures a Machine.
type Options struct {
	Natives   *Natives  // host function table; nil means no natives
	HeapLimit int64     // bytes; 0 means unlimited
	Trace     bool      // log every dispatched opcode at debug level
	Profiler  *Profiler // optional; may be shared between machines
	Stdout    io.Writer // defaults to os.Stdout
	Stdin     io.Reader // defaults to os.Stdin
}

// Machine executes one C0 program. Its state is exclusively its own, so
// separate machines may run concurrently, but a single machine must not be
// used from more than one goroutine.
type Machine struct {
	prog    *bytecode.Program
	natives *Natives
	heap    *Heap
	strings Address // base of the string pool block

	// Active frame
	S  *Stack
	fn int
	P  []byte
	pc int
	V  []Value

	calls CallStack

	steps  uint64
	done   bool
	result int32
	err    error

	trace  bool
	prof   *Profiler
	stdout io.Writer
	stdin  *bufio.Reader
}

// New prepares a machine positioned at the first instruction of function 0.
// The program should have passed Validate.
func New(prog *bytecode.Program, opts Options) *Machine {
	m := &Machine{
		prog:    prog,
		natives: opts.Natives,
		heap:    NewHeap(opts.HeapLimit),
		trace:   opts.Trace,
		prof:    opts.Profiler,
		stdout:  opts.Stdout,
	}
	if m.stdout == nil {
		m.stdout = os.Stdout
	}
	in := opts.Stdin
	if in == nil {
		in = os.Stdin
	}
	m.stdin = bufio.NewReader(in)
	m.strings = m.heap.AllocStatic(prog.Strings)

	main := &prog.Functions[0]
	m.S = NewStack()
	m.fn = 0
	m.P = main.Code
	m.pc = 0
	m.V = make([]Value, main.NumVars)
	if m.prof != nil {
		m.prof.RecordInvocation(0, main.Name)
	}
	return m
}

// Execute runs prog to completion and returns its result.
func Execute(prog *bytecode.Program, opts Options) (int32, error) {
	return New(prog, opts).Run()
}

// Run steps the machine until the outermost RETURN or a fatal error.
func (m *Machine) Run() (int32, error) {
	for {
		done, err := m.Step()
		if err != nil {
			return 0, err
		}
		if done {
			return m.result, nil
		}
	}
}

// Heap returns the machine's heap. Natives use it to read and build strings.
func (m *Machine) Heap() *Heap { return m.heap }

// Stdout is where console natives write.
func (m *Machine) Stdout() io.Writer { return m.stdout }

// Stdin is where console natives read. It is buffered once per machine so
// that end-of-file can be detected without losing input.
func (m *Machine) Stdin() *bufio.Reader { return m.stdin }

// Program returns the program being executed.
func (m *Machine) Program() *bytecode.Program { return m.prog }

// Steps returns the number of instructions dispatched so far.
func (m *Machine) Steps() uint64 { return m.steps }

// Done reports whether execution has terminated.
func (m *Machine) Done() bool { return m.done }

// Result returns the program's result once it has returned normally.
func (m *Machine) Result() int32 { return m.result }

// Depth returns the number of suspended callers.
func (m *Machine) Depth() int { return m.calls.Len() }

// Function returns the pool index of the active function.
func (m *Machine) Function() int { return m.fn }

// PC returns the program counter of the active frame.
func (m *Machine) PC() int { return m.pc }

// StackLen returns the depth of the active operand stack.
func (m *Machine) StackLen() int {
	if m.S == nil {
		return 0
	}
	return m.S.Len()
}

// Locals returns a copy of the active frame's locals.
func (m *Machine) Locals() []Value {
	return append([]Value(nil), m.V...)
}

// StringAddress returns the address of byte offset off in the string pool.
func (m *Machine) StringAddress(off int) Address {
	return m.strings.Add(off)
}

// fail records e as the terminal error, releasing every frame.
func (m *Machine) fail(e *Error, at int) error {
	e.Function = m.fn
	e.PC = at
	log.Debugf("fn %d pc %d: %s", m.fn, at, e)
	m.err = e
	m.finish()
	return e
}

// finish tears the machine down: the active frame and every suspended frame
// are released.
func (m *Machine) finish() {
	m.done = true
	if m.S != nil {
		m.S.release()
	}
	m.S = nil
	m.V = nil
	m.calls.release()
}

// Step executes exactly one instruction. It returns done once the program
// has returned from function 0 or failed; further calls repeat the outcome.
func (m *Machine) Step() (done bool, err error) {
	if m.done {
		return true, m.err
	}

	at := m.pc
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			done, err = true, m.fail(e, at)
		}
	}()

	if at < 0 || at >= len(m.P) {
		return true, m.fail(newError(KindMalformed, "pc %d outside function of %d bytes", at, len(m.P)), at)
	}

	op := bytecode.Opcode(m.P[at])
	m.steps++
	if m.prof != nil {
		m.prof.RecordOpcode(op)
	}
	if m.trace {
		log.Debugf("opcode %s (0x%02X) -- stack size: %d -- pc: %d", op, byte(op), m.S.Len(), at)
	}
	m.pc++

	var e *Error
	switch op {

	// ============ Stack Operations ============

	case bytecode.OpPop:
		m.S.Pop()

	case bytecode.OpDup:
		v := m.S.Pop()
		m.S.Push(v)
		m.S.Push(v)

	case bytecode.OpSwap:
		v1 := m.S.Pop()
		v2 := m.S.Pop()
		m.S.Push(v1)
		m.S.Push(v2)

	// ============ Return ============

	case bytecode.OpReturn:
		retval := m.S.Pop()
		if !m.S.IsEmpty() {
			return true, m.fail(newError(KindMalformed, "return with %d values left on the operand stack", m.S.Len()), at)
		}
		m.S.release()
		m.V = nil

		if m.calls.IsEmpty() {
			m.result = retval.Int()
			if m.trace {
				log.Debugf("returning %d from execute", m.result)
			}
			m.finish()
			return true, nil
		}

		f := m.calls.pop()
		m.S = f.stack
		m.fn = f.fn
		m.P = f.code
		m.pc = f.pc
		m.V = f.locals
		m.S.Push(retval)

	// ============ Arithmetic ============

	case bytecode.OpIAdd:
		y, x := m.popInt(), m.popInt()
		m.pushInt(x + y)

	case bytecode.OpISub:
		y, x := m.popInt(), m.popInt()
		m.pushInt(x - y)

	case bytecode.OpIMul:
		y, x := m.popInt(), m.popInt()
		m.pushInt(x * y)

	case bytecode.OpIDiv:
		y, x := m.popInt(), m.popInt()
		if e = checkDivision(x, y, "Division by zero"); e == nil {
			m.pushInt(x / y)
		}

	case bytecode.OpIRem:
		y, x := m.popInt(), m.popInt()
		if e = checkDivision(x, y, "Modulo by zero"); e == nil {
			m.pushInt(x % y)
		}

	case bytecode.OpIAnd:
		y, x := m.popInt(), m.popInt()
		m.pushInt(x & y)

	case bytecode.OpIOr:
		y, x := m.popInt(), m.popInt()
		m.pushInt(x | y)

	case bytecode.OpIXor:
		y, x := m.popInt(), m.popInt()
		m.pushInt(x ^ y)

	case bytecode.OpIShl:
		y, x := m.popInt(), m.popInt()
		if e = checkShift(y); e == nil {
			m.pushInt(x << uint(y))
		}

	case bytecode.OpIShr:
		y, x := m.popInt(), m.popInt()
		if e = checkShift(y); e == nil {
			m.pushInt(x >> uint(y))
		}

	// ============ Constants ============

	case bytecode.OpBIPush:
		m.pushInt(int32(int8(m.readU8())))

	case bytecode.OpILdc:
		idx := int(m.readU16())
		if idx >= len(m.prog.Ints) {
			e = newError(KindMalformed, "int constant %d out of range", idx)
			break
		}
		m.pushInt(m.prog.Ints[idx])

	case bytecode.OpALdc:
		off := int(m.readU16())
		if off >= len(m.prog.Strings) {
			e = newError(KindMalformed, "string offset %d out of range", off)
			break
		}
		m.pushAddr(m.strings.Add(off))

	case bytecode.OpAConstNull:
		m.pushAddr(Null)

	// ============ Local Variables ============

	case bytecode.OpVLoad:
		slot := int(m.readU8())
		if slot >= len(m.V) {
			e = newError(KindMalformed, "local %d out of range", slot)
			break
		}
		m.S.Push(m.V[slot])

	case bytecode.OpVStore:
		slot := int(m.readU8())
		if slot >= len(m.V) {
			e = newError(KindMalformed, "local %d out of range", slot)
			break
		}
		m.V[slot] = m.S.Pop()

	// ============ Control Flow ============

	case bytecode.OpNop:

	case bytecode.OpIfCmpEq:
		v2, v1 := m.S.Pop(), m.S.Pop()
		m.branch(at, v1.Equal(v2))

	case bytecode.OpIfCmpNe:
		v2, v1 := m.S.Pop(), m.S.Pop()
		m.branch(at, !v1.Equal(v2))

	case bytecode.OpIfICmpLt:
		y, x := m.popInt(), m.popInt()
		m.branch(at, x < y)

	case bytecode.OpIfICmpGe:
		y, x := m.popInt(), m.popInt()
		m.branch(at, x >= y)

	case bytecode.OpIfICmpGt:
		y, x := m.popInt(), m.popInt()
		m.branch(at, x > y)

	case bytecode.OpIfICmpLe:
		y, x := m.popInt(), m.popInt()
		m.branch(at, x <= y)

	case bytecode.OpGoto:
		m.branch(at, true)

	case bytecode.OpAThrow:
		msg, err := m.heap.CString(m.popAddr())
		if err != nil {
			e = err.(*Error)
			break
		}
		e = &Error{Kind: KindUser, Msg: msg}

	case bytecode.OpAssert:
		a := m.popAddr()
		cond := m.popInt()
		if cond == 0 {
			msg, err := m.heap.CString(a)
			if err != nil {
				e = err.(*Error)
				break
			}
			e = &Error{Kind: KindAssertion, Msg: msg}
		}

	// ============ Function Calls ============

	case bytecode.OpInvokeStatic:
		idx := int(m.readU16())
		if idx >= len(m.prog.Functions) {
			e = newError(KindMalformed, "function %d out of range", idx)
			break
		}
		callee := &m.prog.Functions[idx]

		m.calls.push(&frame{stack: m.S, fn: m.fn, code: m.P, pc: m.pc, locals: m.V})

		V := make([]Value, callee.NumVars)
		for i := int(callee.NumArgs) - 1; i >= 0; i-- {
			V[i] = m.S.Pop()
		}
		m.S = NewStack()
		m.fn = idx
		m.P = callee.Code
		m.pc = 0
		m.V = V
		if m.prof != nil {
			m.prof.RecordInvocation(idx, callee.Name)
		}
		if m.trace {
			log.Debugf("invoke fn %d (%s) depth %d", idx, callee.Name, m.calls.Len())
		}

	case bytecode.OpInvokeNative:
		idx := int(m.readU16())
		if idx >= len(m.prog.Natives) {
			e = newError(KindMalformed, "native %d out of range", idx)
			break
		}
		desc := m.prog.Natives[idx]

		args := make([]Value, desc.NumArgs)
		for i := int(desc.NumArgs) - 1; i >= 0; i-- {
			args[i] = m.S.Pop()
		}
		if m.trace {
			log.Debugf("invoke native %d (table %d) with %d args", idx, desc.TableIndex, desc.NumArgs)
		}
		var v Value
		if v, e = m.callNative(desc.TableIndex, args); e == nil {
			m.S.Push(v)
		}

	// ============ Memory Allocation ============

	case bytecode.OpNew:
		size := int(m.readU8())
		a, err := m.heap.Alloc(size)
		if err != nil {
			e = err.(*Error)
			break
		}
		m.pushAddr(a)

	case bytecode.OpNewArray:
		eltSize := int32(m.readU8())
		count := m.popInt()
		a, err := m.heap.AllocArray(count, eltSize)
		if err != nil {
			e = err.(*Error)
			break
		}
		m.pushAddr(a)

	case bytecode.OpArrayLength:
		n, err := m.heap.ArrayLength(m.popAddr())
		if err != nil {
			e = err.(*Error)
			break
		}
		m.pushInt(n)

	// ============ Memory Access ============

	case bytecode.OpAAddF:
		off := int(m.readU8())
		a := m.popAddr()
		if a.IsNull() {
			e = newError(KindMemory, "field access through NULL")
			break
		}
		m.pushAddr(a.Add(off))

	case bytecode.OpAAddS:
		i := m.popInt()
		a, err := m.heap.ElementAddress(m.popAddr(), i)
		if err != nil {
			e = err.(*Error)
			break
		}
		m.pushAddr(a)

	case bytecode.OpIMLoad:
		x, err := m.heap.LoadInt(m.popAddr())
		if err != nil {
			e = err.(*Error)
			break
		}
		m.pushInt(x)

	case bytecode.OpIMStore:
		x := m.popInt()
		if err := m.heap.StoreInt(m.popAddr(), x); err != nil {
			e = err.(*Error)
		}

	case bytecode.OpAMLoad:
		b, err := m.heap.LoadAddress(m.popAddr())
		if err != nil {
			e = err.(*Error)
			break
		}
		m.pushAddr(b)

	case bytecode.OpAMStore:
		b := m.popAddr()
		if err := m.heap.StoreAddress(m.popAddr(), b); err != nil {
			e = err.(*Error)
		}

	case bytecode.OpCMLoad:
		c, err := m.heap.LoadByte(m.popAddr())
		if err != nil {
			e = err.(*Error)
			break
		}
		m.pushInt(int32(int8(c)))

	case bytecode.OpCMStore:
		x := m.popInt()
		if err := m.heap.StoreByte(m.popAddr(), byte(x&0x7F)); err != nil {
			e = err.(*Error)
		}

	default:
		e = newError(KindInvalidOpcode, "invalid opcode: 0x%02x", byte(op))
	}

	if e != nil {
		return true, m.fail(e, at)
	}
	return false, nil
}

func checkDivision(x, y int32, zeroMsg string) *Error {
	if y == 0 {
		return newError(KindArithmetic, "%s", zeroMsg)
	}
	if x == math.MinInt32 && y == -1 {
		return newError(KindArithmetic, "Overflow")
	}
	return nil
}

func checkShift(y int32) *Error {
	if y < 0 || y > 31 {
		return newError(KindArithmetic, "Shift amount %d outside [0, 31]", y)
	}
	return nil
}

// branch reads the 16-bit offset following the opcode at `at`. When taken,
// the target is relative to the opcode byte itself; otherwise execution
// continues after the 3-byte instruction.
func (m *Machine) branch(at int, taken bool) {
	off := int16(m.readU16())
	if taken {
		m.pc = at + int(off)
	}
}

func (m *Machine) pushInt(x int32) { m.S.Push(FromInt(x)) }

func (m *Machine) popInt() int32 { return m.S.Pop().Int() }

func (m *Machine) pushAddr(a Address) { m.S.Push(FromAddress(a)) }

func (m *Machine) popAddr() Address { return m.S.Pop().Address() }

// Bytecode reading helpers

func (m *Machine) readU8() byte {
	if m.pc >= len(m.P) {
		panic(newError(KindMalformed, "truncated instruction"))
	}
	b := m.P[m.pc]
	m.pc++
	return b
}

func (m *Machine) readU16() uint16 {
	if m.pc+2 > len(m.P) {
		panic(newError(KindMalformed, "truncated instruction"))
	}
	v := binary.BigEndian.Uint16(m.P[m.pc:])
	m.pc += 2
	return v
}
