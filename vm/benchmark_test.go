package vm

import (
	"testing"

	"github.com/chazu/c0vm/pkg/bytecode"
)

// =============================================================================
// Benchmark Helpers
// =============================================================================

// fibProgram computes fib(n) recursively.
func fibProgram(n int8) *bytecode.Program {
	p := bytecode.NewProgram()

	var m bytecode.Builder
	m.BIPush(n)
	m.EmitU16(bytecode.OpInvokeStatic, 1)
	m.Emit(bytecode.OpReturn)
	p.AddFunction(m.Function("main", 0, 0))

	// fib(n): if (n < 2) return n; return fib(n-1) + fib(n-2)
	var f bytecode.Builder
	f.EmitByte(bytecode.OpVLoad, 0)
	f.BIPush(2)
	rec := f.EmitJump(bytecode.OpIfICmpGe)
	f.EmitByte(bytecode.OpVLoad, 0)
	f.Emit(bytecode.OpReturn)
	f.PatchJump(rec)
	f.EmitByte(bytecode.OpVLoad, 0)
	f.BIPush(1)
	f.Emit(bytecode.OpISub)
	f.EmitU16(bytecode.OpInvokeStatic, 1)
	f.EmitByte(bytecode.OpVLoad, 0)
	f.BIPush(2)
	f.Emit(bytecode.OpISub)
	f.EmitU16(bytecode.OpInvokeStatic, 1)
	f.Emit(bytecode.OpIAdd)
	f.Emit(bytecode.OpReturn)
	p.AddFunction(f.Function("fib", 1, 1))
	return p
}

func TestFibProgram(t *testing.T) {
	got, err := Execute(fibProgram(15), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got != 610 {
		t.Errorf("fib(15) = %d, want 610", got)
	}
}

// =============================================================================
// Interpreter Dispatch Overhead
// =============================================================================

// BenchmarkArithmeticLoop measures plain dispatch of a counting loop
func BenchmarkArithmeticLoop(b *testing.B) {
	// i = 0; while (i < 10000) i++; return i
	var c bytecode.Builder
	c.BIPush(0)
	c.EmitByte(bytecode.OpVStore, 0)
	top := c.Offset()
	c.EmitByte(bytecode.OpVLoad, 0)
	c.EmitU16(bytecode.OpILdc, 0)
	exit := c.EmitJump(bytecode.OpIfICmpGe)
	c.EmitByte(bytecode.OpVLoad, 0)
	c.BIPush(1)
	c.Emit(bytecode.OpIAdd)
	c.EmitByte(bytecode.OpVStore, 0)
	back := c.EmitJump(bytecode.OpGoto)
	c.PatchJumpTo(back, top)
	c.PatchJump(exit)
	c.EmitByte(bytecode.OpVLoad, 0)
	c.Emit(bytecode.OpReturn)

	p := bytecode.NewProgram()
	p.AddInt(10000)
	p.AddFunction(c.Function("main", 0, 1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Execute(p, Options{})
	}
}

// BenchmarkCalls measures INVOKESTATIC / RETURN frame churn
func BenchmarkCalls(b *testing.B) {
	p := fibProgram(20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Execute(p, Options{})
	}
}

// BenchmarkArrayAccess measures heap traffic through AADDS / IMLOAD / IMSTORE
func BenchmarkArrayAccess(b *testing.B) {
	// a = alloc_array(int, 100); for (i = 99; i >= 0; i--) a[i] = a[i] + i
	var c bytecode.Builder
	c.BIPush(100)
	c.EmitByte(bytecode.OpNewArray, 4)
	c.EmitByte(bytecode.OpVStore, 0)
	c.BIPush(99)
	c.EmitByte(bytecode.OpVStore, 1)
	top := c.Offset()
	c.EmitByte(bytecode.OpVLoad, 1)
	c.BIPush(0)
	exit := c.EmitJump(bytecode.OpIfICmpLt)
	c.EmitByte(bytecode.OpVLoad, 0)
	c.EmitByte(bytecode.OpVLoad, 1)
	c.Emit(bytecode.OpAAddS)
	c.Emit(bytecode.OpDup)
	c.Emit(bytecode.OpIMLoad)
	c.EmitByte(bytecode.OpVLoad, 1)
	c.Emit(bytecode.OpIAdd)
	c.Emit(bytecode.OpIMStore)
	c.EmitByte(bytecode.OpVLoad, 1)
	c.BIPush(1)
	c.Emit(bytecode.OpISub)
	c.EmitByte(bytecode.OpVStore, 1)
	back := c.EmitJump(bytecode.OpGoto)
	c.PatchJumpTo(back, top)
	c.PatchJump(exit)
	c.BIPush(0)
	c.Emit(bytecode.OpReturn)

	p := bytecode.NewProgram()
	p.AddFunction(c.Function("main", 0, 2))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Execute(p, Options{})
	}
}
