package vm

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/chazu/c0vm/pkg/bytecode"
)

// Profiler counts function invocations and dispatched opcodes. One profiler
// may be shared by several machines running the same program concurrently.

// FunctionProfile holds profiling data for a single function.
type FunctionProfile struct {
	Index           int
	Name            string
	InvocationCount uint64 // Atomic counter for invocations

	hot atomic.Bool
}

// IsHot reports whether InvocationCount has reached the threshold.
func (f *FunctionProfile) IsHot() bool {
	return f.hot.Load()
}

// Profiler manages profiling for every function of a program.
type Profiler struct {
	functions sync.Map // int -> *FunctionProfile
	opcodes   [256]uint64

	// HotThreshold is the invocation count at which a function is hot.
	HotThreshold uint64 // Default: 1000

	// Called once per function, when it becomes hot
	OnHot func(profile *FunctionProfile)

	hotCount uint64
}

// NewProfiler creates a new profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{HotThreshold: 1000}
}

// RecordInvocation increments the invocation count for a function.
// Returns true if this invocation caused the function to become hot.
func (p *Profiler) RecordInvocation(index int, name string) bool {
	val, _ := p.functions.LoadOrStore(index, &FunctionProfile{Index: index, Name: name})
	profile := val.(*FunctionProfile)

	count := atomic.AddUint64(&profile.InvocationCount, 1)

	// Only the invocation that flips the flag reports the transition.
	if count >= p.HotThreshold && profile.hot.CompareAndSwap(false, true) {
		atomic.AddUint64(&p.hotCount, 1)

		if p.OnHot != nil {
			p.OnHot(profile)
		}
		return true
	}
	return false
}

// RecordOpcode counts one dispatch of op.
func (p *Profiler) RecordOpcode(op bytecode.Opcode) {
	atomic.AddUint64(&p.opcodes[op], 1)
}

// OpcodeCount returns how many times op has been dispatched.
func (p *Profiler) OpcodeCount(op bytecode.Opcode) uint64 {
	return atomic.LoadUint64(&p.opcodes[op])
}

// GetFunctionProfile returns the profile for a function, or nil if it was
// never invoked.
func (p *Profiler) GetFunctionProfile(index int) *FunctionProfile {
	if val, ok := p.functions.Load(index); ok {
		return val.(*FunctionProfile)
	}
	return nil
}

// IsHot returns true if the function has reached the hot threshold.
func (p *Profiler) IsHot(index int) bool {
	profile := p.GetFunctionProfile(index)
	return profile != nil && profile.IsHot()
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	Functions    int    // Number of functions invoked at least once
	HotFunctions int    // Number of hot functions
	Invocations  uint64 // Total function invocations
	Dispatches   uint64 // Total opcodes dispatched
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats

	p.functions.Range(func(_, value any) bool {
		profile := value.(*FunctionProfile)
		stats.Functions++
		stats.Invocations += atomic.LoadUint64(&profile.InvocationCount)
		if profile.IsHot() {
			stats.HotFunctions++
		}
		return true
	})
	for i := range p.opcodes {
		stats.Dispatches += atomic.LoadUint64(&p.opcodes[i])
	}
	return stats
}

// TopFunctions returns the n most frequently invoked functions.
func (p *Profiler) TopFunctions(n int) []*FunctionProfile {
	var all []*FunctionProfile
	p.functions.Range(func(_, value any) bool {
		all = append(all, value.(*FunctionProfile))
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		ci, cj := atomic.LoadUint64(&all[i].InvocationCount), atomic.LoadUint64(&all[j].InvocationCount)
		if ci != cj {
			return ci > cj
		}
		return all[i].Index < all[j].Index
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// OpcodeStat is one row of the opcode histogram.
type OpcodeStat struct {
	Op    bytecode.Opcode
	Count uint64
}

// TopOpcodes returns the n most frequently dispatched opcodes.
func (p *Profiler) TopOpcodes(n int) []OpcodeStat {
	var all []OpcodeStat
	for i := range p.opcodes {
		if c := atomic.LoadUint64(&p.opcodes[i]); c > 0 {
			all = append(all, OpcodeStat{Op: bytecode.Opcode(i), Count: c})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Op < all[j].Op
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Report writes a summary of the top n functions and opcodes to w.
func (p *Profiler) Report(w io.Writer, n int) {
	stats := p.Stats()
	fmt.Fprintf(w, "%d instructions, %d calls across %d functions (%d hot)\n",
		stats.Dispatches, stats.Invocations, stats.Functions, stats.HotFunctions)

	fmt.Fprintf(w, "\nfunctions:\n")
	for _, f := range p.TopFunctions(n) {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("fn%d", f.Index)
		}
		fmt.Fprintf(w, "  %10d  %s\n", atomic.LoadUint64(&f.InvocationCount), name)
	}

	fmt.Fprintf(w, "\nopcodes:\n")
	for _, o := range p.TopOpcodes(n) {
		share := 0.0
		if stats.Dispatches > 0 {
			share = 100 * float64(o.Count) / float64(stats.Dispatches)
		}
		fmt.Fprintf(w, "  %10d  %5.1f%%  %s\n", o.Count, share, o.Op)
	}
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.functions.Range(func(key, _ any) bool {
		p.functions.Delete(key)
		return true
	})
	for i := range p.opcodes {
		atomic.StoreUint64(&p.opcodes[i], 0)
	}
	atomic.StoreUint64(&p.hotCount, 0)
}
