package vm

import (
	"errors"
	"math"
	"testing"
)

func TestAllocZeroed(t *testing.T) {
	h := NewHeap(0)
	a, err := h.Alloc(12)
	if err != nil {
		t.Fatal(err)
	}
	if a.IsNull() {
		t.Fatal("Alloc returned NULL")
	}
	for off := 0; off < 12; off += 4 {
		v, err := h.LoadInt(a.Add(off))
		if err != nil {
			t.Fatal(err)
		}
		if v != 0 {
			t.Errorf("offset %d = %d, want 0", off, v)
		}
	}
	if h.Used() != 12 || h.Blocks() != 1 {
		t.Errorf("Used() = %d Blocks() = %d, want 12 and 1", h.Used(), h.Blocks())
	}
}

func TestAllocDistinct(t *testing.T) {
	h := NewHeap(0)
	a, _ := h.Alloc(0)
	b, _ := h.Alloc(0)
	if a == b {
		t.Error("two zero-size allocations share an address")
	}
}

func TestHeapIntStorage(t *testing.T) {
	h := NewHeap(0)
	a, _ := h.Alloc(8)

	for _, v := range []int32{1, -1, math.MaxInt32, math.MinInt32} {
		if err := h.StoreInt(a.Add(4), v); err != nil {
			t.Fatal(err)
		}
		got, err := h.LoadInt(a.Add(4))
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("LoadInt after StoreInt(%d) = %d", v, got)
		}
	}
	if got, _ := h.LoadInt(a); got != 0 {
		t.Errorf("neighbouring int clobbered: %d", got)
	}
}

func TestHeapAddressStorage(t *testing.T) {
	h := NewHeap(0)
	a, _ := h.Alloc(16)
	b, _ := h.Alloc(1)

	if err := h.StoreAddress(a.Add(8), b); err != nil {
		t.Fatal(err)
	}
	got, err := h.LoadAddress(a.Add(8))
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Errorf("LoadAddress = %s, want %s", got, b)
	}
	if got, _ := h.LoadAddress(a); got != Null {
		t.Errorf("fresh address field = %s, want NULL", got)
	}
}

func TestHeapFaults(t *testing.T) {
	h := NewHeap(0)
	a, _ := h.Alloc(4)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"load null", func() error { _, err := h.LoadInt(Null); return err }},
		{"store null", func() error { return h.StoreInt(Null, 1) }},
		{"load past end", func() error { _, err := h.LoadInt(a.Add(1)); return err }},
		{"address too wide", func() error { _, err := h.LoadAddress(a); return err }},
		{"byte past end", func() error { _, err := h.LoadByte(a.Add(4)); return err }},
		{"bad block", func() error { _, err := h.LoadByte(MakeAddress(99, 0)); return err }},
		{"length of struct", func() error { _, err := h.ArrayLength(a); return err }},
		{"index of struct", func() error { _, err := h.ElementAddress(a, 0); return err }},
		{"negative array", func() error { _, err := h.AllocArray(-1, 4); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrMemory) {
				t.Errorf("err = %v, want memory error", err)
			}
		})
	}
}

func TestArrayElements(t *testing.T) {
	h := NewHeap(0)
	arr, err := h.AllocArray(5, 4)
	if err != nil {
		t.Fatal(err)
	}

	n, err := h.ArrayLength(arr)
	if err != nil || n != 5 {
		t.Fatalf("ArrayLength = %d, %v; want 5", n, err)
	}

	for i := int32(0); i < 5; i++ {
		e, err := h.ElementAddress(arr, i)
		if err != nil {
			t.Fatal(err)
		}
		if e.Offset() != uint32(i*4) {
			t.Errorf("element %d at offset %d, want %d", i, e.Offset(), i*4)
		}
		if err := h.StoreInt(e, i*i); err != nil {
			t.Fatal(err)
		}
	}

	last, _ := h.ElementAddress(arr, 4)
	if v, _ := h.LoadInt(last); v != 16 {
		t.Errorf("a[4] = %d, want 16", v)
	}

	for _, i := range []int32{-1, 5, math.MaxInt32} {
		if _, err := h.ElementAddress(arr, i); !errors.Is(err, ErrMemory) {
			t.Errorf("index %d: err = %v, want memory error", i, err)
		}
	}
}

func TestHeapLimitExhaustion(t *testing.T) {
	h := NewHeap(64)
	if _, err := h.Alloc(48); err != nil {
		t.Fatal(err)
	}
	if _, err := h.AllocArray(5, 4); !errors.Is(err, ErrAllocation) {
		t.Errorf("err = %v, want allocation failure", err)
	}
	if _, err := h.Alloc(16); err != nil {
		t.Errorf("allocation up to the limit failed: %v", err)
	}

	h.AllocStatic(make([]byte, 1000))
	if h.Used() != 64 {
		t.Errorf("static block counted toward the limit: used %d", h.Used())
	}
}

func TestOversizedArrayWithoutLimit(t *testing.T) {
	h := NewHeap(0)
	if _, err := h.AllocArray(math.MaxInt32, 255); !errors.Is(err, ErrAllocation) {
		t.Errorf("err = %v, want allocation failure", err)
	}
	if _, err := h.Alloc(MaxBlockSize + 1); !errors.Is(err, ErrAllocation) {
		t.Errorf("err = %v, want allocation failure", err)
	}
	if h.Used() != 0 || h.Blocks() != 0 {
		t.Errorf("failed allocations left used=%d blocks=%d", h.Used(), h.Blocks())
	}
}

func TestCStrings(t *testing.T) {
	h := NewHeap(0)
	a, err := h.NewCString("hello")
	if err != nil {
		t.Fatal(err)
	}
	s, err := h.CString(a)
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello" {
		t.Errorf("CString = %q, want %q", s, "hello")
	}
	if s, _ := h.CString(a.Add(3)); s != "lo" {
		t.Errorf("suffix = %q, want %q", s, "lo")
	}

	pool := h.AllocStatic([]byte("ab\x00cd\x00"))
	if s, _ := h.CString(pool.Add(3)); s != "cd" {
		t.Errorf("pool string = %q, want %q", s, "cd")
	}

	raw, _ := h.Alloc(3)
	h.StoreByte(raw, 'x')
	h.StoreByte(raw.Add(1), 'y')
	h.StoreByte(raw.Add(2), 'z')
	if _, err := h.CString(raw); !errors.Is(err, ErrMemory) {
		t.Errorf("unterminated string: err = %v, want memory error", err)
	}
	if _, err := h.CString(Null); !errors.Is(err, ErrMemory) {
		t.Errorf("null string: err = %v, want memory error", err)
	}
}
