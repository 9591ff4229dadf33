package vm

import (
	"encoding/binary"
	"strings"
)

const (
	intSize     = 4
	addressSize = 8

	// MaxBlockSize caps a single allocation whether or not a heap limit is set.
	MaxBlockSize = 1 << 30
)

// block is one allocation. Arrays keep their element count and size beside
// the element storage; plain blocks from NEW have isArray unset.
type block struct {
	data    []byte
	count   int32
	eltSize int32
	isArray bool
}

// Heap is a bump arena of blocks. Blocks are never freed while the machine
// lives; handles are indices into blocks, and handle 0 is reserved so that
// the zero Address is null.
type Heap struct {
	blocks []*block
	used   int64
	limit  int64
}

// NewHeap creates a heap. A positive limit caps the total bytes allocated.
func NewHeap(limit int64) *Heap {
	return &Heap{
		blocks: []*block{nil},
		limit:  limit,
	}
}

// Used returns the number of bytes allocated so far.
func (h *Heap) Used() int64 {
	return h.used
}

// Blocks returns the number of live blocks.
func (h *Heap) Blocks() int {
	return len(h.blocks) - 1
}

func (h *Heap) reserve(size int64) *Error {
	if size < 0 || size > MaxBlockSize {
		return newError(KindAllocation, "cannot allocate %d bytes (block limit %d)", size, MaxBlockSize)
	}
	if h.limit > 0 && h.used+size > h.limit {
		return newError(KindAllocation, "cannot allocate %d bytes (%d of %d in use)", size, h.used, h.limit)
	}
	if len(h.blocks) > int(^uint32(0)) {
		return newError(KindAllocation, "out of block handles")
	}
	h.used += size
	return nil
}

func (h *Heap) add(b *block) Address {
	h.blocks = append(h.blocks, b)
	return MakeAddress(uint32(len(h.blocks)-1), 0)
}

// Alloc returns a zeroed block of size bytes.
func (h *Heap) Alloc(size int) (Address, error) {
	if err := h.reserve(int64(size)); err != nil {
		return Null, err
	}
	return h.add(&block{data: make([]byte, size)}), nil
}

// AllocArray returns an array of count zeroed elements of eltSize bytes.
func (h *Heap) AllocArray(count, eltSize int32) (Address, error) {
	if count < 0 {
		return Null, newError(KindMemory, "array size %d is negative", count)
	}
	if err := h.reserve(int64(count) * int64(eltSize)); err != nil {
		return Null, err
	}
	return h.add(&block{
		data:    make([]byte, int(count)*int(eltSize)),
		count:   count,
		eltSize: eltSize,
		isArray: true,
	}), nil
}

// AllocStatic copies data into a new block that does not count toward the
// heap limit. The string pool lives in such a block.
func (h *Heap) AllocStatic(data []byte) Address {
	b := make([]byte, len(data))
	copy(b, data)
	return h.add(&block{data: b})
}

func (h *Heap) lookup(a Address) (*block, *Error) {
	if a.IsNull() {
		return nil, newError(KindMemory, "null pointer dereference")
	}
	idx := a.Block()
	if int(idx) >= len(h.blocks) {
		return nil, newError(KindMemory, "invalid address %s", a)
	}
	return h.blocks[idx], nil
}

// span returns the n bytes at a, faulting on null or on any byte outside
// the block a points into.
func (h *Heap) span(a Address, n int) ([]byte, *Error) {
	b, err := h.lookup(a)
	if err != nil {
		return nil, err
	}
	off := int(a.Offset())
	if off+n > len(b.data) {
		return nil, newError(KindMemory, "access of %d bytes at %s outside allocation of %d bytes", n, a, len(b.data))
	}
	return b.data[off : off+n], nil
}

// ArrayLength returns the element count of the array at a.
func (h *Heap) ArrayLength(a Address) (int32, error) {
	b, err := h.lookup(a)
	if err != nil {
		return 0, err
	}
	if !b.isArray || a.Offset() != 0 {
		return 0, newError(KindMemory, "%s is not an array", a)
	}
	return b.count, nil
}

// ElementAddress returns the address of element index of the array at a.
func (h *Heap) ElementAddress(a Address, index int32) (Address, error) {
	b, err := h.lookup(a)
	if err != nil {
		return Null, err
	}
	if !b.isArray || a.Offset() != 0 {
		return Null, newError(KindMemory, "%s is not an array", a)
	}
	if index < 0 || index >= b.count {
		return Null, newError(KindMemory, "array index %d out of bounds [0, %d)", index, b.count)
	}
	return a.Add(int(index) * int(b.eltSize)), nil
}

// LoadInt reads the 32-bit integer at a.
func (h *Heap) LoadInt(a Address) (int32, error) {
	p, err := h.span(a, intSize)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(p)), nil
}

// StoreInt writes a 32-bit integer at a.
func (h *Heap) StoreInt(a Address, v int32) error {
	p, err := h.span(a, intSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p, uint32(v))
	return nil
}

// LoadAddress reads the address stored at a.
func (h *Heap) LoadAddress(a Address) (Address, error) {
	p, err := h.span(a, addressSize)
	if err != nil {
		return Null, err
	}
	return Address(binary.LittleEndian.Uint64(p)), nil
}

// StoreAddress writes v at a.
func (h *Heap) StoreAddress(a Address, v Address) error {
	p, err := h.span(a, addressSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(p, uint64(v))
	return nil
}

// LoadByte reads the byte at a.
func (h *Heap) LoadByte(a Address) (byte, error) {
	p, err := h.span(a, 1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// StoreByte writes the byte at a.
func (h *Heap) StoreByte(a Address, v byte) error {
	p, err := h.span(a, 1)
	if err != nil {
		return err
	}
	p[0] = v
	return nil
}

// CString reads the NUL-terminated string starting at a. A string that runs
// off the end of its block is a memory error.
func (h *Heap) CString(a Address) (string, error) {
	b, err := h.lookup(a)
	if err != nil {
		return "", err
	}
	off := int(a.Offset())
	if off > len(b.data) {
		return "", newError(KindMemory, "string at %s outside allocation", a)
	}
	rest := b.data[off:]
	for i, c := range rest {
		if c == 0 {
			return string(rest[:i]), nil
		}
	}
	return "", newError(KindMemory, "string at %s is not NUL-terminated", a)
}

// NewCString allocates s with a terminating NUL and returns its address.
func (h *Heap) NewCString(s string) (Address, error) {
	if strings.IndexByte(s, 0) >= 0 {
		s = s[:strings.IndexByte(s, 0)]
	}
	a, err := h.Alloc(len(s) + 1)
	if err != nil {
		return Null, err
	}
	b, _ := h.lookup(a)
	copy(b.data, s)
	return a, nil
}
