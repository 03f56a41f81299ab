package malloc

import (
	"math"
	"unsafe"
)

const (
	// headerSize is the number of bytes of bookkeeping prefixed to every block, live or free.
	headerSize = 8

	// magicAllocated is stamped into a header when its block goes live and checked exactly
	// once, when the block is released. Any other value at release time means the header
	// was overwritten or the pointer was never issued by this heap.
	magicAllocated uint32 = 0x01234567

	// nilOffset terminates the free list. Valid block offsets never reach it because the
	// region is capped below 4GiB.
	nilOffset uint32 = math.MaxUint32

	// maxAllocSize bounds a single request. Anything larger could not be granted by a
	// 32-bit-addressable region anyway.
	maxAllocSize = math.MaxInt32 - headerSize
)

// header prefixes a live allocation. The caller's payload begins immediately after it.
type header struct {
	size  uint32
	magic uint32
}

// freeRecord overlays the same 8 bytes of storage as a header while the block sits on the
// free list. The size field is shared with header; the link field reuses the magic field's
// storage and holds the heap-relative offset of the next free record.
//
// Code in this package depends on the two layouts being interchangeable: a block moves
// between the live and free states by rewriting the second field in place.
type freeRecord struct {
	size uint32
	next uint32
}

// headerAt reinterprets heap storage at offset as a live-block header. The offset must lie
// within the granted region.
func (h *Heap) headerAt(offset uint32) *header {
	return (*header)(unsafe.Add(h.base, uintptr(offset)))
}

// recordAt reinterprets heap storage at offset as a free-list record. The offset must lie
// within the granted region.
func (h *Heap) recordAt(offset uint32) *freeRecord {
	return (*freeRecord)(unsafe.Add(h.base, uintptr(offset)))
}

// payload returns the caller-visible pointer for the block at offset.
func (h *Heap) payload(offset uint32) unsafe.Pointer {
	return unsafe.Add(h.base, uintptr(offset)+headerSize)
}

// payloadBytes views length bytes of a block's payload as a slice.
func (h *Heap) payloadBytes(offset uint32, length int) []byte {
	return unsafe.Slice((*byte)(h.payload(offset)), length)
}

// blockOffset recovers the block offset for a payload pointer previously returned by this
// heap. It reports false for any address outside the granted region, which callers must treat
// as corruption.
func (h *Heap) blockOffset(ptr unsafe.Pointer) (uint32, bool) {
	delta := uintptr(ptr) - uintptr(h.base)
	if delta < headerSize || delta > uintptr(h.grower.BreakOffset()) {
		return 0, false
	}
	return uint32(delta) - headerSize, true
}
