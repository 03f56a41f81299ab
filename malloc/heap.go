// Package malloc implements a first-fit free-list allocator over a forward-only break
// region. It is a user-space replacement for the classic allocation primitives: blocks are
// carved out of address space granted by a brk.Grower, tagged with an 8-byte header, and
// recycled through an unordered singly linked free list with opportunistic neighbor
// coalescing.
//
// A Heap is strictly single-threaded. Nothing in this package locks; concurrent calls into
// the same Heap from multiple goroutines corrupt it. Give each thread of execution its own
// Heap or synchronize externally.
package malloc

import (
	"context"
	"unsafe"

	"github.com/brkheap/brkheap"
	"github.com/brkheap/brkheap/brk"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"
)

// Options are optional parameters for New. The zero value is valid.
type Options struct {
	// Logger receives debug output and the corruption report. When nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Heap owns every byte between a region's base and its break. At rest, each of those bytes
// belongs to exactly one block, live or free, and each block is described by the 8-byte
// header at its start.
type Heap struct {
	logger *slog.Logger
	grower brk.Grower
	base   unsafe.Pointer

	// head anchors the free list, nilOffset when the list is empty. The list is unordered;
	// aggressive coalescing keeps it short enough that linear scans stay cheap.
	head uint32

	// live maps block offset to usable size for every outstanding allocation. It backs
	// statistics, the Destroy leak report, and CheckCorruption; the allocator's own
	// decisions never depend on it.
	live *swiss.Map[uint32, uint32]

	allocCount int
	allocBytes int
}

// New creates a Heap on top of the provided Grower. The Grower's region must be unused: the
// Heap assumes it owns every byte below the break.
func New(grower brk.Grower, options Options) (*Heap, error) {
	if grower == nil {
		return nil, errors.New("a Grower is required to build a Heap")
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Heap{
		logger: logger,
		grower: grower,
		base:   grower.Base(),
		head:   nilOffset,
		live:   swiss.NewMap[uint32, uint32](42),
	}, nil
}

// Alloc returns a pointer to size usable bytes, or nil when size is not positive or the
// region cannot be extended. The first free-list record large enough to hold the request
// plus a header is used; on a miss the break is extended.
func (h *Heap) Alloc(size int) unsafe.Pointer {
	if size <= 0 || size > maxAllocSize {
		return nil
	}

	for offset := h.head; offset != nilOffset; {
		record := h.recordAt(offset)
		if int(record.size) >= size+headerSize {
			usable := record.size
			if h.splitRecord(offset, uint32(size)) {
				usable = uint32(size)
			}
			h.removeRecord(offset)
			return h.commit(offset, usable)
		}
		offset = record.next
	}

	offset, granted, err := h.grower.Grow(size + headerSize)
	if err != nil {
		h.logger.Debug("Heap::Alloc: break extension refused",
			slog.Int("size", size),
			slog.Any("error", err))
		return nil
	}

	return h.commit(uint32(offset), uint32(granted-headerSize))
}

// commit stamps a header over the block at offset and hands its payload to the caller. The
// block must already be off the free list.
func (h *Heap) commit(offset uint32, usable uint32) unsafe.Pointer {
	hdr := h.headerAt(offset)
	hdr.size = usable
	hdr.magic = magicAllocated

	h.live.Put(offset, usable)
	h.allocCount++
	h.allocBytes += int(usable)

	brkheap.DebugValidate(h)
	return h.payload(offset)
}

// AllocZeroed allocates count*elemSize bytes and zeroes them. A zero or negative element
// count or size yields nil without allocating, as does a product that overflows.
func (h *Heap) AllocZeroed(count int, elemSize int) unsafe.Pointer {
	if count <= 0 || elemSize <= 0 {
		return nil
	}

	total := count * elemSize
	if total/count != elemSize {
		return nil
	}

	ptr := h.Alloc(total)
	if ptr == nil {
		return nil
	}

	payload := unsafe.Slice((*byte)(ptr), total)
	for i := range payload {
		payload[i] = 0
	}
	return ptr
}

// Realloc resizes the allocation at ptr. A nil ptr behaves like Alloc; a newSize of 0
// behaves like Free and returns nil. When the block's recorded size already covers newSize
// the same pointer is returned with no data movement. Otherwise a new block is allocated,
// the old payload is copied across, and the old block is released.
func (h *Heap) Realloc(ptr unsafe.Pointer, newSize int) unsafe.Pointer {
	if ptr == nil {
		return h.Alloc(newSize)
	}
	if newSize == 0 {
		h.Free(ptr)
		return nil
	}

	offset, ok := h.blockOffset(ptr)
	if !ok {
		h.fatalCorruption(ptr, 0)
	}

	oldSize := int(h.headerAt(offset).size)
	if oldSize >= newSize {
		return ptr
	}

	newPtr := h.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	copy(unsafe.Slice((*byte)(newPtr), oldSize), unsafe.Slice((*byte)(ptr), oldSize))
	h.Free(ptr)
	return newPtr
}

// Free releases the allocation at ptr back to the free list and merges it with any
// address-contiguous free neighbors. The pointer must have been returned by this Heap and
// not yet released: anything else fails the header check and is treated as fatal corruption,
// because a heap whose bookkeeping has been overwritten cannot be trusted to answer any
// future call correctly.
func (h *Heap) Free(ptr unsafe.Pointer) {
	offset, ok := h.blockOffset(ptr)
	if !ok {
		h.fatalCorruption(ptr, 0)
	}

	hdr := h.headerAt(offset)
	if hdr.magic != magicAllocated {
		h.fatalCorruption(ptr, hdr.magic)
	}
	size := hdr.size

	record := h.recordAt(offset)
	record.size = size
	record.next = h.head
	h.head = offset
	h.coalesce(offset)

	h.live.Delete(offset)
	h.allocCount--
	h.allocBytes -= int(size)

	brkheap.DebugValidate(h)
}

// Destroy reports every allocation that was never released and detaches the Heap from its
// region. The region itself is destroyed by its owner.
func (h *Heap) Destroy() {
	h.live.Iter(func(offset uint32, size uint32) bool {
		h.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
			slog.Int("offset", int(offset)),
			slog.Int("size", int(size)))
		return false
	})

	h.head = nilOffset
	h.live.Clear()
	h.allocCount = 0
	h.allocBytes = 0
	h.base = nil
}
