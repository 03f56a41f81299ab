package brk

import (
	"unsafe"

	"github.com/brkheap/brkheap"
	"github.com/cockroachdb/errors"
)

const (
	// DefaultReserveSize is the reservation used by Reserve when the caller passes a size of 0.
	DefaultReserveSize = 256 * 1024 * 1024

	// maxReserveSize caps reservations at 4GiB so that consumers can address any byte of the
	// region with a 32-bit offset.
	maxReserveSize = 1 << 32
)

// Grower is the boundary between a heap and the primitive that extends its address space. The
// process break can only move forward: implementations never reclaim granted memory and never
// retry a refused extension.
type Grower interface {
	// Grow extends the region by at least size bytes, rounded up to the region's alignment
	// boundary. It returns the offset of the prior break (the start of the newly granted
	// span) and the number of bytes actually granted. Grow returns an error when size is
	// zero or negative, or when the reservation cannot satisfy the request.
	Grow(size int) (offset int, granted int, err error)
	// Base returns the address of offset 0 of the region. The address is stable for the
	// lifetime of the region.
	Base() unsafe.Pointer
	// BreakOffset returns the current break as an offset from Base. Every byte below the
	// break has been granted to the consumer.
	BreakOffset() int
}

// ReserveOptions are optional parameters for Reserve. The zero value is valid.
type ReserveOptions struct {
	// Alignment is the boundary grow requests are rounded up to. It must be a power of two.
	// When 0, brkheap.Alignment is used.
	Alignment uint
}

// Region is a contiguous span of reserved address space with a forward-only break. It is the
// process-heap analog of the sbrk primitive: address space below the break belongs to the
// consumer, address space above it is reserved but ungranted.
//
// Region performs no locking. A single goroutine must own it, or callers must synchronize
// externally.
type Region struct {
	data      []byte
	brk       int
	alignment uint
	growCount int
}

var _ Grower = (*Region)(nil)

// Reserve sets aside size bytes of address space and returns a Region whose break starts at
// offset 0. On unix hosts the reservation is an anonymous private mapping, so untouched pages
// cost no physical memory. A size of 0 reserves DefaultReserveSize bytes.
func Reserve(size int, options ReserveOptions) (*Region, error) {
	if size == 0 {
		size = DefaultReserveSize
	}
	if size < 0 {
		return nil, errors.Newf("invalid reservation size %d", size)
	}
	if size > maxReserveSize {
		return nil, errors.Newf("reservation size %d exceeds the %d-byte region limit", size, maxReserveSize)
	}

	alignment := options.Alignment
	if alignment == 0 {
		alignment = brkheap.Alignment
	}
	err := brkheap.CheckPow2(alignment, "ReserveOptions.Alignment")
	if err != nil {
		return nil, err
	}

	size = brkheap.AlignUp(size, alignment)
	data, err := reserve(size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reserve %d bytes of address space", size)
	}

	return &Region{
		data:      data,
		alignment: alignment,
	}, nil
}

func (r *Region) Grow(size int) (int, int, error) {
	if size <= 0 {
		return 0, 0, errors.Newf("invalid grow size %d", size)
	}

	granted := brkheap.AlignUp(size, r.alignment)
	if r.brk+granted > len(r.data) {
		return 0, 0, errors.Wrapf(brkheap.ErrExhausted,
			"break at %d, requested %d, reservation %d", r.brk, size, len(r.data))
	}

	offset := r.brk
	r.brk += granted
	r.growCount++
	return offset, granted, nil
}

func (r *Region) Base() unsafe.Pointer {
	return unsafe.Pointer(&r.data[0])
}

func (r *Region) BreakOffset() int {
	return r.brk
}

// Size returns the full reservation in bytes, granted or not.
func (r *Region) Size() int {
	return len(r.data)
}

// GrowCount returns the number of successful break extensions performed so far.
func (r *Region) GrowCount() int {
	return r.growCount
}

// Destroy releases the reservation. The region and every pointer handed out below its break
// are invalid afterward.
func (r *Region) Destroy() error {
	err := release(r.data)
	if err != nil {
		return errors.Wrap(err, "failed to release the region reservation")
	}
	r.data = nil
	r.brk = 0
	return nil
}
