package malloc

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

type blockSpan struct {
	offset uint32
	size   uint32
	free   bool
}

// Validate performs a full consistency sweep: free-list link integrity, bounds, and the
// accounting invariant that live and free spans tile the granted region exactly, with no
// gap and no double-counted byte. When the allocator is functioning correctly this cannot
// fail, but it may assist in diagnosing issues, and it backs DebugValidate in debug builds.
func (h *Heap) Validate() error {
	brkOffset := h.grower.BreakOffset()
	spans := make([]blockSpan, 0, h.allocCount+4)

	recordCount := 0
	for offset := h.head; offset != nilOffset; offset = h.recordAt(offset).next {
		if int(offset)+headerSize > brkOffset {
			return errors.Newf("free record at offset %d starts past the break at %d", offset, brkOffset)
		}

		record := h.recordAt(offset)
		if int(offset)+headerSize+int(record.size) > brkOffset {
			return errors.Newf("free record at offset %d (size %d) extends past the break at %d",
				offset, record.size, brkOffset)
		}

		recordCount++
		if recordCount > brkOffset/headerSize {
			return errors.New("the free list does not terminate; its link structure has a cycle")
		}

		spans = append(spans, blockSpan{offset: offset, size: record.size, free: true})
	}

	var liveErr error
	h.live.Iter(func(offset uint32, size uint32) bool {
		if int(offset)+headerSize+int(size) > brkOffset {
			liveErr = errors.Newf("live allocation at offset %d (size %d) extends past the break at %d",
				offset, size, brkOffset)
			return true
		}
		spans = append(spans, blockSpan{offset: offset, size: size})
		return false
	})
	if liveErr != nil {
		return liveErr
	}

	slices.SortFunc(spans, func(a, b blockSpan) bool {
		return a.offset < b.offset
	})

	expected := 0
	for _, span := range spans {
		kind := "live allocation"
		if span.free {
			kind = "free record"
		}
		if int(span.offset) != expected {
			return errors.Newf("heap accounting is broken: found a %s at offset %d but expected the next block at %d",
				kind, span.offset, expected)
		}
		expected = int(span.offset) + headerSize + int(span.size)
	}
	if expected != brkOffset {
		return errors.Newf("heap accounting stops at offset %d but the break is at %d", expected, brkOffset)
	}

	return nil
}

// CheckCorruption sweeps every live allocation and verifies that its header still carries
// the allocation sentinel and the recorded size. This catches a payload overrun that smashed
// the next block's header before the damage surfaces as a fatal release-time failure.
func (h *Heap) CheckCorruption() error {
	var err error
	h.live.Iter(func(offset uint32, size uint32) bool {
		hdr := h.headerAt(offset)
		if hdr.magic != magicAllocated {
			err = errors.Newf("allocation at offset %d has a smashed header: magic was %#08x",
				offset, hdr.magic)
			return true
		}
		if hdr.size != size {
			err = errors.Newf("allocation at offset %d changed size from %d to %d",
				offset, size, hdr.size)
			return true
		}
		return false
	})
	return err
}
