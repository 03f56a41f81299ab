package malloc

import "fmt"

// splitRecord carves a front portion of target usable bytes off the free record at offset.
// It reports false when the record cannot also host a remainder header, in which case the
// record is untouched and must be consumed whole.
//
// On success the remainder record is written in place at the split point, inheriting the
// original's next link, and the front record's link is repointed at it, so that removing the
// front from the free list leaves the remainder reachable.
func (h *Heap) splitRecord(offset uint32, target uint32) bool {
	record := h.recordAt(offset)
	if record.size < target+headerSize {
		return false
	}

	remainderOffset := offset + headerSize + target
	remainder := h.recordAt(remainderOffset)
	remainder.size = record.size - target - headerSize
	remainder.next = record.next

	record.size = target
	record.next = remainderOffset
	return true
}

// findPrev scans the free list for a record whose end address is the start of the block at
// offset. It returns nilOffset when no free block borders it from below.
func (h *Heap) findPrev(offset uint32) uint32 {
	for curr := h.head; curr != nilOffset; curr = h.recordAt(curr).next {
		if curr+headerSize+h.recordAt(curr).size == offset {
			return curr
		}
	}
	return nilOffset
}

// findNext scans the free list for a record starting exactly where the block at offset
// ends. It returns nilOffset when no free block borders it from above.
func (h *Heap) findNext(offset uint32) uint32 {
	end := offset + headerSize + h.recordAt(offset).size
	for curr := h.head; curr != nilOffset; curr = h.recordAt(curr).next {
		if curr == end {
			return curr
		}
	}
	return nilOffset
}

// removeRecord unlinks the record at offset from the free list. The record must be present;
// a miss means the list structure is broken.
func (h *Heap) removeRecord(offset uint32) {
	if h.head == offset {
		h.head = h.recordAt(offset).next
		return
	}

	for curr := h.head; curr != nilOffset; curr = h.recordAt(curr).next {
		if h.recordAt(curr).next == offset {
			h.recordAt(curr).next = h.recordAt(offset).next
			return
		}
	}

	panic(fmt.Sprintf("free record at offset %d is not in the free list", offset))
}

// coalesce merges the freshly freed record at offset with its address-contiguous free
// neighbors and returns the offset of the merged block. One pass in each direction is
// enough: free blocks never overlap, so at most one neighbor can touch each side.
func (h *Heap) coalesce(offset uint32) uint32 {
	if prev := h.findPrev(offset); prev != nilOffset {
		h.removeRecord(offset)
		h.recordAt(prev).size += h.recordAt(offset).size + headerSize
		offset = prev
	}

	if next := h.findNext(offset); next != nilOffset {
		h.removeRecord(next)
		h.recordAt(offset).size += h.recordAt(next).size + headerSize
	}

	return offset
}
