package malloc

import (
	"unsafe"

	"github.com/brkheap/brkheap"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// AllocationCount returns the number of live allocations: successful allocations minus
// successful releases.
func (h *Heap) AllocationCount() int {
	return h.allocCount
}

// FreeRegionsCount returns the number of records on the free list. Adjacent free memory is
// always merged, so this is also the number of distinct reclaimed regions.
func (h *Heap) FreeRegionsCount() int {
	count := 0
	for offset := h.head; offset != nilOffset; offset = h.recordAt(offset).next {
		count++
	}
	return count
}

// SumFreeSize returns the usable bytes sitting on the free list, exclusive of record
// headers.
func (h *Heap) SumFreeSize() int {
	sum := 0
	for offset := h.head; offset != nilOffset; offset = h.recordAt(offset).next {
		sum += int(h.recordAt(offset).size)
	}
	return sum
}

// IsEmpty returns true when the heap has no live allocations.
func (h *Heap) IsEmpty() bool {
	return h.allocCount == 0
}

// AllocationSize returns the usable size recorded for the allocation at ptr. It reports
// false when ptr is not a live allocation of this heap.
func (h *Heap) AllocationSize(ptr unsafe.Pointer) (int, bool) {
	offset, ok := h.blockOffset(ptr)
	if !ok {
		return 0, false
	}
	size, ok := h.live.Get(offset)
	if !ok {
		return 0, false
	}
	return int(size), true
}

// AddStatistics sums this heap's allocation statistics into the statistics currently present
// in the provided brkheap.Statistics object.
func (h *Heap) AddStatistics(stats *brkheap.Statistics) {
	stats.HeapBytes += h.grower.BreakOffset()
	stats.AllocationCount += h.allocCount
	stats.AllocationBytes += h.allocBytes
	stats.FreeBytes += h.SumFreeSize()
}

// AddDetailedStatistics sums this heap's allocation statistics into the statistics currently
// present in the provided brkheap.DetailedStatistics object.
func (h *Heap) AddDetailedStatistics(stats *brkheap.DetailedStatistics) {
	stats.HeapBytes += h.grower.BreakOffset()

	for offset := h.head; offset != nilOffset; offset = h.recordAt(offset).next {
		stats.AddFreeRange(int(h.recordAt(offset).size))
	}

	h.live.Iter(func(offset uint32, size uint32) bool {
		stats.AddAllocation(int(size))
		return false
	})
}

// HeapJsonData populates a json object with information about this heap, including an entry
// per free-list record.
func (h *Heap) HeapJsonData(json jwriter.ObjectState) {
	json.Name("BreakBytes").Int(h.grower.BreakOffset())
	json.Name("Allocations").Int(h.allocCount)
	json.Name("AllocationBytes").Int(h.allocBytes)
	json.Name("FreeRanges").Int(h.FreeRegionsCount())
	json.Name("FreeBytes").Int(h.SumFreeSize())

	ranges := json.Name("FreeList").Array()
	for offset := h.head; offset != nilOffset; offset = h.recordAt(offset).next {
		entry := ranges.Object()
		entry.Name("Offset").Int(int(offset))
		entry.Name("Size").Int(int(h.recordAt(offset).size))
		entry.End()
	}
	ranges.End()
}

// BuildStatsString renders HeapJsonData as a JSON string.
func (h *Heap) BuildStatsString() string {
	writer := jwriter.NewWriter()

	obj := writer.Object()
	h.HeapJsonData(obj)
	obj.End()

	return string(writer.Bytes())
}
