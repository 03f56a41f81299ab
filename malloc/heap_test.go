package malloc_test

import (
	"math"
	"os"
	"testing"
	"unsafe"

	"github.com/brkheap/brkheap"
	"github.com/brkheap/brkheap/brk"
	"github.com/brkheap/brkheap/malloc"
	"github.com/brkheap/brkheap/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func newTestHeap(t *testing.T, reserve int) *malloc.Heap {
	t.Helper()

	region, err := brk.Reserve(reserve, brk.ReserveOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, region.Destroy())
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout))
	heap, err := malloc.New(region, malloc.Options{Logger: logger})
	require.NoError(t, err)
	return heap
}

func fillPayload(ptr unsafe.Pointer, size int, seed byte) {
	payload := unsafe.Slice((*byte)(ptr), size)
	for i := range payload {
		payload[i] = seed + byte(i)
	}
}

func requirePayload(t *testing.T, ptr unsafe.Pointer, size int, seed byte) {
	t.Helper()
	payload := unsafe.Slice((*byte)(ptr), size)
	for i := range payload {
		require.Equal(t, seed+byte(i), payload[i], "payload byte %d", i)
	}
}

func TestHeapBasicAllocFree(t *testing.T) {
	heap := newTestHeap(t, 1<<20)

	ptr := heap.Alloc(16)
	require.NotNil(t, ptr)
	require.NoError(t, heap.Validate())

	fillPayload(ptr, 16, 0x10)
	requirePayload(t, ptr, 16, 0x10)

	// A 16-byte request plus its header rounds up to a 32-byte break extension, so the
	// block's recorded usable size is 24.
	size, ok := heap.AllocationSize(ptr)
	require.True(t, ok)
	require.Equal(t, 24, size)

	var stats brkheap.DetailedStatistics
	stats.Clear()
	heap.AddDetailedStatistics(&stats)

	require.Equal(t, brkheap.DetailedStatistics{
		Statistics: brkheap.Statistics{
			HeapBytes:       32,
			AllocationCount: 1,
			AllocationBytes: 24,
			FreeBytes:       0,
		},
		FreeRangeCount:    0,
		AllocationSizeMin: 24,
		AllocationSizeMax: 24,
		FreeRangeSizeMin:  math.MaxInt,
		FreeRangeSizeMax:  0,
	}, stats)

	heap.Free(ptr)
	require.NoError(t, heap.Validate())
	require.True(t, heap.IsEmpty())

	stats.Clear()
	heap.AddDetailedStatistics(&stats)

	require.Equal(t, brkheap.DetailedStatistics{
		Statistics: brkheap.Statistics{
			HeapBytes:       32,
			AllocationCount: 0,
			AllocationBytes: 0,
			FreeBytes:       24,
		},
		FreeRangeCount:    1,
		AllocationSizeMin: math.MaxInt,
		AllocationSizeMax: 0,
		FreeRangeSizeMin:  24,
		FreeRangeSizeMax:  24,
	}, stats)
}

func TestHeapRejectsInvalidSizes(t *testing.T) {
	heap := newTestHeap(t, 1<<20)

	require.Nil(t, heap.Alloc(0))
	require.Nil(t, heap.Alloc(-5))
	require.NoError(t, heap.Validate())
}

func TestHeapFirstFitReuse(t *testing.T) {
	heap := newTestHeap(t, 1<<20)

	ptrA := heap.Alloc(16)
	ptrB := heap.Alloc(32)
	ptrC := heap.Alloc(8)
	require.NotNil(t, ptrA)
	require.NotNil(t, ptrB)
	require.NotNil(t, ptrC)

	fillPayload(ptrA, 16, 0xA0)
	fillPayload(ptrC, 8, 0xC0)

	heap.Free(ptrB)
	require.NoError(t, heap.Validate())

	// First-fit must hand B's reclaimed span back out, splitting off the extra as a new
	// free record, without touching A or C.
	ptrD := heap.Alloc(20)
	require.NotNil(t, ptrD)
	require.True(t, ptrB == ptrD)
	require.NoError(t, heap.Validate())

	require.Equal(t, 1, heap.FreeRegionsCount())
	require.Equal(t, 12, heap.SumFreeSize())

	requirePayload(t, ptrA, 16, 0xA0)
	requirePayload(t, ptrC, 8, 0xC0)
}

func TestHeapCoalesceAdjacent(t *testing.T) {
	t.Run("ReleaseLowThenHigh", func(t *testing.T) {
		heap := newTestHeap(t, 1<<20)

		ptrA := heap.Alloc(24)
		ptrB := heap.Alloc(24)
		require.NotNil(t, ptrA)
		require.NotNil(t, ptrB)

		heap.Free(ptrA)
		heap.Free(ptrB)
		require.NoError(t, heap.Validate())

		// Both 32-byte blocks merge into one record: 24 + 24 usable plus the 8-byte
		// header reclaimed between them.
		require.Equal(t, 1, heap.FreeRegionsCount())
		require.Equal(t, 56, heap.SumFreeSize())
	})

	t.Run("ReleaseHighThenLow", func(t *testing.T) {
		heap := newTestHeap(t, 1<<20)

		ptrA := heap.Alloc(24)
		ptrB := heap.Alloc(24)
		require.NotNil(t, ptrA)
		require.NotNil(t, ptrB)

		heap.Free(ptrB)
		heap.Free(ptrA)
		require.NoError(t, heap.Validate())

		require.Equal(t, 1, heap.FreeRegionsCount())
		require.Equal(t, 56, heap.SumFreeSize())
	})

	t.Run("ReleaseMiddleLast", func(t *testing.T) {
		heap := newTestHeap(t, 1<<20)

		ptrA := heap.Alloc(24)
		ptrB := heap.Alloc(24)
		ptrC := heap.Alloc(24)
		require.NotNil(t, ptrA)
		require.NotNil(t, ptrB)
		require.NotNil(t, ptrC)

		heap.Free(ptrA)
		heap.Free(ptrC)
		require.Equal(t, 2, heap.FreeRegionsCount())

		// Freeing B bridges the two outer records into a single 88-byte span.
		heap.Free(ptrB)
		require.NoError(t, heap.Validate())
		require.Equal(t, 1, heap.FreeRegionsCount())
		require.Equal(t, 88, heap.SumFreeSize())
	})
}

func TestHeapAllocZeroed(t *testing.T) {
	heap := newTestHeap(t, 1<<20)

	dirty := heap.Alloc(32)
	require.NotNil(t, dirty)
	payload := unsafe.Slice((*byte)(dirty), 32)
	for i := range payload {
		payload[i] = 0xFF
	}
	heap.Free(dirty)

	// The zeroed allocation recycles the dirtied block, so every byte must be scrubbed.
	ptr := heap.AllocZeroed(4, 8)
	require.NotNil(t, ptr)
	require.True(t, ptr == dirty)

	zeroed := unsafe.Slice((*byte)(ptr), 32)
	for i := range zeroed {
		require.Equal(t, byte(0), zeroed[i], "payload byte %d", i)
	}
	require.NoError(t, heap.Validate())
}

func TestHeapAllocZeroedRejectsEmptyProducts(t *testing.T) {
	heap := newTestHeap(t, 1<<20)

	require.Nil(t, heap.AllocZeroed(0, 8))
	require.Nil(t, heap.AllocZeroed(8, 0))
	require.Nil(t, heap.AllocZeroed(-1, 8))
	require.Nil(t, heap.AllocZeroed(math.MaxInt/2, 4))
	require.NoError(t, heap.Validate())
	require.Equal(t, 0, heap.AllocationCount())
}

func TestHeapRealloc(t *testing.T) {
	t.Run("NilPointerAllocates", func(t *testing.T) {
		heap := newTestHeap(t, 1<<20)

		ptr := heap.Realloc(nil, 16)
		require.NotNil(t, ptr)
		require.Equal(t, 1, heap.AllocationCount())
	})

	t.Run("ZeroSizeReleases", func(t *testing.T) {
		heap := newTestHeap(t, 1<<20)

		ptr := heap.Alloc(16)
		require.NotNil(t, ptr)
		require.Nil(t, heap.Realloc(ptr, 0))
		require.True(t, heap.IsEmpty())
		require.NoError(t, heap.Validate())
	})

	t.Run("FitsInPlace", func(t *testing.T) {
		heap := newTestHeap(t, 1<<20)

		ptr := heap.Alloc(32)
		require.NotNil(t, ptr)

		// The block's recorded size is 40 after rounding, so growing within it must
		// not move the data.
		require.True(t, ptr == heap.Realloc(ptr, 40))
		require.True(t, ptr == heap.Realloc(ptr, 16))
		require.Equal(t, 1, heap.AllocationCount())
		require.NoError(t, heap.Validate())
	})

	t.Run("GrowthCopiesAndReleases", func(t *testing.T) {
		heap := newTestHeap(t, 1<<20)

		ptrOld := heap.Alloc(16)
		require.NotNil(t, ptrOld)
		fillPayload(ptrOld, 16, 0x40)

		ptrNew := heap.Realloc(ptrOld, 64)
		require.NotNil(t, ptrNew)
		require.False(t, ptrOld == ptrNew)
		requirePayload(t, ptrNew, 16, 0x40)

		// The old block must be back on the free list, not leaked.
		require.Equal(t, 1, heap.AllocationCount())
		require.Equal(t, 1, heap.FreeRegionsCount())
		require.Equal(t, 24, heap.SumFreeSize())
		require.NoError(t, heap.Validate())
	})
}

func TestHeapNoAliasing(t *testing.T) {
	heap := newTestHeap(t, 1<<20)

	sizes := []int{16, 48, 8, 112, 32, 24}
	ptrs := make([]unsafe.Pointer, len(sizes))
	for i, size := range sizes {
		ptrs[i] = heap.Alloc(size)
		require.NotNil(t, ptrs[i])
		fillPayload(ptrs[i], size, byte(i*16))
	}

	heap.Free(ptrs[1])
	heap.Free(ptrs[4])

	replacement := heap.Alloc(20)
	require.NotNil(t, replacement)
	fillPayload(replacement, 20, 0xE0)

	for i, size := range sizes {
		if i == 1 || i == 4 {
			continue
		}
		requirePayload(t, ptrs[i], size, byte(i*16))
	}
	requirePayload(t, replacement, 20, 0xE0)
	require.NoError(t, heap.Validate())
}

func TestHeapExhaustionReturnsNil(t *testing.T) {
	heap := newTestHeap(t, 64)

	require.NotNil(t, heap.Alloc(16))
	require.NotNil(t, heap.Alloc(16))
	require.Nil(t, heap.Alloc(16))
	require.NoError(t, heap.Validate())
}

func TestHeapExhaustionFromGrower(t *testing.T) {
	ctrl := gomock.NewController(t)

	backing := make([]byte, 64)
	grower := mocks.NewMockGrower(ctrl)
	grower.EXPECT().Base().Return(unsafe.Pointer(&backing[0]))
	grower.EXPECT().Grow(24).Return(0, 0, errors.Wrap(brkheap.ErrExhausted, "refused"))

	heap, err := malloc.New(grower, malloc.Options{Logger: slog.New(slog.NewTextHandler(os.Stdout))})
	require.NoError(t, err)

	require.Nil(t, heap.Alloc(16))
}

func TestHeapRequiresGrower(t *testing.T) {
	_, err := malloc.New(nil, malloc.Options{})
	require.Error(t, err)
}

func TestHeapBuildStatsString(t *testing.T) {
	heap := newTestHeap(t, 1<<20)

	ptr := heap.Alloc(16)
	require.NotNil(t, ptr)
	heap.Free(ptr)

	stats := heap.BuildStatsString()
	require.Contains(t, stats, `"BreakBytes":32`)
	require.Contains(t, stats, `"FreeRanges":1`)
	require.Contains(t, stats, `"FreeBytes":24`)
	require.Contains(t, stats, `"FreeList":[{"Offset":0,"Size":24}]`)
}
