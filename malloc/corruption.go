package malloc

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/exp/slog"
)

// CorruptionError is the panic value raised when a release-time header check fails. It is
// deliberately not returned from any method: a heap that failed the check can no longer be
// trusted to answer any call correctly, so the failure must not be downgradable into an
// ordinary error result.
type CorruptionError struct {
	// Address is the payload pointer that failed validation.
	Address unsafe.Pointer
	// Magic is the value found where the allocation sentinel should have been. It is 0
	// when the pointer did not fall inside the heap region at all.
	Magic uint32
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("memory corruption detected at %p: header magic was %#08x", e.Address, e.Magic)
}

// fatalCorruption reports a failed header check and halts. It never returns.
func (h *Heap) fatalCorruption(ptr unsafe.Pointer, magic uint32) {
	err := &CorruptionError{
		Address: ptr,
		Magic:   magic,
	}

	h.logger.LogAttrs(context.Background(), slog.LevelError, "MEMORY CORRUPTION DETECTED",
		slog.String("address", fmt.Sprintf("%p", ptr)),
		slog.String("magic", fmt.Sprintf("%#08x", magic)))

	panic(err)
}
