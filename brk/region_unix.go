//go:build linux || darwin

package brk

import (
	"golang.org/x/sys/unix"
)

// reserve maps size bytes of anonymous private memory. Pages are committed lazily by the
// kernel as the consumer touches them, so reserving far more than the expected working set
// is cheap.
func reserve(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func release(data []byte) error {
	return unix.Munmap(data)
}
