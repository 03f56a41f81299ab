//go:build !linux && !darwin

package brk

// reserve falls back to a Go-heap-backed slice on hosts without anonymous mappings. The
// whole reservation is committed up front, so prefer a modest size here.
func reserve(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func release(data []byte) error {
	return nil
}
