package brkheap

import (
	cerrors "github.com/cockroachdb/errors"
)

// Alignment is the boundary, in bytes, that break extensions are rounded up to. Blocks carved
// from recycled free-list memory inherit whatever alignment the split point lands on.
const Alignment uint = 16

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}
