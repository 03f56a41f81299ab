package brkheap

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrExhausted is the error at the root of failures to extend the heap's break address. Callers
// of brk.Region.Grow can use errors.Is against this value to distinguish resource exhaustion
// from misuse.
var ErrExhausted error = errors.New("heap region reservation exhausted")
