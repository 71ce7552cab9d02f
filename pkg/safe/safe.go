// Package safe provides checked uint64 arithmetic for fund math.
// Every monetary computation in the engine goes through these helpers;
// a false second return value means the operation would wrap.
package safe

import "math/bits"

// Add returns a+b, or false if the sum overflows uint64.
func Add(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// Sub returns a-b, or false if b > a.
func Sub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// Mul returns a*b, or false if the product overflows uint64.
func Mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}
