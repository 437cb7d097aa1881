package fits

import (
	"fmt"
	"math"
)

// safeMul multiplies two non-negative int64 values, failing instead of
// overflowing. Axis sizes of hundreds-of-GB cubes put products near the
// edge of what naive arithmetic handles silently.
func safeMul(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("negative operand: %d * %d", a, b)
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, fmt.Errorf("multiplication overflow: %d * %d", a, b)
	}
	return a * b, nil
}

// padToBlock rounds n up to the next multiple of BlockSize.
func padToBlock(n int64) int64 {
	if rem := n % BlockSize; rem != 0 {
		return n + BlockSize - rem
	}
	return n
}
