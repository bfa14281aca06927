package byteutil

import (
	"fmt"
	"math"
)

// CheckAddOverflow reports whether a+b would overflow an int.
func CheckAddOverflow(a, b int) error {
	if b > 0 && a > math.MaxInt-b {
		return fmt.Errorf("addition overflow: %d + %d exceeds int max", a, b)
	}
	return nil
}

// SafeAdd adds two ints, returning an error instead of wrapping on overflow.
func SafeAdd(a, b int) (int, error) {
	if err := CheckAddOverflow(a, b); err != nil {
		return 0, err
	}
	return a + b, nil
}

// CeilDiv returns ceil(a/b) for positive a, b, used to compute the number of
// overflow pages a record must span.
func CeilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
