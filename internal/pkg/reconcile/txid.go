package reconcile

import (
	"math/rand"
	"strconv"
	"time"
)

// generateTransactionID builds a plan-history transaction id from a random
// 7-digit number followed by a second-precision timestamp, and re-rolls
// until the candidate is unused. The loop exists specifically to absorb
// collisions; callers must run it inside the tick transaction so the
// existence check sees uncommitted history rows.
func generateTransactionID(exists func(string) (bool, error), randDigits func() int64, now func() time.Time) (string, error) {
	for {
		candidate := strconv.FormatInt(randDigits(), 10) + now().Format("20060102150405")

		used, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
}

// defaultRandDigits returns a random number in [1000000, 9999999].
func defaultRandDigits() int64 {
	return 1000000 + rand.Int63n(9000000)
}
