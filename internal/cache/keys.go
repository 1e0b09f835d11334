package cache

import (
	"crypto/sha256"
	"fmt"
)

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// SubmitLockKey identifies the duplicate-check critical section for one
// candidate scope. URLs can be long, so the scope is hashed.
func SubmitLockKey(scope string) string {
	return fmt.Sprintf("lock:submit:%x", sha256.Sum256([]byte(scope)))
}
