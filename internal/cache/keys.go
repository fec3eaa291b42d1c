package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

// LookupKey caches one (store, product) lookup result. The store URL and
// product ID are hashed together so arbitrary URLs stay key-safe.
func LookupKey(storeURL, productID string) string {
	sum := sha256.Sum256([]byte(storeURL + "\x00" + productID))
	return fmt.Sprintf("lookup:%s", hex.EncodeToString(sum[:16]))
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
