package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// DefaultPrefix leads every order reference unless configured otherwise.
const DefaultPrefix = "LUXRE"

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderID returns a human readable reference of the form
// PREFIX-ORD-YYYYMMDD-XXXX. The date is taken in now's location. References
// are not checked for collisions; they only identify a conversation.
func GenerateOrderID(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-ORD-%s-%s", prefix, now.Format("20060102"), randomSuffix(4))
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	size := big.NewInt(int64(len(idAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("order: reading random source: %v", err))
		}
		b[i] = idAlphabet[idx.Int64()]
	}
	return string(b)
}
