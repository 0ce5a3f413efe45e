// Package refgen produces human-readable booking reference codes.
package refgen

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// DefaultPrefix is used when the caller does not configure one.
const DefaultPrefix = "REF"

// Generator builds reference codes of the form PREFIX-YYMMDD-NNNN using the
// generation-time date. The 4-digit suffix is random, so collisions within one
// day are possible; the booking orchestrator re-generates on a duplicate.
type Generator struct {
	Prefix string
	// Now and Intn are injectable for tests; nil values fall back to the
	// wall clock and math/rand.
	Now  func() time.Time
	Intn func(n int) int
}

// Generate returns a new reference code.
func (g Generator) Generate() string {
	prefix := strings.ToUpper(strings.TrimSpace(g.Prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	intn := rand.Intn
	if g.Intn != nil {
		intn = g.Intn
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, now().Format("060102"), intn(10000))
}
