// Package id mints time-sortable identifiers for alert rules.
package id

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	mu sync.Mutex

	// Monotonic entropy over crypto/rand: two IDs minted in the same
	// millisecond still compare in mint order.
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. Sorting a set of rule IDs reproduces
// their creation order.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}
