package testutil

import (
	"fmt"
	"sync"
)

// IdentityGenerator hands out sequential entity identities
// ("person-0001", "person-0002", ...) so scenario output is stable.
//
// Thread-safety: all methods are safe for concurrent use.
type IdentityGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewIdentityGenerator creates a generator. An empty prefix uses "entity".
func NewIdentityGenerator(prefix string) *IdentityGenerator {
	if prefix == "" {
		prefix = "entity"
	}
	return &IdentityGenerator{prefix: prefix}
}

// Generate returns the next identity.
func (g *IdentityGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}
