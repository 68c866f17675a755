package utils

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator hands out names that are unique within its own scope. It is
// passed explicitly to whatever needs collision-free names.
type IDGenerator interface {
	NewID(prefix string) string
}

// UUIDGenerator produces random, globally unique names.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}

// SequenceGenerator produces prefix_0, prefix_1, ... and is deterministic,
// which keeps tests readable.
type SequenceGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *SequenceGenerator) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s_%d", prefix, g.next)
	g.next++
	return id
}
