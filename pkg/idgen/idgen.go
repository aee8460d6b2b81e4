// Package idgen generates prefixed identifiers for Daybook entities.
package idgen

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Prefixes used for each entity kind.
const (
	PrefixTask       = "tsk"
	PrefixTimeBlock  = "blk"
	PrefixTemplate   = "tpl"
	PrefixRecurrence = "rec"
	PrefixChecklist  = "chk"
)

// Generator produces unique identifiers. Implementations must be safe for
// concurrent use.
type Generator interface {
	NewID(prefix string) string
}

// Generate creates a new unique ID in the format "prefix-<uuidv7>".
// UUIDv7 is time ordered, so ids sort roughly by creation.
func Generate(prefix string) (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return fmt.Sprintf("%s-%s", prefix, strings.ReplaceAll(u.String(), "-", "")), nil
}

// MustGenerate creates a new unique ID, panicking on error.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(err)
	}
	return id
}

// UUID is the production Generator.
type UUID struct{}

func (UUID) NewID(prefix string) string {
	return MustGenerate(prefix)
}

// Sequence is a deterministic Generator for tests: tsk-1, tsk-2, rec-1, ...
type Sequence struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewSequence creates a Sequence starting at 1 for every prefix.
func NewSequence() *Sequence {
	return &Sequence{counts: make(map[string]int)}
}

func (s *Sequence) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[prefix]++
	return fmt.Sprintf("%s-%d", prefix, s.counts[prefix])
}
