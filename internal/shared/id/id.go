// Package id provides centralized ID generation for the runtime.
//
// IDs are prefixed ULIDs (scope_*, q_*, wrk_*): lexicographically
// sortable by creation time, type-safe at compile time, and readable in
// logs. Registry keys remain caller-chosen names; these IDs identify
// instances, not registry slots.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ScopeID identifies a Scope instance.
type ScopeID string

// QueueID identifies a Queue instance.
type QueueID string

// WorkerID identifies a Worker instance.
type WorkerID string

const (
	ScopePrefix  = "scope"
	QueuePrefix  = "q"
	WorkerPrefix = "wrk"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator with the given entropy source.
// Deterministic entropy is useful for tests.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewScopeID generates a new scope ID.
func NewScopeID() ScopeID {
	return ScopeID(Default().GenerateWithPrefix(ScopePrefix))
}

// NewQueueID generates a new queue ID.
func NewQueueID() QueueID {
	return QueueID(Default().GenerateWithPrefix(QueuePrefix))
}

// NewWorkerID generates a new worker ID.
func NewWorkerID() WorkerID {
	return WorkerID(Default().GenerateWithPrefix(WorkerPrefix))
}

func (id ScopeID) String() string  { return string(id) }
func (id QueueID) String() string  { return string(id) }
func (id WorkerID) String() string { return string(id) }

// Parse parses a raw (unprefixed) ULID string.
func Parse(raw string) (ulid.ULID, error) {
	return ulid.Parse(raw)
}
