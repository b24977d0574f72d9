// Package pin talks to the content-addressable store. Pinning a JSON
// document returns an identifier derived from its content, which is what
// makes retried submissions collapse onto one persisted record.
package pin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
)

// ContentStore pins a JSON-serializable document under a key and returns
// its content hash.
type ContentStore interface {
	Pin(ctx context.Context, key string, v any) (string, error)
}

// Memory is an in-process content store. The hash is the SHA-256 of the
// RFC 8785 canonical JSON form, so it is deterministic across processes
// the same way a remote pinning service's hash is.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-process content store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// Pin stores the canonical form of v and returns its content hash.
func (m *Memory) Pin(ctx context.Context, key string, v any) (string, error) {
	hash, canonical, err := CanonicalHash(v)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.docs[hash] = canonical
	m.mu.Unlock()
	return hash, nil
}

// Get returns the pinned document for a hash.
func (m *Memory) Get(hash string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[hash]
	return doc, ok
}

// CanonicalHash returns the SHA-256 hex digest of v's RFC 8785 canonical
// JSON form, plus the canonical bytes themselves.
func CanonicalHash(v any) (string, []byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("marshal for pinning: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", nil, fmt.Errorf("canonicalize for pinning: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), canonical, nil
}
