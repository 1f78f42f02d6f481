package archive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrBlobNotFound = errors.New("archive: blob not found")

// Store is the archival/availability collaborator. Blobs are content
// addressed and written only for historical audit, never on the settlement
// hot path.
type Store interface {
	Store(ctx context.Context, blob []byte) (string, error)
	Retrieve(ctx context.Context, id string) ([]byte, error)
}

// MemoryStore keeps blobs in process memory, keyed by the hex keccak256 of
// the content. Suitable for local deployments and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Store(_ context.Context, blob []byte) (string, error) {
	id := hex.EncodeToString(ethcrypto.Keccak256(blob))
	s.mu.Lock()
	s.blobs[id] = append([]byte(nil), blob...)
	s.mu.Unlock()
	return id, nil
}

// IDs lists the stored blob identifiers in lexical order.
func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (s *MemoryStore) Retrieve(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}
	return append([]byte(nil), blob...), nil
}
