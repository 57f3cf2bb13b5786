package otp

import (
	"context"
	"hash/fnv"
	"sync"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	records map[string]Record
}

// MemoryStore is a sharded in-process Store. Each shard holds its own lock so
// independent phone numbers never contend on a single mutex.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore constructs an empty MemoryStore. Construct once at process
// start and pass by reference; tests get a fresh, resettable instance each.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]Record)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Put stores the record, replacing any previous one for the key.
func (s *MemoryStore) Put(_ context.Context, key string, rec Record) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.records[key] = rec
	sh.mu.Unlock()
	return nil
}

// Get returns the record for the key.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	rec, ok := sh.records[key]
	sh.mu.Unlock()
	return rec, ok, nil
}

// Delete removes the record for the key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.records, key)
	sh.mu.Unlock()
	return nil
}

// DeleteIfCode removes the record only when it still holds the given code.
// The check and the delete happen under the same shard lock.
func (s *MemoryStore) DeleteIfCode(_ context.Context, key, code string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.records[key]
	if !ok || rec.Code != code {
		return false, nil
	}
	delete(sh.records, key)
	return true, nil
}
