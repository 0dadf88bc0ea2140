package core

import (
	"fmt"
	"sync"
)

// CacheEntry is the stored record of a finished task execution.
//
// Only metadata is kept. Targets stay where the task wrote them; a record is
// only honoured while those targets still exist.
type CacheEntry struct {
	Hash     TaskHash `json:"hash"`
	Task     string   `json:"task"`
	ExitCode int      `json:"exit_code"`
	Stdout   []byte   `json:"stdout"`
	Stderr   []byte   `json:"stderr"`
	Targets  []string `json:"targets"`
}

// Cache stores and retrieves task execution records.
//
// Implementations must be safe for concurrent use; the parallel executor
// probes and records from several goroutines.
type Cache interface {
	// Has checks if a record exists for the given hash.
	Has(hash TaskHash) (bool, error)

	// Get retrieves a record by hash. Returns nil if there is none.
	Get(hash TaskHash) (*CacheEntry, error)

	// Put stores a record, replacing any previous one for the same hash.
	Put(entry *CacheEntry) error
}

// MemoryCache implements Cache in memory. Used by tests and dry runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[TaskHash]*CacheEntry
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[TaskHash]*CacheEntry)}
}

// Has checks if a cache entry exists.
func (c *MemoryCache) Has(hash TaskHash) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.entries[hash]
	return exists, nil
}

// Get retrieves a cache entry.
func (c *MemoryCache) Get(hash TaskHash) (*CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.entries[hash]
	if !exists {
		return nil, nil
	}
	return copyEntry(entry), nil
}

// Put stores a cache entry.
func (c *MemoryCache) Put(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Hash] = copyEntry(entry)
	return nil
}

// Len returns the number of stored records.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyEntry(entry *CacheEntry) *CacheEntry {
	return &CacheEntry{
		Hash:     entry.Hash,
		Task:     entry.Task,
		ExitCode: entry.ExitCode,
		Stdout:   append([]byte(nil), entry.Stdout...),
		Stderr:   append([]byte(nil), entry.Stderr...),
		Targets:  append([]string(nil), entry.Targets...),
	}
}
