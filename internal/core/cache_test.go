package core

import (
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func TestSQLiteCache_PutGetAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bioweaver", "tasks.db")

	c, err := OpenSQLiteCache(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	entry := &CacheEntry{
		Hash:     "abc123",
		Task:     "phylogeny",
		ExitCode: 0,
		Stdout:   []byte("ok"),
		Stderr:   []byte{},
		Targets:  []string{"out/all_samples_clustalo_aligned_nonchimera.fasta"},
	}
	if err := c.Put(entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLiteCache(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	ok, err := reopened.Has("abc123")
	if err != nil || !ok {
		t.Fatalf("expected record after reopen: ok=%v err=%v", ok, err)
	}
	got, err := reopened.Get("abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Task != entry.Task || string(got.Stdout) != "ok" || !reflect.DeepEqual(got.Targets, entry.Targets) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	missing, err := reopened.Get("nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown hash, got %+v err=%v", missing, err)
	}
}

func TestSQLiteCache_ConcurrentPuts(t *testing.T) {
	c, err := OpenSQLiteCache(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := TaskHash(string(rune('a' + i)))
			if err := c.Put(&CacheEntry{Hash: h, Task: "t", Targets: []string{"x"}}); err != nil {
				t.Errorf("put %s: %v", h, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if ok, err := c.Has(TaskHash(string(rune('a' + i)))); err != nil || !ok {
			t.Fatalf("missing record %d: %v", i, err)
		}
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Put(&CacheEntry{Hash: "h", Targets: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	got, _ := c.Get("h")
	got.Targets[0] = "mutated"
	again, _ := c.Get("h")
	if again.Targets[0] != "a" {
		t.Fatal("cache entry was mutated through a returned copy")
	}
}
