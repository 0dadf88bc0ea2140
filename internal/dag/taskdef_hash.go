package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"bioweaver/internal/core"
)

// computeTaskDefHash hashes the declarative definition of a task.
//
// Depends and targets are sets for identity and are sorted; env is sorted by
// key; argv keeps its order. Every field is length-prefixed.
func computeTaskDefHash(t core.Task) TaskDefHash {
	h := sha256.New()

	writeString(h, t.Template())

	argv := t.Argv()
	writeLen(h, len(argv))
	for _, a := range argv {
		writeString(h, a)
	}
	writeString(h, t.StdoutPath())

	writeSorted(h, t.Depends)
	writeSorted(h, t.Targets)

	envKeys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	writeLen(h, len(envKeys))
	for _, k := range envKeys {
		writeString(h, k)
		writeString(h, t.Env[k])
	}

	return TaskDefHash(hex.EncodeToString(h.Sum(nil)))
}

func writeSorted(h hash.Hash, values []string) {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	writeLen(h, len(sorted))
	for _, v := range sorted {
		writeString(h, v)
	}
}

func writeString(h hash.Hash, s string) {
	writeLen(h, len(s))
	h.Write([]byte(s))
}

func writeLen(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}
