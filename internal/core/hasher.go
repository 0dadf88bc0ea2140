package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// TaskHash identifies one concrete execution of a task: same command, same
// targets, same dependency fingerprints. A successful record under the same
// hash means the task does not need to run again.
type TaskHash string

// TaskHasher computes TaskHash values.
type TaskHasher struct{}

// NewTaskHasher creates a new TaskHasher.
func NewTaskHasher() *TaskHasher {
	return &TaskHasher{}
}

// HashInput contains all components that contribute to a TaskHash.
type HashInput struct {
	// Template is the placeholder form of the command.
	Template string

	// Argv is the resolved command, program first.
	Argv []string

	// Stdout is the redirection target, if any.
	Stdout string

	Env     map[string]string
	Targets []string

	// Inputs is the fingerprinted dependency set (already sorted).
	Inputs *InputSet
}

// ComputeHash computes a deterministic TaskHash.
//
// Every component is length-prefixed, and collections are written with their
// count first, so no two distinct inputs share an encoding.
func (h *TaskHasher) ComputeHash(input HashInput) TaskHash {
	hasher := sha256.New()

	writeField(hasher, []byte(input.Template))

	writeCount(hasher, len(input.Argv))
	for _, a := range input.Argv {
		writeField(hasher, []byte(a))
	}
	writeField(hasher, []byte(input.Stdout))

	envKeys := make([]string, 0, len(input.Env))
	for k := range input.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	writeCount(hasher, len(envKeys))
	for _, k := range envKeys {
		writeField(hasher, []byte(k))
		writeField(hasher, []byte(input.Env[k]))
	}

	targets := make([]string, len(input.Targets))
	copy(targets, input.Targets)
	sort.Strings(targets)
	writeCount(hasher, len(targets))
	for _, t := range targets {
		writeField(hasher, []byte(t))
	}

	if input.Inputs == nil {
		writeCount(hasher, 0)
	} else {
		writeCount(hasher, len(input.Inputs.Inputs))
		for _, in := range input.Inputs.Inputs {
			writeField(hasher, []byte(in.Path))
			if in.IsDir {
				writeField(hasher, []byte{1})
			} else {
				writeField(hasher, []byte{0})
			}
			writeCount(hasher, int(in.Size))
			writeCount(hasher, int(in.ModTime.UnixNano()))
			writeCount(hasher, len(in.Entries))
			for _, e := range in.Entries {
				writeField(hasher, []byte(e))
			}
		}
	}

	return TaskHash(hex.EncodeToString(hasher.Sum(nil)))
}

// String returns the string representation of the TaskHash.
func (t TaskHash) String() string {
	return string(t)
}

func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	writeField(h, buf[:])
}
