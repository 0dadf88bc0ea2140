// Package core provides the domain model for a single pipeline task and the
// machinery that runs one.
//
// # Core Types
//
// Command: a typed command description. A program plus ordered argv words,
// where each word is built from literal text and references to the task's
// dependencies, targets and positional arguments. References are checked when
// the task is constructed, never at substitution time.
//
// Task: one declared unit of work: a Command, the dependency paths it reads,
// the target paths it produces and the positional arguments its command
// refers to.
//
// Input: a fingerprint of a dependency on disk (size, modification time and,
// for directories, the listing). Fingerprints contribute to task identity.
//
// # Execution
//
// A Runner fingerprints dependencies, hashes the task, consults a Cache and
// either skips the task (a successful record exists and every target is on
// disk) or executes it through an Executor and verifies its targets.
package core
