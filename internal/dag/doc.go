// Package dag is the workflow engine: it turns declared tasks into an
// immutable dependency graph and executes it.
//
// The package is split into:
//   - Declaration (Builder): the workflow handle that task declaration
//     functions register into. Registration has no side effects.
//   - Immutable graph definition (TaskGraph): tasks, edges derived from shared
//     file paths, canonical ordering and a stable GraphHash.
//   - Mutable execution state (ExecutionState): per-task runtime status,
//     driven by Executor through validated transitions.
//
// Edges are implicit: a task that depends on a path runs after the task that
// declares that path as a target. Dependencies no task produces are external
// inputs and must exist when the consuming task starts.
package dag
