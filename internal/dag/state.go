package dag

// TaskState is the runtime execution state of a node. It lives outside
// TaskGraph so one graph can be executed repeatedly.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskSkipped   TaskState = "SKIPPED"
	// TaskCached marks a task whose targets were already up to date.
	TaskCached TaskState = "CACHED"
)
