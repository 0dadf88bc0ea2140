package trace

import (
	"slices"
	"sync"
)

// Sink receives events from the executor. Record must return quickly; the
// executor holds its scheduling lock while recording.
type Sink interface {
	Record(event TraceEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(TraceEvent)

func (f SinkFunc) Record(event TraceEvent) { f(event) }

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(TraceEvent) {}

// Tee fans each event out to every non-nil sink, in order.
func Tee(sinks ...Sink) Sink {
	live := slices.DeleteFunc(slices.Clone(sinks), func(s Sink) bool { return s == nil })
	return SinkFunc(func(event TraceEvent) {
		for _, s := range live {
			SafeRecord(s, event)
		}
	})
}

// SafeRecord records an event, tolerating a nil or panicking sink. A broken
// sink must not take a workflow run down with it.
func SafeRecord(s Sink, event TraceEvent) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder keeps every event of a run in memory for the --trace file. It is
// safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Targets = slices.Clone(event.Targets)
	r.events = append(r.events, event)
}

// Snapshot returns the events recorded so far in arrival order.
func (r *Recorder) Snapshot() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Tasks returns the sorted names of the tasks that produced an event of kind.
func (r *Recorder) Tasks(kind EventKind) []string {
	var out []string
	for _, ev := range r.Snapshot() {
		if ev.Kind == kind {
			out = append(out, ev.TaskID)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Trace builds the canonical ExecutionTrace of the run.
func (r *Recorder) Trace(graphHash string) ExecutionTrace {
	tr := ExecutionTrace{GraphHash: graphHash, Events: r.Snapshot()}
	tr.Canonicalize()
	return tr
}
