package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recorder tracks one run from start to finish.
type Recorder struct {
	Store *Store
	Run   Run

	now func() time.Time
}

// NewRunID returns a random run identifier.
func NewRunID() string { return uuid.NewString() }

// Start persists a running record for run. Empty RunID and StartTime are
// filled in.
func Start(store *Store, run Run) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	r := &Recorder{Store: store, Run: run, now: func() time.Time { return time.Now().UTC() }}
	if r.Run.RunID == "" {
		r.Run.RunID = NewRunID()
	}
	if r.Run.StartTime.IsZero() {
		r.Run.StartTime = r.now()
	}
	r.Run.Status = RunStatusRunning
	if err := store.SaveRun(r.Run); err != nil {
		return nil, err
	}
	return r, nil
}

// Succeed marks the run as succeeded.
func (r *Recorder) Succeed(counts Counts) error {
	return r.finish(RunStatusSucceeded, counts)
}

// Fail marks the run as failed and records the classified cause.
func (r *Recorder) Fail(counts Counts, cause error) error {
	f, err := failureFromError(cause)
	if err != nil {
		return err
	}
	if err := r.Store.SaveFailure(r.Run.RunID, f); err != nil {
		return fmt.Errorf("recording failure: %w", err)
	}
	return r.finish(RunStatusFailed, counts)
}

func (r *Recorder) finish(status RunStatus, counts Counts) error {
	end := r.now()
	r.Run.EndTime = &end
	r.Run.Status = status
	r.Run.Counts = counts
	return r.Store.SaveRun(r.Run)
}
