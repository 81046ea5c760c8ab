package app

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/pieterkdevilliers/music-db/internal/constants"
	"github.com/pieterkdevilliers/music-db/internal/domain"
)

// ErrAlreadyRunning is returned when a job of the same kind is already in
// flight. One run per kind at a time.
var ErrAlreadyRunning = errors.New("job already running")

// Tracker holds the progress of one job kind. All fields are guarded by
// the mutex; Snapshot hands out copies so readers never observe a
// partially updated state.
type Tracker struct {
	kind domain.JobKind

	mu    sync.Mutex
	state domain.Progress
}

func NewTracker(kind domain.JobKind) *Tracker {
	return &Tracker{
		kind:  kind,
		state: domain.Progress{Status: domain.JobStatusIdle},
	}
}

// Begin transitions the tracker to starting and resets all counters. It
// fails if a run is already starting or running, which makes the check
// and the claim a single atomic step.
func (t *Tracker) Begin() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status == domain.JobStatusStarting || t.state.Status == domain.JobStatusRunning {
		return "", ErrAlreadyRunning
	}
	jobID := uuid.NewString()
	t.state = domain.Progress{
		JobID:  jobID,
		Status: domain.JobStatusStarting,
	}
	return jobID, nil
}

// Run marks the job as running with the given unit count.
func (t *Tracker) Run(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = domain.JobStatusRunning
	t.state.Total = total
}

// SetTotal adjusts the denominator after the real unit count is known.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Total = total
}

// SetCurrent records the label of the unit being processed.
func (t *Tracker) SetCurrent(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Current = label
}

// UnitDone advances the done counter and the outcome counter named by the
// caller.
func (t *Tracker) UnitDone(outcome Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Done++
	switch outcome {
	case OutcomeImported:
		t.state.Imported++
	case OutcomeUpdated:
		t.state.Updated++
	case OutcomeEnriched:
		t.state.Enriched++
	case OutcomeSkipped:
		t.state.Skipped++
	case OutcomeErrored:
		t.state.Errors++
	}
}

// Outcome names what happened to one unit of work.
type Outcome int

const (
	OutcomeImported Outcome = iota
	OutcomeUpdated
	OutcomeEnriched
	OutcomeSkipped
	OutcomeErrored
	// OutcomeNone advances only the done counter.
	OutcomeNone
)

// AddError appends a message to the error list, keeping only the newest
// entries once the cap is reached.
func (t *Tracker) AddError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.ErrorList = append(t.state.ErrorList, msg)
	if len(t.state.ErrorList) > constants.MaxJobErrors {
		t.state.ErrorList = t.state.ErrorList[len(t.state.ErrorList)-constants.MaxJobErrors:]
	}
}

// RequestCancel flags a running job for cancellation. The job observes
// the flag at unit boundaries; the request does not interrupt the unit in
// flight. Requests against a job that is not in flight are ignored.
func (t *Tracker) RequestCancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status != domain.JobStatusStarting && t.state.Status != domain.JobStatusRunning {
		return false
	}
	t.state.CancelRequested = true
	return true
}

// Cancelled reports whether cancellation has been requested.
func (t *Tracker) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.CancelRequested
}

// Finish moves the tracker to its terminal status. Counters and the
// error list are left in place for post-run inspection.
func (t *Tracker) Finish(status domain.JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = status
	t.state.Current = ""
}

// Fail records a fatal job error and moves to the error status.
func (t *Tracker) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = domain.JobStatusError
	t.state.Current = ""
	t.state.ErrorList = append(t.state.ErrorList, msg)
	if len(t.state.ErrorList) > constants.MaxJobErrors {
		t.state.ErrorList = t.state.ErrorList[len(t.state.ErrorList)-constants.MaxJobErrors:]
	}
}

// Snapshot returns a copy of the current progress. The error list is
// copied so callers can serialize it without holding the lock.
func (t *Tracker) Snapshot() domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.state
	if t.state.ErrorList != nil {
		snap.ErrorList = make([]string, len(t.state.ErrorList))
		copy(snap.ErrorList, t.state.ErrorList)
	}
	return snap
}

// Kind returns the job kind this tracker covers.
func (t *Tracker) Kind() domain.JobKind {
	return t.kind
}
