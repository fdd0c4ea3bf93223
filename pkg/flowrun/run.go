package flowrun

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses. Every terminal path ends in StatusFinished; Outcome says
// which path was taken.
const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

// Outcome records why a finished run stopped.
type Outcome string

// Run outcomes.
const (
	// OutcomeCompleted means a terminal edge was reached.
	OutcomeCompleted Outcome = "completed"
	// OutcomeMissingNode means the current node had no registered unit.
	OutcomeMissingNode Outcome = "missing_node"
	// OutcomeNodeError means a node returned an error or panicked.
	OutcomeNodeError Outcome = "node_error"
	// OutcomeStepLimit means the step bound was reached.
	OutcomeStepLimit Outcome = "step_limit"
)

// Phase identifies a step record.
type Phase string

// Step phases.
const (
	PhaseStart       Phase = "start"
	PhaseEnd         Phase = "end"
	PhaseMissingNode Phase = "missing_node"
	PhaseError       Phase = "error"
)

// StepRecord is one append-only entry in a run's log.
type StepRecord struct {
	Step  int    `json:"step"`
	Node  string `json:"node"`
	Phase Phase  `json:"event"`
	State State  `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// RunRecord is a point-in-time copy of a run. It is what the store
// persists and what inspection returns; mutating it has no effect on the
// live run.
type RunRecord struct {
	ID         string       `json:"id"`
	GraphID    string       `json:"graph_id"`
	State      State        `json:"state"`
	Status     Status       `json:"status"`
	Current    string       `json:"current"`
	Log        []StepRecord `json:"log"`
	Outcome    Outcome      `json:"outcome,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Steps returns the number of executed steps (the highest step index logged).
func (r RunRecord) Steps() int {
	if len(r.Log) == 0 {
		return 0
	}
	return r.Log[len(r.Log)-1].Step
}

// Finished reports whether the run has stopped.
func (r RunRecord) Finished() bool {
	return r.Status == StatusFinished
}

// run is the live, engine-owned record. The executing goroutine is the only
// writer; readers take snapshots under the read lock.
type run struct {
	mu sync.RWMutex

	id         string
	graphID    string
	state      State
	status     Status
	current    string
	log        []StepRecord
	outcome    Outcome
	startedAt  time.Time
	finishedAt time.Time
}

func newRun(id, graphID, entry string, initial State) *run {
	return &run{
		id:        id,
		graphID:   graphID,
		state:     CopyState(initial),
		status:    StatusRunning,
		current:   entry,
		log:       []StepRecord{},
		startedAt: time.Now().UTC(),
	}
}

// append adds a step record and moves current to its node.
func (r *run) append(rec StepRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = rec.Node
	r.log = append(r.log, rec)
}

// merge applies a node result to the live state.
func (r *run) merge(update State) {
	if len(update) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	Merge(r.state, update)
}

// finish marks the run finished. It is the last mutation of a run.
func (r *run) finish(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusFinished
	r.outcome = outcome
	r.finishedAt = time.Now().UTC()
}

// stateSnapshot returns a deep copy of the live state.
func (r *run) stateSnapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotState(r.state)
}

// nodeInput returns the shallow copy handed to a node, so the node cannot
// mutate the run's map in place.
func (r *run) nodeInput() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CopyState(r.state)
}

// record returns a deep snapshot of the run.
func (r *run) record() RunRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := make([]StepRecord, len(r.log))
	for i, rec := range r.log {
		if rec.State != nil {
			rec.State = snapshotState(rec.State)
		}
		log[i] = rec
	}

	out := RunRecord{
		ID:        r.id,
		GraphID:   r.graphID,
		State:     snapshotState(r.state),
		Status:    r.status,
		Current:   r.current,
		Log:       log,
		Outcome:   r.outcome,
		StartedAt: r.startedAt,
	}
	if !r.finishedAt.IsZero() {
		t := r.finishedAt
		out.FinishedAt = &t
	}
	return out
}
