package state

import (
	"fmt"
	"sync"
	"time"
)

// Status is the in memory lifecycle status of a task.
type Status int8

// Task status constants.
const (
	StatusInProgress Status = iota
	StatusSuccess
	StatusFailure
	StatusDeleted
)

// String returns a human readable status.
func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Task is the in memory state of an active task. All mutation goes through
// the task's lock; a nil batch marks the task as an orphan.
type Task struct {
	Path string

	mu                sync.Mutex
	batch             *Batch
	status            Status
	lastUpdate        time.Time
	lastVersion       int32
	curWorker         string
	incarnation       int
	unforcedResubmits int
	thresholdReached  bool

	deletedCh chan struct{}
}

// NewTask returns a task for the given store path. A nil batch creates an
// orphan task.
func NewTask(path string, batch *Batch) *Task {
	return &Task{
		Path:        path,
		batch:       batch,
		status:      StatusInProgress,
		lastVersion: -1,
		deletedCh:   make(chan struct{}),
	}
}

// IsOrphan determines if the task has no live batch.
func (t *Task) IsOrphan() bool {
	t.mu.Lock()
	b := t.batch
	t.mu.Unlock()

	return b == nil || b.IsDead()
}

// IsUnassigned determines if no worker currently owns the task.
func (t *Task) IsUnassigned() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.curWorker == ""
}

// Batch returns the batch the task belongs to, if any.
func (t *Task) Batch() *Batch {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.batch
}

// SetBatch attaches the task to a batch, adopting an orphan.
func (t *Task) SetBatch(b *Batch) {
	t.mu.Lock()
	t.batch = b
	t.mu.Unlock()
}

// Status returns the task status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status
}

// Heartbeat records worker progress observed at a new store version.
func (t *Task) Heartbeat(now time.Time, version int32, worker string) {
	t.mu.Lock()
	t.lastVersion = version
	t.lastUpdate = now
	t.curWorker = worker
	t.mu.Unlock()
}

// HeartbeatNoDetails refreshes the update time without any version change.
func (t *Task) HeartbeatNoDetails(now time.Time) {
	t.mu.Lock()
	t.lastUpdate = now
	t.mu.Unlock()
}

// SetUnassigned clears the worker assignment.
func (t *Task) SetUnassigned() {
	t.mu.Lock()
	t.curWorker = ""
	t.lastUpdate = time.Time{}
	t.mu.Unlock()
}

// LastUpdate returns the time of the last heartbeat.
func (t *Task) LastUpdate() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastUpdate
}

// LastVersion returns the last observed store version.
func (t *Task) LastVersion() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastVersion
}

// CurWorker returns the worker currently owning the task, if any.
func (t *Task) CurWorker() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.curWorker
}

// Incarnation returns the resubmission count of the task.
func (t *Task) Incarnation() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.incarnation
}

// BumpIncarnation increments the resubmission count.
func (t *Task) BumpIncarnation() {
	t.mu.Lock()
	t.incarnation++
	t.mu.Unlock()
}

// UnforcedResubmits returns the number of timeout driven resubmissions.
func (t *Task) UnforcedResubmits() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.unforcedResubmits
}

// BumpUnforcedResubmits increments the timeout driven resubmission count.
func (t *Task) BumpUnforcedResubmits() {
	t.mu.Lock()
	t.unforcedResubmits++
	t.mu.Unlock()
}

// LatchThreshold latches the resubmission threshold, returning true the
// first time it is reached.
func (t *Task) LatchThreshold() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.thresholdReached {
		return false
	}
	t.thresholdReached = true
	return true
}

// ThresholdReached determines if the resubmission threshold was hit.
func (t *Task) ThresholdReached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.thresholdReached
}

// Finish moves an in progress task to the given terminal status. It returns
// whether the transition happened along with the attached batch, so terminal
// transitions happen exactly once.
func (t *Task) Finish(status Status) (bool, *Batch) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusInProgress {
		return false, nil
	}
	t.status = status
	return true, t.batch
}

// MarkDeleted transitions the task to deleted and wakes any waiters.
func (t *Task) MarkDeleted() {
	t.mu.Lock()
	t.status = StatusDeleted
	t.mu.Unlock()

	close(t.deletedCh)
}

// WaitDeleted blocks until the task is deleted or the stop channel closes,
// returning false if stopped first.
func (t *Task) WaitDeleted(stopCh <-chan struct{}) bool {
	select {
	case <-t.deletedCh:
		return true
	case <-stopCh:
		return false
	}
}

// String returns a human readable task summary.
func (t *Task) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("last_update = %v last_version = %d cur_worker = %q status = %s incarnation = %d resubmits = %d",
		t.lastUpdate, t.lastVersion, t.curWorker, t.status, t.incarnation, t.unforcedResubmits)
}
