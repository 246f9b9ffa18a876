package state

import (
	"fmt"
	"sync"
)

// Batch tracks the set of tasks submitted together by a single caller.
// The caller sleeps on the notification channel until all of its tasks
// have terminated.
type Batch struct {
	mu        sync.Mutex
	installed int
	done      int
	errs      int
	dead      bool

	notifyCh chan struct{}
}

// NewBatch returns a batch.
func NewBatch() *Batch {
	return &Batch{
		notifyCh: make(chan struct{}, 1),
	}
}

// Install records a task installed into the batch.
func (b *Batch) Install() {
	b.mu.Lock()
	b.installed++
	b.mu.Unlock()
}

// RecordDone records a successful task completion and wakes the waiter.
func (b *Batch) RecordDone() {
	b.mu.Lock()
	b.done++
	b.mu.Unlock()

	b.notify()
}

// RecordError records a terminal task failure and wakes the waiter.
func (b *Batch) RecordError() {
	b.mu.Lock()
	b.errs++
	b.mu.Unlock()

	b.notify()
}

// Counts returns the installed, done and error counters.
func (b *Batch) Counts() (installed, done, errs int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.installed, b.done, b.errs
}

// Terminated determines if every installed task has terminated.
func (b *Batch) Terminated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.done+b.errs == b.installed
}

// SetDead marks the batch as abandoned by its creator.
func (b *Batch) SetDead() {
	b.mu.Lock()
	b.dead = true
	b.mu.Unlock()
}

// IsDead determines if the batch has been abandoned.
func (b *Batch) IsDead() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dead
}

// NotifyCh returns the channel the batch creator waits on. The waiter must
// re-check the counters after every wake.
func (b *Batch) NotifyCh() <-chan struct{} {
	return b.notifyCh
}

func (b *Batch) notify() {
	select {
	case b.notifyCh <- struct{}{}:
	default:
	}
}

// String returns a human readable batch summary.
func (b *Batch) String() string {
	installed, done, errs := b.Counts()
	return fmt.Sprintf("installed = %d done = %d error = %d", installed, done, errs)
}
