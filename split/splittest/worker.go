package splittest

import (
	"time"
)

// WorkerFunc handles a task node grabbed by a test worker.
type WorkerFunc func(store *Store, worker, path string)

// AcquireAndFinish grabs the task and immediately completes it.
func AcquireAndFinish(store *Store, worker, path string) {
	_ = store.Acquire(path, worker)
	_ = store.FinishNode(path, worker)
}

// AcquireOnly grabs the task and then stalls on it.
func AcquireOnly(store *Store, worker, path string) {
	_ = store.Acquire(path, worker)
}

// AcquireAndErr grabs the task and reports a terminal error on it.
func AcquireAndErr(store *Store, worker, path string) {
	_ = store.Acquire(path, worker)
	_ = store.ErrNode(path, worker)
}

// Worker polls the store for unassigned task nodes and handles each one
// exactly once.
type Worker struct {
	store     *Store
	name      string
	namespace string
	fn        WorkerFunc

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWorker starts a test worker handling unassigned task nodes under the
// namespace with fn, which defaults to AcquireAndFinish.
func NewWorker(store *Store, name, namespace string, fn WorkerFunc) *Worker {
	if fn == nil {
		fn = AcquireAndFinish
	}

	w := &Worker{
		store:     store,
		name:      name,
		namespace: namespace,
		fn:        fn,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	go w.run()

	return w
}

func (w *Worker) run() {
	defer close(w.doneCh)

	seen := map[string]bool{}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case <-ticker.C:
			for _, path := range w.store.TaskNodes(w.namespace) {
				if seen[path] {
					continue
				}

				ts, ok := w.store.TaskState(path)
				if !ok || !ts.IsUnassigned() {
					continue
				}

				seen[path] = true
				w.fn(w.store, w.name, path)
			}
		}
	}
}

// Stop stops the worker, waiting for it to exit.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}
