package split

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hamba/pkg/log"
	"github.com/hamba/pkg/stats"
	"github.com/nrwiersma/splitlog/split/state"
	"github.com/pkg/errors"
)

// retryForever is the retry budget for deletes, which must never give up.
const retryForever = math.MaxInt64

// Manager distributes the task of log splitting to the available workers.
// For every log file that has to be split a node is published under the
// configured namespace in the coordination store. Workers race to grab a
// task; the manager watches the nodes it creates and resubmits tasks whose
// progress stalls. When a task is done the manager deletes its node.
//
// There is a race in this design between the manager and a worker: the
// manager might re-queue a task that has in reality already been completed.
// Correctness relies on the idempotency of the splitting work.
type Manager struct {
	store    Store
	config   *Config
	finisher TaskFinisher

	tasks *state.Store

	// lastNodeCreateTime is the unix nano timestamp of the last
	// successful node creation.
	lastNodeCreateTime int64

	deadWorkersMu sync.Mutex
	deadWorkers   map[string]struct{}

	log   log.Logger
	stats stats.Statter

	stopMu  sync.Mutex
	stopCh  chan struct{}
	stopped bool
}

// New returns a manager publishing tasks to the given store.
func New(store Store, cfg *Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("split: store cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Null
	}
	statter := cfg.Statter
	if statter == nil {
		statter = stats.Null
	}

	tasks, err := state.New()
	if err != nil {
		return nil, errors.Wrap(err, "split: creating task store")
	}

	m := &Manager{
		store:              store,
		config:             cfg,
		finisher:           cfg.Finisher,
		tasks:              tasks,
		lastNodeCreateTime: math.MaxInt64,
		log:                logger,
		stats:              statter,
		stopCh:             make(chan struct{}),
	}

	return m, nil
}

// Init completes initialization, scanning the namespace for orphan tasks
// left behind by a previous manager. Unless masterRecovery is set, the
// timeout monitor is started.
func (m *Manager) Init(masterRecovery bool) {
	if !masterRecovery {
		go m.runMonitor()
	}

	m.lookForOrphans()
}

// SplitLogs blocks until all the log files under the given directories have
// been processed by the available workers, either split successfully or
// terminally errored. It returns the cumulative size of the log files.
func (m *Manager) SplitLogs(logDirs ...string) (int64, error) {
	logfiles, totalSize, err := m.listLogFiles(logDirs)
	if err != nil {
		return 0, err
	}

	m.log.Info("started splitting logs", "dirs", fmt.Sprintf("%v", logDirs))
	m.stats.Inc("split.batch.start", 1, 1.0)

	start := time.Now()
	batch := state.NewBatch()
	for _, lf := range logfiles {
		if !m.enqueueSplitTask(lf, batch) {
			return 0, fmt.Errorf("split: duplicate log split scheduled for %s", lf)
		}
	}

	m.waitForSplittingCompletion(batch)

	installed, done, errs := batch.Counts()
	if done+errs < installed {
		batch.SetDead()
		m.stats.Inc("split.batch.err", 1, 1.0)
		m.log.Error("error while splitting logs", "dirs", fmt.Sprintf("%v", logDirs), "batch", batch.String())
		return 0, fmt.Errorf("split: error or interrupted while splitting logs in %v: %s", logDirs, batch)
	}

	for _, logDir := range logDirs {
		m.cleanupLogDir(logDir)
	}
	m.stats.Inc("split.batch.success", 1, 1.0)

	m.log.Info("finished splitting logs",
		"bytes", totalSize,
		"files", installed,
		"dirs", fmt.Sprintf("%v", logDirs),
		"duration", time.Since(start).String(),
	)
	return totalSize, nil
}

// listLogFiles enumerates the log files under the given directories.
// Missing directories are skipped; empty directories are noted. The sizes
// of files still being written to may be under-reported.
func (m *Manager) listLogFiles(logDirs []string) ([]string, int64, error) {
	var (
		logfiles  []string
		totalSize int64
	)

	for _, dir := range logDirs {
		fis, err := readDir(dir)
		if os.IsNotExist(err) {
			m.log.Info("log dir doesn't exist, nothing to do", "dir", dir)
			continue
		}
		if err != nil {
			return nil, 0, errors.Wrap(err, "split: listing log dir")
		}

		if len(fis) == 0 {
			m.log.Info("log dir is empty, no logs to split", "dir", dir)
			continue
		}

		for _, fi := range fis {
			if fi.IsDir() {
				continue
			}
			totalSize += fi.Size()
			logfiles = append(logfiles, filepath.Join(dir, fi.Name()))
		}
	}

	return logfiles, totalSize, nil
}

// enqueueSplitTask installs a task entry for the log file into the batch,
// adopting an orphan entry if there is one. It returns false if the entry
// could not be installed, such as when another live batch holds it.
func (m *Manager) enqueueSplitTask(logfile string, batch *state.Batch) bool {
	m.stats.Inc("split.task.start", 1, 1.0)

	path := m.taskNode(logfile)
	if old := m.createTaskIfAbsent(path, batch); old != nil {
		return false
	}

	// Publish the task in the store.
	m.createNode(path, int64(m.config.Retries))
	return true
}

// waitForSplittingCompletion blocks until every task in the batch has
// terminated, the manager is stopped, or the task table and store agree
// there is nothing left to wait for.
func (m *Manager) waitForSplittingCompletion(batch *state.Batch) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for !batch.Terminated() {
		installed, done, errs := batch.Counts()
		remaining := installed - (done + errs)
		actual := m.activeTasks(batch)
		if remaining != actual {
			m.log.Info("active task count mismatch", "expected", remaining, "actual", actual)
		}

		remainingInStore := m.remainingTasksInStore()
		if remainingInStore >= 0 && actual > remainingInStore {
			m.log.Info("store is missing task nodes", "active", actual, "in-store", remainingInStore)
		}
		if remainingInStore == 0 || actual == 0 {
			m.log.Info("no more tasks remaining, splitting should have completed",
				"in-store", remainingInStore, "active", actual)
			if remainingInStore == 0 && actual == 0 {
				return
			}
		}

		select {
		case <-batch.NotifyCh():
		case <-ticker.C:
		case <-m.stopCh:
			m.log.Info("stopped while waiting for log splits to be completed")
			return
		}
	}
}

// activeTasks counts the in progress tasks belonging to the batch.
func (m *Manager) activeTasks(batch *state.Batch) int {
	count := 0
	for _, t := range m.tasks.List() {
		if t.Batch() == batch && t.Status() == state.StatusInProgress {
			count++
		}
	}
	return count
}

// remainingTasksInStore counts the task nodes left in the namespace,
// ignoring rescan markers. It returns -1 if the store cannot be listed.
func (m *Manager) remainingTasksInStore() int {
	children, err := m.store.Children(m.config.Namespace)
	if err != nil {
		m.log.Info("failed to check remaining tasks", "error", err)
		return -1
	}

	count := 0
	for _, child := range children {
		if !m.isRescanNode(child) {
			count++
		}
	}
	return count
}

// cleanupLogDir deletes a fully split source directory. Failure to delete
// is logged and ignored; partial cleanup is acceptable when the splits
// themselves succeeded.
func (m *Manager) cleanupLogDir(logDir string) {
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		return
	}

	if err := os.Remove(logDir); err != nil {
		fis, _ := readDir(logDir)
		if len(fis) > 0 {
			m.log.Info("returning success without deleting all the log files", "dir", logDir)
			return
		}
		m.log.Info("unable to delete log src dir, ignoring", "dir", logDir, "error", err)
	}
}

// createTaskIfAbsent installs a task for the path into the batch. It
// returns nil on success, or the existing task when the path is already
// claimed by a live batch or a failed task that could not be replaced.
func (m *Manager) createTaskIfAbsent(path string, batch *state.Batch) *state.Task {
	newTask := state.NewTask(path, batch)
	old, inserted := m.tasks.InsertIfAbsent(newTask)
	if inserted {
		batch.Install()
		return nil
	}

	if !old.IsOrphan() {
		m.log.Error("two batches cannot wait for the same task", "path", path)
		return old
	}

	switch old.Status() {
	case state.StatusSuccess:
		// The task is already done. Do not install it into the batch,
		// there is no completion event left to fire for it.
		return nil

	case state.StatusInProgress:
		old.SetBatch(batch)
		batch.Install()
		m.log.Debug("previously orphan task is now being waited upon", "path", path)
		return nil
	}

	for old.Status() == state.StatusFailure {
		m.log.Debug("waiting for task to be deleted", "path", path)
		m.stats.Inc("split.wait.delete", 1, 1.0)
		if !old.WaitDeleted(m.stopCh) {
			m.log.Error("stopped while waiting for node delete callback", "path", path)
			return old
		}
	}

	if old.Status() != state.StatusDeleted {
		m.log.Error("previously failed task state still present", "path", path)
		return old
	}

	// Reinsert the new task, which must succeed now that the old one has
	// been removed from the table.
	if _, ok := m.tasks.InsertIfAbsent(newTask); ok {
		batch.Install()
		return nil
	}
	m.log.Error("logic error: deleted task still present in task table", "path", path)
	return m.tasks.Get(path)
}

// findOrCreateOrphanTask returns the task at the path, creating an orphan
// task if the manager has no in memory state for it.
func (m *Manager) findOrCreateOrphanTask(path string) *state.Task {
	orphan := state.NewTask(path, nil)
	task, inserted := m.tasks.InsertIfAbsent(orphan)
	if inserted {
		m.log.Info("creating orphan task", "path", path)
		m.stats.Inc("split.orphan.acquired", 1, 1.0)
	}
	return task
}

// lookForOrphans pulls stale tasks left in the store by a previous manager
// into memory so the state machine can resubmit them as needed.
func (m *Manager) lookForOrphans() {
	children, err := m.store.Children(m.config.Namespace)
	if err != nil {
		m.log.Error("could not get children of namespace", "namespace", m.config.Namespace, "error", err)
		return
	}

	rescanNodes := 0
	for _, child := range children {
		nodepath := m.config.Namespace + "/" + child
		if m.isRescanNode(child) {
			rescanNodes++
			m.log.Debug("found orphan rescan node", "path", nodepath)
		} else {
			m.log.Info("found orphan task", "path", nodepath)
		}
		m.getDataSetWatch(nodepath, int64(m.config.Retries))
	}

	m.log.Info("orphan scan complete", "tasks", len(children)-rescanNodes, "rescan-nodes", rescanNodes)
}

// HandleDeadWorker queues a dead worker for task takeover. The resubmission
// happens on the timeout monitor, which makes the retries easier to reason
// about.
func (m *Manager) HandleDeadWorker(workerName string) {
	m.deadWorkersMu.Lock()
	if m.deadWorkers == nil {
		m.deadWorkers = make(map[string]struct{})
	}
	m.deadWorkers[workerName] = struct{}{}
	m.deadWorkersMu.Unlock()

	m.log.Info("dead split worker", "worker", workerName)
}

// HandleDeadWorkers queues dead workers for task takeover.
func (m *Manager) HandleDeadWorkers(workerNames []string) {
	m.deadWorkersMu.Lock()
	if m.deadWorkers == nil {
		m.deadWorkers = make(map[string]struct{})
	}
	for _, name := range workerNames {
		m.deadWorkers[name] = struct{}{}
	}
	m.deadWorkersMu.Unlock()

	m.log.Info("dead split workers", "workers", fmt.Sprintf("%v", workerNames))
}

// takeDeadWorkers atomically takes the current dead worker set.
func (m *Manager) takeDeadWorkers() map[string]struct{} {
	m.deadWorkersMu.Lock()
	defer m.deadWorkersMu.Unlock()

	dead := m.deadWorkers
	m.deadWorkers = nil
	return dead
}

// Tasks returns a snapshot of the task table.
func (m *Manager) Tasks() []TaskInfo {
	tasks := m.tasks.List()
	infos := make([]TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		infos = append(infos, TaskInfo{
			Path:        t.Path,
			Logfile:     m.taskName(t.Path),
			Worker:      t.CurWorker(),
			Status:      t.Status(),
			Incarnation: t.Incarnation(),
			Resubmits:   t.UnforcedResubmits(),
			LastUpdate:  t.LastUpdate(),
		})
	}
	return infos
}

// Stop halts the timeout monitor and unblocks waiting callers.
func (m *Manager) Stop() {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	close(m.stopCh)
}

// isStopped determines if the manager has been stopped.
func (m *Manager) isStopped() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// setLastNodeCreateTime records a successful node creation.
func (m *Manager) setLastNodeCreateTime(now time.Time) {
	atomic.StoreInt64(&m.lastNodeCreateTime, now.UnixNano())
}

// sinceLastNodeCreate returns the time since the last successful node
// creation, which is negative until a node has been created.
func (m *Manager) sinceLastNodeCreate(now time.Time) time.Duration {
	last := atomic.LoadInt64(&m.lastNodeCreateTime)
	if last == math.MaxInt64 {
		return -1
	}
	return now.Sub(time.Unix(0, last))
}

// readDir lists the directory entries of dir.
func readDir(dir string) ([]os.FileInfo, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.Readdir(-1)
}
