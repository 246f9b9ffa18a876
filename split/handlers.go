package split

import (
	"math"
	"time"

	"github.com/nrwiersma/splitlog/split/proto"
	"github.com/nrwiersma/splitlog/split/state"
)

// versionNoNode marks a read that found no node. It is outside the range of
// store versions so it can never collide with a real one.
const versionNoNode = math.MinInt32

// createNode publishes an unassigned task node, retrying asynchronously on
// failure up to retries times.
func (m *Manager) createNode(path string, retries int64) {
	data, err := proto.Encode(proto.NewUnassigned(m.config.Name))
	if err != nil {
		m.log.Error("could not encode task payload", "path", path, "error", err)
		m.createNodeFailure(path)
		return
	}

	m.store.Create(path, data, func(name string, err error) {
		m.createNodeResult(path, retries, err)
	})
}

// createNodeResult handles the result of an asynchronous task node create.
func (m *Manager) createNodeResult(path string, retries int64, err error) {
	switch err {
	case nil:
		m.createNodeSuccess(path)

	case ErrNodeExists:
		// The node is already up, presumably from a previous manager.
		// The watch set below keeps the state machine going.
		m.log.Debug("node for the task already exists", "path", path)
		m.createNodeSuccess(path)

	default:
		m.log.Info("create failed, retrying", "path", path, "retries", retries, "error", err)
		if retries == 0 {
			m.createNodeFailure(path)
			return
		}
		m.createNode(path, retries-1)
	}
}

// createNodeSuccess arms a watch on a freshly published task node.
func (m *Manager) createNodeSuccess(path string) {
	m.setLastNodeCreateTime(time.Now())
	m.getDataSetWatch(path, int64(m.config.Retries))
}

// createNodeFailure gives up on publishing a task node.
func (m *Manager) createNodeFailure(path string) {
	m.log.Error("failed to create task node", "path", path)
	m.setDone(path, state.StatusFailure)
}

// getDataSetWatch reads a task node and arms a one shot data watch on it,
// retrying asynchronously on failure up to retries times.
func (m *Manager) getDataSetWatch(path string, retries int64) {
	m.store.GetData(path, m.nodeDataChanged, func(data []byte, version int32, err error) {
		m.getDataResult(path, retries, data, version, err)
	})
}

// tryGetDataSetWatch reads a task node and arms a watch on it without any
// retry budget.
func (m *Manager) tryGetDataSetWatch(path string) {
	m.getDataSetWatch(path, -1)
}

// getDataResult handles the result of an asynchronous task node read.
func (m *Manager) getDataResult(path string, retries int64, data []byte, version int32, err error) {
	switch err {
	case nil:
		m.getDataSuccess(path, data, version)

	case ErrSessionExpired:
		m.log.Error("store session expired, abandoning retries", "path", path)

	case ErrNoNode:
		m.log.Info("task node vanished before read", "path", path)
		m.getDataSuccess(path, nil, versionNoNode)

	default:
		if retries < 0 {
			m.log.Info("ignoring a speculative read failure", "path", path, "error", err)
			return
		}

		m.log.Info("get data failed, retrying", "path", path, "retries", retries, "error", err)
		if retries == 0 {
			m.getDataFailure(path)
			return
		}
		m.getDataSetWatch(path, retries-1)
	}
}

// getDataFailure gives up on reading a task node.
func (m *Manager) getDataFailure(path string) {
	m.log.Error("failed to read task node", "path", path)
	m.setDone(path, state.StatusFailure)
}

// getDataSuccess dispatches on the task payload read from the store. A nil
// payload at versionNoNode means the node is gone, which only happens after
// the task was completed and deleted.
func (m *Manager) getDataSuccess(path string, data []byte, version int32) {
	if data == nil {
		if version == versionNoNode {
			m.setDone(path, state.StatusSuccess)
			return
		}
		m.log.Error("logic error: task node has no data", "path", path, "version", version)
		m.setDone(path, state.StatusFailure)
		return
	}

	var ts proto.TaskState
	if err := proto.Decode(data, &ts); err != nil {
		m.log.Error("could not decode task payload", "path", path, "error", err)
		return
	}

	switch ts.State {
	case proto.StateUnassigned:
		m.log.Debug("task not yet acquired", "path", path, "version", version)
		m.handleUnassignedTask(path)

	case proto.StateOwned:
		m.heartbeat(path, version, ts.ServerName)

	case proto.StateResigned:
		m.log.Info("task entered resigned state", "path", path, "worker", ts.ServerName)
		m.resubmitOrFail(path, resubmitForce)

	case proto.StateDone:
		m.log.Info("task entered done state", "path", path, "worker", ts.ServerName)
		if m.finisher != nil && !m.isRescanNode(path) {
			if m.finisher.Finish(ts.ServerName, m.taskName(path)) == FinishErr {
				m.resubmitOrFail(path, resubmitCheck)
				return
			}
		}
		m.setDone(path, state.StatusSuccess)

	case proto.StateErr:
		m.log.Info("task entered err state", "path", path, "worker", ts.ServerName)
		m.resubmitOrFail(path, resubmitCheck)

	default:
		m.log.Error("logic error: unexpected task state", "path", path, "state", ts.State)
		m.setDone(path, state.StatusFailure)
	}
}

// handleUnassignedTask tracks a task waiting to be grabbed by a worker.
// Rescan nodes are skipped, their payload never leaves the done state. An
// orphan task seen unassigned on its first incarnation is forcefully
// resubmitted so the workers notice it.
func (m *Manager) handleUnassignedTask(path string) {
	if m.isRescanNode(path) {
		return
	}

	task := m.findOrCreateOrphanTask(path)
	if task.IsOrphan() && task.Incarnation() == 0 {
		// The exact result does not matter, the timeout monitor picks up
		// anything missed here.
		m.resubmit(path, task, resubmitForce)
	}
}

// heartbeat records worker progress on a task observed at a new store
// version.
func (m *Manager) heartbeat(path string, version int32, worker string) {
	task := m.findOrCreateOrphanTask(path)
	if version == task.LastVersion() {
		// A duplicate read of the same version is not progress.
		return
	}

	if task.IsUnassigned() {
		m.log.Info("task acquired", "path", path, "worker", worker)
	}
	task.Heartbeat(time.Now(), version, worker)
	m.stats.Inc("split.heartbeat", 1, 1.0)
}

// resubmit puts the task back up for grabs, gated by the resubmission
// directive. It returns whether the store write happened.
func (m *Manager) resubmit(path string, task *state.Task, directive resubmitDirective) bool {
	if task.Status() != state.StatusInProgress {
		return false
	}

	version := int32(-1)
	if directive == resubmitCheck {
		if time.Since(task.LastUpdate()) < m.config.Timeout {
			return false
		}
		if task.UnforcedResubmits() >= m.config.MaxResubmit {
			if task.LatchThreshold() {
				m.log.Info("skipping resubmit, maximum resubmissions reached", "path", path, "worker", task.CurWorker())
			}
			return false
		}
		version = task.LastVersion()
	}

	// The incarnation is bumped before the write, so it counts every
	// resubmission attempt past the gates, whether or not the write lands.
	task.BumpIncarnation()

	data, err := proto.Encode(proto.NewUnassigned(m.config.Name))
	if err != nil {
		m.log.Error("could not encode task payload", "path", path, "error", err)
		return false
	}

	ok, err := m.store.SetData(path, data, version)
	if err == ErrNoNode {
		m.log.Info("task no longer in store", "path", path)
		m.getDataSuccess(path, nil, versionNoNode)
		return false
	}
	if err != nil {
		m.log.Info("failed to resubmit task", "path", path, "error", err)
		m.stats.Inc("split.resubmit.failed", 1, 1.0)
		return false
	}
	if !ok {
		// The version moved underneath us, which counts as progress.
		m.log.Debug("failed to resubmit task, version changed", "path", path)
		task.HeartbeatNoDetails(time.Now())
		return false
	}

	if directive == resubmitCheck {
		task.BumpUnforcedResubmits()
	}
	task.SetUnassigned()
	m.createRescanNode(retryForever)

	m.log.Info("task is put back up for grabs", "path", path, "incarnation", task.Incarnation())
	m.stats.Inc("split.resubmit", 1, 1.0)
	return true
}

// resubmitOrFail resubmits the task, failing it when the resubmission is
// refused or impossible.
func (m *Manager) resubmitOrFail(path string, directive resubmitDirective) {
	if !m.resubmit(path, m.findOrCreateOrphanTask(path), directive) {
		m.setDone(path, state.StatusFailure)
	}
}

// setDone moves the task to a terminal status and schedules its node for
// deletion. The batch is only notified on the first terminal transition.
func (m *Manager) setDone(path string, status state.Status) {
	task := m.tasks.Get(path)
	if task == nil {
		if !m.isRescanNode(path) {
			m.stats.Inc("split.done.unacquired", 1, 1.0)
			m.log.Debug("done for a task not in memory", "path", path)
		}
	} else if done, batch := task.Finish(status); done && batch != nil {
		switch status {
		case state.StatusSuccess:
			batch.RecordDone()
			m.log.Info("task done", "path", path, "batch", batch.String())
		default:
			batch.RecordError()
			m.log.Info("task errored", "path", path, "batch", batch.String())
		}
	}

	// The node must go regardless of the in memory state, or the namespace
	// fills up with terminal tasks no worker will touch.
	m.deleteNode(path, retryForever)
}

// deleteNode deletes the task node, retrying asynchronously on failure up to
// retries times.
func (m *Manager) deleteNode(path string, retries int64) {
	m.stats.Inc("split.delete", 1, 1.0)
	m.store.Delete(path, func(err error) {
		m.deleteNodeResult(path, retries, err)
	})
}

// deleteNodeResult handles the result of an asynchronous task node delete.
func (m *Manager) deleteNodeResult(path string, retries int64, err error) {
	switch err {
	case nil:
		m.deleteNodeSuccess(path)

	case ErrNoNode:
		m.stats.Inc("split.delete.missing", 1, 1.0)
		m.log.Debug("task node is already deleted", "path", path)
		m.deleteNodeSuccess(path)

	default:
		m.log.Info("delete failed, retrying", "path", path, "retries", retries, "error", err)
		if retries == 0 {
			m.deleteNodeFailure(path)
			return
		}
		m.deleteNode(path, retries-1)
	}
}

// deleteNodeSuccess drops the task from the task table and wakes any waiters
// blocked on the deletion.
func (m *Manager) deleteNodeSuccess(path string) {
	task := m.tasks.Remove(path)
	if task == nil {
		if !m.isRescanNode(path) {
			m.stats.Inc("split.delete.unacquired", 1, 1.0)
			m.log.Debug("deleted a task without in memory state", "path", path)
		}
		return
	}

	task.MarkDeleted()
	m.stats.Inc("split.task.deleted", 1, 1.0)
}

// deleteNodeFailure reports a delete that ran out of retries, which cannot
// happen while deletes carry an unbounded budget.
func (m *Manager) deleteNodeFailure(path string) {
	m.log.Error("delete failed with no remaining retries", "path", path)
}

// createRescanNode publishes an ephemeral sequential rescan marker to ping
// the workers into rescanning the namespace, retrying asynchronously on
// failure up to retries times. The marker carries a done payload so the
// manager's own read of it runs the ordinary done path and deletes it.
func (m *Manager) createRescanNode(retries int64) {
	data, err := proto.Encode(proto.NewDone(m.config.Name))
	if err != nil {
		m.log.Error("could not encode rescan payload", "error", err)
		return
	}

	m.store.CreateEphemeralSequential(m.rescanNode(), data, func(name string, err error) {
		m.createRescanResult(name, retries, err)
	})
}

// createRescanResult handles the result of an asynchronous rescan marker
// create.
func (m *Manager) createRescanResult(name string, retries int64, err error) {
	switch err {
	case nil:
		m.createRescanSuccess(name)

	case ErrSessionExpired:
		m.log.Error("store session expired, abandoning retries", "path", m.rescanNode())

	default:
		m.log.Info("rescan create failed, retrying", "retries", retries, "error", err)
		if retries == 0 {
			m.createRescanFailure()
			return
		}
		m.createRescanNode(retries - 1)
	}
}

// createRescanSuccess reads a freshly created rescan marker; its done
// payload has it deleted straight away.
func (m *Manager) createRescanSuccess(name string) {
	m.setLastNodeCreateTime(time.Now())
	m.stats.Inc("split.rescan", 1, 1.0)
	m.getDataSetWatch(name, int64(m.config.Retries))
}

// createRescanFailure reports a rescan create that ran out of retries, which
// cannot happen while rescans carry an unbounded budget.
func (m *Manager) createRescanFailure() {
	m.log.Error("rescan create failed with no remaining retries")
}

// nodeDataChanged re-arms the watch on a task node whose data changed. Tasks
// without in memory state are ignored unless they are rescan markers, which
// are always tracked through to deletion.
func (m *Manager) nodeDataChanged(path string) {
	task := m.tasks.Get(path)
	if task == nil && !m.isRescanNode(path) {
		return
	}

	if task != nil {
		task.HeartbeatNoDetails(time.Now())
	}
	m.getDataSetWatch(path, int64(m.config.Retries))
}
