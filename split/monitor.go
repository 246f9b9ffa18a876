package split

import (
	"time"

	"github.com/nrwiersma/splitlog/split/state"
)

// runMonitor runs the timeout monitor until the manager is stopped.
func (m *Manager) runMonitor() {
	ticker := time.NewTicker(m.config.MonitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkTasks()

		case <-m.stopCh:
			return
		}
	}
}

// checkTasks sweeps the task table, taking over tasks owned by dead workers
// and resubmitting tasks whose progress has stalled. When every task sits
// unassigned for too long the workers are pinged with a rescan marker.
func (m *Manager) checkTasks() {
	dead := m.takeDeadWorkers()

	var (
		tot           int
		unassigned    int
		resubmitted   int
		foundAssigned bool
	)

	for _, task := range m.tasks.List() {
		if task.Status() != state.StatusInProgress {
			continue
		}
		tot++

		if task.IsUnassigned() {
			unassigned++
			continue
		}
		foundAssigned = true

		worker := task.CurWorker()
		if _, ok := dead[worker]; ok {
			m.stats.Inc("split.worker.dead", 1, 1.0)
			m.log.Info("taking over task from dead worker", "path", task.Path, "worker", worker)
			if m.resubmit(task.Path, task, resubmitForce) {
				resubmitted++
				continue
			}

			// The takeover write failed; keep the worker on the dead list
			// so the next sweep tries again.
			m.HandleDeadWorker(worker)
			m.log.Info("failed to take over task from dead worker, will retry", "path", task.Path, "worker", worker)
			continue
		}

		if m.resubmit(task.Path, task, resubmitCheck) {
			resubmitted++
		}
	}

	if tot > 0 {
		m.log.Debug("checked tasks", "total", tot, "unassigned", unassigned, "resubmitted", resubmitted)
	}

	// With every task unassigned and no node created recently the workers
	// may have missed the tasks entirely. Re-arm the watches and ping the
	// workers with a rescan marker.
	if tot > 0 && !foundAssigned && m.sinceLastNodeCreate(time.Now()) > m.config.UnassignedTimeout {
		for _, task := range m.tasks.List() {
			if task.Status() == state.StatusInProgress && task.IsUnassigned() {
				m.tryGetDataSetWatch(task.Path)
			}
		}
		m.createRescanNode(retryForever)
		m.stats.Inc("split.resubmit.unassigned", 1, 1.0)
		m.log.Debug("tasks unassigned for too long, forcing a rescan", "tasks", tot)
	}
}
