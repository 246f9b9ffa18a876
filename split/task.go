package split

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/nrwiersma/splitlog/split/state"
)

// FinishStatus is the result of finishing a task.
type FinishStatus int8

// Finish status constants.
const (
	// FinishDone indicates the task completed successfully.
	FinishDone FinishStatus = iota

	// FinishErr indicates the task completed with an error.
	FinishErr
)

// TaskFinisher finishes off a task partially done by a worker. It provides a
// serialization point at the end of task processing and must be restartable
// and idempotent, as it can be called multiple times for the same task.
type TaskFinisher interface {
	// Finish finishes the partially done task. The worker name provides a
	// clue to where the partial results are, logfile is the log file the
	// task was published for.
	Finish(workerName, logfile string) FinishStatus
}

// FinisherFunc is an adapter allowing a function to be used as a
// TaskFinisher.
type FinisherFunc func(workerName, logfile string) FinishStatus

// Finish finishes the partially done task.
func (f FinisherFunc) Finish(workerName, logfile string) FinishStatus {
	return f(workerName, logfile)
}

// resubmitDirective selects how resubmission gates are applied.
type resubmitDirective int8

const (
	// resubmitCheck gates resubmission on the task timeout and the
	// resubmission budget.
	resubmitCheck resubmitDirective = iota

	// resubmitForce skips all gates and writes unconditionally.
	resubmitForce
)

// TaskInfo is a point in time snapshot of a task.
type TaskInfo struct {
	Path        string
	Logfile     string
	Worker      string
	Status      state.Status
	Incarnation int
	Resubmits   int
	LastUpdate  time.Time
}

// rescanPrefix is the child name prefix of rescan marker nodes. The store
// appends a sequence suffix on creation.
const rescanPrefix = "RESCAN"

// encodeTaskName reversibly encodes a log file path into a node name.
func encodeTaskName(logfile string) string {
	return url.QueryEscape(logfile)
}

// decodeTaskName decodes a node name back into a log file path.
func decodeTaskName(name string) (string, error) {
	return url.QueryUnescape(name)
}

// taskNode returns the store path of the task for the given log file.
func (m *Manager) taskNode(logfile string) string {
	return m.config.Namespace + "/" + encodeTaskName(logfile)
}

// rescanNode returns the store path prefix of a rescan marker.
func (m *Manager) rescanNode() string {
	return m.config.Namespace + "/" + rescanPrefix
}

// isRescanNode determines if the node path is a rescan marker.
func (m *Manager) isRescanNode(nodepath string) bool {
	return strings.HasPrefix(path.Base(nodepath), rescanPrefix)
}

// taskName returns the log file a task node path was published for.
func (m *Manager) taskName(nodepath string) string {
	name, err := decodeTaskName(path.Base(nodepath))
	if err != nil {
		return path.Base(nodepath)
	}
	return name
}
