package state_test

import (
	"testing"
	"time"

	"github.com/nrwiersma/splitlog/split/state"
	"github.com/stretchr/testify/assert"
)

func TestNewTask(t *testing.T) {
	batch := state.NewBatch()

	task := state.NewTask("/splitlog/foo", batch)

	assert.Equal(t, "/splitlog/foo", task.Path)
	assert.Equal(t, state.StatusInProgress, task.Status())
	assert.Equal(t, int32(-1), task.LastVersion())
	assert.True(t, task.IsUnassigned())
	assert.False(t, task.IsOrphan())
}

func TestTask_IsOrphan(t *testing.T) {
	task := state.NewTask("/splitlog/foo", nil)

	assert.True(t, task.IsOrphan())

	batch := state.NewBatch()
	task.SetBatch(batch)

	assert.False(t, task.IsOrphan())

	batch.SetDead()

	assert.True(t, task.IsOrphan())
}

func TestTask_Heartbeat(t *testing.T) {
	task := state.NewTask("/splitlog/foo", nil)
	now := time.Now()

	task.Heartbeat(now, 3, "worker-1")

	assert.Equal(t, now, task.LastUpdate())
	assert.Equal(t, int32(3), task.LastVersion())
	assert.Equal(t, "worker-1", task.CurWorker())
	assert.False(t, task.IsUnassigned())
}

func TestTask_HeartbeatNoDetails(t *testing.T) {
	task := state.NewTask("/splitlog/foo", nil)
	task.Heartbeat(time.Now().Add(-time.Minute), 3, "worker-1")
	now := time.Now()

	task.HeartbeatNoDetails(now)

	assert.Equal(t, now, task.LastUpdate())
	assert.Equal(t, int32(3), task.LastVersion())
	assert.Equal(t, "worker-1", task.CurWorker())
}

func TestTask_SetUnassigned(t *testing.T) {
	task := state.NewTask("/splitlog/foo", nil)
	task.Heartbeat(time.Now(), 3, "worker-1")

	task.SetUnassigned()

	assert.True(t, task.IsUnassigned())
	assert.True(t, task.LastUpdate().IsZero())
	assert.Equal(t, int32(3), task.LastVersion())
}

func TestTask_LatchThreshold(t *testing.T) {
	task := state.NewTask("/splitlog/foo", nil)

	assert.False(t, task.ThresholdReached())
	assert.True(t, task.LatchThreshold())
	assert.False(t, task.LatchThreshold())
	assert.True(t, task.ThresholdReached())
}

func TestTask_FinishHappensOnce(t *testing.T) {
	batch := state.NewBatch()
	task := state.NewTask("/splitlog/foo", batch)

	done, b := task.Finish(state.StatusSuccess)

	assert.True(t, done)
	assert.Equal(t, batch, b)
	assert.Equal(t, state.StatusSuccess, task.Status())

	done, b = task.Finish(state.StatusFailure)

	assert.False(t, done)
	assert.Nil(t, b)
	assert.Equal(t, state.StatusSuccess, task.Status())
}

func TestTask_WaitDeleted(t *testing.T) {
	task := state.NewTask("/splitlog/foo", nil)
	stopCh := make(chan struct{})

	go task.MarkDeleted()

	assert.True(t, task.WaitDeleted(stopCh))
	assert.Equal(t, state.StatusDeleted, task.Status())
}

func TestTask_WaitDeletedStops(t *testing.T) {
	task := state.NewTask("/splitlog/foo", nil)
	stopCh := make(chan struct{})
	close(stopCh)

	assert.False(t, task.WaitDeleted(stopCh))
}
