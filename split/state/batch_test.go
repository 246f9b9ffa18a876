package state_test

import (
	"testing"

	"github.com/nrwiersma/splitlog/split/state"
	"github.com/stretchr/testify/assert"
)

func TestBatch_Terminated(t *testing.T) {
	batch := state.NewBatch()

	assert.True(t, batch.Terminated())

	batch.Install()
	batch.Install()

	assert.False(t, batch.Terminated())

	batch.RecordDone()

	assert.False(t, batch.Terminated())

	batch.RecordError()

	assert.True(t, batch.Terminated())

	installed, done, errs := batch.Counts()
	assert.Equal(t, 2, installed)
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, errs)
}

func TestBatch_NotifiesWaiter(t *testing.T) {
	batch := state.NewBatch()
	batch.Install()

	batch.RecordDone()

	select {
	case <-batch.NotifyCh():
	default:
		t.Fatal("expected a notification")
	}
}

func TestBatch_NotifyNeverBlocks(t *testing.T) {
	batch := state.NewBatch()

	for i := 0; i < 10; i++ {
		batch.Install()
		batch.RecordDone()
	}

	assert.True(t, batch.Terminated())
}

func TestBatch_SetDead(t *testing.T) {
	batch := state.NewBatch()

	assert.False(t, batch.IsDead())

	batch.SetDead()

	assert.True(t, batch.IsDead())
}
