package state_test

import (
	"testing"

	"github.com/nrwiersma/splitlog/split/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertIfAbsent(t *testing.T) {
	store, err := state.New()
	require.NoError(t, err)

	task := state.NewTask("/splitlog/foo", nil)

	got, inserted := store.InsertIfAbsent(task)

	assert.True(t, inserted)
	assert.Equal(t, task, got)

	other := state.NewTask("/splitlog/foo", nil)
	got, inserted = store.InsertIfAbsent(other)

	assert.False(t, inserted)
	assert.Equal(t, task, got)
	assert.Equal(t, 1, store.Len())
}

func TestStore_Get(t *testing.T) {
	store, err := state.New()
	require.NoError(t, err)

	task := state.NewTask("/splitlog/foo", nil)
	store.InsertIfAbsent(task)

	assert.Equal(t, task, store.Get("/splitlog/foo"))
	assert.Nil(t, store.Get("/splitlog/bar"))
}

func TestStore_Remove(t *testing.T) {
	store, err := state.New()
	require.NoError(t, err)

	task := state.NewTask("/splitlog/foo", nil)
	store.InsertIfAbsent(task)

	got := store.Remove("/splitlog/foo")

	assert.Equal(t, task, got)
	assert.Nil(t, store.Get("/splitlog/foo"))
	assert.Nil(t, store.Remove("/splitlog/foo"))
}

func TestStore_List(t *testing.T) {
	store, err := state.New()
	require.NoError(t, err)

	store.InsertIfAbsent(state.NewTask("/splitlog/foo", nil))
	store.InsertIfAbsent(state.NewTask("/splitlog/bar", nil))

	tasks := store.List()

	assert.Len(t, tasks, 2)
}
