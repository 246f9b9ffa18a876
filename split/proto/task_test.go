package proto_test

import (
	"testing"

	"github.com/nrwiersma/splitlog/split/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	ts := proto.NewOwned("worker-1")

	data, err := proto.Encode(ts)
	require.NoError(t, err)

	var got proto.TaskState
	err = proto.Decode(data, &got)

	require.NoError(t, err)
	assert.Equal(t, ts, got)
	assert.True(t, got.IsOwned())
	assert.Equal(t, "worker-1", got.ServerName)
}

func TestDecode_EmptyPayload(t *testing.T) {
	var got proto.TaskState

	err := proto.Decode(nil, &got)

	assert.Error(t, err)
}

func TestDecode_InvalidPayload(t *testing.T) {
	var got proto.TaskState

	err := proto.Decode([]byte("\xc1"), &got)

	assert.Error(t, err)
}

func TestTaskState_Predicates(t *testing.T) {
	tests := []struct {
		name string
		ts   proto.TaskState
		want proto.State
	}{
		{name: "unassigned", ts: proto.NewUnassigned("mgr"), want: proto.StateUnassigned},
		{name: "owned", ts: proto.NewOwned("worker-1"), want: proto.StateOwned},
		{name: "resigned", ts: proto.NewResigned("worker-1"), want: proto.StateResigned},
		{name: "done", ts: proto.NewDone("worker-1"), want: proto.StateDone},
		{name: "err", ts: proto.NewErr("worker-1"), want: proto.StateErr},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.ts.State)
		})
	}
}
