package proto

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-msgpack/codec"
)

// State is the lifecycle stage carried in a task payload.
type State int8

// Task payload states.
const (
	StateUnassigned State = iota
	StateOwned
	StateResigned
	StateDone
	StateErr
)

// String returns a human readable state.
func (s State) String() string {
	switch s {
	case StateUnassigned:
		return "unassigned"
	case StateOwned:
		return "owned"
	case StateResigned:
		return "resigned"
	case StateDone:
		return "done"
	case StateErr:
		return "err"
	default:
		return "unknown"
	}
}

// TaskState is the payload published at a task node.
type TaskState struct {
	State      State
	ServerName string
}

// NewUnassigned returns an unassigned task payload.
func NewUnassigned(name string) TaskState {
	return TaskState{State: StateUnassigned, ServerName: name}
}

// NewOwned returns an owned task payload.
func NewOwned(name string) TaskState {
	return TaskState{State: StateOwned, ServerName: name}
}

// NewResigned returns a resigned task payload.
func NewResigned(name string) TaskState {
	return TaskState{State: StateResigned, ServerName: name}
}

// NewDone returns a done task payload.
func NewDone(name string) TaskState {
	return TaskState{State: StateDone, ServerName: name}
}

// NewErr returns an errored task payload.
func NewErr(name string) TaskState {
	return TaskState{State: StateErr, ServerName: name}
}

// IsUnassigned determines if the payload is unassigned.
func (t TaskState) IsUnassigned() bool { return t.State == StateUnassigned }

// IsOwned determines if the payload is owned by a worker.
func (t TaskState) IsOwned() bool { return t.State == StateOwned }

// IsResigned determines if the payload has been resigned.
func (t TaskState) IsResigned() bool { return t.State == StateResigned }

// IsDone determines if the payload is done.
func (t TaskState) IsDone() bool { return t.State == StateDone }

// IsErr determines if the payload is errored.
func (t TaskState) IsErr() bool { return t.State == StateErr }

// String returns a human readable payload.
func (t TaskState) String() string {
	return fmt.Sprintf("%s %s", t.State, t.ServerName)
}

// msgpackHandle is a shared handle for encoding/decoding of task payloads.
var msgpackHandle = &codec.MsgpackHandle{}

// Decode decodes a task payload.
func Decode(buf []byte, out *TaskState) error {
	if len(buf) == 0 {
		return fmt.Errorf("proto: empty task payload")
	}

	if err := codec.NewDecoder(bytes.NewReader(buf), msgpackHandle).Decode(out); err != nil {
		return fmt.Errorf("proto: invalid task payload: %v", err)
	}
	return nil
}

// Encode encodes a task payload.
func Encode(t TaskState) ([]byte, error) {
	var buf bytes.Buffer
	err := codec.NewEncoder(&buf, msgpackHandle).Encode(t)
	return buf.Bytes(), err
}
