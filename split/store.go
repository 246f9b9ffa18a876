package split

import "errors"

// Store errors returned by coordination store implementations.
var (
	// ErrNoNode is returned when the node does not exist.
	ErrNoNode = errors.New("split: node does not exist")

	// ErrNodeExists is returned when creating a node that already exists.
	ErrNodeExists = errors.New("split: node already exists")

	// ErrBadVersion is returned when a conditional write misses its
	// expected version.
	ErrBadVersion = errors.New("split: version mismatch")

	// ErrSessionExpired is returned when the store session has expired.
	// It is terminal; retries must be abandoned.
	ErrSessionExpired = errors.New("split: session expired")
)

// CreateFunc receives the result of an asynchronous create. name is the
// actual node name created, which differs from the requested path for
// sequential nodes.
type CreateFunc func(name string, err error)

// DataFunc receives the result of an asynchronous data read.
type DataFunc func(data []byte, version int32, err error)

// DeleteFunc receives the result of an asynchronous delete.
type DeleteFunc func(err error)

// WatchFunc receives a node data changed event. The watch is one shot and
// must be re-armed by issuing another read.
type WatchFunc func(path string)

// Store is a hierarchical coordination store with watches, versioned
// conditional writes and ephemeral sequential nodes. Asynchronous calls
// deliver their results on store client goroutines.
type Store interface {
	// Create creates a persistent node, delivering the result to cb.
	Create(path string, data []byte, cb CreateFunc)

	// CreateEphemeralSequential creates an ephemeral node with a unique
	// sequence suffix appended to path, delivering the created name to cb.
	CreateEphemeralSequential(path string, data []byte, cb CreateFunc)

	// GetData reads a node and arms a one shot data watch on it.
	GetData(path string, watch WatchFunc, cb DataFunc)

	// SetData writes a node conditionally on the expected version, which
	// may be -1 to disable the check. It blocks, returning false without
	// error on a version mismatch and ErrNoNode if the node vanished.
	SetData(path string, data []byte, version int32) (bool, error)

	// Delete deletes a node regardless of version, delivering the result
	// to cb.
	Delete(path string, cb DeleteFunc)

	// Children lists the child node names under path without a watch.
	Children(path string) ([]string, error)
}
