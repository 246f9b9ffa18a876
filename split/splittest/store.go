// Package splittest provides an in memory coordination store and worker
// helpers for testing the split manager.
package splittest

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/nrwiersma/splitlog/split"
	"github.com/nrwiersma/splitlog/split/proto"
)

type node struct {
	data      []byte
	version   int32
	ephemeral bool
}

// Store is an in memory coordination store. Asynchronous results and watch
// events are delivered on their own goroutines, like a real store client.
type Store struct {
	mu      sync.Mutex
	nodes   map[string]*node
	watches map[string][]split.WatchFunc
	seq     int
}

// NewStore returns an in memory coordination store.
func NewStore() *Store {
	return &Store{
		nodes:   map[string]*node{},
		watches: map[string][]split.WatchFunc{},
	}
}

// Create creates a persistent node, delivering the result to cb.
func (s *Store) Create(path string, data []byte, cb split.CreateFunc) {
	go func() {
		s.mu.Lock()
		if _, ok := s.nodes[path]; ok {
			s.mu.Unlock()
			cb("", split.ErrNodeExists)
			return
		}
		s.nodes[path] = &node{data: data}
		s.mu.Unlock()

		cb(path, nil)
	}()
}

// CreateEphemeralSequential creates an ephemeral node with a unique sequence
// suffix appended to path, delivering the created name to cb.
func (s *Store) CreateEphemeralSequential(path string, data []byte, cb split.CreateFunc) {
	go func() {
		s.mu.Lock()
		name := fmt.Sprintf("%s%010d", path, s.seq)
		s.seq++
		s.nodes[name] = &node{data: data, ephemeral: true}
		s.mu.Unlock()

		cb(name, nil)
	}()
}

// GetData reads a node and arms a one shot data watch on it.
func (s *Store) GetData(path string, watch split.WatchFunc, cb split.DataFunc) {
	go func() {
		s.mu.Lock()
		n, ok := s.nodes[path]
		if !ok {
			s.mu.Unlock()
			cb(nil, 0, split.ErrNoNode)
			return
		}

		if watch != nil {
			s.watches[path] = append(s.watches[path], watch)
		}

		data := make([]byte, len(n.data))
		copy(data, n.data)
		version := n.version
		s.mu.Unlock()

		cb(data, version, nil)
	}()
}

// SetData writes a node conditionally on the expected version, which may be
// -1 to disable the check. Data watches armed on the node are fired.
func (s *Store) SetData(path string, data []byte, version int32) (bool, error) {
	s.mu.Lock()

	n, ok := s.nodes[path]
	if !ok {
		s.mu.Unlock()
		return false, split.ErrNoNode
	}
	if version != -1 && version != n.version {
		s.mu.Unlock()
		return false, nil
	}

	n.data = data
	n.version++

	watches := s.watches[path]
	delete(s.watches, path)
	s.mu.Unlock()

	for _, watch := range watches {
		go watch(path)
	}
	return true, nil
}

// Delete deletes a node regardless of version, delivering the result to cb.
func (s *Store) Delete(path string, cb split.DeleteFunc) {
	go func() {
		s.mu.Lock()

		if _, ok := s.nodes[path]; !ok {
			s.mu.Unlock()
			cb(split.ErrNoNode)
			return
		}
		delete(s.nodes, path)
		delete(s.watches, path)
		s.mu.Unlock()

		cb(nil)
	}()
}

// Children lists the child node names under path without a watch.
func (s *Store) Children(dir string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"

	var children []string
	for p := range s.nodes {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if strings.Contains(p[len(prefix):], "/") {
			continue
		}
		children = append(children, path.Base(p))
	}
	return children, nil
}

// SequentialCreates returns the number of sequential nodes created.
func (s *Store) SequentialCreates() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seq
}

// NumNodes returns the number of nodes in the store.
func (s *Store) NumNodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.nodes)
}

// TaskNodes returns the task node paths under dir, ignoring rescan markers.
func (s *Store) TaskNodes(dir string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"

	var nodes []string
	for p := range s.nodes {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if strings.HasPrefix(path.Base(p), "RESCAN") {
			continue
		}
		nodes = append(nodes, p)
	}
	return nodes
}

// TaskState returns the decoded task payload at the path.
func (s *Store) TaskState(path string) (proto.TaskState, bool) {
	s.mu.Lock()
	n, ok := s.nodes[path]
	if !ok {
		s.mu.Unlock()
		return proto.TaskState{}, false
	}
	data := make([]byte, len(n.data))
	copy(data, n.data)
	s.mu.Unlock()

	var ts proto.TaskState
	if err := proto.Decode(data, &ts); err != nil {
		return proto.TaskState{}, false
	}
	return ts, true
}

// SetNode creates or overwrites a node unconditionally, without firing
// watches. It is used to seed orphan state.
func (s *Store) SetNode(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[path]; ok {
		n.data = data
		n.version++
		return
	}
	s.nodes[path] = &node{data: data}
}

// writeState encodes and writes a task payload through SetData.
func (s *Store) writeState(path string, ts proto.TaskState) error {
	data, err := proto.Encode(ts)
	if err != nil {
		return err
	}

	ok, err := s.SetData(path, data, -1)
	if err != nil {
		return err
	}
	if !ok {
		return split.ErrBadVersion
	}
	return nil
}

// Acquire simulates a worker grabbing the task.
func (s *Store) Acquire(path, worker string) error {
	return s.writeState(path, proto.NewOwned(worker))
}

// HeartbeatNode simulates a worker reporting progress on the task.
func (s *Store) HeartbeatNode(path, worker string) error {
	return s.writeState(path, proto.NewOwned(worker))
}

// FinishNode simulates a worker completing the task.
func (s *Store) FinishNode(path, worker string) error {
	return s.writeState(path, proto.NewDone(worker))
}

// ErrNode simulates a worker failing the task.
func (s *Store) ErrNode(path, worker string) error {
	return s.writeState(path, proto.NewErr(worker))
}

// ResignNode simulates a worker resigning the task.
func (s *Store) ResignNode(path, worker string) error {
	return s.writeState(path, proto.NewResigned(worker))
}
