package state

import (
	"github.com/hashicorp/go-memdb"
)

// Store is the authoritative in memory view of the coordinator's tasks.
// Insertion is conditional so exactly one task exists per store path.
type Store struct {
	db *memdb.MemDB
}

// New returns a task store.
func New() (*Store, error) {
	dbSchema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"tasks": tasksTableSchema(),
		},
	}

	db, err := memdb.NewMemDB(dbSchema)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// InsertIfAbsent inserts the task if no task exists at its path. It returns
// the task already present and false on collision, or the inserted task and
// true.
func (s *Store) InsertIfAbsent(t *Task) (*Task, bool) {
	txn := s.db.Txn(true)

	raw, err := txn.First("tasks", "id", t.Path)
	if err == nil && raw != nil {
		txn.Abort()
		return raw.(*Task), false
	}

	if err := txn.Insert("tasks", t); err != nil {
		txn.Abort()
		return nil, false
	}
	txn.Commit()
	return t, true
}

// Get returns the task at the given path, or nil.
func (s *Store) Get(path string) *Task {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First("tasks", "id", path)
	if err != nil || raw == nil {
		return nil
	}
	return raw.(*Task)
}

// Remove removes and returns the task at the given path, or nil.
func (s *Store) Remove(path string) *Task {
	txn := s.db.Txn(true)

	raw, err := txn.First("tasks", "id", path)
	if err != nil || raw == nil {
		txn.Abort()
		return nil
	}

	if err := txn.Delete("tasks", raw); err != nil {
		txn.Abort()
		return nil
	}
	txn.Commit()
	return raw.(*Task)
}

// List returns a snapshot of all tasks.
func (s *Store) List() []*Task {
	txn := s.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get("tasks", "id")
	if err != nil {
		return nil
	}

	var tasks []*Task
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		tasks = append(tasks, raw.(*Task))
	}
	return tasks
}

// Len returns the number of tasks in the store.
func (s *Store) Len() int {
	return len(s.List())
}

// tasksTableSchema returns the table schema used for tracking tasks by
// their store path.
func tasksTableSchema() *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: "tasks",
		Indexes: map[string]*memdb.IndexSchema{
			"id": {
				Name:         "id",
				AllowMissing: false,
				Unique:       true,
				Indexer: &memdb.StringFieldIndex{
					Field: "Path",
				},
			},
		},
	}
}
