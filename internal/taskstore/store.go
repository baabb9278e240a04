// Package taskstore holds the client-side working copy of task statuses for the displayed plan.
package taskstore

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/metalagman/aletheia/internal/model"
)

var (
	// ErrUnknownTask is returned by SetStatus for an id not present at Initialize.
	ErrUnknownTask = errors.New("unknown task")
	// ErrInvalidStatus is returned by SetStatus for a status outside the enum.
	ErrInvalidStatus = errors.New("invalid task status")
)

// Store is a mutable, ordered set of tasks. The task set is fixed at Initialize;
// only statuses change afterwards. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	tasks []model.Task
	index map[string]int
}

// New returns a store seeded with tasks.
func New(tasks []model.Task) *Store {
	s := &Store{}
	s.Initialize(tasks)
	return s
}

// Initialize replaces the store contents with a copy of tasks.
func (s *Store) Initialize(tasks []model.Task) {
	copied := slices.Clone(tasks)
	index := make(map[string]int, len(copied))
	for i, t := range copied {
		if _, exists := index[t.ID]; !exists {
			index[t.ID] = i
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = copied
	s.index = index
}

// SetStatus updates the status of the task with id. Unknown ids and invalid
// statuses leave the store untouched.
func (s *Store) SetStatus(id string, status model.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, id)
	}
	s.tasks[i].Status = status
	return nil
}

// Progress returns the completed share as a whole percentage in [0, 100].
func (s *Store) Progress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return progress(s.tasks)
}

// Tasks returns a copy of the tasks in their original order.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Task returns the task with id.
func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Task{}, false
	}
	return s.tasks[i], true
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Counts returns the number of tasks per status.
func (s *Store) Counts() map[model.TaskStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.TaskStatus]int, len(model.TaskStatuses))
	for _, t := range s.tasks {
		out[t.Status]++
	}
	return out
}

func progress(tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Status == model.StatusCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}
