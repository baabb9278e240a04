package taskstore

import (
	"fmt"
	"math"
	"testing"

	"github.com/metalagman/aletheia/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func tasksWithIDs(ids ...string) []model.Task {
	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Task{ID: id, Title: "task " + id, Status: model.StatusTodo})
	}
	return out
}

func TestProgress(t *testing.T) {
	s := New(nil)
	assert.Equal(t, 0, s.Progress())

	s.Initialize(tasksWithIDs("a", "b", "c"))
	require.NoError(t, s.SetStatus("b", model.StatusCompleted))
	assert.Equal(t, 33, s.Progress())

	require.NoError(t, s.SetStatus("c", model.StatusCompleted))
	assert.Equal(t, 67, s.Progress())

	require.NoError(t, s.SetStatus("a", model.StatusCompleted))
	assert.Equal(t, 100, s.Progress())
}

func TestSetStatus_UnknownIDLeavesStoreUnchanged(t *testing.T) {
	s := New(tasksWithIDs("a", "b"))
	require.NoError(t, s.SetStatus("a", model.StatusBlocked))
	before := s.Tasks()

	err := s.SetStatus("missing", model.StatusCompleted)
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.Equal(t, before, s.Tasks())
}

func TestSetStatus_RejectsInvalidStatus(t *testing.T) {
	s := New(tasksWithIDs("a"))
	err := s.SetStatus("a", model.TaskStatus("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	task, ok := s.Task("a")
	require.True(t, ok)
	assert.Equal(t, model.StatusTodo, task.Status)
}

func TestInitialize_ReplacesContentsAndCopiesInput(t *testing.T) {
	input := tasksWithIDs("a", "b")
	s := New(input)
	input[0].Status = model.StatusCompleted
	assert.Equal(t, 0, s.Progress())

	s.Initialize(tasksWithIDs("z"))
	assert.Equal(t, 1, s.Len())
	_, ok := s.Task("a")
	assert.False(t, ok)
	assert.ErrorIs(t, s.SetStatus("a", model.StatusCompleted), ErrUnknownTask)
}

func TestTasksReturnsCopy(t *testing.T) {
	s := New(tasksWithIDs("a"))
	tasks := s.Tasks()
	tasks[0].Status = model.StatusCompleted
	assert.Equal(t, 0, s.Progress())
}

func TestCounts(t *testing.T) {
	s := New(tasksWithIDs("a", "b", "c"))
	require.NoError(t, s.SetStatus("a", model.StatusInProgress))
	require.NoError(t, s.SetStatus("b", model.StatusBlocked))
	counts := s.Counts()
	assert.Equal(t, 1, counts[model.StatusTodo])
	assert.Equal(t, 1, counts[model.StatusInProgress])
	assert.Equal(t, 1, counts[model.StatusBlocked])
	assert.Equal(t, 0, counts[model.StatusCompleted])
}

// TestProperty_SetStatusPreservesTaskSetAndOrder applies random updates and
// checks that ids and order never change and progress matches its definition.
func TestProperty_SetStatusPreservesTaskSetAndOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(rt, "num_tasks")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("task-%d", i)
		}
		s := New(tasksWithIDs(ids...))

		steps := rapid.IntRange(0, 30).Draw(rt, "num_updates")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(append([]string{"unknown"}, ids...)).Draw(rt, "id")
			status := rapid.SampledFrom(model.TaskStatuses).Draw(rt, "status")
			err := s.SetStatus(id, status)
			if id == "unknown" && err == nil {
				rt.Fatalf("SetStatus(unknown) returned nil error")
			}
		}

		tasks := s.Tasks()
		if len(tasks) != n {
			rt.Fatalf("len = %d, want %d", len(tasks), n)
		}
		completed := 0
		for i, task := range tasks {
			if task.ID != ids[i] {
				rt.Fatalf("tasks[%d].ID = %q, want %q", i, task.ID, ids[i])
			}
			if task.Status == model.StatusCompleted {
				completed++
			}
		}
		want := 0
		if n > 0 {
			want = int(math.Round(100 * float64(completed) / float64(n)))
		}
		if got := s.Progress(); got != want || got < 0 || got > 100 {
			rt.Fatalf("Progress() = %d, want %d", got, want)
		}
	})
}
