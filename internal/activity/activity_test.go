package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/metalagman/aletheia/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (r *recorder) emit(e model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) snapshot() []model.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.LogEntry(nil), r.entries...)
}

func TestExpand_SubstitutesGoalAndSession(t *testing.T) {
	lines := Expand(DefaultTemplates, "Learn Go", "abc123")
	require.Len(t, lines, len(DefaultTemplates))
	assert.Equal(t, `Initializing Aletheia Agentic Workflow for: "Learn Go"`, lines[0].Message)
	assert.Equal(t, "Trace context created. Session ID: abc123", lines[1].Message)
	assert.Equal(t, DefaultTemplates[0].Message, `Initializing Aletheia Agentic Workflow for: "{goal}"`)
}

func TestExpand_FillsMissingLevelAndSource(t *testing.T) {
	lines := Expand([]Template{{Message: "hi"}}, "g", "s")
	assert.Equal(t, model.LevelInfo, lines[0].Level)
	assert.Equal(t, "SYSTEM", lines[0].Source)
}

func TestStart_EmitsAllLinesInOrder(t *testing.T) {
	rec := &recorder{}
	replay := Start(context.Background(), Config{Cadence: 2 * time.Millisecond}, "Run 5k", rec.emit)

	select {
	case <-replay.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}

	entries := rec.snapshot()
	require.Len(t, entries, len(DefaultTemplates))
	assert.Equal(t, len(DefaultTemplates), replay.Total())
	for i, entry := range entries {
		assert.Equal(t, DefaultTemplates[i].Source, entry.Source)
		assert.Equal(t, DefaultTemplates[i].Level, entry.Level)
		assert.NotEmpty(t, entry.ID)
	}
	assert.Contains(t, entries[0].Message, "Run 5k")
	assert.Contains(t, entries[1].Message, replay.Session())
}

func TestCancel_StopsEmissions(t *testing.T) {
	rec := &recorder{}
	replay := Start(context.Background(), Config{Cadence: 20 * time.Millisecond}, "g", rec.emit)

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, time.Second, time.Millisecond)
	replay.Cancel()
	count := len(rec.snapshot())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, count, len(rec.snapshot()))
	assert.Less(t, count, len(DefaultTemplates))

	replay.Cancel()
}

func TestContextCancel_StopsReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	replay := Start(ctx, Config{Cadence: time.Hour}, "g", func(model.LogEntry) {
		t.Error("unexpected emission")
	})
	cancel()

	select {
	case <-replay.Done():
	case <-time.After(time.Second):
		t.Fatal("replay did not stop on context cancel")
	}
}

func TestStart_NewSessionPerReplay(t *testing.T) {
	first := Start(context.Background(), Config{Cadence: time.Hour}, "g", func(model.LogEntry) {})
	second := Start(context.Background(), Config{Cadence: time.Hour}, "g", func(model.LogEntry) {})
	defer first.Cancel()
	defer second.Cancel()

	assert.Len(t, first.Session(), 9)
	assert.NotEqual(t, first.Session(), second.Session())
}

func TestNilReplayCancel(t *testing.T) {
	var r *Replay
	assert.NotPanics(t, r.Cancel)
}
