package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskStatus(t *testing.T) {
	cases := map[string]TaskStatus{
		"todo":        StatusTodo,
		"TODO":        StatusTodo,
		"in_progress": StatusInProgress,
		"in-progress": StatusInProgress,
		"done":        StatusCompleted,
		" blocked ":   StatusBlocked,
	}
	for raw, want := range cases {
		got, err := ParseTaskStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseTaskStatus("archived")
	assert.Error(t, err)
}

func TestParseAgent_CanonicalizesKnownNames(t *testing.T) {
	assert.Equal(t, AgentPlanner, ParseAgent("planner"))
	assert.Equal(t, AgentEvaluator, ParseAgent(" EVALUATOR "))
	assert.Equal(t, Agent("Critic"), ParseAgent("Critic"))
}

func TestPlanReasoningBy(t *testing.T) {
	plan := Plan{AgentReasoning: []AgentReasoning{
		{Agent: AgentMonitor, Thought: "watch weekends"},
		{Agent: AgentPlanner, Thought: ""},
		{Agent: AgentPlanner, Thought: "start small"},
	}}

	thought, ok := plan.ReasoningBy(AgentPlanner)
	assert.True(t, ok)
	assert.Equal(t, "start small", thought)

	_, ok = plan.ReasoningBy(AgentEvaluator)
	assert.False(t, ok)
}

func TestPlanDefaultWorkspace(t *testing.T) {
	assert.True(t, Plan{TraceURL: "https://www.comet.com/default/opik/projects/p/traces/1"}.DefaultWorkspace())
	assert.False(t, Plan{TraceURL: "https://www.comet.com/acme/opik/projects/p/traces/1"}.DefaultWorkspace())
}

func TestPlanCloneDoesNotShareTasks(t *testing.T) {
	plan := Plan{Tasks: []Task{{ID: "a", Status: StatusTodo}}}
	clone := plan.Clone()
	clone.Tasks[0].Status = StatusCompleted
	assert.Equal(t, StatusTodo, plan.Tasks[0].Status)
}

func TestUserFirstName(t *testing.T) {
	assert.Equal(t, "Ada", User{Name: "Ada Lovelace"}.FirstName())
	assert.Equal(t, "", User{}.FirstName())
}
