package planapi

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/metalagman/aletheia/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var receivedAt = time.Date(2026, 1, 2, 9, 30, 15, 0, time.UTC)

func TestNormalize_AppliesDefaultTable(t *testing.T) {
	plan, err := Normalize("goal", []byte(`{"tasks":[{"title":"t"}]}`), receivedAt)
	require.NoError(t, err)

	assert.Len(t, plan.ID, 8)
	assert.Equal(t, "goal", plan.OriginalGoal)
	assert.Equal(t, DefaultCategory, plan.Category)
	assert.Equal(t, DefaultTraceID, plan.TraceID)
	assert.Equal(t, DefaultTraceURL, plan.TraceURL)
	assert.Equal(t, DefaultFrictionIntervention, plan.FrictionIntervention)
	assert.Equal(t, model.Metrics{}, plan.Metrics)
	assert.NotNil(t, plan.AgentReasoning)
	assert.NotNil(t, plan.Logs)
	assert.Equal(t, DefaultCategory, plan.Tasks[0].Category)

	plan, err = Normalize("goal", []byte(`{"tasks":[],"metrics":{"latency":1e300}}`), receivedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), plan.Metrics.Latency)
}

func TestClampLatency(t *testing.T) {
	assert.Equal(t, int64(0), clampLatency(-1))
	assert.Equal(t, int64(0), clampLatency(math.NaN()))
	assert.Equal(t, int64(1500), clampLatency(1500.7))
	assert.Equal(t, int64(math.MaxInt64), clampLatency(math.Inf(1)))
	assert.Equal(t, int64(math.MaxInt64), clampLatency(float64(math.MaxInt64)))
}

func TestNormalize_UnreadableMetricsDefaultToZero(t *testing.T) {
	body := `{
		"tasks": [{"title": "x"}],
		"metrics": {"relevance": "high", "actionability": "4", "latency": {"ms": 10}, "helpfulness": "n/a", "projectUrl": {"href": "x"}}
	}`
	plan, err := Normalize("g", []byte(body), receivedAt)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "x", plan.Tasks[0].Title)
	assert.Equal(t, 0.0, plan.Metrics.Relevance)
	assert.Equal(t, 4.0, plan.Metrics.Actionability)
	assert.Equal(t, 0.0, plan.Metrics.Helpfulness)
	assert.Equal(t, int64(0), plan.Metrics.Latency)
	assert.Empty(t, plan.Metrics.ProjectURL)
}

func TestNormalize_BlankValueDoesNotHideAlternateKey(t *testing.T) {
	plan, err := Normalize("g", []byte(`{"tasks":[],"traceId":"","trace_id":"abc123","category":"  ","friction_intervention":"Evenings"}`), receivedAt)
	require.NoError(t, err)
	assert.Equal(t, "abc123", plan.TraceID)
	assert.Equal(t, DefaultCategory, plan.Category)
	assert.Equal(t, "Evenings", plan.FrictionIntervention)
}

func TestNormalize_PrefersCamelCaseAndAcceptsMixedNaming(t *testing.T) {
	body := `{
		"id": 42,
		"category": "Wellness",
		"traceId": "camel",
		"trace_id": "snake",
		"trace_url": "https://obs/trace",
		"friction_intervention": "Rainy days",
		"agentReasoning": [{"agent": "EVALUATOR", "thought": "solid"}],
		"reasoning": [{"agent": "Planner", "thought": "ignored"}],
		"tasks": [{"id": "a", "title": "Walk", "status": "completed"}],
		"metrics": {"actionability": "4.5", "helpfulness": 9, "relevance": -1, "latency": 321.9, "projectUrl": "https://obs/p"}
	}`
	plan, err := Normalize("get fit", []byte(body), receivedAt)
	require.NoError(t, err)

	assert.Equal(t, "42", plan.ID)
	assert.Equal(t, "Wellness", plan.Category)
	assert.Equal(t, "camel", plan.TraceID)
	assert.Equal(t, "https://obs/trace", plan.TraceURL)
	assert.Equal(t, "Rainy days", plan.FrictionIntervention)

	require.Len(t, plan.AgentReasoning, 1)
	assert.Equal(t, model.AgentEvaluator, plan.AgentReasoning[0].Agent)
	assert.Equal(t, "09:30:15", plan.AgentReasoning[0].Timestamp)

	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "a", plan.Tasks[0].ID)
	assert.Equal(t, model.StatusTodo, plan.Tasks[0].Status)
	assert.Equal(t, "Wellness", plan.Tasks[0].Category)

	assert.Equal(t, 4.5, plan.Metrics.Actionability)
	assert.Equal(t, 5.0, plan.Metrics.Helpfulness)
	assert.Equal(t, 0.0, plan.Metrics.Relevance)
	assert.Equal(t, int64(321), plan.Metrics.Latency)
	assert.Equal(t, "https://obs/p", plan.Metrics.ProjectURL)
}

func TestNormalize_NullCountsAsAbsent(t *testing.T) {
	plan, err := Normalize("g", []byte(`{"tasks":[],"category":null,"traceId":null,"trace_id":"snake"}`), receivedAt)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, plan.Category)
	assert.Equal(t, "snake", plan.TraceID)
}

func TestNormalize_RegeneratesDuplicateTaskIDs(t *testing.T) {
	plan, err := Normalize("g", []byte(`{"tasks":[{"id":"x"},{"id":"x"},{"title":"no id"}]}`), receivedAt)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 3)
	assert.Equal(t, "x", plan.Tasks[0].ID)
	assert.NotEqual(t, "x", plan.Tasks[1].ID)
	assert.NotEmpty(t, plan.Tasks[2].ID)
	assert.NotEqual(t, plan.Tasks[1].ID, plan.Tasks[2].ID)
}

func TestNormalize_MalformedBodies(t *testing.T) {
	cases := map[string]string{
		"not json":        `{{`,
		"array":           `[]`,
		"missing tasks":   `{"category":"x"}`,
		"null tasks":      `{"tasks":null}`,
		"tasks string":    `{"tasks":"do things"}`,
		"task not object": `{"tasks":["do things"]}`,
		"metrics scalar":  `{"tasks":[],"metrics":4}`,
		"title object":    `{"tasks":[{"title":{"nested":true}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			plan, err := Normalize("g", []byte(body), receivedAt)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Equal(t, model.Plan{}, plan)
		})
	}
}

func TestSnakeToCamel(t *testing.T) {
	assert.Equal(t, "traceId", snakeToCamel("trace_id"))
	assert.Equal(t, "frictionIntervention", snakeToCamel("friction_intervention"))
	assert.Equal(t, "projectUrl", snakeToCamel("project_url"))
	assert.Equal(t, "alreadyCamel", snakeToCamel("alreadyCamel"))
	assert.Equal(t, "x", snakeToCamel("_x"))
}

func TestNormalize_TasksAlwaysStartTodo(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 15).Draw(rt, "num_tasks")
		tasks := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			task := map[string]any{
				"title":  rapid.StringMatching(`[A-Za-z ]{0,20}`).Draw(rt, "title"),
				"status": rapid.SampledFrom([]string{"todo", "completed", "blocked", "in-progress", "weird"}).Draw(rt, "status"),
			}
			if rapid.Bool().Draw(rt, "has_id") {
				task["id"] = rapid.SampledFrom([]string{"a", "b", "c"}).Draw(rt, "id")
			}
			tasks = append(tasks, task)
		}
		body, err := json.Marshal(map[string]any{"tasks": tasks})
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}

		plan, err := Normalize("goal", body, receivedAt)
		if err != nil {
			rt.Fatalf("Normalize failed: %v", err)
		}
		if len(plan.Tasks) != n {
			rt.Fatalf("got %d tasks, want %d", len(plan.Tasks), n)
		}
		seen := map[string]bool{}
		for i, task := range plan.Tasks {
			if task.Status != model.StatusTodo {
				rt.Fatalf("task[%d].Status = %q, want todo", i, task.Status)
			}
			if task.ID == "" || seen[task.ID] {
				rt.Fatalf("task[%d].ID = %q is empty or duplicated", i, task.ID)
			}
			seen[task.ID] = true
		}
	})
}

func TestNormalize_MissingOptionalFieldsGetDefaults(t *testing.T) {
	optional := []string{"id", "category", "traceId", "traceUrl", "frictionIntervention", "metrics", "agentReasoning"}
	full := map[string]any{
		"id":                   "p1",
		"category":             "Knowledge",
		"traceId":              "t1",
		"traceUrl":             "https://obs/t1",
		"frictionIntervention": "busy",
		"metrics":              map[string]any{"latency": 10, "relevance": 2},
		"agentReasoning":       []any{map[string]any{"agent": "Monitor", "thought": "x"}},
	}

	rapid.Check(t, func(rt *rapid.T) {
		doc := map[string]any{"tasks": []any{}}
		kept := map[string]bool{}
		for _, key := range optional {
			if rapid.Bool().Draw(rt, "keep_"+key) {
				doc[key] = full[key]
				kept[key] = true
			}
		}
		body, _ := json.Marshal(doc)
		plan, err := Normalize("goal", body, receivedAt)
		if err != nil {
			rt.Fatalf("Normalize failed: %v", err)
		}
		if !kept["category"] && plan.Category != DefaultCategory {
			rt.Fatalf("category = %q", plan.Category)
		}
		if !kept["traceId"] && plan.TraceID != DefaultTraceID {
			rt.Fatalf("traceId = %q", plan.TraceID)
		}
		if !kept["frictionIntervention"] && plan.FrictionIntervention != DefaultFrictionIntervention {
			rt.Fatalf("frictionIntervention = %q", plan.FrictionIntervention)
		}
		if !kept["metrics"] && (plan.Metrics.Latency != 0 || plan.Metrics.Relevance != 0) {
			rt.Fatalf("metrics = %+v", plan.Metrics)
		}
		if !kept["id"] && plan.ID == "" {
			rt.Fatalf("id not generated")
		}
		if plan.AgentReasoning == nil {
			rt.Fatalf("agentReasoning is nil")
		}
	})
}
