package planapi

import (
	_ "embed"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Defaults applied when the backend omits a field.
const (
	DefaultCategory             = "General"
	DefaultFrictionIntervention = "No friction detected."
	DefaultTraceID              = "N/A"
	DefaultTraceURL             = ""
)

//go:embed schema/plan.schema.json
var planSchemaJSON string

var planSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchemaJSON))
})

// keyAliases maps legacy field names onto their current names.
var keyAliases = map[string]string{
	"reasoning": "agentReasoning",
	"goal":      "originalGoal",
}

type rawPlan struct {
	ID                   string         `mapstructure:"id"`
	OriginalGoal         string         `mapstructure:"originalGoal"`
	Category             string         `mapstructure:"category"`
	Tasks                []rawTask      `mapstructure:"tasks"`
	AgentReasoning       []rawReasoning `mapstructure:"agentReasoning"`
	TraceID              string         `mapstructure:"traceId"`
	TraceURL             string         `mapstructure:"traceUrl"`
	FrictionIntervention string         `mapstructure:"frictionIntervention"`
	Metrics              map[string]any `mapstructure:"metrics"`
}

type rawTask struct {
	ID          string `mapstructure:"id"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Duration    string `mapstructure:"duration"`
}

type rawReasoning struct {
	Agent   string `mapstructure:"agent"`
	Thought string `mapstructure:"thought"`
}

// Normalize converts a plan response body into a Plan.
//
// Keys may be camelCase or snake_case; camelCase wins when both are present.
// Null and blank string values count as absent. A metric that cannot be read
// as a number defaults to 0 instead of failing the plan. The returned plan always has every task in
// StatusTodo and a unique id per task. Logs are left empty.
func Normalize(goal string, body []byte, receivedAt time.Time) (model.Plan, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.Plan{}, malformed("decode body: %v", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return model.Plan{}, malformed("body is not a JSON object")
	}
	return normalizeDocument(goal, obj, receivedAt)
}

func normalizeDocument(goal string, obj map[string]any, receivedAt time.Time) (model.Plan, error) {
	canonical, _ := canonicalize(obj).(map[string]any)
	if err := validatePlanDocument(canonical); err != nil {
		return model.Plan{}, err
	}

	var raw rawPlan
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return model.Plan{}, malformed("build decoder: %v", err)
	}
	if err := dec.Decode(canonical); err != nil {
		return model.Plan{}, malformed("%v", err)
	}

	if goal == "" {
		goal = raw.OriginalGoal
	}
	category := orDefault(raw.Category, DefaultCategory)
	plan := model.Plan{
		ID:                   orDefault(raw.ID, newPlanID()),
		OriginalGoal:         goal,
		Category:             category,
		Tasks:                make([]model.Task, 0, len(raw.Tasks)),
		AgentReasoning:       make([]model.AgentReasoning, 0, len(raw.AgentReasoning)),
		TraceID:              orDefault(raw.TraceID, DefaultTraceID),
		TraceURL:             orDefault(raw.TraceURL, DefaultTraceURL),
		Logs:                 []model.LogEntry{},
		FrictionIntervention: orDefault(raw.FrictionIntervention, DefaultFrictionIntervention),
		Metrics: model.Metrics{
			Actionability: clampScore(metricFloat(raw.Metrics, "actionability")),
			Relevance:     clampScore(metricFloat(raw.Metrics, "relevance")),
			Helpfulness:   clampScore(metricFloat(raw.Metrics, "helpfulness")),
			Latency:       clampLatency(metricFloat(raw.Metrics, "latency")),
			ProjectURL:    strings.TrimSpace(metricString(raw.Metrics, "projectUrl")),
		},
	}

	seen := make(map[string]struct{}, len(raw.Tasks))
	for _, rt := range raw.Tasks {
		id := strings.TrimSpace(rt.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = uuid.NewString()
		}
		seen[id] = struct{}{}
		plan.Tasks = append(plan.Tasks, model.Task{
			ID:          id,
			Title:       rt.Title,
			Description: rt.Description,
			Duration:    rt.Duration,
			Status:      model.StatusTodo,
			Category:    category,
		})
	}

	stamp := model.DisplayTime(receivedAt)
	for _, rr := range raw.AgentReasoning {
		plan.AgentReasoning = append(plan.AgentReasoning, model.AgentReasoning{
			Agent:     model.ParseAgent(rr.Agent),
			Thought:   rr.Thought,
			Timestamp: stamp,
		})
	}
	return plan, nil
}

func validatePlanDocument(doc map[string]any) error {
	schema, err := planSchema()
	if err != nil {
		return malformed("load plan schema: %v", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return malformed("validate: %v", err)
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)
	return malformed("%s", strings.Join(errs, "; "))
}

// canonicalize rewrites object keys to camelCase recursively and drops null values.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		rank := make(map[string]int, len(t))
		for k, val := range t {
			if absent(val) {
				continue
			}
			key, r := canonicalKey(k)
			if prev, ok := rank[key]; ok && prev <= r {
				continue
			}
			rank[key] = r
			out[key] = canonicalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return v
	}
}

func absent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// metricFloat weakly decodes metrics[key], returning 0 when it is missing or unreadable.
func metricFloat(metrics map[string]any, key string) float64 {
	v, ok := metrics[key]
	if !ok {
		return 0
	}
	var out float64
	if err := mapstructure.WeakDecode(v, &out); err != nil {
		log.Debug().Err(err).Str("metric", key).Msg("ignoring unreadable metric")
		return 0
	}
	return out
}

func metricString(metrics map[string]any, key string) string {
	v, ok := metrics[key]
	if !ok {
		return ""
	}
	var out string
	if err := mapstructure.WeakDecode(v, &out); err != nil {
		log.Debug().Err(err).Str("metric", key).Msg("ignoring unreadable metric")
		return ""
	}
	return out
}

// canonicalKey returns the canonical name of k and its precedence (lower wins).
func canonicalKey(k string) (string, int) {
	if alias, ok := keyAliases[k]; ok {
		return alias, 2
	}
	camel := snakeToCamel(k)
	if camel == k {
		return k, 0
	}
	return camel, 1
}

func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	first := true
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 5:
		return 5
	}
	return v
}

func clampLatency(v float64) int64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(v)
}

func newPlanID() string {
	return uuid.NewString()[:8]
}
