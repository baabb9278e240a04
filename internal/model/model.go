// Package model defines the plan, task and session types shared by the client surfaces.
package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// TaskStatus is the client-side completion state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
)

// TaskStatuses lists statuses in display order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusCompleted, StatusBlocked}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Label returns the human readable status name.
func (s TaskStatus) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusBlocked:
		return "Blocked"
	}
	return string(s)
}

// ParseTaskStatus parses a status name leniently.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "todo", "to-do", "to_do":
		return StatusTodo, nil
	case "in-progress", "in_progress", "inprogress":
		return StatusInProgress, nil
	case "completed", "done":
		return StatusCompleted, nil
	case "blocked":
		return StatusBlocked, nil
	}
	return "", fmt.Errorf("unknown task status %q", raw)
}

// Task is one actionable step of a plan.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Duration    string     `json:"duration"`
	Status      TaskStatus `json:"status"`
	Category    string     `json:"category"`
}

// Agent names the role that produced a reasoning entry.
type Agent string

const (
	AgentPlanner      Agent = "Planner"
	AgentOrchestrator Agent = "Orchestrator"
	AgentEvaluator    Agent = "Evaluator"
	AgentMonitor      Agent = "Monitor"
)

// ParseAgent canonicalizes known agent names. Unknown names are returned verbatim.
func ParseAgent(raw string) Agent {
	trimmed := strings.TrimSpace(raw)
	for _, a := range []Agent{AgentPlanner, AgentOrchestrator, AgentEvaluator, AgentMonitor} {
		if strings.EqualFold(trimmed, string(a)) {
			return a
		}
	}
	return Agent(trimmed)
}

// AgentReasoning is a labelled thought attributed to an agent role.
type AgentReasoning struct {
	Agent     Agent  `json:"agent"`
	Thought   string `json:"thought"`
	Timestamp string `json:"timestamp"`
}

// LogLevel is the severity tag of a UI log line.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelTrace LogLevel = "TRACE"
	LevelDebug LogLevel = "DEBUG"
	LevelWarn  LogLevel = "WARN"
)

// DisplayTime formats t the way timestamps are shown next to log lines and reasoning.
func DisplayTime(t time.Time) string {
	return t.Format("15:04:05")
}

// LogEntry is a presentation-only log line.
type LogEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Source    string   `json:"source"`
	Message   string   `json:"message"`
}

// Metrics carries evaluator scores and request latency.
type Metrics struct {
	Actionability float64 `json:"actionability"`
	Relevance     float64 `json:"relevance"`
	Helpfulness   float64 `json:"helpfulness"`
	Latency       int64   `json:"latency"`
	ProjectURL    string  `json:"projectUrl,omitempty"`
}

// Plan is the normalized result of a planning request.
type Plan struct {
	ID                   string           `json:"id"`
	OriginalGoal         string           `json:"originalGoal"`
	Category             string           `json:"category"`
	Tasks                []Task           `json:"tasks"`
	AgentReasoning       []AgentReasoning `json:"agentReasoning"`
	TraceID              string           `json:"traceId"`
	TraceURL             string           `json:"traceUrl"`
	Logs                 []LogEntry       `json:"logs"`
	FrictionIntervention string           `json:"frictionIntervention"`
	Metrics              Metrics          `json:"metrics"`
}

// ReasoningBy returns the first thought attributed to agent.
func (p Plan) ReasoningBy(agent Agent) (string, bool) {
	for _, r := range p.AgentReasoning {
		if r.Agent == agent && strings.TrimSpace(r.Thought) != "" {
			return r.Thought, true
		}
	}
	return "", false
}

// DefaultWorkspace reports whether the trace link points at the observability
// system's default workspace, which usually means the backend is not configured.
func (p Plan) DefaultWorkspace() bool {
	return strings.Contains(p.TraceURL, "/default/")
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	out := p
	out.Tasks = slices.Clone(p.Tasks)
	out.AgentReasoning = slices.Clone(p.AgentReasoning)
	out.Logs = slices.Clone(p.Logs)
	return out
}

// User is the signed-in identity shown by the client.
type User struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Avatar      string    `json:"avatar,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// FirstName returns the first word of the user's display name.
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
