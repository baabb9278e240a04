// Package activity replays a scripted sequence of status lines while a plan request is in flight.
// The lines are cosmetic and carry no information from the backend.
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metalagman/aletheia/internal/model"
)

// DefaultCadence is the delay between two emitted lines.
const DefaultCadence = 500 * time.Millisecond

// Template is one scripted line. Message may contain {goal} and {session}.
type Template struct {
	Level   model.LogLevel
	Source  string
	Message string
}

// DefaultTemplates is the stock replay script.
var DefaultTemplates = []Template{
	{Level: model.LevelInfo, Source: "SYSTEM", Message: `Initializing Aletheia Agentic Workflow for: "{goal}"`},
	{Level: model.LevelTrace, Source: "OPIK", Message: "Trace context created. Session ID: {session}"},
	{Level: model.LevelDebug, Source: "PLANNER", Message: "Analyzing goal structure and semantic intent..."},
	{Level: model.LevelInfo, Source: "PLANNER", Message: "Decomposing milestones based on gemini-1.5-flash reasoning engine."},
	{Level: model.LevelDebug, Source: "MONITOR", Message: "Scanning for psychological friction and habit blockers..."},
	{Level: model.LevelInfo, Source: "MONITOR", Message: "Predictive friction analysis complete. Generating intervention."},
	{Level: model.LevelDebug, Source: "ORCHESTRATOR", Message: "Calculating optimal task sequences and dependencies."},
	{Level: model.LevelTrace, Source: "OPIK", Message: "Pushing intermediate reasoning span to Comet dashboard."},
	{Level: model.LevelInfo, Source: "EVALUATOR", Message: "Running Actionability and Relevance judge."},
	{Level: model.LevelDebug, Source: "SYSTEM", Message: "Finalizing response structure and formatting tasks..."},
}

// Config controls a replay.
type Config struct {
	Cadence   time.Duration
	Templates []Template
}

func (c Config) withDefaults() Config {
	if c.Cadence <= 0 {
		c.Cadence = DefaultCadence
	}
	if len(c.Templates) == 0 {
		c.Templates = DefaultTemplates
	}
	return c
}

// Expand substitutes goal and session into the templates.
func Expand(templates []Template, goal, session string) []Template {
	r := strings.NewReplacer("{goal}", goal, "{session}", session)
	out := make([]Template, len(templates))
	for i, t := range templates {
		if t.Level == "" {
			t.Level = model.LevelInfo
		}
		if t.Source == "" {
			t.Source = "SYSTEM"
		}
		t.Message = r.Replace(t.Message)
		out[i] = t
	}
	return out
}

// NewSessionToken returns a short random token for one replay.
func NewSessionToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// Replay is a running line sequence.
type Replay struct {
	session string
	total   int
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start begins emitting the expanded script for goal, one line per cadence tick,
// until the script is exhausted, ctx is done or Cancel is called.
// emit runs on the replay goroutine and must not call Cancel.
func Start(ctx context.Context, cfg Config, goal string, emit func(model.LogEntry)) *Replay {
	cfg = cfg.withDefaults()
	session := NewSessionToken()
	lines := Expand(cfg.Templates, goal, session)

	ctx, cancel := context.WithCancel(ctx)
	r := &Replay{
		session: session,
		total:   len(lines),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.run(ctx, cfg.Cadence, lines, emit)
	return r
}

func (r *Replay) run(ctx context.Context, cadence time.Duration, lines []Template, emit func(model.LogEntry)) {
	defer close(r.done)
	defer r.cancel()

	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for _, line := range lines {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		emit(model.LogEntry{
			ID:        uuid.NewString()[:8],
			Timestamp: model.DisplayTime(time.Now()),
			Level:     line.Level,
			Source:    line.Source,
			Message:   line.Message,
		})
	}
}

// Session returns the token substituted into {session}.
func (r *Replay) Session() string {
	return r.session
}

// Total returns the number of lines the replay emits when not cancelled.
func (r *Replay) Total() int {
	return r.total
}

// Done is closed once the replay has stopped emitting.
func (r *Replay) Done() <-chan struct{} {
	return r.done
}

// Cancel stops the replay and waits for it to exit. No line is emitted after
// Cancel returns. Safe to call more than once.
func (r *Replay) Cancel() {
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}
