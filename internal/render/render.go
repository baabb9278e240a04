// Package render turns plans into markdown and styled terminal output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/taskstore"
)

// Fallback insights shown when the plan has no matching agent thought.
const (
	PlannerFallback   = "Focus on granular consistency over intensity."
	EvaluatorFallback = "This plan maximizes relevance to your long-term vision."
)

// DefaultWorkspaceWarning is shown when traces land in the default workspace.
const DefaultWorkspaceWarning = "Trace URL is using 'default' workspace. Ensure COMET_WORKSPACE and " +
	"COMET_API_KEY are set in your backend .env file to view traces on Comet.com."

// PlannerSuggestion returns the planner's first thought or the fallback.
func PlannerSuggestion(p model.Plan) string {
	if thought, ok := p.ReasoningBy(model.AgentPlanner); ok {
		return thought
	}
	return PlannerFallback
}

// EvaluatorInsight returns the evaluator's first thought or the fallback.
func EvaluatorInsight(p model.Plan) string {
	if thought, ok := p.ReasoningBy(model.AgentEvaluator); ok {
		return thought
	}
	return EvaluatorFallback
}

// ShortTraceID abbreviates long trace ids for compact displays.
func ShortTraceID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// Environment names the observability workspace a trace belongs to.
func Environment(p model.Plan) string {
	if p.DefaultWorkspace() {
		return "Default"
	}
	return "Production"
}

// Markdown renders the plan with the given task statuses.
func Markdown(p model.Plan, tasks []model.Task) string {
	store := taskstore.New(tasks)
	completed := store.Counts()[model.StatusCompleted]

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(p.OriginalGoal))
	fmt.Fprintf(&b, "*%s* · plan `%s` · %d tasks\n\n", escape(p.Category), p.ID, len(tasks))
	fmt.Fprintf(&b, "**Progress:** %d%% (%d/%d completed)\n\n", store.Progress(), completed, len(tasks))

	b.WriteString("## Tasks\n\n")
	if len(tasks) == 0 {
		b.WriteString("_No tasks._\n\n")
	}
	for i, task := range tasks {
		mark := " "
		if task.Status == model.StatusCompleted {
			mark = "x"
		}
		fmt.Fprintf(&b, "%d. [%s] **%s**", i+1, mark, escape(task.Title))
		if task.Duration != "" {
			fmt.Fprintf(&b, " (%s)", escape(task.Duration))
		}
		fmt.Fprintf(&b, " `%s`\n", task.Status.Label())
		if task.Description != "" {
			fmt.Fprintf(&b, "   %s\n", escape(task.Description))
		}
	}
	b.WriteString("\n")

	b.WriteString("## Predictive intervention\n\n")
	fmt.Fprintf(&b, "> %s\n\n", escape(p.FrictionIntervention))
	fmt.Fprintf(&b, "- **Planner suggestion:** %s\n", escape(PlannerSuggestion(p)))
	fmt.Fprintf(&b, "- **Evaluator insight:** %s\n\n", escape(EvaluatorInsight(p)))

	if len(p.AgentReasoning) > 0 {
		b.WriteString("## Agentic logic chain\n\n")
		b.WriteString("| Time | Agent | Thought |\n|---|---|---|\n")
		for _, r := range p.AgentReasoning {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", r.Timestamp, escapeCell(string(r.Agent)), escapeCell(r.Thought))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Evaluation\n\n")
	b.WriteString("| Actionability | Relevance | Helpfulness | Latency |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %s | %s | %dms |\n\n",
		score(p.Metrics.Actionability), score(p.Metrics.Relevance), score(p.Metrics.Helpfulness), p.Metrics.Latency)

	fmt.Fprintf(&b, "**Trace:** `%s` (%s)", p.TraceID, Environment(p))
	if p.TraceURL != "" {
		fmt.Fprintf(&b, " · [view trace](%s)", p.TraceURL)
	}
	if p.Metrics.ProjectURL != "" {
		fmt.Fprintf(&b, " · [project](%s)", p.Metrics.ProjectURL)
	}
	b.WriteString("\n")
	if p.DefaultWorkspace() {
		fmt.Fprintf(&b, "\n> **Warning:** %s\n", DefaultWorkspaceWarning)
	}
	return b.String()
}

// Terminal styles markdown for a terminal of the given width. Style is a
// glamour standard style name such as "dark", "light" or "notty"; empty
// picks one from the terminal background.
func Terminal(markdown string, width int, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

func score(v float64) string {
	if v == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f/5", v)
}

var mdEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`)

func escape(s string) string {
	return mdEscaper.Replace(strings.ReplaceAll(s, "\n", " "))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(escape(s), "|", `\|`)
}
