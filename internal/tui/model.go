// Package tui implements the interactive terminal dashboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/aletheia/internal/dashboard"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/planapi"
	"github.com/metalagman/aletheia/internal/render"
)

// Layout constants
const (
	defaultWidth    = 100
	defaultHeight   = 30
	textareaHeight  = 4
	activityHeight  = 12
	minContentWidth = 40
)

// Controller is the part of the dashboard controller the TUI drives.
type Controller interface {
	Submit(ctx context.Context, goal string) (uint64, error)
	Snapshot() dashboard.State
	SetTaskStatus(id string, status model.TaskStatus) error
	Reset()
}

type tab int

const (
	tabStrategy tab = iota
	tabTrace
)

// UserSource reports the signed-in user. *session.Manager satisfies it.
type UserSource interface {
	Current() *model.User
	Subscribe(fn func(*model.User)) func()
}

type (
	refreshMsg   struct{}
	submittedMsg struct{ err error }
)

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx   context.Context
	ctrl  Controller
	users UserSource

	user   *model.User
	state  dashboard.State
	tab    tab
	cursor int
	notice string

	width  int
	height int

	input    textarea.Model
	spinner  spinner.Model
	activity viewport.Model
	bar      progress.Model
}

// New creates the dashboard model. users may be nil.
func New(ctx context.Context, ctrl Controller, users UserSource) Model {
	ti := textarea.New()
	ti.Placeholder = "Describe a goal, e.g. Learn Spanish in 3 months"
	ti.Focus()
	ti.CharLimit = 500
	ti.ShowLineNumbers = false
	ti.SetWidth(defaultWidth - 6)
	ti.SetHeight(textareaHeight)
	ti.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleTitle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = defaultWidth - 20

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		users:    users,
		state:    ctrl.Snapshot(),
		width:    defaultWidth,
		height:   defaultHeight,
		input:    ti,
		spinner:  s,
		activity: viewport.New(defaultWidth-4, activityHeight),
		bar:      bar,
	}
	if users != nil {
		m.user = users.Current()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := max(msg.Width, minContentWidth)
		m.input.SetWidth(w - 6)
		m.activity.Width = w - 4
		m.bar.Width = w - 20
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, nil

	case submittedMsg:
		if msg.err != nil {
			m.notice = planapi.Message(msg.err)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.state.Loading:
			return m.updateLoading(msg)
		case m.state.Plan != nil:
			return m.updatePlan(msg)
		default:
			return m.updateInput(msg)
		}
	}

	if m.showingInput() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		goal := strings.TrimSpace(m.input.Value())
		if goal == "" {
			m.notice = "Enter a goal first."
			return m, nil
		}
		m.notice = ""
		return m, m.submit(goal)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateLoading(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.Reset()
		m.refresh()
		m.input.Focus()
		return m, nil
	}
	var cmd tea.Cmd
	m.activity, cmd = m.activity.Update(msg)
	return m, cmd
}

func (m Model) updatePlan(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tasks := m.state.Tasks
	switch key := msg.String(); key {
	case "q", "esc":
		return m, tea.Quit
	case "tab":
		if m.tab == tabStrategy {
			m.tab = tabTrace
		} else {
			m.tab = tabStrategy
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(tasks)-1 {
			m.cursor++
		}
	case "1", "2", "3", "4":
		if m.tab != tabStrategy || len(tasks) == 0 {
			return m, nil
		}
		status := model.TaskStatuses[int(key[0]-'1')]
		if err := m.ctrl.SetTaskStatus(tasks[m.cursor].ID, status); err != nil {
			m.notice = err.Error()
		}
		m.refresh()
	case "r":
		return m, m.submit(m.state.Goal)
	case "n":
		m.ctrl.Reset()
		m.refresh()
		m.input.Reset()
		m.input.Focus()
		m.notice = ""
	}
	return m, nil
}

func (m Model) submit(goal string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		_, err := ctrl.Submit(ctx, goal)
		return submittedMsg{err: err}
	}
}

// refresh reloads controller state. A new plan resets the selection.
func (m *Model) refresh() {
	prev := m.state.Plan
	m.state = m.ctrl.Snapshot()
	if next := m.state.Plan; next != nil && (prev == nil || prev.ID != next.ID) {
		m.tab = tabStrategy
		m.cursor = 0
		m.notice = ""
	}
	if m.users != nil {
		m.user = m.users.Current()
	}
	if m.cursor >= len(m.state.Tasks) {
		m.cursor = max(len(m.state.Tasks)-1, 0)
	}
	m.activity.SetContent(renderLogs(m.state.Activity))
	m.activity.GotoBottom()
}

func (m Model) showingInput() bool {
	return !m.state.Loading && m.state.Plan == nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch {
	case m.state.Loading:
		b.WriteString(m.loadingView())
	case m.state.Plan != nil:
		b.WriteString(m.planView())
	default:
		b.WriteString(m.inputView())
	}

	if m.notice != "" {
		b.WriteString("\n" + styleWarning.Render(m.notice) + "\n")
	}
	return b.String()
}

func (m Model) header() string {
	title := styleHeader.Render("◆ Aletheia")
	who := styleSubtle.Render("not signed in · run `aletheia login`")
	if m.user != nil {
		who = styleText.Render(fmt.Sprintf("%s <%s>", m.user.Name, m.user.Email))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", who)
}

func (m Model) inputView() string {
	var b strings.Builder
	greeting := "What do you want to achieve?"
	if m.user != nil && m.user.FirstName() != "" {
		greeting = fmt.Sprintf("What do you want to achieve, %s?", m.user.FirstName())
	}
	b.WriteString(styleTitle.Render(greeting) + "\n")
	b.WriteString(styleInputBox.Render(m.input.View()) + "\n")
	if err := m.state.Err; err != nil {
		b.WriteString(styleError.Render("✗ "+planapi.Message(err)) + "\n")
	}
	b.WriteString(styleSubtle.Render("enter submit · alt+enter newline · esc quit"))
	return b.String()
}

func (m Model) loadingView() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s Planning %q\n\n", m.spinner.View(), m.state.Goal))
	b.WriteString(styleTraceBox.Render(m.activity.View()) + "\n")
	b.WriteString(styleSubtle.Render("esc cancel · ctrl+c quit"))
	return b.String()
}

func (m Model) planView() string {
	var b strings.Builder
	tabs := []string{"Strategy", "Trace"}
	for i, name := range tabs {
		style := styleTab
		if tab(i) == m.tab {
			style = styleActiveTab
		}
		b.WriteString(style.Render(name))
	}
	b.WriteString("\n\n")

	if m.tab == tabTrace {
		b.WriteString(traceView(*m.state.Plan))
	} else {
		b.WriteString(m.strategyView(*m.state.Plan))
	}

	if err := m.state.Err; err != nil {
		b.WriteString("\n" + styleError.Render("✗ "+planapi.Message(err)))
	}
	b.WriteString("\n" + styleSubtle.Render("↑/↓ select · 1 todo 2 in progress 3 done 4 blocked · tab trace · r retry · n new goal · q quit"))
	return b.String()
}

func (m Model) strategyView(p model.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", styleTitle.Render(p.OriginalGoal), styleSubtle.Render(p.Category))
	fmt.Fprintf(&b, "%s %d%%\n\n", m.bar.ViewAs(float64(m.state.Progress)/100), m.state.Progress)

	b.WriteString(styleSection.Render("Tasks") + "\n")
	if len(m.state.Tasks) == 0 {
		b.WriteString(styleSubtle.Render("No tasks in this plan.") + "\n")
	}
	for i, task := range m.state.Tasks {
		prefix := "  "
		title := styleText.Render(task.Title)
		if i == m.cursor {
			prefix = styleCursor.Render("▸ ")
			title = styleCursor.Render(task.Title)
		}
		status := statusStyles[task.Status].Render(statusIcon(task.Status) + " " + task.Status.Label())
		line := prefix + title
		if task.Duration != "" {
			line += styleSubtle.Render(" · " + task.Duration)
		}
		fmt.Fprintf(&b, "%s  %s\n", line, status)
		if i == m.cursor && task.Description != "" {
			b.WriteString("    " + styleSubtle.Render(task.Description) + "\n")
		}
	}

	guidance := strings.Join([]string{
		styleTitle.Render("Predictive intervention"),
		styleText.Render(fmt.Sprintf("%q", p.FrictionIntervention)),
		"",
		styleSubtle.Render("Planner suggestion: ") + render.PlannerSuggestion(p),
		styleSubtle.Render("Evaluator insight: ") + render.EvaluatorInsight(p),
	}, "\n")
	b.WriteString("\n" + styleGuidanceBox.Render(guidance) + "\n")

	if len(p.AgentReasoning) > 0 {
		b.WriteString("\n" + styleSection.Render("Agentic logic chain") + "\n")
		for _, r := range p.AgentReasoning {
			fmt.Fprintf(&b, "%s %s\n", styleTitle.Render(string(r.Agent)+":"), r.Thought)
		}
	}
	return b.String()
}

func traceView(p model.Plan) string {
	var b strings.Builder
	metrics := []string{
		fmt.Sprintf("Latency %dms", p.Metrics.Latency),
		"Trace ID " + render.ShortTraceID(p.TraceID),
		"Environment " + render.Environment(p),
		fmt.Sprintf("Actionability %.1f · Relevance %.1f · Helpfulness %.1f",
			p.Metrics.Actionability, p.Metrics.Relevance, p.Metrics.Helpfulness),
	}
	b.WriteString(styleText.Render(strings.Join(metrics, " │ ")) + "\n")
	if p.TraceURL != "" {
		b.WriteString(styleSubtle.Render("View trace: "+p.TraceURL) + "\n")
	}

	var body strings.Builder
	if p.DefaultWorkspace() {
		body.WriteString(styleWarning.Render("[SYSTEM WARNING]: "+render.DefaultWorkspaceWarning) + "\n\n")
	}
	body.WriteString(renderLogs(p.Logs))
	for _, r := range p.AgentReasoning {
		fmt.Fprintf(&body, "\n%s %s\n  %s", styleSubtle.Render(r.Timestamp), styleTitle.Render("span:"+string(r.Agent)), r.Thought)
	}
	b.WriteString(styleTraceBox.Render(body.String()))
	return b.String()
}

func renderLogs(entries []model.LogEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		style, ok := levelStyles[e.Level]
		if !ok {
			style = levelStyles[model.LevelInfo]
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			styleSubtle.Render(e.Timestamp), style.Render("["+e.Source+"]"), e.Message))
	}
	return strings.Join(lines, "\n")
}

// Run starts the dashboard program and blocks until the user quits.
//
// Controller and session notifications are coalesced into refresh messages
// sent from a separate goroutine, so Update may call the controller without
// waiting on its own subscribers.
func Run(ctx context.Context, ctrl *dashboard.Controller, users UserSource) error {
	p := tea.NewProgram(New(ctx, ctrl, users), tea.WithAltScreen(), tea.WithContext(ctx))

	changed := make(chan struct{}, 1)
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	defer ctrl.Subscribe(func(dashboard.Event) { notify() })()
	if users != nil {
		defer users.Subscribe(func(*model.User) { notify() })()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-changed:
				p.Send(refreshMsg{})
			}
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
