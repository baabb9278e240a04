// Package dashboard drives the goal submission flow shared by every front end.
//
// A Controller owns the current plan, the task status store seeded from it and
// the activity replay shown while a request is in flight. Each submission bumps
// a generation counter; responses for an older generation are discarded.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/metalagman/aletheia/internal/activity"
	"github.com/metalagman/aletheia/internal/journal"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/planapi"
	"github.com/metalagman/aletheia/internal/taskstore"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dashboard: controller closed")

// Planner requests plans from the planning backend.
type Planner interface {
	RequestPlan(ctx context.Context, goal, userEmail string) (model.Plan, error)
}

// Journal records submission outcomes. *journal.Store satisfies it.
type Journal interface {
	Begin(ctx context.Context, goal, userEmail string) (string, error)
	Succeed(ctx context.Context, id string, out journal.Outcome) error
	Fail(ctx context.Context, id, message string) error
	Discard(ctx context.Context, id string) error
}

// EventKind identifies what changed.
type EventKind string

const (
	EventSubmitted   EventKind = "submitted"
	EventActivity    EventKind = "activity"
	EventPlanReady   EventKind = "plan_ready"
	EventFailed      EventKind = "failed"
	EventTaskUpdated EventKind = "task_updated"
)

// Event is delivered to subscribers after the controller state changed.
type Event struct {
	Kind       EventKind
	Generation uint64
	Log        *model.LogEntry
	Plan       *model.Plan
	Task       *model.Task
	Err        error
}

// State is a point-in-time copy of the controller.
type State struct {
	Generation uint64
	Loading    bool
	Goal       string
	Plan       *model.Plan
	Tasks      []model.Task
	Progress   int
	Activity   []model.LogEntry
	Err        error
}

// Option configures a Controller.
type Option func(*Controller)

// WithActivity sets the replay cadence and templates.
func WithActivity(cfg activity.Config) Option {
	return func(c *Controller) { c.activity = cfg }
}

// WithoutActivity disables the simulated activity replay.
func WithoutActivity() Option {
	return func(c *Controller) { c.noActivity = true }
}

// WithJournal records every submission in j.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithUser sets the source of the signed-in user whose email is sent along.
func WithUser(fn func() *model.User) Option {
	return func(c *Controller) { c.user = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller coordinates plan requests, activity replays and task status.
type Controller struct {
	planner    Planner
	journal    Journal
	user       func() *model.User
	activity   activity.Config
	noActivity bool
	now        func() time.Time

	base       context.Context
	baseCancel context.CancelFunc
	tasks      *taskstore.Store
	wg         sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	loading bool
	goal    string
	plan    *model.Plan
	logs    []model.LogEntry
	lastErr error
	cancel  context.CancelFunc
	replay  *activity.Replay
	subs    map[int]func(Event)
	nextSub int
	onPlan  []func(model.Plan) error
	closed  bool
}

// New creates a controller that requests plans from planner.
func New(planner Planner, opts ...Option) *Controller {
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		planner:    planner,
		now:        time.Now,
		base:       base,
		baseCancel: cancel,
		tasks:      taskstore.New(nil),
		subs:       map[int]func(Event){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for state change events and returns a function that
// removes it. fn runs on controller goroutines and must not call Submit
// synchronously.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// OnPlan registers a hook invoked after a plan has been accepted. Hook errors
// and panics are logged and never undo the accepted plan.
func (c *Controller) OnPlan(fn func(model.Plan) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPlan = append(c.onPlan, fn)
}

// Submit starts a plan request for goal and returns its generation. Any
// request or replay still running for an earlier submission is cancelled.
func (c *Controller) Submit(ctx context.Context, goal string) (uint64, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return 0, planapi.ErrEmptyGoal
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	c.gen++
	gen := c.gen
	prevCancel, prevReplay := c.cancel, c.replay
	reqCtx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.replay = nil
	c.loading = true
	c.goal = goal
	c.logs = nil
	c.lastErr = nil
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	prevReplay.Cancel()

	email := c.userEmail()
	journalID := c.begin(ctx, goal, email)

	if !c.noActivity {
		replay := activity.Start(reqCtx, c.activity, goal, func(entry model.LogEntry) {
			c.appendActivity(gen, entry)
		})
		c.mu.Lock()
		current := c.gen == gen
		if current {
			c.replay = replay
		}
		c.mu.Unlock()
		if !current {
			replay.Cancel()
		}
	}

	log.Debug().Uint64("generation", gen).Str("goal", goal).Msg("plan submitted")
	c.publish(Event{Kind: EventSubmitted, Generation: gen})

	c.wg.Add(1)
	go c.run(reqCtx, cancel, gen, goal, email, journalID)
	return gen, nil
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, goal, email, journalID string) {
	defer c.wg.Done()
	defer cancel()

	started := c.now()
	plan, err := c.planner.RequestPlan(ctx, goal, email)
	latency := c.now().Sub(started)
	jctx := context.WithoutCancel(ctx)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		log.Debug().Uint64("generation", gen).Msg("discarding stale plan response")
		c.journalDo(journalID, func(id string) error { return c.journal.Discard(jctx, id) })
		return
	}
	replay := c.replay
	c.replay = nil
	c.cancel = nil
	c.loading = false
	if err != nil {
		c.lastErr = err
	} else {
		accepted := plan.Clone()
		c.plan = &accepted
		c.tasks.Initialize(plan.Tasks)
	}
	hooks := slices.Clone(c.onPlan)
	c.mu.Unlock()

	replay.Cancel()

	if err != nil {
		msg := planapi.Message(err)
		log.Warn().Err(err).Uint64("generation", gen).Msg("plan request failed")
		c.journalDo(journalID, func(id string) error { return c.journal.Fail(jctx, id, msg) })
		c.publish(Event{Kind: EventFailed, Generation: gen, Err: err})
		return
	}

	log.Info().
		Uint64("generation", gen).
		Str("plan_id", plan.ID).
		Int("tasks", len(plan.Tasks)).
		Dur("latency", latency).
		Msg("plan accepted")
	c.journalDo(journalID, func(id string) error {
		return c.journal.Succeed(jctx, id, journal.Outcome{
			PlanID:    plan.ID,
			TraceID:   plan.TraceID,
			TaskCount: len(plan.Tasks),
			LatencyMS: latency.Milliseconds(),
		})
	})

	for _, hook := range hooks {
		if hookErr := runHook(hook, plan.Clone()); hookErr != nil {
			log.Error().Err(hookErr).Str("plan_id", plan.ID).Msg("local update after plan failed")
		}
	}
	ready := plan.Clone()
	c.publish(Event{Kind: EventPlanReady, Generation: gen, Plan: &ready})
}

func runHook(fn func(model.Plan) error, plan model.Plan) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plan hook panicked: %v", r)
		}
	}()
	return fn(plan)
}

func (c *Controller) appendActivity(gen uint64, entry model.LogEntry) {
	c.mu.Lock()
	if gen != c.gen || !c.loading {
		c.mu.Unlock()
		return
	}
	c.logs = append(c.logs, entry)
	c.mu.Unlock()
	c.publish(Event{Kind: EventActivity, Generation: gen, Log: &entry})
}

// SetTaskStatus changes the status of a task of the current plan.
func (c *Controller) SetTaskStatus(id string, status model.TaskStatus) error {
	if err := c.tasks.SetStatus(id, status); err != nil {
		return err
	}
	task, _ := c.tasks.Task(id)
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.publish(Event{Kind: EventTaskUpdated, Generation: gen, Task: &task})
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Generation: c.gen,
		Loading:    c.loading,
		Goal:       c.goal,
		Tasks:      c.tasks.Tasks(),
		Progress:   c.tasks.Progress(),
		Activity:   slices.Clone(c.logs),
		Err:        c.lastErr,
	}
	if c.plan != nil {
		p := c.plan.Clone()
		st.Plan = &p
	}
	return st
}

// Reset forgets the current plan and error, returning to the goal input.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	prevCancel, prevReplay := c.cancel, c.replay
	c.cancel, c.replay = nil, nil
	c.loading = false
	c.plan = nil
	c.goal = ""
	c.logs = nil
	c.lastErr = nil
	c.tasks.Initialize(nil)
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	prevReplay.Cancel()
}

// Wait blocks until every in-flight request has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight work and waits for it to stop.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	replay := c.replay
	c.replay = nil
	c.mu.Unlock()

	c.baseCancel()
	replay.Cancel()
	c.wg.Wait()
}

func (c *Controller) publish(ev Event) {
	c.mu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event", string(ev.Kind)).Msg("dashboard subscriber panicked")
				}
			}()
			fn(ev)
		}()
	}
}

func (c *Controller) userEmail() string {
	if c.user == nil {
		return ""
	}
	if u := c.user(); u != nil {
		return u.Email
	}
	return ""
}

func (c *Controller) begin(ctx context.Context, goal, email string) string {
	if c.journal == nil {
		return ""
	}
	id, err := c.journal.Begin(ctx, goal, email)
	if err != nil {
		log.Warn().Err(err).Msg("journal: record submission")
		return ""
	}
	return id
}

func (c *Controller) journalDo(id string, fn func(string) error) {
	if c.journal == nil || id == "" {
		return
	}
	if err := fn(id); err != nil {
		log.Warn().Err(err).Str("request_id", id).Msg("journal: record outcome")
	}
}
