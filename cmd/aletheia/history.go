package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/metalagman/aletheia/internal/config"
	"github.com/metalagman/aletheia/internal/journal"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/render"
	"github.com/spf13/cobra"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func historyCmd() *cobra.Command {
	var (
		limit  int
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "history [request-id]",
		Short: "List past plan requests, or show one request with its event trail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if remote {
					return errors.New("--remote lists backend plans only and takes no request id")
				}
				return requestDetail(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
			}
			if remote {
				return remoteHistory(cmd.Context(), cfg, limit, cmd.OutOrStdout())
			}
			return localHistory(cmd.Context(), cfg, limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	cmd.Flags().BoolVar(&remote, "remote", false, "list plans stored by the backend for the signed-in user")
	return cmd
}

func openEnabledJournal(cfg config.Config) (*journal.Store, error) {
	store, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("the request journal is disabled (journal.enabled=false)")
	}
	return store, nil
}

func localHistory(ctx context.Context, cfg config.Config, limit int, out io.Writer) error {
	store, err := openEnabledJournal(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No requests yet.")
		return nil
	}
	fmt.Fprintln(out, journalTable(records))
	return nil
}

func journalTable(records []journal.Record) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "WHEN", "STATUS", "GOAL", "TASKS", "LATENCY", "TRACE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range records {
		latency, tasks, trace := "-", "-", "-"
		if r.Status == journal.StatusSucceeded {
			latency = (time.Duration(r.LatencyMS) * time.Millisecond).String()
			tasks = strconv.Itoa(r.TaskCount)
			trace = render.ShortTraceID(r.TraceID)
		}
		status := r.Status
		if r.Error != "" {
			status += ": " + truncate(r.Error, 32)
		}
		t.Row(r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), status, truncate(r.Goal, 40), tasks, latency, trace)
	}
	return t.Render()
}

func requestDetail(ctx context.Context, cfg config.Config, id string, out io.Writer) error {
	store, err := openEnabledJournal(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	events, err := store.Events(ctx, id)
	if err != nil {
		return err
	}
	writeRequestDetail(out, rec, events)
	return nil
}

func writeRequestDetail(out io.Writer, rec journal.Record, events []journal.Event) {
	fmt.Fprintf(out, "request: %s\ngoal: %s\nstatus: %s\n", rec.ID, rec.Goal, rec.Status)
	if rec.UserEmail != "" {
		fmt.Fprintf(out, "user: %s\n", rec.UserEmail)
	}
	if rec.PlanID != "" {
		fmt.Fprintf(out, "plan: %s (%d tasks, trace %s)\n", rec.PlanID, rec.TaskCount, rec.TraceID)
	}
	if rec.Error != "" {
		fmt.Fprintf(out, "error: %s\n", rec.Error)
	}
	if len(events) == 0 {
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "TIME", "EVENT", "MESSAGE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, ev := range events {
		t.Row(strconv.Itoa(ev.Seq), ev.TS.Local().Format("15:04:05.000"), ev.Type, ev.Message)
	}
	fmt.Fprintln(out, t.Render())
}

func remoteHistory(ctx context.Context, cfg config.Config, limit int, out io.Writer) error {
	pu, err := newSessionProvider(cfg).Load()
	if err != nil {
		return err
	}
	if pu == nil || pu.Email == "" {
		return errors.New("remote history needs a signed-in user with an email; run `aletheia login`")
	}
	client, err := newPlanClient(cfg, "")
	if err != nil {
		return err
	}
	plans, err := client.History(ctx, pu.Email)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Fprintln(out, "No plans stored for", pu.Email)
		return nil
	}
	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}
	fmt.Fprintln(out, planTable(plans))
	return nil
}

func planTable(plans []model.Plan) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "CATEGORY", "TASKS", "RELEVANCE", "TRACE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, p := range plans {
		relevance := "N/A"
		if p.Metrics.Relevance != 0 {
			relevance = strconv.FormatFloat(p.Metrics.Relevance, 'f', 1, 64)
		}
		t.Row(p.ID, p.Category, strconv.Itoa(len(p.Tasks)), relevance, render.ShortTraceID(p.TraceID))
	}
	return t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
