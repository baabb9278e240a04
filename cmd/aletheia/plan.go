package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/metalagman/aletheia/internal/dashboard"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/render"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

func planCmd() *cobra.Command {
	var (
		format     string
		noActivity bool
		width      int
	)
	cmd := &cobra.Command{
		Use:   "plan <goal...>",
		Short: "Request a plan for a goal and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatMarkdown && format != formatJSON {
				return fmt.Errorf("unknown format %q (want %s or %s)", format, formatMarkdown, formatJSON)
			}
			return runPlan(cmd.Context(), strings.Join(args, " "), format, !noActivity, width, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatMarkdown, "output format: markdown or json")
	cmd.Flags().BoolVar(&noActivity, "no-activity", false, "do not replay the activity log while waiting")
	cmd.Flags().IntVar(&width, "width", 0, "wrap width for styled output (default terminal width)")
	return cmd
}

func runPlan(ctx context.Context, goal, format string, withActivity bool, width int, stdout, stderr io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newPlanClient(cfg, "")
	if err != nil {
		return err
	}
	store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}
	signedIn, err := newSessionProvider(cfg).Load()
	if err != nil {
		return err
	}
	current := func() *model.User { return nil }
	if signedIn != nil {
		u := mapUser(*signedIn)
		current = func() *model.User { return &u }
	}

	ctrl := dashboard.New(client, controllerOptions(cfg, store, current, withActivity && format == formatMarkdown)...)
	defer ctrl.Close()
	stop := context.AfterFunc(ctx, ctrl.Close)
	defer stop()

	ctrl.Subscribe(func(ev dashboard.Event) {
		if ev.Kind == dashboard.EventActivity && ev.Log != nil {
			fmt.Fprintf(stderr, "%s [%s] %s\n", ev.Log.Timestamp, ev.Log.Source, ev.Log.Message)
		}
	})

	if _, err := ctrl.Submit(ctx, goal); err != nil {
		return err
	}
	ctrl.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	st := ctrl.Snapshot()
	if st.Err != nil {
		return st.Err
	}
	if st.Plan == nil {
		return fmt.Errorf("no plan received")
	}

	if format == formatJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Plan)
	}

	md := render.Markdown(*st.Plan, st.Tasks)
	out, ok := stdout.(*os.File)
	if !ok || !isTerminal(out) {
		_, err := io.WriteString(stdout, md)
		return err
	}
	if width <= 0 {
		width = 100
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	styled, err := render.Terminal(md, width, "")
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, styled)
	return err
}
