package main

import (
	"context"
	"errors"
	"os"

	"github.com/metalagman/aletheia/internal/dashboard"
	"github.com/metalagman/aletheia/internal/logging"
	"github.com/metalagman/aletheia/internal/session"
	"github.com/metalagman/aletheia/internal/tui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive terminal dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context())
		},
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func runDashboard(ctx context.Context) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errors.New("the dashboard needs an interactive terminal; use `aletheia plan` or `aletheia serve`")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logFile, err := logging.InitFile(cfg.LogPath(), debug)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

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

	users := session.NewManager(newSessionProvider(cfg))
	if err := users.Start(ctx); err != nil {
		return err
	}
	defer users.Close()

	ctrl := dashboard.New(client, controllerOptions(cfg, store, users.Current, true)...)
	defer ctrl.Close()

	log.Info().Str("backend", client.BaseURL()).Msg("dashboard started")
	return tui.Run(ctx, ctrl, users)
}
