package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/metalagman/aletheia/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	debug   bool
	rootCmd = &cobra.Command{
		Use:           "aletheia",
		Short:         "aletheia turns resolutions into actionable plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context())
		},
	}
)

// Execute runs the root command.
func Execute() error {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default .aletheia/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("bind config flag: %w", err)
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
	}
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}
