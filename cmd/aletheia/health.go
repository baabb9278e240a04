package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the planning backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newPlanClient(cfg, "")
			if err != nil {
				return err
			}
			h, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", client.BaseURL(), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend: %s\nstatus: %s\n", client.BaseURL(), h.Status)
			if h.Timestamp > 0 {
				sec := int64(h.Timestamp)
				ts := time.Unix(sec, int64((h.Timestamp-float64(sec))*1e9))
				fmt.Fprintf(out, "timestamp: %s\n", ts.Local().Format(time.RFC3339))
			}
			keys := make([]string, 0, len(h.Diagnostics))
			for k := range h.Diagnostics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %v\n", k, h.Diagnostics[k])
			}
			return nil
		},
	}
}
