package main

import (
	"encoding/json"

	"github.com/okian/aidfeed/internal/probe"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var cfg probe.Config
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check a running service: verify /listings and watch /ws",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := probe.Run(cmd.Context(), cfg, logger.Named("probe"))
			if rep != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(rep)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", probe.DefaultBaseURL, "base URL of the service")
	cmd.Flags().StringVar(&cfg.Region, "region", "", "region filter")
	cmd.Flags().StringVar(&cfg.Category, "category", "", "category filter")
	cmd.Flags().BoolVar(&cfg.Refresh, "refresh", false, "force a refresh on the server")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", probe.DefaultTimeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&cfg.Watch, "watch", 0, "how long to watch the change stream")
	cmd.Flags().IntVar(&cfg.MaxEvents, "max-events", 0, "stop watching after this many events")
	return cmd
}
