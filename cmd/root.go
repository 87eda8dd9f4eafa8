package main

import (
	"fmt"
	"os"

	"github.com/okian/aidfeed/internal/config"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	cfg     *config.Config
}

// newRootCmd builds the base command and its subcommands.
func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "aidfeed",
		Short:         "Scholarship aggregation service",
		Long:          "Aggregates scholarship listings from government, state, private and feed sources and streams changes to subscribers.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file (overrides "+config.EnvPrefix+"CONFIG)")

	root.AddCommand(newServeCmd(c), newFetchCmd(c), newProbeCmd())
	return root
}

// load reads configuration (defaults -> optional file -> env) and initializes
// logging. Logs go to stderr so command output stays machine readable.
func (c *cli) load(cmd *cobra.Command) error {
	if c.cfgFile != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", c.cfgFile); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return nil
}
