package main

import (
	"fmt"
	"os"

	"codeberg.org/mutker/torquectl/internal/config"
	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	"github.com/spf13/cobra"
)

// app carries state shared by all commands of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func handleCmdError(err error) {
	switch {
	case errors.HasCode(err, errors.ErrAlreadyRunning):
		fmt.Fprintln(os.Stderr, "Another acquisition run is active. Stop it first or remove a stale PID file.")
	case errors.HasCode(err, errors.ErrMissingInput):
		fmt.Fprintln(os.Stderr, "Pass --port, set port in the config file, or replay a capture with --input.")
	case errors.HasCode(err, errors.ErrNoProfile):
		fmt.Fprintln(os.Stderr, "Select a profile with --profile-id, or let one be matched with --match-value and --match-unit.")
	}
}

func NewCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "torquectl",
		Short: "torquectl reads a torque analyzer over serial and sorts readings into calibration bands",
		Long: `torquectl reads a torque analyzer over serial and sorts readings into calibration bands.

Each calibration profile defines three applied-torque targets and their
tolerance ranges. During a run every reading is classified against the
active profile and up to five readings are kept per band.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVar(&a.configPath, "config", "", "config file path (default $TORQUECTL_CONFIG or "+config.DefaultConfigPath+")")
	globalFlags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warning, error)")
	globalFlags.String("database", config.DefaultDatabase, "SQLite database path")

	cmd.AddCommand(
		NewRunCommand(a),
		NewProfilesCommand(a),
		NewMatchCommand(a),
		NewPortsCommand(),
	)

	return cmd
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	opts := []config.Option{config.WithFlags(cmd.Flags())}
	if a.configPath != "" {
		opts = append(opts, config.WithConfigFile(a.configPath))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger.InitWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, logger.IsService())
	logger.Debug().
		Str("file", cfg.File()).
		Str("database", cfg.Database).
		Msg("Config loaded")

	return nil
}
