package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/example/go-spacebatch/internal/config"
	"github.com/example/go-spacebatch/internal/runtime/ops"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "spacebatch",
		Short: "Space-to-batch / batch-to-space tensor transforms",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}

			if err := loaded.Validate(); err != nil {
				return err
			}

			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			applyRuntime(loaded.Runtime)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newTransformCmd(spaceToBatchCmd))
	cmd.AddCommand(newTransformCmd(batchToSpaceCmd))
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := config.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func applyRuntime(rc config.RuntimeConfig) {
	ops.SetWorkers(rc.Workers)
	ops.SetMinChunk(rc.MinParallel)
	slog.Debug("runtime configured", "workers", rc.Workers, "min_parallel", rc.MinParallel)
}

func requireConfig() (config.Config, error) {
	if len(activeCfg.Transform.BlockShape) == 0 {
		return config.Config{}, errors.New("configuration not loaded")
	}

	return activeCfg, nil
}
