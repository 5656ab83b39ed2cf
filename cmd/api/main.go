package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"symposium/api/internal/config"
	"symposium/api/internal/logging"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// appEnv is what every subcommand needs before it starts.
type appEnv struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var configPath string

	load := func() (appEnv, error) {
		if configPath == "" {
			configPath = os.Getenv(config.EnvConfigPath)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return appEnv{}, err
		}
		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return appEnv{}, err
		}
		return appEnv{cfg: cfg, logger: logger}, nil
	}

	root := &cobra.Command{
		Use:           "symposium-api",
		Short:         "Symposium project, conversation and knowledge base API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()
			return runServe(cmd.Context(), rt)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (env: "+config.EnvConfigPath+")")

	root.AddCommand(newServeCmd(load), newMigrateCmd(load))
	return root
}
