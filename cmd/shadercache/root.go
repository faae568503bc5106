package main

import (
	"github.com/spaghettifunk/shadercache/engine/config"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag string
	logLevel   string
	config     *config.Config
}

// ensureConfig loads the configuration once. A missing file yields the defaults.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	path := c.configFlag
	if path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		path = expanded
	}
	cfg, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.config = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "shadercache",
		Short:         "Inspect and maintain compiled shader caches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			core.SetLogOutput(cmd.ErrOrStderr())
			core.SetLogLevel(ctx.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newProfileCommand(ctx))
	rootCmd.AddCommand(newPipelineCacheCommand())
	rootCmd.AddCommand(newCompactCommand())
	rootCmd.AddCommand(newCompileCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newWarmCommand(ctx))

	return rootCmd
}
