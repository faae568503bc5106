package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/shadercache/engine/config"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/spaghettifunk/shadercache/engine/systems"
	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func resolveConfigPath(arg string) (string, error) {
	target := strings.TrimSpace(arg)
	if target == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return defaultPath, nil
	}
	expanded, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return expanded, nil
}

func newConfigInitCommand() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			target, err := resolveConfigPath(arg)
			if err != nil {
				return err
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			cfg := config.Default()
			if err := config.Save(target, &cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [path]",
		Short: "Print the effective configuration and the cache files it selects",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				ctx.configFlag = args[0]
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			raw, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, string(raw))

			rows := make([][]string, 0, len(metadata.AllShaderKinds)+1)
			for _, kind := range metadata.AllShaderKinds {
				usageStore := "-"
				if kind.Profiled() {
					usageStore = systems.UsageFileName(cfg, kind)
				}
				rows = append(rows, []string{kind.Tag(), systems.CacheFileName(cfg, kind), usageStore})
			}
			rows = append(rows, []string{"pipeline", systems.PipelineCacheFileName(cfg), "-"})
			fmt.Fprintln(out, renderTable([]string{"Kind", "Cache file", "Usage store"}, rows, nil))
			return nil
		},
	}
}
