package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spaghettifunk/shadercache/engine/cache/linear"
	"github.com/spf13/cobra"
)

func newCompactCommand() *cobra.Command {
	var version uint32

	cmd := &cobra.Command{
		Use:   "compact <cache file>",
		Short: "Rewrite a shader cache keeping only the latest record of every key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if version == 0 {
				v, err := linear.ReadVersion(path)
				if err != nil {
					return err
				}
				version = v
			}

			bar := newProgress(cmd.ErrOrStderr(), "compacting")
			stats, err := linear.Compact(path, version, bar.Update)
			bar.Finish()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d records, dropped %d, %s -> %s\n",
				stats.Kept, stats.Records, stats.Dropped,
				humanize.Bytes(uint64(stats.Before)), humanize.Bytes(uint64(stats.After)))
			return nil
		},
	}

	cmd.Flags().Uint32Var(&version, "version", 0, "Cache version (default: read from the header)")
	return cmd
}
