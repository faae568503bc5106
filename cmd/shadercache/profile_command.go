package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spaghettifunk/shadercache/engine/cache/usage"
	"github.com/spf13/cobra"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	var workload string
	var top int
	var formatVersion uint32
	var cacheID string

	cmd := &cobra.Command{
		Use:   "profile <usage store>",
		Short: "Show the most used shaders of a workload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workload == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				workload = cfg.Cache.Workload
			}

			snap, err := usage.Inspect(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format-version") && snap.FormatVersion != formatVersion {
				return fmt.Errorf("store has format version %d, expected %d", snap.FormatVersion, formatVersion)
			}
			if cacheID != "" && snap.CacheID != cacheID {
				return fmt.Errorf("store belongs to %q, expected %q", snap.CacheID, cacheID)
			}

			category := usage.CategoryOf(workload)
			rows := snap.Top(category, top)
			table := make([][]string, 0, len(rows))
			for i, r := range rows {
				table = append(table, []string{
					strconv.Itoa(i + 1),
					fmt.Sprintf("%016x", r.UID.Hash()),
					r.UID.Kind().Tag(),
					strconv.FormatUint(uint64(r.UID.Version()), 10),
					humanize.Comma(int64(r.Counts[category])),
					humanize.Comma(int64(r.Total())),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "store %s: cache id %q, format version %d, %d entries\n", args[0], snap.CacheID, snap.FormatVersion, len(snap.Rows))
			fmt.Fprintln(out, renderTable(
				[]string{"Rank", "UID hash", "Kind", "UID version", "Uses (" + workload + ")", "Uses (all)"},
				table,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&workload, "workload", "w", "", "Workload id (default: from the configuration)")
	cmd.Flags().IntVarP(&top, "top", "n", 20, "Number of entries to show, 0 for all")
	cmd.Flags().Uint32Var(&formatVersion, "format-version", 0, "Fail unless the store has this format version")
	cmd.Flags().StringVar(&cacheID, "cache-id", "", "Fail unless the store has this cache id")
	return cmd
}
