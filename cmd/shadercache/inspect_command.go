package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spaghettifunk/shadercache/engine/cache/linear"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/spf13/cobra"
)

type inspectRow struct {
	uid        metadata.ShaderUid
	decoded    bool
	size       int
	superseded bool
}

// readRecords replays a shader cache file. A zero version uses the one in the header.
func readRecords(path string, version uint32) ([]inspectRow, uint32, error) {
	if version == 0 {
		v, err := linear.ReadVersion(path)
		if err != nil {
			return nil, 0, err
		}
		version = v
	}

	var rows []inspectRow
	last := make(map[string]int)
	_, err := linear.ReadAll(path, version, func(key, value []byte) {
		row := inspectRow{size: len(value)}
		if err := row.uid.UnmarshalBinary(key); err == nil {
			row.uid.Canonicalize()
			row.decoded = true
		}
		if i, ok := last[string(key)]; ok {
			rows[i].superseded = true
		}
		last[string(key)] = len(rows)
		rows = append(rows, row)
	})
	if err != nil {
		return nil, version, err
	}
	return rows, version, nil
}

func newInspectCommand() *cobra.Command {
	var version uint32

	cmd := &cobra.Command{
		Use:   "inspect <cache file>",
		Short: "List the records of a shader cache file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, v, err := readRecords(args[0], version)
			if err != nil {
				return err
			}

			var total uint64
			table := make([][]string, 0, len(rows))
			for i, r := range rows {
				total += uint64(r.size)
				kind, uidVersion, hash := "?", "?", "undecodable"
				if r.decoded {
					kind = r.uid.Kind().Tag()
					uidVersion = strconv.FormatUint(uint64(r.uid.Version()), 10)
					hash = fmt.Sprintf("%016x", r.uid.Hash())
				}
				dup := ""
				if r.superseded {
					dup = "superseded"
				}
				table = append(table, []string{strconv.Itoa(i), hash, kind, uidVersion, humanize.Bytes(uint64(r.size)), dup})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Key hash", "Kind", "UID version", "Size", "Duplicate"},
				table,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%s records, %s, cache version %d\n", humanize.Comma(int64(len(rows))), humanize.Bytes(total), v)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&version, "version", 0, "Expected cache version (default: read from the header)")
	return cmd
}
