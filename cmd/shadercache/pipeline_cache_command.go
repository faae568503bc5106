package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spaghettifunk/shadercache/engine/cache/pipelinecache"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/spf13/cobra"
)

func newPipelineCacheCommand() *cobra.Command {
	var vendor, device uint32
	var cacheUUID string

	cmd := &cobra.Command{
		Use:   "pipeline-cache <file>",
		Short: "Print the header of a stored driver pipeline cache and optionally validate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			blob, err := pipelinecache.NewStore(args[0]).Load()
			if err != nil {
				return err
			}
			if blob == nil {
				return errors.New("file holds no pipeline cache")
			}
			h, err := pipelinecache.ParseHeader(blob)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"Size", humanize.Bytes(uint64(len(blob)))},
					{"Header length", fmt.Sprint(h.Length)},
					{"Header version", fmt.Sprint(h.Version)},
					{"Vendor", fmt.Sprintf("0x%04x", h.VendorID)},
					{"Device", fmt.Sprintf("0x%04x", h.DeviceID)},
					{"UUID", h.UUID.String()},
				},
				nil,
			))

			flags := cmd.Flags()
			if !flags.Changed("vendor") && !flags.Changed("device") && cacheUUID == "" {
				return nil
			}
			identity := metadata.DeviceIdentity{VendorID: h.VendorID, DeviceID: h.DeviceID, PipelineCacheUUID: h.UUID}
			if flags.Changed("vendor") {
				identity.VendorID = vendor
			}
			if flags.Changed("device") {
				identity.DeviceID = device
			}
			if cacheUUID != "" {
				id, err := uuid.Parse(cacheUUID)
				if err != nil {
					return fmt.Errorf("invalid --uuid: %w", err)
				}
				identity.PipelineCacheUUID = id
			}
			if err := pipelinecache.Validate(blob, identity); err != nil {
				return err
			}
			fmt.Fprintln(out, "valid for", identity)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&vendor, "vendor", 0, "Vendor id to validate against")
	cmd.Flags().Uint32Var(&device, "device", 0, "Device id to validate against")
	cmd.Flags().StringVar(&cacheUUID, "uuid", "", "Pipeline cache UUID to validate against")
	return cmd
}
