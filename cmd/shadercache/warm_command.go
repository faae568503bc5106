package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spaghettifunk/shadercache/engine"
	"github.com/spaghettifunk/shadercache/engine/config"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/compiler"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/spaghettifunk/shadercache/engine/renderer/vulkan"
	"github.com/spaghettifunk/shadercache/engine/systems"
	"github.com/spf13/cobra"
)

/**
 * @brief Generates shaders from a directory of WGSL files. A UID's data is the
 * file name, the same key `compile --out` stores.
 */
type dirGenerator struct {
	dir     string
	version uint32
}

func (g *dirGenerator) UidVersion(metadata.ShaderKind) uint32 {
	return g.version
}

func (g *dirGenerator) GenerateSource(uid metadata.ShaderUid, host metadata.HostConfig) (string, error) {
	name := filepath.Base(string(uid.Data()))
	source, err := os.ReadFile(filepath.Join(g.dir, name))
	if err != nil {
		return "", err
	}
	return host.Prelude() + string(source), nil
}

// Enumerate lists the uber variants: every vertex file for uvs, every pixel file for ups.
func (g *dirGenerator) Enumerate(kind metadata.ShaderKind, host metadata.HostConfig, visit func(uid metadata.ShaderUid, total int)) bool {
	var stage metadata.ShaderStage
	switch kind {
	case metadata.ShaderKindUberVertex:
		stage = metadata.ShaderStageVertex
	case metadata.ShaderKindUberPixel:
		stage = metadata.ShaderStageFragment
	default:
		return false
	}

	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return false
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if s, err := stageOf(e.Name()); err == nil && s == stage {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		visit(metadata.NewShaderUid(kind, g.version, []byte(name)), len(names))
	}
	return true
}

// sweepProgress starts a fresh bar for every sweep label.
func sweepProgress(cmd *cobra.Command) (func(label string, current, total int), func()) {
	var bar *progress
	label := ""
	finish := func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}
	return func(l string, current, total int) {
		if total < 0 {
			finish()
			return
		}
		if bar == nil || l != label {
			finish()
			label = l
			bar = newProgress(cmd.ErrOrStderr(), l)
		}
		bar.Update(current, total)
	}, finish
}

func statsRows(stats systems.Stats) [][]string {
	rows := make([][]string, 0, len(stats.Kinds))
	for _, k := range stats.Kinds {
		disk := "closed"
		if k.DiskRecords >= 0 {
			disk = strconv.Itoa(k.DiskRecords)
		}
		rows = append(rows, []string{
			k.Kind.Tag(),
			strconv.Itoa(k.Entries),
			strconv.Itoa(k.Alive),
			strconv.FormatUint(k.Loaded, 10),
			strconv.FormatUint(k.Dropped, 10),
			strconv.FormatUint(k.Compiled, 10),
			strconv.FormatUint(k.Failures, 10),
			disk,
		})
	}
	return rows
}

func newWarmCommand(ctx *commandContext) *cobra.Command {
	var shaderDir string
	var version uint32
	var debug bool

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Fill the caches on the local GPU from a directory of WGSL shaders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := ""
			if ctx.configFlag != "" {
				expanded, err := config.ExpandPath(ctx.configFlag)
				if err != nil {
					return err
				}
				configPath = expanded
			}

			e, err := engine.New(configPath, vulkan.New(debug), &dirGenerator{dir: shaderDir, version: version}, compiler.NewNagaCompiler())
			if err != nil {
				return err
			}
			// engine.New applies the configured level, the flag wins
			if cmd.Flags().Changed("log-level") {
				core.SetLogLevel(ctx.logLevel)
			}

			report, finish := sweepProgress(cmd)
			err = e.Initialize("shadercache", report)
			finish()
			if err != nil {
				e.Shutdown()
				return err
			}

			oc := e.ObjectCache()
			stats := oc.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Kind", "Entries", "Alive", "Loaded", "Dropped", "Compiled", "Failures", "Disk records"},
				statsRows(stats),
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "workload %q: %d compiles, %.2f ms average\n", e.Config().Cache.Workload, stats.Compiles, stats.CompileAverage)
			for _, f := range oc.RecentFailures() {
				fmt.Fprintf(out, "failed %s %016x: %s\n", f.Kind, f.UidHash, f.Reason)
			}

			return e.Shutdown()
		},
	}

	cmd.Flags().StringVarP(&shaderDir, "shaders", "s", ".", "Directory holding the WGSL sources")
	cmd.Flags().Uint32Var(&version, "version", 1, "UID version the sources generate")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable the Vulkan validation layers")
	return cmd
}
