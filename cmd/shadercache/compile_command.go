package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spaghettifunk/shadercache/engine/cache/linear"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/compiler"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/spaghettifunk/shadercache/engine/systems"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

var stageSuffixes = map[string]metadata.ShaderStage{
	".vs.wgsl": metadata.ShaderStageVertex,
	".ps.wgsl": metadata.ShaderStageFragment,
	".fs.wgsl": metadata.ShaderStageFragment,
	".cs.wgsl": metadata.ShaderStageCompute,
}

// stageOf derives the stage from names like quad.vs.wgsl.
func stageOf(path string) (metadata.ShaderStage, error) {
	name := strings.ToLower(filepath.Base(path))
	for suffix, stage := range stageSuffixes {
		if strings.HasSuffix(name, suffix) {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("cannot tell the stage of %s, expected a .vs/.ps/.fs/.cs.wgsl suffix", path)
}

type compileResult struct {
	path   string
	stage  metadata.ShaderStage
	binary []byte
	err    error
}

func compileAll(paths []string, prelude string, workers int, update func(current, total int)) ([]compileResult, error) {
	js, err := systems.NewJobSystem(workers, workers)
	if err != nil {
		return nil, err
	}
	defer js.Shutdown()

	nc := compiler.NewNagaCompiler()
	results := make([]compileResult, len(paths))
	var mutex sync.Mutex
	done := 0

	for i, path := range paths {
		results[i].path = path
		task := systems.JobTask{
			InputParams: i,
			OnStart: func(params interface{}) (interface{}, error) {
				r := &results[params.(int)]
				stage, err := stageOf(r.path)
				if err != nil {
					r.err = err
					return nil, err
				}
				r.stage = stage
				source, err := os.ReadFile(r.path)
				if err != nil {
					r.err = err
					return nil, err
				}
				r.binary, r.err = nc.Compile(stage, prelude+string(source))
				return nil, r.err
			},
			OnCompletionCallback: func() {
				mutex.Lock()
				defer mutex.Unlock()
				done++
				update(done, len(paths))
			},
		}
		// with every worker busy and the queue full the caller compiles too
		if !js.TrySubmit(task) {
			js.RunOnCaller(task)
		}
	}
	js.Wait()
	return results, nil
}

func appendToCache(path string, kind metadata.ShaderKind, version uint32, results []compileResult) (int, error) {
	disk := linear.NewDiskCache(systems.ShaderCacheVersion)
	if _, err := disk.OpenAndRead(path, nil); err != nil {
		return 0, err
	}
	if disk.ReadOnly() {
		disk.Close()
		return 0, fmt.Errorf("%s is in use by another process", path)
	}

	appended := 0
	for _, r := range results {
		if r.err != nil {
			continue
		}
		if r.stage != kind.Stage() {
			core.LogWarn("not storing %s: a %s shader cannot be a %s entry", r.path, r.stage, kind)
			continue
		}
		uid := metadata.NewShaderUid(kind, version, []byte(filepath.Base(r.path)))
		key, err := uid.MarshalBinary()
		if err != nil {
			disk.Close()
			return appended, err
		}
		if !disk.Append(key, r.binary) {
			disk.Close()
			return appended, fmt.Errorf("failed to append %s to %s", r.path, path)
		}
		appended++
	}
	return appended, disk.Close()
}

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var out string
	var kindTag string
	var version uint32
	var hostPrelude bool
	var workers int

	cmd := &cobra.Command{
		Use:   "compile <file.wgsl>...",
		Short: "Compile WGSL files to SPIR-V and optionally store them in a shader cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prelude := ""
			if hostPrelude {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				prelude = cfg.Host.Prelude()
			}

			bar := newProgress(cmd.ErrOrStderr(), "compiling")
			results, err := compileAll(args, prelude, workers, bar.Update)
			bar.Finish()
			if err != nil {
				return err
			}
			slices.SortFunc(results, func(a, b compileResult) int {
				return strings.Compare(a.path, b.path)
			})

			var failed []error
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status, size := "ok", humanize.Bytes(uint64(len(r.binary)))
				if r.err != nil {
					status, size = r.err.Error(), "-"
					failed = append(failed, fmt.Errorf("%s: %w", r.path, r.err))
				}
				rows = append(rows, []string{r.path, r.stage.String(), size, status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Stage", "SPIR-V", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))

			if out != "" {
				kind, err := metadata.ParseShaderKind(kindTag)
				if err != nil {
					return err
				}
				n, err := appendToCache(out, kind, version, results)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "appended %d binaries to %s\n", n, out)
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Shader cache file to append the binaries to")
	cmd.Flags().StringVar(&kindTag, "kind", "vs", "Shader kind of the stored binaries (vs, ps, gs, uvs, ups)")
	cmd.Flags().Uint32Var(&version, "version", 1, "UID version of the stored binaries")
	cmd.Flags().BoolVar(&hostPrelude, "host-prelude", false, "Prepend the host configuration constants")
	cmd.Flags().IntVarP(&workers, "jobs", "j", runtime.NumCPU(), "Number of parallel compiles")
	return cmd
}
