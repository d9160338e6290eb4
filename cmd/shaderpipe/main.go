// Command shaderpipe inspects and builds shader assets outside the engine.
//
// Usage:
//
//	shaderpipe [flags] [asset ...]
//
// With no asset arguments every asset under the root is processed.
// -emit selects what is printed per asset: the synthesized WGSL, the
// reflected binding layout, or SPIR-V files written to -out. -build also
// creates the render pipelines, on the headless noop backend by default or
// on a real GPU with -backend vulkan.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/shaderpipe"
	"github.com/gogpu/shaderpipe/asset"
	"github.com/gogpu/shaderpipe/binding"
	"github.com/gogpu/shaderpipe/config"
	"github.com/gogpu/shaderpipe/internal/logging"
	"github.com/gogpu/shaderpipe/pipeline"
	"github.com/gogpu/shaderpipe/synth"
	"github.com/gogpu/shaderpipe/translate"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

type flags struct {
	root       string
	configPath string
	emit       string
	out        string
	state      string
	backend    string
	build      bool
	verbose    bool
	dumpConfig bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f flags
	fset := flag.NewFlagSet("shaderpipe", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&f.root, "root", "", "asset root directory (default from config)")
	fset.StringVar(&f.configPath, "config", "", "TOML configuration file")
	fset.StringVar(&f.emit, "emit", "layout", "output per asset: wgsl, layout, spirv or none")
	fset.StringVar(&f.out, "out", ".", "directory for -emit spirv")
	fset.StringVar(&f.state, "state", "", "state preset from the configuration used by -build")
	fset.StringVar(&f.backend, "backend", "noop", "HAL backend for -build: noop or vulkan")
	fset.BoolVar(&f.build, "build", false, "create render pipelines")
	fset.BoolVar(&f.verbose, "v", false, "debug logging to stderr")
	fset.BoolVar(&f.dumpConfig, "dump-config", false, "print the effective configuration and exit")
	if err := fset.Parse(args); err != nil {
		return err
	}

	if f.verbose {
		shaderpipe.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		defer shaderpipe.SetLogger(nil)
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return err
		}
	}
	if f.root != "" {
		cfg.AssetRoot = f.root
	}
	cfg.Watch = false

	if f.dumpConfig {
		data, err := cfg.Encode()
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	}

	store := asset.NewStore(os.DirFS(cfg.AssetRoot))
	names := fset.Args()
	if len(names) == 0 {
		var err error
		if names, err = store.Names(); err != nil {
			return err
		}
	}

	topts, err := cfg.TranslatorOptions()
	if err != nil {
		return err
	}
	tr := translate.New(topts...)
	var errs []error
	for _, name := range names {
		if err := emit(stdout, store, tr, name, f); err != nil {
			errs = append(errs, err)
		}
	}

	if f.build {
		if err := build(ctx, stdout, cfg, names, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func emit(w io.Writer, store *asset.Store, tr *translate.Translator, name string, f flags) error {
	a, err := store.Load(name)
	if err != nil {
		return err
	}
	vs, fs := synth.Synthesize(a)

	switch f.emit {
	case "none":
		return nil
	case "wgsl":
		for _, p := range []synth.StageProgram{vs, fs} {
			fmt.Fprintf(w, "// %s %s\n%s\n", name, p.Stage, p.Source)
		}
		return nil
	case "layout", "spirv":
	default:
		return fmt.Errorf("unknown -emit value %q", f.emit)
	}

	prog, err := tr.TranslatePair(vs, fs)
	if err != nil {
		return err
	}
	stages := []*translate.CompiledStage{prog.Vertex, prog.Fragment}

	if f.emit == "spirv" {
		for _, c := range stages {
			path := filepath.Join(f.out, spirvFileName(name, c.Stage))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, c.SPIRV, 0o644); err != nil { //nolint:gosec // build output, world-readable is intended
				return err
			}
			fmt.Fprintf(w, "%s: %s (%d words)\n", name, path, len(c.Words))
		}
		return nil
	}

	fmt.Fprintf(w, "%s\n", name)
	for _, c := range stages {
		for _, e := range c.Layout.Entries {
			if !e.Category.IsResource() {
				fmt.Fprintf(w, "  %-8s %s\n", c.Stage, e)
			}
		}
		for _, d := range c.Warnings {
			fmt.Fprintf(w, "  %-8s warning: %s\n", c.Stage, d.Message)
		}
	}
	for _, r := range prog.Resources {
		fmt.Fprintf(w, "  %-8s %s\n", visibility(r.Visibility), r.Entry)
	}
	return nil
}

func spirvFileName(name string, stage synth.Stage) string {
	return strings.TrimSuffix(name, asset.Ext) + "." + stage.String() + ".spv"
}

func visibility(m binding.StageMask) string {
	var parts []string
	for _, s := range synth.Stages {
		if m.Has(s) {
			parts = append(parts, s.String())
		}
	}
	return strings.Join(parts, "+")
}

func build(ctx context.Context, w io.Writer, cfg config.Config, names []string, f flags) error {
	state := pipeline.DefaultState()
	if f.state != "" {
		var err error
		if state, err = cfg.State(f.state); err != nil {
			return err
		}
	}

	device, release, err := openDevice(f.backend)
	if err != nil {
		return err
	}
	defer release()

	lib, err := shaderpipe.New(
		shaderpipe.WithDevice(device),
		shaderpipe.WithConfig(cfg),
	)
	if err != nil {
		return err
	}
	defer lib.Close()

	reqs := make([]pipeline.Request, len(names))
	for i, name := range names {
		reqs[i] = pipeline.Request{AssetID: name, State: state}
	}
	err = lib.Cache().Prewarm(ctx, reqs)

	st := lib.Stats()
	fmt.Fprintf(w, "built %d pipelines, %d failed, memo %d/%d hits\n",
		st.Builds, st.Failures, st.Memo.Hits, st.Memo.Hits+st.Memo.Misses)
	return err
}

// openDevice opens the first adapter of the named backend, preferring a
// discrete or integrated GPU.
func openDevice(name string) (hal.Device, func(), error) {
	var (
		instance hal.Instance
		err      error
	)
	switch name {
	case "noop":
		api := noop.API{}
		instance, err = api.CreateInstance(nil)
	case "vulkan":
		backend, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, nil, errors.New("vulkan backend not available")
		}
		instance, err = backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	default:
		return nil, nil, fmt.Errorf("unknown -backend value %q", name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, errors.New("no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, fmt.Errorf("open device: %w", err)
	}
	logging.L().Debug("shaderpipe: device opened", "backend", name, "adapter", selected.Info.Name)
	return openDev.Device, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}, nil
}
