// Package config loads shaderpipe settings from TOML.
//
// A minimal file:
//
//	asset_root = "shaders"
//	watch = true
//
//	[compiler]
//	validate = true
//	memo_limit = 512
//	spirv_version = "1.3"
//
//	[cache]
//	workers = 4
//	color_format = "bgra8unorm"
//
//	[states.transparent]
//	blend = "alpha"
//	depth_write = false
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/spirv"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/shaderpipe/pipeline"
	"github.com/gogpu/shaderpipe/translate"
)

var (
	// ErrInvalid is matched by every validation error.
	ErrInvalid = errors.New("config: invalid")

	// ErrUnknownState is returned by State for a preset that is not defined.
	ErrUnknownState = errors.New("config: unknown state preset")
)

// Config is the file configuration.
type Config struct {
	AssetRoot string           `toml:"asset_root"`
	Watch     bool             `toml:"watch"`
	Compiler  Compiler         `toml:"compiler"`
	Cache     Cache            `toml:"cache"`
	States    map[string]State `toml:"states"`
}

// Compiler configures shader translation.
type Compiler struct {
	Validate  bool `toml:"validate"`
	Debug     bool `toml:"debug"`
	MemoLimit int  `toml:"memo_limit"`
	// SPIRVVersion is the emitted SPIR-V version, "1.0" to "1.6".
	SPIRVVersion string `toml:"spirv_version"`
}

// Cache configures the pipeline cache.
type Cache struct {
	// Workers is the prewarm pool size; 0 uses GOMAXPROCS.
	Workers     int    `toml:"workers"`
	ColorFormat string `toml:"color_format"`
}

// State is a fixed-state preset. Unset fields keep the values of
// pipeline.DefaultState.
type State struct {
	Topology    string `toml:"topology,omitempty"`
	Cull        *bool  `toml:"cull,omitempty"`
	DepthTest   *bool  `toml:"depth_test,omitempty"`
	DepthWrite  *bool  `toml:"depth_write,omitempty"`
	DepthAlways *bool  `toml:"depth_always,omitempty"`
	Blend       string `toml:"blend,omitempty"`
	ColorFormat string `toml:"color_format,omitempty"`
	DepthFormat string `toml:"depth_format,omitempty"`
	Samples     uint32 `toml:"samples,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		AssetRoot: "shaders",
		Compiler: Compiler{
			Validate:     true,
			MemoLimit:    translate.DefaultMemoLimit,
			SPIRVVersion: "1.3",
		},
		Cache: Cache{
			ColorFormat: "bgra8unorm",
		},
	}
}

// Parse decodes TOML on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalid, strict.String())
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a TOML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Encode returns the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks value ranges and every name used by the presets.
func (c Config) Validate() error {
	if c.Compiler.MemoLimit < 0 {
		return fmt.Errorf("%w: compiler.memo_limit must not be negative", ErrInvalid)
	}
	if _, err := parseSPIRVVersion(c.Compiler.SPIRVVersion); err != nil {
		return fmt.Errorf("%w: compiler.spirv_version: %v", ErrInvalid, err)
	}
	if c.Cache.Workers < 0 {
		return fmt.Errorf("%w: cache.workers must not be negative", ErrInvalid)
	}
	if _, err := parseFormat(c.Cache.ColorFormat); err != nil {
		return fmt.Errorf("%w: cache.color_format: %v", ErrInvalid, err)
	}
	for _, name := range c.StateNames() {
		if _, err := c.States[name].FixedState(); err != nil {
			return fmt.Errorf("%w: states.%s: %v", ErrInvalid, name, err)
		}
	}
	return nil
}

// StateNames returns the preset names in sorted order.
func (c Config) StateNames() []string {
	names := make([]string, 0, len(c.States))
	for name := range c.States {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// State returns a preset as a pipeline.FixedState.
func (c Config) State(name string) (pipeline.FixedState, error) {
	s, ok := c.States[name]
	if !ok {
		return pipeline.FixedState{}, fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
	return s.FixedState()
}

// ColorFormat returns the cache's default color format.
func (c Config) ColorFormat() (gputypes.TextureFormat, error) {
	return parseFormat(c.Cache.ColorFormat)
}

// TranslatorOptions returns the translate options the file selects.
func (c Config) TranslatorOptions() ([]translate.Option, error) {
	version, err := parseSPIRVVersion(c.Compiler.SPIRVVersion)
	if err != nil {
		return nil, err
	}
	compiler := translate.NewNagaCompiler(
		translate.WithValidation(c.Compiler.Validate),
		translate.WithDebugInfo(c.Compiler.Debug),
		translate.WithSPIRVVersion(version),
	)
	return []translate.Option{
		translate.WithCompiler(compiler),
		translate.WithMemoLimit(c.Compiler.MemoLimit),
	}, nil
}

// CacheOptions returns the pipeline cache options the file selects.
func (c Config) CacheOptions() ([]pipeline.Option, error) {
	format, err := c.ColorFormat()
	if err != nil {
		return nil, err
	}
	topts, err := c.TranslatorOptions()
	if err != nil {
		return nil, err
	}
	return []pipeline.Option{
		pipeline.WithTranslator(translate.New(topts...)),
		pipeline.WithWorkers(c.Cache.Workers),
		pipeline.WithColorFormat(format),
	}, nil
}

// FixedState converts the preset.
func (s State) FixedState() (pipeline.FixedState, error) {
	fs := pipeline.DefaultState()

	switch strings.ToLower(s.Topology) {
	case "", "triangles":
		fs.Topology = pipeline.TopologyTriangles
	case "lines":
		fs.Topology = pipeline.TopologyLines
	case "points":
		fs.Topology = pipeline.TopologyPoints
	default:
		return fs, fmt.Errorf("unknown topology %q", s.Topology)
	}

	switch strings.ToLower(s.Blend) {
	case "", "none":
		fs.Blend = pipeline.BlendNone
	case "alpha":
		fs.Blend = pipeline.BlendAlpha
	case "premultiplied":
		fs.Blend = pipeline.BlendPremultiplied
	case "additive":
		fs.Blend = pipeline.BlendAdditive
	default:
		return fs, fmt.Errorf("unknown blend mode %q", s.Blend)
	}

	setBool(&fs.CullBackfaces, s.Cull)
	setBool(&fs.DepthTest, s.DepthTest)
	setBool(&fs.DepthWrite, s.DepthWrite)
	setBool(&fs.DepthAlways, s.DepthAlways)

	var err error
	if fs.ColorFormat, err = parseFormat(s.ColorFormat); err != nil {
		return fs, err
	}
	if s.DepthFormat != "" {
		if fs.DepthFormat, err = parseFormat(s.DepthFormat); err != nil {
			return fs, err
		}
	}
	if s.Samples != 0 {
		fs.SampleCount = s.Samples
	}
	return fs, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// parseFormat maps a format name to a texture format. The empty string
// and "none" map to TextureFormatUndefined.
func parseFormat(name string) (gputypes.TextureFormat, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return gputypes.TextureFormatUndefined, nil
	case "bgra8unorm":
		return gputypes.TextureFormatBGRA8Unorm, nil
	case "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "r8unorm":
		return gputypes.TextureFormatR8Unorm, nil
	case "depth24plus-stencil8":
		return gputypes.TextureFormatDepth24PlusStencil8, nil
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("unknown texture format %q", name)
}

// parseSPIRVVersion maps "major.minor" to a SPIR-V version the back end
// can emit. The empty string selects 1.3.
func parseSPIRVVersion(name string) (spirv.Version, error) {
	switch name {
	case "1.0":
		return spirv.Version1_0, nil
	case "1.1":
		return spirv.Version1_1, nil
	case "1.2":
		return spirv.Version1_2, nil
	case "", "1.3":
		return spirv.Version1_3, nil
	case "1.4":
		return spirv.Version1_4, nil
	case "1.5":
		return spirv.Version1_5, nil
	case "1.6":
		return spirv.Version1_6, nil
	}
	return spirv.Version{}, fmt.Errorf("unsupported SPIR-V version %q", name)
}
