package shaderpipe

import (
	"io/fs"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderpipe/config"
	"github.com/gogpu/shaderpipe/pipeline"
)

// Option configures a Library during creation.
//
// Example:
//
//	lib, err := shaderpipe.New(
//	    shaderpipe.WithProvider(provider),
//	    shaderpipe.WithAssetRoot("assets/shaders"),
//	    shaderpipe.WithWatch(true),
//	)
type Option func(*options)

type options struct {
	device    hal.Device
	provider  gpucontext.DeviceProvider
	cfg       config.Config
	assetFS   fs.FS
	assetRoot string
	watch     bool
	debounce  time.Duration
	cacheOpts []pipeline.Option
}

func defaultOptions() options {
	cfg := config.Default()
	return options{
		cfg:       cfg,
		assetRoot: cfg.AssetRoot,
		watch:     cfg.Watch,
	}
}

// WithDevice sets the HAL device pipelines are created on.
// It takes precedence over WithProvider.
func WithDevice(d hal.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithProvider takes the device from a host-supplied provider. The provider
// must also expose HalDevice() any returning a hal.Device. Its surface
// format becomes the default color format.
func WithProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithConfig applies a loaded configuration. It resets the asset root and
// watch flag to the configuration's values, so later options override it.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
		o.assetRoot = cfg.AssetRoot
		o.watch = cfg.Watch
	}
}

// WithAssetRoot loads assets from a directory on disk.
func WithAssetRoot(dir string) Option {
	return func(o *options) {
		o.assetRoot = dir
		o.assetFS = nil
	}
}

// WithAssetFS loads assets from fsys. Watching is not available for an
// arbitrary file system.
func WithAssetFS(fsys fs.FS) Option {
	return func(o *options) {
		o.assetFS = fsys
	}
}

// WithWatch enables hot reload of the asset root.
func WithWatch(on bool) Option {
	return func(o *options) {
		o.watch = on
	}
}

// WithDebounce overrides the watcher's per-asset quiet period.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithCacheOptions appends options passed to pipeline.NewCache after the
// configuration's own.
func WithCacheOptions(opts ...pipeline.Option) Option {
	return func(o *options) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}
