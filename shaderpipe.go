package shaderpipe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderpipe/asset"
	"github.com/gogpu/shaderpipe/config"
	"github.com/gogpu/shaderpipe/internal/logging"
	"github.com/gogpu/shaderpipe/pipeline"
	"github.com/gogpu/shaderpipe/watch"
)

var (
	// ErrNoDevice is returned by New when neither a device nor a usable
	// provider was given.
	ErrNoDevice = errors.New("shaderpipe: no HAL device")

	// ErrWatchNeedsRoot is returned by New when watching is requested for
	// assets that do not live in a directory.
	ErrWatchNeedsRoot = errors.New("shaderpipe: watching requires an asset root directory")
)

// eventBuffer bounds reload notifications queued between frames.
const eventBuffer = 64

// halProvider is implemented by providers that expose HAL objects.
type halProvider interface {
	HalDevice() any
}

// Library ties an asset store, a pipeline cache and an optional file
// watcher together. Call BeginFrame once per frame and Pipeline per draw.
type Library struct {
	cfg     config.Config
	store   *asset.Store
	cache   *pipeline.Cache
	watcher *watch.Watcher
}

// New creates a Library.
func New(opts ...Option) (*Library, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	device, surface, err := resolveDevice(o)
	if err != nil {
		return nil, err
	}

	fsys := o.assetFS
	if fsys == nil {
		fsys = os.DirFS(o.assetRoot)
	} else if o.watch {
		return nil, ErrWatchNeedsRoot
	}
	store := asset.NewStore(fsys)

	cacheOpts, err := o.cfg.CacheOptions()
	if err != nil {
		return nil, err
	}
	if surface != gputypes.TextureFormatUndefined {
		cacheOpts = append(cacheOpts, pipeline.WithColorFormat(surface))
	}

	var (
		events  chan pipeline.Event
		watcher *watch.Watcher
	)
	if o.watch {
		events = make(chan pipeline.Event, eventBuffer)
		cacheOpts = append(cacheOpts, pipeline.WithEvents(events))
		var wopts []watch.Option
		if o.debounce > 0 {
			wopts = append(wopts, watch.WithDebounce(o.debounce))
		}
		watcher, err = watch.New(o.assetRoot, events, wopts...)
		if err != nil {
			return nil, fmt.Errorf("shaderpipe: %w", err)
		}
	}
	cacheOpts = append(cacheOpts, o.cacheOpts...)

	cache, err := pipeline.NewCache(device, store, cacheOpts...)
	if err != nil {
		if watcher != nil {
			_ = watcher.Close()
		}
		return nil, err
	}

	logging.L().Info("shaderpipe: library ready",
		"root", o.assetRoot, "watch", o.watch, "states", len(o.cfg.States))
	return &Library{cfg: o.cfg, store: store, cache: cache, watcher: watcher}, nil
}

// resolveDevice picks the HAL device and, when a provider supplies it,
// the surface format.
func resolveDevice(o options) (hal.Device, gputypes.TextureFormat, error) {
	if o.device != nil {
		return o.device, gputypes.TextureFormatUndefined, nil
	}
	if o.provider == nil {
		return nil, gputypes.TextureFormatUndefined, ErrNoDevice
	}
	hp, ok := o.provider.(halProvider)
	if !ok {
		return nil, gputypes.TextureFormatUndefined, fmt.Errorf("%w: provider does not expose HAL types", ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, gputypes.TextureFormatUndefined, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrNoDevice)
	}
	return device, o.provider.SurfaceFormat(), nil
}

// Pipeline returns the pipeline to draw with, or nil when the draw should be
// skipped. The result is valid until the next BeginFrame.
func (l *Library) Pipeline(ctx context.Context, id string, state pipeline.FixedState) *pipeline.Pipeline {
	return l.cache.Pipeline(ctx, id, state)
}

// GetOrBuild is Pipeline with the failure reported.
func (l *Library) GetOrBuild(ctx context.Context, id string, state pipeline.FixedState) (*pipeline.Pipeline, error) {
	return l.cache.GetOrBuild(ctx, id, state)
}

// PipelineFor resolves a named state preset from the configuration.
func (l *Library) PipelineFor(ctx context.Context, id, preset string) (*pipeline.Pipeline, error) {
	state, err := l.cfg.State(preset)
	if err != nil {
		return nil, err
	}
	return l.cache.GetOrBuild(ctx, id, state)
}

// BeginFrame applies pending reloads and releases retired GPU objects.
func (l *Library) BeginFrame() {
	l.cache.BeginFrame()
}

// Invalidate forces the next request for id to reload the asset.
func (l *Library) Invalidate(id string) {
	l.cache.Invalidate(id)
}

// Prewarm builds every asset in the store with each of the given states.
// With no states, DefaultState is used.
func (l *Library) Prewarm(ctx context.Context, states ...pipeline.FixedState) error {
	names, err := l.store.Names()
	if err != nil {
		return fmt.Errorf("shaderpipe: list assets: %w", err)
	}
	if len(states) == 0 {
		states = []pipeline.FixedState{pipeline.DefaultState()}
	}
	reqs := make([]pipeline.Request, 0, len(names)*len(states))
	for _, name := range names {
		for _, s := range states {
			reqs = append(reqs, pipeline.Request{AssetID: name, State: s})
		}
	}
	return l.cache.Prewarm(ctx, reqs)
}

// Assets lists the asset identities under the root.
func (l *Library) Assets() ([]string, error) {
	return l.store.Names()
}

// Config returns the configuration in use.
func (l *Library) Config() config.Config { return l.cfg }

// Cache returns the underlying pipeline cache.
func (l *Library) Cache() *pipeline.Cache { return l.cache }

// Stats returns cache statistics.
func (l *Library) Stats() pipeline.Stats { return l.cache.Stats() }

// Close stops watching and destroys every pipeline the library holds.
func (l *Library) Close() error {
	var err error
	if l.watcher != nil {
		err = l.watcher.Close()
	}
	l.cache.Close()
	return err
}
