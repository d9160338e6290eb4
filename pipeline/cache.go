package pipeline

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/sync/singleflight"

	"github.com/gogpu/shaderpipe/asset"
	"github.com/gogpu/shaderpipe/internal/logging"
	"github.com/gogpu/shaderpipe/synth"
	"github.com/gogpu/shaderpipe/translate"
)

// Cache builds and caches render pipelines for shader assets.
//
// A Cache is an owned service object. The render goroutine calls
// GetOrBuild while drawing and BeginFrame at each frame boundary; the
// hot-reload watcher only sends Events on the channel given to
// WithEvents. The maps are guarded by a mutex, so calls from other
// goroutines are safe, but GPU objects are created on the goroutine that
// asked for them.
//
// Failure policy:
//   - a translation, binding or asset error returns the last pipeline
//     that built for the same asset and state, together with the error;
//   - without such a pipeline the result is nil and draws are skipped;
//   - a failed (asset, state) pair is not rebuilt until the asset is
//     invalidated, so draws in between neither reload nor recompile;
//   - each failure is logged once per asset generation.
type Cache struct {
	device      hal.Device
	source      Source
	translator  *translate.Translator
	events      <-chan Event
	colorFormat gputypes.TextureFormat
	workers     int

	flight singleflight.Group

	mu           sync.Mutex
	entries      map[Key]*Pipeline
	lastGood     map[slot]*Pipeline
	failed       map[slot]error
	generations  map[string]uint64
	destroyQueue []*Pipeline
	closed       bool

	hits     atomic.Uint64
	misses   atomic.Uint64
	builds   atomic.Uint64
	failures atomic.Uint64
}

// NewCache creates a cache that loads assets from source and creates GPU
// objects on device.
func NewCache(device hal.Device, source Source, opts ...Option) (*Cache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if source == nil {
		return nil, ErrNilSource
	}
	o := defaultCacheOptions()
	for _, opt := range opts {
		opt(&o)
	}
	tr := o.translator
	if tr == nil {
		topts := []translate.Option{translate.WithMemoLimit(o.memoLimit)}
		if o.compiler != nil {
			topts = append(topts, translate.WithCompiler(o.compiler))
		}
		tr = translate.New(topts...)
	}
	return &Cache{
		device:      device,
		source:      source,
		translator:  tr,
		events:      o.events,
		colorFormat: o.colorFormat,
		workers:     o.workers,
		entries:     make(map[Key]*Pipeline),
		lastGood:    make(map[slot]*Pipeline),
		failed:      make(map[slot]error),
		generations: make(map[string]uint64),
	}, nil
}

// GetOrBuild returns the pipeline for an asset and fixed state, building
// it on a miss. Concurrent calls for the same key share one build.
//
// On failure the error is returned together with the last-known-good
// pipeline for the same asset and state, which may be nil.
func (c *Cache) GetOrBuild(ctx context.Context, id string, state FixedState) (*Pipeline, error) {
	state = c.normalize(state)
	s := slot{asset: id, state: state}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if err, ok := c.failed[s]; ok {
		good := c.lastGood[s]
		c.mu.Unlock()
		return good, err
	}
	gen := c.generations[id]
	c.mu.Unlock()

	a, err := c.source.Load(id)
	if err != nil {
		return c.fail(s, gen, err)
	}
	key := Key{AssetID: id, Hash: a.ContentHash(), State: state}

	// Fast path
	if p := c.lookup(key); p != nil {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)
	logging.L().Debug("pipeline cache miss", "key", key.String())

	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		// Double-check: a build for this key may have finished between
		// the lookup and joining the flight.
		if p := c.lookup(key); p != nil {
			return p, nil
		}
		return c.build(ctx, a, key, gen)
	})
	if err != nil {
		return c.fail(s, gen, err)
	}
	return v.(*Pipeline), nil
}

// Pipeline is GetOrBuild for draw submission: it returns the pipeline to
// bind, or nil when the draw must be skipped. Errors are logged by the
// cache.
func (c *Cache) Pipeline(ctx context.Context, id string, state FixedState) *Pipeline {
	p, _ := c.GetOrBuild(ctx, id, state)
	return p
}

func (c *Cache) normalize(state FixedState) FixedState {
	if state.ColorFormat == gputypes.TextureFormatUndefined {
		state.ColorFormat = c.colorFormat
	}
	state.SampleCount = max(state.SampleCount, 1)
	return state
}

func (c *Cache) lookup(key Key) *Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// compile runs synthesis, translation and the binding check for an asset.
// Translation results are memoised, so compiling again is cheap.
func (c *Cache) compile(ctx context.Context, a *asset.ShaderAsset) (*translate.Program, error) {
	vsProg, fsProg := synth.Synthesize(a)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.translator.TranslatePair(vsProg, fsProg)
}

func (c *Cache) build(ctx context.Context, a *asset.ShaderAsset, key Key, gen uint64) (*Pipeline, error) {
	start := time.Now()
	prog, err := c.compile(ctx, a)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := createPipeline(c.device, key, prog.Vertex, prog.Fragment, prog.Resources)
	if err != nil {
		return nil, err
	}
	p.owner = c
	p.generation = gen
	c.builds.Add(1)

	c.mu.Lock()
	closed := c.closed
	stale := c.generations[key.AssetID] != gen
	if closed || stale {
		c.mu.Unlock()
		p.destroy(c.device)
		if closed {
			return nil, ErrCacheClosed
		}
		return nil, ErrSuperseded
	}
	s := key.slot()
	old := c.lastGood[s]
	if old != nil {
		delete(c.entries, old.key)
	}
	c.entries[key] = p
	c.lastGood[s] = p
	delete(c.failed, s)
	c.mu.Unlock()

	if old != nil {
		old.Release()
	}

	logging.L().Info("pipeline built",
		"key", key.String(),
		"generation", gen,
		"elapsed", time.Since(start))
	return p, nil
}

// fail applies the failure policy and returns the fallback pipeline.
// The failure is recorded for the slot unless it is transient or the
// asset changed while it was building.
func (c *Cache) fail(s slot, gen uint64, err error) (*Pipeline, error) {
	c.failures.Add(1)

	c.mu.Lock()
	good := c.lastGood[s]
	record := !transient(err) && c.generations[s.asset] == gen && !c.closed
	_, seen := c.failed[s]
	if record && !seen {
		c.failed[s] = err
	}
	c.mu.Unlock()

	log := logging.L()
	switch {
	case !record:
		log.Debug("pipeline build abandoned", "asset", s.asset, "state", s.state.String(), "err", err)
	case seen:
		// Already logged for this generation.
	case good != nil:
		log.Warn("shader asset failed, using last good pipeline",
			"asset", s.asset, "state", s.state.String(), "err", err)
	case errors.Is(err, ErrPipelineCreationFailed):
		log.Warn("shader asset disabled until reload",
			"asset", s.asset, "state", s.state.String(), "err", err)
	default:
		log.Error("shader asset failed, draws skipped",
			"asset", s.asset, "state", s.state.String(), "err", err)
	}
	return good, err
}

// transient reports errors that say nothing about the asset itself.
func transient(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrSuperseded) ||
		errors.Is(err, ErrCacheClosed)
}

// Invalidate drops every entry of an asset. Pipelines already handed out
// stay valid until released; the last good pipeline stays available as a
// fallback until a new build succeeds.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	c.generations[id]++
	gen := c.generations[id]
	maps.DeleteFunc(c.entries, func(k Key, _ *Pipeline) bool { return k.AssetID == id })
	maps.DeleteFunc(c.failed, func(s slot, _ error) bool { return s.asset == id })
	c.mu.Unlock()

	if inv, ok := c.source.(invalidator); ok {
		inv.Invalidate(id)
	}
	logging.L().Info("asset invalidated", "asset", id, "generation", gen)
}

// Generation returns how many times an asset has been invalidated.
func (c *Cache) Generation(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[id]
}

// BeginFrame marks a frame boundary: it applies pending hot-reload events
// and destroys pipelines that were released since the last frame.
func (c *Cache) BeginFrame() {
	for drained := false; !drained; {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.events = nil
				drained = true
				continue
			}
			c.Invalidate(ev.AssetID)
		default:
			drained = true
		}
	}
	c.flushDestroyQueue()
}

func (c *Cache) enqueueDestroy(p *Pipeline) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.destroy(c.device)
		return
	}
	c.destroyQueue = append(c.destroyQueue, p)
	c.mu.Unlock()
}

func (c *Cache) flushDestroyQueue() {
	c.mu.Lock()
	queue := c.destroyQueue
	c.destroyQueue = nil
	c.mu.Unlock()

	for _, p := range queue {
		p.destroy(c.device)
	}
	if len(queue) > 0 {
		logging.L().Debug("pipelines destroyed", "count", len(queue))
	}
}

// Close releases the cache's references and destroys every pipeline no
// one else holds. Pipelines still held are destroyed on their last
// Release. Close is safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	held := slices.Collect(maps.Values(c.lastGood))
	clear(c.entries)
	clear(c.lastGood)
	clear(c.failed)
	queue := c.destroyQueue
	c.destroyQueue = nil
	c.mu.Unlock()

	for _, p := range queue {
		p.destroy(c.device)
	}
	for _, p := range held {
		p.Release()
	}
}

// Translator returns the translator the cache compiles with.
func (c *Cache) Translator() *translate.Translator {
	return c.translator
}

// Stats reports cache activity.
type Stats struct {
	Hits   uint64
	Misses uint64
	Builds uint64
	// Failures counts failed builds. Draws answered from a recorded
	// failure are not counted again.
	Failures uint64
	// Entries is the number of current pipelines.
	Entries int
	// Disabled is the number of (asset, state) pairs whose last build
	// failed. They are not retried until the asset is invalidated.
	Disabled int
	// PendingDestroy is the number of released pipelines waiting for the
	// next BeginFrame.
	PendingDestroy int
	Memo           translate.MemoStats
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries, disabled, pending := len(c.entries), len(c.failed), len(c.destroyQueue)
	c.mu.Unlock()
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Builds:         c.builds.Load(),
		Failures:       c.failures.Load(),
		Entries:        entries,
		Disabled:       disabled,
		PendingDestroy: pending,
		Memo:           c.translator.Stats(),
	}
}
