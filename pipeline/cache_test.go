package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/gogpu/shaderpipe/asset"
	"github.com/gogpu/shaderpipe/binding"
	"github.com/gogpu/shaderpipe/internal/logging"
	"github.com/gogpu/shaderpipe/translate"
)

func TestNewCacheNilArguments(t *testing.T) {
	if _, err := NewCache(nil, asset.NewStore(testFS())); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewCache(nil device) = %v, want ErrNilDevice", err)
	}
	if _, err := NewCache(createNoopDevice(t), nil); !errors.Is(err, ErrNilSource) {
		t.Errorf("NewCache(nil source) = %v, want ErrNilSource", err)
	}
}

func TestGetOrBuildVNormal(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	ctx := context.Background()

	p, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if err != nil {
		t.Fatalf("GetOrBuild failed: %v", err)
	}
	if p == nil || p.RenderPipeline() == nil || p.Layout() == nil {
		t.Fatal("GetOrBuild returned an incomplete pipeline")
	}
	if got := len(p.BindGroupLayouts()); got != 2 {
		t.Errorf("len(BindGroupLayouts()) = %d, want 2 (camera, material)", got)
	}

	var camera *binding.Resource
	for i := range p.Resources() {
		if p.Resources()[i].Name == "camera" {
			camera = &p.Resources()[i]
		}
	}
	if camera == nil {
		t.Fatal("camera uniform missing from merged resources")
	}
	if camera.Visibility != binding.VisibleVertex|binding.VisibleFragment {
		t.Errorf("camera visibility = %b, want both stages", camera.Visibility)
	}

	again, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if err != nil {
		t.Fatalf("second GetOrBuild failed: %v", err)
	}
	if again != p {
		t.Error("same key returned a different pipeline")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Builds != 1 || stats.Entries != 1 {
		t.Errorf("Stats = %+v, want 1 hit, 1 miss, 1 build, 1 entry", stats)
	}
	if created, _ := dev.counts(); created != 1 {
		t.Errorf("render pipelines created = %d, want 1", created)
	}
	if p.Key().State.ColorFormat != c.colorFormat {
		t.Errorf("ColorFormat = %v, want cache default %v", p.Key().State.ColorFormat, c.colorFormat)
	}
}

func TestGetOrBuildConcurrentSingleBuild(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	ctx := context.Background()

	const n = 16
	results := make([]*Pipeline, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.GetOrBuild(ctx, "textured.shader", DefaultState())
			if err != nil {
				t.Errorf("GetOrBuild failed: %v", err)
			}
			results[i] = p
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("results[%d] differs from results[0]", i)
		}
	}
	if created, _ := dev.counts(); created != 1 {
		t.Errorf("render pipelines created = %d, want 1", created)
	}
}

func TestBlendModesAreDistinctEntries(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	ctx := context.Background()

	opaque := DefaultState()
	blended := DefaultState()
	blended.Blend = BlendAlpha

	a, err := c.GetOrBuild(ctx, "vnormal.shader", opaque)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.GetOrBuild(ctx, "vnormal.shader", blended)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("different blend modes share a pipeline")
	}
	if c.Stats().Entries != 2 {
		t.Errorf("Entries = %d, want 2", c.Stats().Entries)
	}
	if created, _ := dev.counts(); created != 2 {
		t.Errorf("render pipelines created = %d, want 2", created)
	}
	// Both variants use the same bytecode.
	if memo := c.Stats().Memo; memo.Misses != 2 || memo.Hits != 2 {
		t.Errorf("Memo = %+v, want 2 misses and 2 hits", memo)
	}
}

func TestInvalidateRebuildsWhileHoldersKeepOld(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	ctx := context.Background()

	old, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if err != nil {
		t.Fatal(err)
	}
	old.Acquire()

	c.Invalidate("vnormal.shader")
	if c.Generation("vnormal.shader") != 1 {
		t.Errorf("Generation = %d, want 1", c.Generation("vnormal.shader"))
	}

	fresh, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if err != nil {
		t.Fatal(err)
	}
	if fresh == old {
		t.Fatal("invalidation did not produce a new pipeline")
	}
	if fresh.Generation() != 1 {
		t.Errorf("fresh.Generation() = %d, want 1", fresh.Generation())
	}
	if old.Refs() != 1 {
		t.Errorf("old.Refs() = %d, want 1 (holder only)", old.Refs())
	}

	c.BeginFrame()
	if old.Destroyed() {
		t.Fatal("old pipeline destroyed while still held")
	}

	old.Release()
	if c.Stats().PendingDestroy != 1 {
		t.Errorf("PendingDestroy = %d, want 1", c.Stats().PendingDestroy)
	}
	if old.Destroyed() {
		t.Error("destruction must wait for the frame boundary")
	}
	c.BeginFrame()
	if !old.Destroyed() {
		t.Error("old pipeline not destroyed at BeginFrame")
	}
	if _, destroyed := dev.counts(); destroyed != 1 {
		t.Errorf("render pipelines destroyed = %d, want 1", destroyed)
	}
	if fresh.Destroyed() {
		t.Error("current pipeline destroyed")
	}
}

func TestEventsAppliedAtBeginFrame(t *testing.T) {
	events := make(chan Event, 4)
	c, _ := newTestCache(t, testFS(), WithEvents(events))
	ctx := context.Background()

	first := c.Pipeline(ctx, "vnormal.shader", DefaultState())
	if first == nil {
		t.Fatal("Pipeline returned nil for a valid asset")
	}

	events <- Event{AssetID: "vnormal.shader"}
	if got := c.Pipeline(ctx, "vnormal.shader", DefaultState()); got != first {
		t.Error("event applied before the frame boundary")
	}

	c.BeginFrame()
	if c.Generation("vnormal.shader") != 1 {
		t.Fatalf("Generation = %d, want 1", c.Generation("vnormal.shader"))
	}
	if got := c.Pipeline(ctx, "vnormal.shader", DefaultState()); got == first {
		t.Error("pipeline not rebuilt after the event")
	}

	close(events)
	c.BeginFrame()
	c.BeginFrame()
}

func TestLastKnownGoodFallback(t *testing.T) {
	fsys := testFS()
	c, _ := newTestCache(t, fsys)
	ctx := context.Background()

	good, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if err != nil {
		t.Fatal(err)
	}

	fsys["vnormal.shader"] = &fstest.MapFile{Data: []byte(undeclaredAsset)}
	c.Invalidate("vnormal.shader")

	p, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if !errors.Is(err, translate.ErrTranslationFailed) {
		t.Fatalf("GetOrBuild error = %v, want ErrTranslationFailed", err)
	}
	if p != good {
		t.Error("broken reload did not fall back to the last good pipeline")
	}
	if got := c.Pipeline(ctx, "vnormal.shader", DefaultState()); got != good {
		t.Error("Pipeline did not return the last good pipeline")
	}

	// A malformed reload falls back the same way.
	fsys["vnormal.shader"] = &fstest.MapFile{Data: []byte(missingFragmentAsset)}
	c.Invalidate("vnormal.shader")
	p, err = c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if !errors.Is(err, asset.ErrMalformedAsset) || p != good {
		t.Errorf("GetOrBuild = %p, %v; want last good and ErrMalformedAsset", p, err)
	}

	fsys["vnormal.shader"] = &fstest.MapFile{Data: []byte(vnormalAsset + "\n// fixed\n")}
	c.Invalidate("vnormal.shader")
	fixed, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if err != nil {
		t.Fatalf("GetOrBuild after fix failed: %v", err)
	}
	if fixed == good {
		t.Error("fixed asset returned the old pipeline")
	}
	if c.Stats().PendingDestroy != 1 {
		t.Errorf("PendingDestroy = %d, want 1 (replaced fallback)", c.Stats().PendingDestroy)
	}
}

func TestFailureWithoutFallbackSkipsDraw(t *testing.T) {
	c, _ := newTestCache(t, testFS())
	ctx := context.Background()

	tests := []struct {
		id     string
		target error
	}{
		{"undeclared.shader", translate.ErrTranslationFailed},
		{"missing.shader", asset.ErrMalformedAsset},
		{"absent.shader", asset.ErrNotFound},
	}
	for _, tt := range tests {
		p, err := c.GetOrBuild(ctx, tt.id, DefaultState())
		if !errors.Is(err, tt.target) {
			t.Errorf("GetOrBuild(%s) error = %v, want %v", tt.id, err, tt.target)
		}
		if p != nil {
			t.Errorf("GetOrBuild(%s) returned a pipeline", tt.id)
		}
		if c.Pipeline(ctx, tt.id, DefaultState()) != nil {
			t.Errorf("Pipeline(%s) is not nil", tt.id)
		}
	}
}

func TestCreationFailureDisablesUntilInvalidated(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	ctx := context.Background()
	dev.setFail(true)

	_, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if !errors.Is(err, ErrPipelineCreationFailed) {
		t.Fatalf("GetOrBuild error = %v, want ErrPipelineCreationFailed", err)
	}
	var ce *CreationError
	if !errors.As(err, &ce) || ce.Op != "render pipeline" || ce.Key.AssetID != "vnormal.shader" {
		t.Errorf("CreationError = %+v", ce)
	}

	dev.setFail(false)
	if _, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState()); !errors.Is(err, ErrPipelineCreationFailed) {
		t.Errorf("disabled asset error = %v, want ErrPipelineCreationFailed", err)
	}
	if created, _ := dev.counts(); created != 1 {
		t.Errorf("render pipelines created = %d, want 1 (disabled asset must not retry)", created)
	}
	if c.Stats().Disabled != 1 {
		t.Errorf("Disabled = %d, want 1", c.Stats().Disabled)
	}

	// Other states of the same asset are unaffected.
	other := DefaultState()
	other.CullBackfaces = false
	if _, err := c.GetOrBuild(ctx, "vnormal.shader", other); err != nil {
		t.Errorf("other state failed: %v", err)
	}

	c.Invalidate("vnormal.shader")
	if _, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState()); err != nil {
		t.Errorf("GetOrBuild after invalidation failed: %v", err)
	}
}

func TestCreationFailureCleansUp(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	dev.setFail(true)

	if _, err := c.GetOrBuild(context.Background(), "vnormal.shader", DefaultState()); err == nil {
		t.Fatal("expected creation failure")
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.modulesCreated != 2 || dev.modulesDestroyed != 2 {
		t.Errorf("shader modules created/destroyed = %d/%d, want 2/2", dev.modulesCreated, dev.modulesDestroyed)
	}
}

func TestFailureLoggedOncePerGeneration(t *testing.T) {
	var buf bytes.Buffer
	logging.Set(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { logging.Set(nil) })

	c, _ := newTestCache(t, testFS())
	ctx := context.Background()

	for range 3 {
		c.Pipeline(ctx, "undeclared.shader", DefaultState())
	}
	if n := strings.Count(buf.String(), "draws skipped"); n != 1 {
		t.Errorf("failure logged %d times, want 1", n)
	}

	c.Invalidate("undeclared.shader")
	c.Pipeline(ctx, "undeclared.shader", DefaultState())
	if n := strings.Count(buf.String(), "draws skipped"); n != 2 {
		t.Errorf("failure logged %d times after invalidation, want 2", n)
	}
}

func TestFailedAssetNotRebuiltUntilInvalidated(t *testing.T) {
	fsys := newCountingFS(testFS())
	cc := &countingCompiler{Compiler: translate.NewNagaCompiler()}
	dev := newCountingDevice(t)
	c, err := NewCache(dev, asset.NewStore(fsys), WithCompiler(cc))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	ctx := context.Background()

	for range 5 {
		if p := c.Pipeline(ctx, "undeclared.shader", DefaultState()); p != nil {
			t.Fatal("broken asset produced a pipeline")
		}
		if p := c.Pipeline(ctx, "missing.shader", DefaultState()); p != nil {
			t.Fatal("malformed asset produced a pipeline")
		}
	}
	// The vertex stage fails, so the fragment stage is never compiled.
	if n := cc.count(); n != 1 {
		t.Errorf("compiler calls after 5 draws = %d, want 1", n)
	}
	if n := fsys.count("missing.shader"); n != 1 {
		t.Errorf("missing.shader opened %d times after 5 draws, want 1", n)
	}
	if _, err := c.GetOrBuild(ctx, "undeclared.shader", DefaultState()); !errors.Is(err, translate.ErrTranslationFailed) {
		t.Errorf("recorded failure = %v, want ErrTranslationFailed", err)
	}
	if stats := c.Stats(); stats.Disabled != 2 || stats.Failures != 2 {
		t.Errorf("Stats = %+v, want 2 disabled and 2 failures", stats)
	}

	c.Invalidate("missing.shader")
	c.Pipeline(ctx, "missing.shader", DefaultState())
	c.Pipeline(ctx, "missing.shader", DefaultState())
	if n := fsys.count("missing.shader"); n != 2 {
		t.Errorf("missing.shader opened %d times after invalidation, want 2", n)
	}
	if n := cc.count(); n != 1 {
		t.Errorf("compiler calls = %d, want 1 (undeclared.shader still recorded)", n)
	}
}

func TestCanceledBuildIsRetried(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState()); !errors.Is(err, context.Canceled) {
		t.Fatalf("GetOrBuild error = %v, want context.Canceled", err)
	}
	if _, err := c.GetOrBuild(context.Background(), "vnormal.shader", DefaultState()); err != nil {
		t.Errorf("GetOrBuild after cancellation failed: %v", err)
	}
	if created, _ := dev.counts(); created != 1 {
		t.Errorf("render pipelines created = %d, want 1", created)
	}
}

func TestInvalidateDuringBuildDiscardsResult(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	dev.onCreatePipeline = func() { c.Invalidate("vnormal.shader") }

	p, err := c.GetOrBuild(context.Background(), "vnormal.shader", DefaultState())
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("GetOrBuild error = %v, want ErrSuperseded", err)
	}
	if p != nil {
		t.Error("superseded build returned a pipeline")
	}
	if created, destroyed := dev.counts(); created != 1 || destroyed != 1 {
		t.Errorf("created/destroyed = %d/%d, want 1/1", created, destroyed)
	}
	if c.Stats().Entries != 0 {
		t.Errorf("Entries = %d, want 0", c.Stats().Entries)
	}

	if _, err := c.GetOrBuild(context.Background(), "vnormal.shader", DefaultState()); err != nil {
		t.Errorf("rebuild failed: %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	c, dev := newTestCache(t, testFS())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState()); !errors.Is(err, context.Canceled) {
		t.Errorf("GetOrBuild error = %v, want context.Canceled", err)
	}
	if created, _ := dev.counts(); created != 0 {
		t.Errorf("render pipelines created = %d, want 0", created)
	}
}

func TestClose(t *testing.T) {
	dev := newCountingDevice(t)
	c, err := NewCache(dev, asset.NewStore(testFS()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	held, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState())
	if err != nil {
		t.Fatal(err)
	}
	held.Acquire()
	loose, err := c.GetOrBuild(ctx, "textured.shader", DefaultState())
	if err != nil {
		t.Fatal(err)
	}

	c.Close()
	c.Close()

	if !loose.Destroyed() {
		t.Error("unheld pipeline survived Close")
	}
	if held.Destroyed() {
		t.Error("held pipeline destroyed by Close")
	}
	held.Release()
	if !held.Destroyed() {
		t.Error("held pipeline not destroyed on last Release after Close")
	}
	if _, err := c.GetOrBuild(ctx, "vnormal.shader", DefaultState()); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("GetOrBuild after Close = %v, want ErrCacheClosed", err)
	}
}

func TestPrewarm(t *testing.T) {
	c, dev := newTestCache(t, testFS(), WithWorkers(2))

	blended := DefaultState()
	blended.Blend = BlendPremultiplied
	reqs := []Request{
		{AssetID: "vnormal.shader", State: DefaultState()},
		{AssetID: "vnormal.shader", State: blended},
		{AssetID: "textured.shader", State: DefaultState()},
	}
	if err := c.Prewarm(context.Background(), reqs); err != nil {
		t.Fatalf("Prewarm failed: %v", err)
	}
	if created, _ := dev.counts(); created != 3 {
		t.Errorf("render pipelines created = %d, want 3", created)
	}
	if memo := c.Stats().Memo; memo.Entries != 4 {
		t.Errorf("memo entries = %d, want 4", memo.Entries)
	}

	// Warm entries are hits.
	before := c.Stats().Hits
	c.Pipeline(context.Background(), "textured.shader", DefaultState())
	if c.Stats().Hits != before+1 {
		t.Error("prewarmed pipeline was not a cache hit")
	}

	err := c.Prewarm(context.Background(), []Request{
		{AssetID: "undeclared.shader", State: DefaultState()},
		{AssetID: "vnormal.shader", State: DefaultState()},
	})
	if !errors.Is(err, translate.ErrTranslationFailed) {
		t.Errorf("Prewarm error = %v, want ErrTranslationFailed", err)
	}
	if err == nil || !strings.Contains(err.Error(), "undeclared.shader") {
		t.Errorf("Prewarm error does not name the asset: %v", err)
	}
}
