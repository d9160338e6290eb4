// Package pipeline turns shader assets into cached GPU render pipelines.
//
// A Cache loads an asset from its Source, synthesizes and translates both
// stages, merges their binding layouts and creates the hal objects: two
// shader modules, one bind group layout per group, a pipeline layout and
// the render pipeline. Entries are keyed by asset identity, content hash
// and FixedState.
//
// Basic usage:
//
//	store := asset.NewStore(os.DirFS("shaders"))
//	events := make(chan pipeline.Event, 16)
//	cache, err := pipeline.NewCache(device, store, pipeline.WithEvents(events))
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	for frame := range frames {
//	    cache.BeginFrame()
//	    if p := cache.Pipeline(ctx, "lit.shader", pipeline.DefaultState()); p != nil {
//	        pass.SetPipeline(p.RenderPipeline())
//	        // ...
//	    }
//	}
package pipeline
