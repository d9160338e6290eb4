// Package shaderpipe turns single-file shader assets into GPU render
// pipelines.
//
// # Overview
//
// A shader asset is one text file with three sections: the varyings
// passed from vertex to fragment stage, the vertex body and the fragment
// body. shaderpipe splits the asset, synthesizes a complete WGSL program
// per stage around the engine's conventions (camera uniform, vertex
// attributes, output color), translates each stage to SPIR-V with naga,
// reflects the resource bindings, and creates the render pipeline on a
// wgpu HAL device. Pipelines are cached per asset content and fixed
// state, rebuilt when the asset changes on disk, and fall back to the
// last pipeline that built cleanly when an edit breaks the shader.
//
// # Quick Start
//
//	lib, err := shaderpipe.New(
//	    shaderpipe.WithDevice(device),
//	    shaderpipe.WithAssetRoot("assets/shaders"),
//	    shaderpipe.WithWatch(true),
//	)
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	for running {
//	    lib.BeginFrame()
//	    if p := lib.Pipeline(ctx, "lit.shader", pipeline.DefaultState()); p != nil {
//	        pass.SetPipeline(p.RenderPipeline())
//	        // draw
//	    }
//	}
//
// # Packages
//
//   - asset: parsing and caching of shader asset files
//   - synth: per-stage WGSL synthesis
//   - translate: WGSL to SPIR-V with memoisation
//   - binding: resource reflection and cross-stage checks
//   - pipeline: the pipeline cache and GPU object lifetime
//   - watch: file system hot reload
//   - config: TOML configuration
//
// # Logging
//
// shaderpipe is silent by default. See SetLogger.
package shaderpipe
