// Package asset parses shader asset files.
//
// An asset is UTF-8 text divided into bracketed sections:
//
//	[varying]
//	vec3 vnormal;
//
//	[vertex]
//	fn vertex() {
//	    vnormal = normal;
//	    clip_position = camera.projection * camera.view * vec4<f32>(position, 1.0);
//	}
//
//	[fragment]
//	fn fragment() {
//	    out_color = vec4<f32>(normalize(vnormal) * 0.5 + 0.5, 1.0);
//	}
//
// Section order is free. [vertex] and [fragment] must appear exactly once,
// [varying] at most once. Stage bodies are WGSL and are kept verbatim;
// varying types may use either WGSL or GLSL spelling.
//
// Parse is a line-scanning state machine with three states (seeking a
// header, reading varyings, reading a stage body). Store loads assets from
// an fs.FS and caches the parsed result until invalidated.
package asset
