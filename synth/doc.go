// Package synth expands a parsed shader asset into two complete WGSL
// programs, one per stage.
//
// Every program starts with the engine preamble: the camera uniform block
// at @group(0) @binding(0), the conventional vertex attributes (position,
// normal, uv) for the vertex stage, and the albedo and detail texture and
// sampler pairs at @group(1) for the fragment stage. Varyings become
// private globals that the generated entry points copy to and from a single
// Varyings struct, so asset bodies read and write them like plain
// variables:
//
//	vertex program:   vs_main copies inputs, calls vertex(), packs Varyings
//	fragment program: fs_main unpacks Varyings, calls fragment(), returns out_color
//
// Synthesis never fails; errors in the asset bodies surface when the
// programs are translated.
package synth
