// Package binding reflects resource bindings from the naga IR of a stage
// and checks that the two stages of a pipeline link.
//
// Reflect lists vertex attributes, varyings, color targets, uniform and
// storage buffers, textures and samplers with their slots. Check and Merge
// compare a vertex and a fragment layout; a disagreement is a
// *ConflictError, which matches ErrBindingConflict.
package binding
