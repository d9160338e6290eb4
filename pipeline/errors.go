package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineCreationFailed is matched by every *CreationError.
	ErrPipelineCreationFailed = errors.New("pipeline: creation failed")

	// ErrCacheClosed is returned by a Cache after Close.
	ErrCacheClosed = errors.New("pipeline: cache closed")

	// ErrNilDevice is returned when creating a cache without a device.
	ErrNilDevice = errors.New("pipeline: device is nil")

	// ErrNilSource is returned when creating a cache without an asset source.
	ErrNilSource = errors.New("pipeline: source is nil")

	// ErrSuperseded is returned when the asset was invalidated while its
	// pipeline was being built. The finished build is discarded.
	ErrSuperseded = errors.New("pipeline: build superseded by invalidation")
)

// CreationError reports the device rejecting an otherwise valid bytecode
// and layout combination.
type CreationError struct {
	Key Key
	// Op names the GPU object that failed, for example "render pipeline".
	Op  string
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s for %s: %v", e.Op, e.Key, e.Err)
}

// Is reports whether target is ErrPipelineCreationFailed.
func (e *CreationError) Is(target error) bool {
	return target == ErrPipelineCreationFailed
}

func (e *CreationError) Unwrap() error { return e.Err }
