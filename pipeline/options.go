package pipeline

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/shaderpipe/translate"
)

// Option configures a Cache.
type Option func(*cacheOptions)

type cacheOptions struct {
	translator  *translate.Translator
	compiler    translate.Compiler
	memoLimit   int
	colorFormat gputypes.TextureFormat
	workers     int
	events      <-chan Event
}

func defaultCacheOptions() cacheOptions {
	return cacheOptions{
		memoLimit:   translate.DefaultMemoLimit,
		colorFormat: gputypes.TextureFormatBGRA8Unorm,
	}
}

// WithCompiler replaces the naga compiler used for new translations.
func WithCompiler(c translate.Compiler) Option {
	return func(o *cacheOptions) {
		o.compiler = c
	}
}

// WithTranslator shares a translator, and its memo, between caches.
// It takes precedence over WithCompiler and WithMemoLimit.
func WithTranslator(t *translate.Translator) Option {
	return func(o *cacheOptions) {
		o.translator = t
	}
}

// WithMemoLimit sets the soft limit of the compiled stage memo.
func WithMemoLimit(n int) Option {
	return func(o *cacheOptions) {
		o.memoLimit = n
	}
}

// WithColorFormat sets the color format used when a FixedState leaves
// ColorFormat undefined. The default is BGRA8Unorm.
func WithColorFormat(f gputypes.TextureFormat) Option {
	return func(o *cacheOptions) {
		o.colorFormat = f
	}
}

// WithWorkers sets the number of goroutines Prewarm translates on.
// 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *cacheOptions) {
		o.workers = n
	}
}

// WithEvents connects the hot-reload channel. Events are consumed by
// BeginFrame.
func WithEvents(ch <-chan Event) Option {
	return func(o *cacheOptions) {
		o.events = ch
	}
}
