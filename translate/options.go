package translate

import "github.com/gogpu/naga/spirv"

// CompilerOption configures a NagaCompiler.
type CompilerOption func(*NagaCompiler)

// WithValidation enables or disables IR validation before code generation.
func WithValidation(on bool) CompilerOption {
	return func(c *NagaCompiler) {
		c.validate = on
	}
}

// WithDebugInfo makes the SPIR-V back end emit debug names.
func WithDebugInfo(on bool) CompilerOption {
	return func(c *NagaCompiler) {
		c.debug = on
	}
}

// WithSPIRVVersion selects the SPIR-V version to emit.
func WithSPIRVVersion(v spirv.Version) CompilerOption {
	return func(c *NagaCompiler) {
		c.version = v
	}
}

// Option configures a Translator.
type Option func(*translatorOptions)

type translatorOptions struct {
	compiler  Compiler
	memoLimit int
}

// DefaultMemoLimit is the number of compiled stages a Translator keeps.
const DefaultMemoLimit = 256

func defaultTranslatorOptions() translatorOptions {
	return translatorOptions{
		memoLimit: DefaultMemoLimit,
	}
}

// WithCompiler replaces the default naga compiler.
func WithCompiler(c Compiler) Option {
	return func(o *translatorOptions) {
		o.compiler = c
	}
}

// WithMemoLimit sets the soft limit of the compiled stage memo.
// A limit of 0 means unlimited.
func WithMemoLimit(n int) Option {
	return func(o *translatorOptions) {
		o.memoLimit = n
	}
}
