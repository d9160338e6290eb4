package translate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/shaderpipe/synth"
)

// ErrTranslationFailed is matched by every *TranslationError.
var ErrTranslationFailed = errors.New("translate: translation failed")

// TranslationError reports a stage program the compiler rejected.
type TranslationError struct {
	Asset string
	Stage synth.Stage
	// Line is the asset-file line of the first diagnostic, or 0 when the
	// diagnostic points into generated code or has no position.
	Line int
	// Message is the compiler diagnostic with source context.
	Message string
	Err     error
}

func (e *TranslationError) Error() string {
	first, _, _ := strings.Cut(e.Message, "\n")
	if e.Line > 0 {
		return fmt.Sprintf("translate %s (%s stage) line %d: %s", e.Asset, e.Stage, e.Line, first)
	}
	return fmt.Sprintf("translate %s (%s stage): %s", e.Asset, e.Stage, first)
}

// Is reports whether target is ErrTranslationFailed.
func (e *TranslationError) Is(target error) bool {
	return target == ErrTranslationFailed
}

func (e *TranslationError) Unwrap() error { return e.Err }
