package asset

import (
	"errors"
	"fmt"
)

// ErrMalformedAsset is matched by every *MalformedAssetError.
var ErrMalformedAsset = errors.New("asset: malformed shader asset")

// ErrNotFound is returned by Store.Load when the asset file does not exist.
var ErrNotFound = errors.New("asset: not found")

// MalformedAssetError reports why an asset text could not be parsed.
type MalformedAssetError struct {
	Asset   string
	Section string // "varying", "vertex", "fragment" or "" outside any section
	Line    int    // 1-based; 0 when the error is not tied to a line
	Reason  string
}

func (e *MalformedAssetError) Error() string {
	switch {
	case e.Line > 0 && e.Section != "":
		return fmt.Sprintf("asset %s: [%s] line %d: %s", e.Asset, e.Section, e.Line, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("asset %s: line %d: %s", e.Asset, e.Line, e.Reason)
	case e.Section != "":
		return fmt.Sprintf("asset %s: [%s]: %s", e.Asset, e.Section, e.Reason)
	}
	return fmt.Sprintf("asset %s: %s", e.Asset, e.Reason)
}

// Is reports whether target is ErrMalformedAsset.
func (e *MalformedAssetError) Is(target error) bool {
	return target == ErrMalformedAsset
}
