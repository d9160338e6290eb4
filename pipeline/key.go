package pipeline

import "fmt"

// Key identifies one cache entry.
type Key struct {
	AssetID string
	// Hash is the content hash of the parsed asset.
	Hash  uint64
	State FixedState
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%016x [%s]", k.AssetID, k.Hash, k.State)
}

// slot identifies an (asset, state) pair across content changes. The
// last-known-good pipeline and the recorded failure are tracked per slot.
type slot struct {
	asset string
	state FixedState
}

func (k Key) slot() slot {
	return slot{asset: k.AssetID, state: k.State}
}
