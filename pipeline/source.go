package pipeline

import "github.com/gogpu/shaderpipe/asset"

// Source loads parsed shader assets by identity. *asset.Store implements
// it.
type Source interface {
	Load(name string) (*asset.ShaderAsset, error)
}

// invalidator is implemented by sources that cache parsed assets.
type invalidator interface {
	Invalidate(name string) bool
}

// Event is a hot-reload notification for one asset.
type Event struct {
	AssetID string
}
