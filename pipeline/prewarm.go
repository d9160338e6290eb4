package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/shaderpipe/internal/logging"
	"github.com/gogpu/shaderpipe/internal/parallel"
)

// Request names one pipeline to prewarm.
type Request struct {
	AssetID string
	State   FixedState
}

// Prewarm builds many pipelines ahead of their first draw. Assets are
// translated in parallel on a worker pool; GPU objects are then created on
// the calling goroutine. The returned error joins every failed request.
func (c *Cache) Prewarm(ctx context.Context, reqs []Request) error {
	var ids []string
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if !seen[r.AssetID] {
			seen[r.AssetID] = true
			ids = append(ids, r.AssetID)
		}
	}

	pool := parallel.NewPool(c.workers)
	tasks := make([]parallel.Task, len(ids))
	for i, id := range ids {
		tasks[i] = func(ctx context.Context) error {
			a, err := c.source.Load(id)
			if err != nil {
				return err
			}
			_, err = c.compile(ctx, a)
			return err
		}
	}
	// Translation failures resurface, with the failure policy applied,
	// when GetOrBuild runs below.
	translated := 0
	for _, err := range pool.Run(ctx, tasks) {
		if err == nil {
			translated++
		}
	}
	logging.L().Debug("prewarm translated", "assets", len(ids), "ok", translated, "workers", pool.Workers())
	pool.Close()

	var errs []error
	for _, r := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := c.GetOrBuild(ctx, r.AssetID, r.State); err != nil {
			errs = append(errs, fmt.Errorf("prewarm %s: %w", r.AssetID, err))
		}
	}
	return errors.Join(errs...)
}
