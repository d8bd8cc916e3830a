package orchestrator

import (
	"context"
	"fmt"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/cache"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/forge"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/selector"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

// ReleaseResolver is the narrow cache-then-forge lookup every worker uses
// (spec.md §4.8 install step 4: "resolve release via cache/forge").
type ReleaseResolver interface {
	Resolve(ctx context.Context, owner, repo string, channel types.Channel, refreshCache bool) (types.Release, error)
}

// cacheForgeResolver wires pkg/cache in front of pkg/forge, the two
// leaf packages the orchestrator composes for release resolution.
// Grounded on spec.md §4.2's cache-read-through contract and §9's Open
// Question note that filtering must happen before cache write, not
// after — this resolver is the one place that invariant is enforced.
type cacheForgeResolver struct {
	cache *cache.Cache
	forge *forge.Client
}

// NewReleaseResolver builds the default cache-then-forge resolver.
func NewReleaseResolver(c *cache.Cache, f *forge.Client) ReleaseResolver {
	return &cacheForgeResolver{cache: c, forge: f}
}

func (r *cacheForgeResolver) Resolve(ctx context.Context, owner, repo string, channel types.Channel, refreshCache bool) (types.Release, error) {
	if !refreshCache {
		if cached, err := r.cache.Get(owner, repo, channel, false); err == nil && cached != nil {
			return *cached, nil
		}
	}

	release, err := r.forge.GetLatestRelease(ctx, owner, repo, channel)
	if err != nil {
		// Network/forge failure: fall back to a stale cache entry rather
		// than failing the whole worker outright (spec.md §4.2 "cache
		// serves as the fallback on forge failure").
		if cached, cacheErr := r.cache.Get(owner, repo, channel, true); cacheErr == nil && cached != nil {
			return *cached, nil
		}
		return types.Release{}, err
	}
	if release == nil {
		// The forge reported no release (404 or an empty release list).
		return types.Release{}, fmt.Errorf("no release found for %s/%s", owner, repo)
	}

	// Filter before writing to cache, never after (spec.md §9 Open
	// Question: "the spec mandates filtering before cache write").
	filtered := *release
	filtered.Assets = selector.FilterCompatibleAssets(release.Assets)
	if err := r.cache.Put(owner, repo, channel, filtered); err != nil {
		// Cache write failures are never fatal to the worker: the
		// apperrors.CacheIOError is dropped here without being logged and
		// the filtered release is still returned.
		return filtered, nil
	}
	return filtered, nil
}
