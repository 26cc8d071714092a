package cache

import (
	"context"
	"encoding/json"
	"time"

	"taskplanner/pkg/plan"
)

// SolverCache memoizes Allocator solves keyed by a hash of their inputs.
type SolverCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// CachedSolveResult is the memoized form of an allocator.Result.
type CachedSolveResult struct {
	Assignment plan.Assignment `json:"assignment"`
	TotalCost  int64           `json:"total_cost"`
	Flow       int64           `json:"flow"`
	ComputedAt time.Time       `json:"computed_at"`
}

// NewSolverCache wraps cache with a default TTL applied whenever Set is
// called with a non-positive ttl.
func NewSolverCache(cache Cache, defaultTTL time.Duration) *SolverCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &SolverCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Get looks up a memoized solve by allocation hash. The bool return is false
// both when the key is absent and when the cached entry is corrupt (in the
// latter case the entry is also deleted).
func (sc *SolverCache) Get(ctx context.Context, allocationHash string) (*CachedSolveResult, bool, error) {
	key := BuildSolveKey(allocationHash)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var result CachedSolveResult
	if err := json.Unmarshal(data, &result); err != nil {
		_ = sc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup of a corrupt entry
		return nil, false, nil
	}

	return &result, true, nil
}

// Set stores a solve result under its allocation hash.
func (sc *SolverCache) Set(ctx context.Context, allocationHash string, result *CachedSolveResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = sc.defaultTTL
	}

	key := BuildSolveKey(allocationHash)
	result.ComputedAt = time.Now()

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return sc.cache.Set(ctx, key, data, ttl)
}

// Invalidate removes the memoized solve for a given allocation hash.
func (sc *SolverCache) Invalidate(ctx context.Context, allocationHash string) error {
	return sc.cache.Delete(ctx, BuildSolveKey(allocationHash))
}

// InvalidateAll removes every memoized solve result.
func (sc *SolverCache) InvalidateAll(ctx context.Context) (int64, error) {
	return sc.cache.DeleteByPattern(ctx, "solve:allocate:*")
}
