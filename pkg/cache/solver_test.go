package cache

import (
	"context"
	"testing"
	"time"

	"taskplanner/pkg/plan"
)

func TestSolverCache_SetGet(t *testing.T) {
	memCache := NewMemoryCache(nil)
	defer memCache.Close()

	solverCache := NewSolverCache(memCache, 5*time.Minute)

	ctx := context.Background()
	hash := AllocationHash(sampleTasks(), sampleNodes(), sampleCosts(), 1000)

	result := &CachedSolveResult{
		Assignment: plan.Assignment{"T1": "N1", "T2": "N2"},
		TotalCost:  7,
		Flow:       2,
	}

	if err := solverCache.Set(ctx, hash, result, 0); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	got, found, err := solverCache.Get(ctx, hash)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if !found {
		t.Fatal("expected to find cached result")
	}

	if got.TotalCost != result.TotalCost {
		t.Errorf("expected total cost %d, got %d", result.TotalCost, got.TotalCost)
	}
	if got.Flow != result.Flow {
		t.Errorf("expected flow %d, got %d", result.Flow, got.Flow)
	}
	if got.Assignment["T1"] != "N1" {
		t.Errorf("expected T1 assigned to N1, got %v", got.Assignment["T1"])
	}
}

func TestSolverCache_GetNotFound(t *testing.T) {
	memCache := NewMemoryCache(nil)
	defer memCache.Close()

	solverCache := NewSolverCache(memCache, 5*time.Minute)

	ctx := context.Background()
	result, found, err := solverCache.Get(ctx, "nonexistent-hash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
	if result != nil {
		t.Error("expected nil result")
	}
}

func TestSolverCache_DifferentHashesDoNotCollide(t *testing.T) {
	memCache := NewMemoryCache(nil)
	defer memCache.Close()

	solverCache := NewSolverCache(memCache, 5*time.Minute)

	ctx := context.Background()
	result := &CachedSolveResult{TotalCost: 10}

	if err := solverCache.Set(ctx, "hash-a", result, 0); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	_, found, err := solverCache.Get(ctx, "hash-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("should not find a result stored under a different hash")
	}
}

func TestSolverCache_Invalidate(t *testing.T) {
	memCache := NewMemoryCache(nil)
	defer memCache.Close()

	solverCache := NewSolverCache(memCache, 5*time.Minute)

	ctx := context.Background()
	result := &CachedSolveResult{TotalCost: 10}

	if err := solverCache.Set(ctx, "hash-a", result, 0); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	if err := solverCache.Invalidate(ctx, "hash-a"); err != nil {
		t.Fatalf("failed to invalidate: %v", err)
	}

	_, found, _ := solverCache.Get(ctx, "hash-a")
	if found {
		t.Error("expected cache entry to be invalidated")
	}
}

func TestSolverCache_InvalidateAll(t *testing.T) {
	memCache := NewMemoryCache(nil)
	defer memCache.Close()

	solverCache := NewSolverCache(memCache, 5*time.Minute)

	ctx := context.Background()
	result := &CachedSolveResult{TotalCost: 10}

	if err := solverCache.Set(ctx, "hash-a", result, 0); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if err := solverCache.Set(ctx, "hash-b", result, 0); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	count, err := solverCache.InvalidateAll(ctx)
	if err != nil {
		t.Fatalf("failed to invalidate all: %v", err)
	}

	if count != 2 {
		t.Errorf("expected 2 invalidated, got %d", count)
	}
}
