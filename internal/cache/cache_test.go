package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		c := NewLRUCache(10)

		if err := c.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := c.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected value1, got %s", val)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		c := NewLRUCache(10)

		val, err := c.Get(ctx, tenantID, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil on miss, got %s", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewLRUCache(10)

		c.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute)
		if err := c.Delete(ctx, tenantID, "key1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := c.Get(ctx, tenantID, "key1")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		c := NewLRUCache(10)

		c.Set(ctx, tenantID, "ephemeral", []byte("value"), time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		val, _ := c.Get(ctx, tenantID, "ephemeral")
		if val != nil {
			t.Error("expected expired entry gone")
		}
	})

	t.Run("EvictsOldest", func(t *testing.T) {
		c := NewLRUCache(3)

		for i := 0; i < 4; i++ {
			c.Set(ctx, tenantID, fmt.Sprintf("key%d", i), []byte("v"), time.Minute)
		}

		if size, capacity := c.Stats(); size != 3 || capacity != 3 {
			t.Errorf("expected size 3 of 3, got %d of %d", size, capacity)
		}
		if val, _ := c.Get(ctx, tenantID, "key0"); val != nil {
			t.Error("expected oldest entry evicted")
		}
		if val, _ := c.Get(ctx, tenantID, "key3"); val == nil {
			t.Error("expected newest entry retained")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		c := NewLRUCache(10)

		c.Set(ctx, "tenant-a", "shared-key", []byte("a-value"), time.Minute)
		c.Set(ctx, "tenant-b", "shared-key", []byte("b-value"), time.Minute)

		val, _ := c.Get(ctx, "tenant-a", "shared-key")
		if string(val) != "a-value" {
			t.Errorf("expected a-value, got %s", val)
		}
		val, _ = c.Get(ctx, "tenant-b", "shared-key")
		if string(val) != "b-value" {
			t.Errorf("expected b-value, got %s", val)
		}
	})

	t.Run("RequiresTenant", func(t *testing.T) {
		c := NewLRUCache(10)

		if _, err := c.Get(ctx, "", "key"); err == nil {
			t.Error("expected error for empty tenant on Get")
		}
		if err := c.Set(ctx, "", "key", []byte("v"), time.Minute); err == nil {
			t.Error("expected error for empty tenant on Set")
		}
	})

	t.Run("ResultRoundTrip", func(t *testing.T) {
		c := NewLRUCache(10)

		result := &domain.BatchResult{
			ID:      "result-001",
			BatchID: "batch-001",
			Risks: []domain.AccountRisk{
				{AccountID: "acc-1", Score: 0.8, Reasons: []string{"unknown jurisdiction"}},
			},
			PartitionFailed: true,
		}

		if err := c.SetResult(ctx, tenantID, "batch-001", result, time.Minute); err != nil {
			t.Fatalf("SetResult failed: %v", err)
		}

		retrieved, err := c.GetResult(ctx, tenantID, "batch-001")
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected cached result")
		}
		if retrieved.ID != result.ID || len(retrieved.Risks) != 1 || !retrieved.PartitionFailed {
			t.Errorf("unexpected result: %+v", retrieved)
		}
	})

	t.Run("ResultMiss", func(t *testing.T) {
		c := NewLRUCache(10)

		result, err := c.GetResult(ctx, tenantID, "missing")
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if result != nil {
			t.Errorf("expected nil on miss, got %+v", result)
		}
	})
}

func TestCacheFactory(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected LRU cache, got %T", c)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
