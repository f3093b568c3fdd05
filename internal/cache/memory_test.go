package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("Get on empty cache reported a hit")
	}

	if err := m.Set(ctx, "k", "contract text"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	text, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if text != "contract text" {
		t.Errorf("Get() = %q", text)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("Get after Clear reported a hit")
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			_ = m.Set(ctx, key, "text")
			_, _, _ = m.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		if _, ok, _ := m.Get(ctx, fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("key k%d missing after concurrent writes", i)
		}
	}
}
