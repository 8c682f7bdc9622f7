package useragent

import (
	"sync"
	"testing"
)

func TestPool_GetSequential(t *testing.T) {
	uas := []string{"A", "B", "C"}
	p := NewPool(uas)

	// Should round robin
	if got := p.GetSequential(); got != "A" {
		t.Errorf("expected A, got %s", got)
	}
	if got := p.GetSequential(); got != "B" {
		t.Errorf("expected B, got %s", got)
	}
	if got := p.GetSequential(); got != "C" {
		t.Errorf("expected C, got %s", got)
	}
	if got := p.GetSequential(); got != "A" {
		t.Errorf("expected A, got %s", got)
	}
}

func TestPool_Default(t *testing.T) {
	// Passing empty slice falls back to default
	p := NewPool(nil)
	if len(p.GetAll()) != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), len(p.GetAll()))
	}
	if got := p.GetSequential(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestPool_GetRandom(t *testing.T) {
	uas := []string{"A", "B"}
	p := NewPool(uas)

	seenA := false
	seenB := false

	// Try 100 times, highly likely we see both A and B
	for i := 0; i < 100; i++ {
		got := p.GetRandom()
		if got == "A" {
			seenA = true
		} else if got == "B" {
			seenB = true
		} else {
			t.Fatalf("unexpected UA: %s", got)
		}
	}

	if !seenA || !seenB {
		t.Errorf("expected to see both A and B randomly, seenA: %v, seenB: %v", seenA, seenB)
	}
}

func TestPool_ConcurrentAccess(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if p.GetSequential() == "" {
					t.Error("got empty UA")
				}
			}
		}()
	}
	wg.Wait()
}
