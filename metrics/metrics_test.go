package metrics

import (
	"sync"
	"testing"
)

func TestIncAndSnapshot(t *testing.T) {
	s := NewSet()
	s.Inc(LoginSuccess)
	s.Inc(LoginSuccess)
	s.Inc(RefreshRejected)

	snap := s.Snapshot()
	if snap.Get(LoginSuccess) != 2 {
		t.Fatalf("expected 2, got %d", snap.Get(LoginSuccess))
	}
	if snap.Get(RefreshRejected) != 1 {
		t.Fatalf("expected 1, got %d", snap.Get(RefreshRejected))
	}
	if snap.Get(LoginFailure) != 0 {
		t.Fatalf("expected 0, got %d", snap.Get(LoginFailure))
	}
}

func TestConcurrentIncrements(t *testing.T) {
	s := NewSet()
	const workers = 16
	const each = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				s.Inc(LoginFailure)
			}
		}()
	}
	wg.Wait()

	if got := s.Snapshot().Get(LoginFailure); got != workers*each {
		t.Fatalf("expected %d, got %d", workers*each, got)
	}
}

func TestNilSetIsSafe(t *testing.T) {
	var s *Set
	s.Inc(LoginSuccess)
	if s.Snapshot().Get(LoginSuccess) != 0 {
		t.Fatal("nil set recorded a value")
	}
}

func TestEveryIDHasAName(t *testing.T) {
	for _, id := range IDs() {
		if id.Name() == "" {
			t.Fatalf("counter %d has no export name", id)
		}
	}
	if ID(-1).Name() != "" || ID(int(idCount)).Name() != "" {
		t.Fatal("out-of-range IDs must have empty names")
	}
}
