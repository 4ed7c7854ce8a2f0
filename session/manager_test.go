package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testManager(lifetime time.Duration, now *time.Time) (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return NewManager(store, lifetime, func() time.Time { return *now }), store
}

func TestCreateAndValidate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m, _ := testManager(time.Hour, &now)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", "curl/8", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !s.IsActive || !s.ExpiresAt.After(now) {
		t.Fatalf("expected live session, got %+v", s)
	}

	now = now.Add(10 * time.Minute)
	got, err := m.Validate(ctx, s.ID, "u1")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !got.LastAccessed.Equal(now) {
		t.Fatalf("expected lastAccessed touch, got %v", got.LastAccessed)
	}
}

func TestValidateRejectsForeignOwner(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m, _ := testManager(time.Hour, &now)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", "curl/8", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = m.Validate(ctx, s.ID, "u2")
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign owner, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m, _ := testManager(time.Hour, &now)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", "curl/8", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now = now.Add(time.Hour + time.Second)
	_, err = m.Validate(ctx, s.ID, "u1")
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after expiry, got %v", err)
	}
}

func TestExtendRollsExpiryAndDevice(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m, _ := testManager(time.Hour, &now)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", "curl/8", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	firstExpiry := s.ExpiresAt

	now = now.Add(30 * time.Minute)
	got, err := m.Extend(ctx, s.ID, "u1", "5.6.7.8", "firefox/140")
	if err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if !got.ExpiresAt.After(firstExpiry) {
		t.Fatal("expected expiry rolled forward")
	}
	if got.IP != "5.6.7.8" || got.UserAgent != "firefox/140" {
		t.Fatalf("expected device roll-forward, got %+v", got)
	}
}

func TestInvalidateSoftDeletes(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m, store := testManager(time.Hour, &now)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", "curl/8", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Invalidate(ctx, s.ID); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	// Row survives for audit; it only fails liveness.
	row, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("expected row retained after invalidate, got %v", err)
	}
	if row.IsActive {
		t.Fatal("expected IsActive=false")
	}
	if _, err := m.Validate(ctx, s.ID, "u1"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestInvalidateAll(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m, _ := testManager(time.Hour, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Create(ctx, "u1", "curl/8", "1.2.3.4"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	other, err := m.Create(ctx, "u2", "curl/8", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := m.InvalidateAll(ctx, "u1")
	if err != nil {
		t.Fatalf("InvalidateAll failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 sessions deactivated, got %d", n)
	}

	live, err := m.Active(ctx, "u1")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("expected no live sessions for u1, got %d", len(live))
	}
	if _, err := m.Validate(ctx, other.ID, "u2"); err != nil {
		t.Fatalf("expected u2 session untouched, got %v", err)
	}
}
