package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testManager(t *testing.T, now *time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		Key:           testKey,
		Issuer:        "authcore-test",
		Clock:         func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestNewPairRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := testManager(t, &now)

	pair, err := m.NewPair("u1", "alice@example.com", "member", "s1")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}

	access, err := m.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if access.UserID != "u1" || access.Email != "alice@example.com" || access.Role != "member" {
		t.Fatalf("unexpected access claims: %+v", access)
	}

	refresh, err := m.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh failed: %v", err)
	}
	if refresh.UserID != "u1" || refresh.SessionID != "s1" {
		t.Fatalf("unexpected refresh claims: %+v", refresh)
	}
}

func TestVerifyAccessExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := testManager(t, &now)

	pair, err := m.NewPair("u1", "alice@example.com", "member", "s1")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}

	now = now.Add(59 * time.Minute)
	if _, err := m.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("expected token valid before TTL, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	_, err = m.VerifyAccess(pair.AccessToken)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// The refresh token outlives the access token by design.
	if _, err := m.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("expected refresh token still valid, got %v", err)
	}
}

func TestVerifyAccessSignatureTamper(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := testManager(t, &now)

	pair, err := m.NewPair("u1", "alice@example.com", "member", "s1")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}

	parts := strings.Split(pair.AccessToken, ".")
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	_, err = m.VerifyAccess(tampered)
	if !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestVerifyAccessMalformed(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := testManager(t, &now)

	for _, input := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := m.VerifyAccess(input)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestVerifyRejectsCrossTokenType(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := testManager(t, &now)

	pair, err := m.NewPair("u1", "alice@example.com", "member", "s1")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}

	// A refresh token must never pass as an access credential: it would
	// outlive session revocation by the full refresh TTL.
	_, err = m.VerifyAccess(pair.RefreshToken)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("VerifyAccess(refresh): expected ErrMalformed, got %v", err)
	}

	_, err = m.VerifyRefresh(pair.AccessToken)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("VerifyRefresh(access): expected ErrMalformed, got %v", err)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := testManager(t, &now)

	other, err := NewManager(Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		Key:           []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "authcore-test",
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	pair, err := other.NewPair("u1", "alice@example.com", "member", "s1")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}
	if _, err := m.VerifyAccess(pair.AccessToken); err == nil {
		t.Fatal("expected verification with a different key to fail")
	}
}

func TestEd25519Method(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	now := time.Unix(1700000000, 0)

	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	pair, err := m.NewPair("u1", "alice@example.com", "admin", "s1")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}
	claims, err := m.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.Role != "admin" {
		t.Fatalf("unexpected role claim: %s", claims.Role)
	}
}

func TestNewManagerRejectsWeakConfig(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, RefreshTTL: time.Hour, SigningMethod: MethodHS256, Key: testKey},
		{AccessTTL: time.Hour, RefreshTTL: 0, SigningMethod: MethodHS256, Key: testKey},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodHS256, Key: []byte("short")},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: "rot13", Key: testKey},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodHS256, Key: testKey, Leeway: 10 * time.Minute},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config rejection", i)
		}
	}
}
