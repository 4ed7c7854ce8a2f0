package password

import (
	"errors"
	"strings"
	"testing"
)

// Low costs keep the test suite fast; floors still apply.
func testHasher(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	ok, err := h.Verify("correct horse battery", encoded)
	if err != nil || !ok {
		t.Fatalf("expected verification to pass, got ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("wrong horse battery", encoded)
	if err != nil {
		t.Fatalf("Verify errored on mismatch: %v", err)
	}
	if ok {
		t.Fatal("wrong password verified")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	h := testHasher(t)

	a, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := testHasher(t)

	if _, err := h.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := testHasher(t)

	for _, encoded := range []string{
		"",
		"plainhash",
		"$argon2i$v=19$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAA",
		"$argon2id$v=18$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAA",
		"$argon2id$v=19$m=8192,t=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$AAAAAAAAAAAAAAAAAAAAAA",
	} {
		if _, err := h.Verify("whatever password", encoded); !errors.Is(err, ErrHashFormat) {
			t.Errorf("hash %q: expected ErrHashFormat, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := testHasher(t)
	encoded, err := weak.Hash("correct horse battery")
	if err != nil {
		t.Fatal(err)
	}

	if upgrade, err := weak.NeedsRehash(encoded); err != nil || upgrade {
		t.Fatalf("same parameters should not need rehash, got upgrade=%v err=%v", upgrade, err)
	}

	strong, err := NewArgon2(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatal(err)
	}
	upgrade, err := strong.NeedsRehash(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !upgrade {
		t.Fatal("stronger config should flag old hash for rehash")
	}

	// Old hashes still verify under the stored parameters.
	ok, err := strong.Verify("correct horse battery", encoded)
	if err != nil || !ok {
		t.Fatalf("old hash must keep verifying, got ok=%v err=%v", ok, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 16},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range cases {
		if _, err := NewArgon2(cfg); err == nil {
			t.Errorf("case %d: weak config accepted", i)
		}
	}
}
