package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"

	authcore "github.com/karsvik/authcore"
	"github.com/karsvik/authcore/audit"
	"github.com/karsvik/authcore/session"
)

func mockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool failed: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewStore(mock)
}

func userRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "password_hash", "role",
		"two_factor_enabled", "two_factor_secret", "last_login",
	})
}

func TestGetUserByEmail(t *testing.T) {
	mock, store := mockStore(t)
	secret := "JBSWY3DPEHPK3PXP"
	lastLogin := time.Unix(1700000000, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, role, two_factor_enabled, two_factor_secret, last_login FROM users WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnRows(userRows().AddRow(
			"u1", "alice@example.com", "$argon2id$...", "member", true, &secret, &lastLogin))

	u, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if u.ID != "u1" || !u.TwoFactorEnabled || u.TwoFactorSecret != secret {
		t.Fatalf("unexpected user: %+v", u)
	}
	if !u.LastLogin.Equal(lastLogin) {
		t.Fatalf("unexpected last login: %v", u.LastLogin)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetUserByEmailNotFound(t *testing.T) {
	mock, store := mockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("ghost@example.com").
		WillReturnRows(userRows())

	_, err := store.GetUserByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserByIDNullableFields(t *testing.T) {
	mock, store := mockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id`).
		WithArgs("u1").
		WillReturnRows(userRows().AddRow(
			"u1", "alice@example.com", "$argon2id$...", "member", false, nil, nil))

	u, err := store.GetUserByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if u.TwoFactorSecret != "" || !u.LastLogin.IsZero() {
		t.Fatalf("expected zero-valued nullable fields, got %+v", u)
	}
}

func TestUpdateLastLogin(t *testing.T) {
	mock, store := mockStore(t)
	at := time.Unix(1700000000, 0)

	mock.ExpectExec(`UPDATE users SET last_login`).
		WithArgs("u1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.UpdateLastLogin(context.Background(), "u1", at); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}
}

func TestEnableTwoFactorRequiresPendingSecret(t *testing.T) {
	mock, store := mockStore(t)

	mock.ExpectExec(`UPDATE users SET two_factor_enabled = TRUE`).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.EnableTwoFactor(context.Background(), "u1")
	if !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound when no pending secret, got %v", err)
	}
}

func TestSessionInsertAndGet(t *testing.T) {
	mock, store := mockStore(t)
	now := time.Unix(1700000000, 0)
	sess := &session.Session{
		ID:           "s1",
		UserID:       "u1",
		UserAgent:    "curl/8",
		IP:           "1.2.3.4",
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
		LastAccessed: now,
		IsActive:     true,
	}

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(sess.ID, sess.UserID, sess.UserAgent, sess.IP,
			sess.CreatedAt, sess.ExpiresAt, sess.LastAccessed, sess.IsActive).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Insert(context.Background(), sess); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	mock.ExpectQuery(`SELECT .+ FROM sessions WHERE id`).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "user_agent", "ip",
			"created_at", "expires_at", "last_accessed", "is_active",
		}).AddRow("s1", "u1", "curl/8", "1.2.3.4",
			now, now.Add(time.Hour), now, true))

	got, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "u1" || !got.IsActive {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionGetNotFound(t *testing.T) {
	mock, store := mockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM sessions WHERE id`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "user_agent", "ip",
			"created_at", "expires_at", "last_accessed", "is_active",
		}))

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session.ErrNotFound, got %v", err)
	}
}

func TestDeactivateAllForUser(t *testing.T) {
	mock, store := mockStore(t)

	mock.ExpectExec(`UPDATE sessions SET is_active = FALSE WHERE user_id`).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.DeactivateAllForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DeactivateAllForUser failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

func TestAppendSecurityLogSerializesMetadata(t *testing.T) {
	mock, store := mockStore(t)
	at := time.Unix(1700000000, 0)

	mock.ExpectExec(`INSERT INTO security_log`).
		WithArgs(pgxmock.AnyArg(), "u1", "LOGIN_FAILED", "1.2.3.4", "curl/8",
			false, "invalid credentials",
			[]byte(`{"identifier":"alice@example.com","reason":"password_mismatch"}`),
			at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.AppendSecurityLog(context.Background(), audit.Event{
		Timestamp: at,
		Type:      audit.EventLoginFailed,
		UserID:    "u1",
		IP:        "1.2.3.4",
		UserAgent: "curl/8",
		Success:   false,
		Error:     "invalid credentials",
		Metadata: audit.LoginFailedMeta{
			Identifier: "alice@example.com",
			Reason:     "password_mismatch",
		},
	})
	if err != nil {
		t.Fatalf("AppendSecurityLog failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
