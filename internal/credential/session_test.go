package credential

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`
		CREATE TABLE sessions (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			token TEXT NOT NULL,
			expires_at TEXT,
			updated_at TEXT NOT NULL
		)`); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok {
		t.Fatal("TokenExpiry() ok = false, want true")
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}

	if _, ok := TokenExpiry("opaque-token"); ok {
		t.Error("TokenExpiry(opaque) ok = true, want false")
	}
}

func TestSessionProvider_Token(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		p := NewSessionProvider("", nil)
		if _, err := p.Token(ctx); !errors.Is(err, ErrNoCredential) {
			t.Errorf("Token() error = %v, want ErrNoCredential", err)
		}
	})

	t.Run("opaque token", func(t *testing.T) {
		p := NewSessionProvider("abc", nil)
		got, err := p.Token(ctx)
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if got != "abc" {
			t.Errorf("Token() = %q, want %q", got, "abc")
		}
	})

	t.Run("expired jwt", func(t *testing.T) {
		p := NewSessionProvider(signedToken(t, time.Now().Add(-time.Minute)), nil)
		if _, err := p.Token(ctx); !errors.Is(err, ErrCredentialExpired) {
			t.Errorf("Token() error = %v, want ErrCredentialExpired", err)
		}
	})
}

func TestSessionProvider_Invalidate(t *testing.T) {
	ctx := context.Background()
	p := NewSessionProvider("first", nil)

	p.Invalidate(ctx, "someone-else")
	if _, err := p.Token(ctx); err != nil {
		t.Fatalf("Token() after unrelated Invalidate error = %v", err)
	}

	p.Invalidate(ctx, "first")
	if _, err := p.Token(ctx); !errors.Is(err, ErrCredentialRejected) {
		t.Errorf("Token() error = %v, want ErrCredentialRejected", err)
	}

	if err := p.SetToken(ctx, "second"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	got, err := p.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "second" {
		t.Errorf("Token() = %q, want %q", got, "second")
	}
}

func TestSessionProvider_PersistAndRestore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	token := signedToken(t, time.Now().Add(time.Hour))
	first := NewSessionProvider("", store)
	if err := first.SetToken(ctx, token); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	second := NewSessionProvider("", store)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got, err := second.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != token {
		t.Error("restored token does not match saved token")
	}

	second.Invalidate(ctx, token)
	if _, err := store.Load(ctx); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() after Invalidate error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	for _, tok := range []string{"a", "b"} {
		if err := store.Save(ctx, Session{Token: tok}); err != nil {
			t.Fatalf("Save(%q) error = %v", tok, err)
		}
	}
	s, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Token != "b" {
		t.Errorf("Token = %q, want %q", s.Token, "b")
	}
	if !s.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", s.ExpiresAt)
	}
}
