package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/grantiva/grantiva-go/internal/database"
)

// exerciseStore runs the SecureStore contract against any backend.
func exerciseStore(t *testing.T, s SecureStore) {
	t.Helper()
	ctx := context.Background()
	const service, account = "com.grantiva.test", "slot"

	if err := s.Delete(ctx, service, account); err != nil {
		t.Fatalf("Delete on empty slot: %v", err)
	}
	if _, err := s.Get(ctx, service, account); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty slot = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, service, account, []byte("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, service, account, []byte("second")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err := s.Get(ctx, service, account)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get = %q, want second", got)
	}

	if _, err := s.Get(ctx, service, "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("accounts should be independent, got %v", err)
	}

	if err := s.Delete(ctx, service, account); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, service, account); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("token")
	_ = s.Put(ctx, "svc", "acct", buf)
	buf[0] = 'X'

	got, _ := s.Get(ctx, "svc", "acct")
	if string(got) != "token" {
		t.Errorf("stored value aliased caller buffer: %q", got)
	}
}

func TestSealedStore(t *testing.T) {
	sealed, err := NewSealedStore(NewMemoryStore(), "correct horse battery staple")
	if err != nil {
		t.Fatalf("NewSealedStore: %v", err)
	}
	exerciseStore(t, sealed)
}

func TestSealedStore_CiphertextAtRest(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	sealed, _ := NewSealedStore(inner, "secret")

	if err := sealed.Put(ctx, "svc", "acct", []byte("plain-token")); err != nil {
		t.Fatal(err)
	}
	raw, _ := inner.Get(ctx, "svc", "acct")
	if bytes.Contains(raw, []byte("plain-token")) {
		t.Error("inner store holds plaintext")
	}
}

func TestSealedStore_TamperDetection(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		tamper func(inner *MemoryStore)
		open   func(s *SealedStore) error
	}{
		{
			name: "flipped byte",
			tamper: func(inner *MemoryStore) {
				raw, _ := inner.Get(ctx, "svc", "acct")
				raw[len(raw)-1] ^= 0xff
				_ = inner.Put(ctx, "svc", "acct", raw)
			},
			open: func(s *SealedStore) error { _, err := s.Get(ctx, "svc", "acct"); return err },
		},
		{
			name: "moved to another account",
			tamper: func(inner *MemoryStore) {
				raw, _ := inner.Get(ctx, "svc", "acct")
				_ = inner.Put(ctx, "svc", "other", raw)
			},
			open: func(s *SealedStore) error { _, err := s.Get(ctx, "svc", "other"); return err },
		},
		{
			name: "truncated",
			tamper: func(inner *MemoryStore) {
				_ = inner.Put(ctx, "svc", "acct", []byte{1, 2, 3})
			},
			open: func(s *SealedStore) error { _, err := s.Get(ctx, "svc", "acct"); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := NewMemoryStore()
			sealed, _ := NewSealedStore(inner, "secret")
			if err := sealed.Put(ctx, "svc", "acct", []byte("value")); err != nil {
				t.Fatal(err)
			}
			tt.tamper(inner)
			if err := tt.open(sealed); !errors.Is(err, ErrSealBroken) {
				t.Errorf("open after tamper = %v, want ErrSealBroken", err)
			}
		})
	}
}

func TestSealedStore_WrongSecret(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	a, _ := NewSealedStore(inner, "alpha")
	b, _ := NewSealedStore(inner, "beta")

	_ = a.Put(ctx, "svc", "acct", []byte("value"))
	if _, err := b.Get(ctx, "svc", "acct"); !errors.Is(err, ErrSealBroken) {
		t.Errorf("Get with wrong secret = %v, want ErrSealBroken", err)
	}
	if _, err := NewSealedStore(inner, ""); err == nil {
		t.Error("empty secret should be rejected")
	}
}

// Backends below need a live server and are skipped unless configured.

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	exerciseStore(t, NewPostgresStore(db))
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	client, err := NewRedisClient(url)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	store := NewRedisStore(client)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	exerciseStore(t, store)
}
