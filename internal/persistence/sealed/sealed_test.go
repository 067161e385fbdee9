package sealed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/agenda/internal/persistence"
	"github.com/example/agenda/internal/persistence/memory"
)

var fastParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16}

func newSealed(t *testing.T, inner persistence.KeyValueStore, passphrase string) *Store {
	t.Helper()
	store, err := New(inner, passphrase, WithParams(fastParams))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	store := newSealed(t, inner, "correct horse")

	value := `[{"id":"r1","name":"Dentist"}]`
	if err := store.Set(ctx, persistence.KeyRecords, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, err := inner.Get(ctx, persistence.KeyRecords)
	if err != nil {
		t.Fatalf("inner Get failed: %v", err)
	}
	if strings.Contains(raw, "Dentist") {
		t.Fatalf("expected value to be sealed, got %q", raw)
	}
	if _, err := inner.Get(ctx, SaltKey); err != nil {
		t.Fatalf("expected salt to be stored: %v", err)
	}

	got, err := store.Get(ctx, persistence.KeyRecords)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != value {
		t.Fatalf("Get = %q, want %q", got, value)
	}

	reopened := newSealed(t, inner, "correct horse")
	if got, err := reopened.Get(ctx, persistence.KeyRecords); err != nil || got != value {
		t.Fatalf("reopened Get = %q, %v", got, err)
	}
}

func TestStore_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	if err := newSealed(t, inner, "first").Set(ctx, "k", "secret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := newSealed(t, inner, "second").Get(ctx, "k"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestStore_BindsKey(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	store := newSealed(t, inner, "pass")
	if err := store.Set(ctx, "a", "alpha"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, _ := inner.Get(ctx, "a")
	_ = inner.Set(ctx, "b", raw)
	if _, err := store.Get(ctx, "b"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for swapped value, got %v", err)
	}
}

func TestStore_MissingAndReserved(t *testing.T) {
	ctx := context.Background()
	store := newSealed(t, memory.New(), "pass")

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Set(ctx, SaltKey, "x"); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("expected ErrReservedKey, got %v", err)
	}
	if err := store.Remove(ctx, SaltKey); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("expected ErrReservedKey, got %v", err)
	}
}

func TestStore_ClearRotatesSalt(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	store := newSealed(t, inner, "pass")
	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	before, _ := inner.Get(ctx, SaltKey)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set after Clear failed: %v", err)
	}
	after, _ := inner.Get(ctx, SaltKey)
	if before == after {
		t.Fatal("expected a new salt after Clear")
	}
	if got, err := store.Get(ctx, "k"); err != nil || got != "v2" {
		t.Fatalf("Get after Clear = %q, %v", got, err)
	}
}

func TestNew_RequiresPassphrase(t *testing.T) {
	if _, err := New(memory.New(), " "); !errors.Is(err, ErrPassphraseRequired) {
		t.Fatalf("expected ErrPassphraseRequired, got %v", err)
	}
}
