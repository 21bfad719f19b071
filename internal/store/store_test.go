package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testRoundTrip(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.Set(ctx, "a", []byte("one")))
	require.NoError(t, s.Set(ctx, "b", []byte("two")))

	value, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), value)

	// Overwrite is a plain upsert.
	require.NoError(t, s.Set(ctx, "a", []byte("three")))
	value, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), value)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete(ctx, "a"))
}

func testKeys(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, store.IdentityKey("alice@test.com"), []byte("{}")))
	require.NoError(t, s.Set(ctx, store.IdentityKey("bob@test.com"), []byte("{}")))
	require.NoError(t, s.Set(ctx, store.LoginLogKey, []byte("[]")))

	keys, err := s.Keys(ctx, store.IdentityKeyPrefix)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		store.IdentityKey("alice@test.com"),
		store.IdentityKey("bob@test.com"),
	}, keys)
}

func TestMemoryStore(t *testing.T) {
	testRoundTrip(t, store.NewMemory())
	testKeys(t, store.NewMemory())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	memory := store.NewMemory()
	ctx := context.Background()

	original := []byte("value")
	require.NoError(t, memory.Set(ctx, "k", original))
	original[0] = 'X'

	stored, err := memory.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), stored)

	// Mutating the returned slice must not leak back into the store.
	stored[0] = 'Y'
	again, err := memory.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), again)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.db")
	s, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	testRoundTrip(t, s)
	testKeys(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.db")
	ctx := context.Background()

	s, err := store.NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("durable")))
	require.NoError(t, s.Close())

	s, err = store.NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	value, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), value)
}

// failingStore errors on everything, to drive fallback degradation
type failingStore struct{}

var errBackend = errors.New("backend unavailable")

func (failingStore) Get(context.Context, string) ([]byte, error)    { return nil, errBackend }
func (failingStore) Set(context.Context, string, []byte) error      { return errBackend }
func (failingStore) Delete(context.Context, string) error           { return errBackend }
func (failingStore) Keys(context.Context, string) ([]string, error) { return nil, errBackend }

func TestFallbackPassesThroughHealthyBackend(t *testing.T) {
	primary := store.NewMemory()
	fallback := store.NewFallback(primary, discardLogger())
	ctx := context.Background()

	require.NoError(t, fallback.Set(ctx, "k", []byte("v")))
	assert.False(t, fallback.Degraded())

	// The write landed in the real backend.
	value, err := primary.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestFallbackNotFoundDoesNotDegrade(t *testing.T) {
	fallback := store.NewFallback(store.NewMemory(), discardLogger())

	_, err := fallback.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, fallback.Degraded())
}

func TestFallbackDegradesOnBackendError(t *testing.T) {
	fallback := store.NewFallback(failingStore{}, discardLogger())
	ctx := context.Background()

	require.NoError(t, fallback.Set(ctx, "k", []byte("v")))
	assert.True(t, fallback.Degraded())

	// Subsequent reads come from the in-memory copy.
	value, err := fallback.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	keys, err := fallback.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestFallbackRoundTripWhileDegraded(t *testing.T) {
	fallback := store.NewFallback(failingStore{}, discardLogger())

	// First touch trips degradation, then the full contract holds.
	_, _ = fallback.Get(context.Background(), "warmup")
	require.True(t, fallback.Degraded())

	testRoundTrip(t, fallback)
	testKeys(t, fallback)
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "login_security_alice@test.com", store.IdentityKey("alice@test.com"))
}
