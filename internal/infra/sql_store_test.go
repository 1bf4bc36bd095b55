package infra

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// newTestStore opens a store of the given driver in a temp directory.
func newTestStore(t *testing.T, driver StoreDriver) (*SQLStore, string) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	s, err := NewSQLStore(SQLStoreOptions{DataDir: dataDir, Driver: driver, Key: key})
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s, dataDir
}

// sharedStores returns every SharedStore implementation under test.
func sharedStores(t *testing.T) map[string]domain.SharedStore {
	cipher, _ := newTestStore(t, DriverSQLCipher)
	plain, _ := newTestStore(t, DriverSQLite)
	return map[string]domain.SharedStore{
		"sqlcipher": cipher,
		"sqlite":    plain,
		"memory":    NewMemStore(),
	}
}

func TestSharedStore_GetPut(t *testing.T) {
	ctx := context.Background()
	for name, s := range sharedStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			require.NoError(t, s.Put(ctx, "selection", []byte("v1")))
			got, err := s.Get(ctx, "selection")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, s.Put(ctx, "selection", []byte("v2")))
			got, err = s.Get(ctx, "selection")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)
		})
	}
}

func TestSharedStore_Update(t *testing.T) {
	ctx := context.Background()
	for name, s := range sharedStores(t) {
		t.Run(name, func(t *testing.T) {
			// create
			err := s.Update(ctx, "events", func(cur []byte, found bool) ([]byte, error) {
				assert.False(t, found)
				return []byte("a"), nil
			})
			require.NoError(t, err)

			// modify
			err = s.Update(ctx, "events", func(cur []byte, found bool) ([]byte, error) {
				assert.True(t, found)
				return append(cur, 'b'), nil
			})
			require.NoError(t, err)
			got, _ := s.Get(ctx, "events")
			assert.Equal(t, []byte("ab"), got)

			// fn error leaves value untouched
			boom := errors.New("boom")
			err = s.Update(ctx, "events", func(cur []byte, found bool) ([]byte, error) {
				return nil, boom
			})
			assert.ErrorIs(t, err, boom)
			got, _ = s.Get(ctx, "events")
			assert.Equal(t, []byte("ab"), got)

			// nil deletes
			require.NoError(t, s.Update(ctx, "events", func([]byte, bool) ([]byte, error) { return nil, nil }))
			_, err = s.Get(ctx, "events")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestSharedStore_Take(t *testing.T) {
	ctx := context.Background()
	for name, s := range sharedStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, domain.KeyFlagNavigate, []byte("true")))

			got, err := s.Take(ctx, domain.KeyFlagNavigate)
			require.NoError(t, err)
			assert.Equal(t, []byte("true"), got)

			_, err = s.Take(ctx, domain.KeyFlagNavigate)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestSharedStore_DeleteAndRevision(t *testing.T) {
	ctx := context.Background()
	for name, s := range sharedStores(t) {
		t.Run(name, func(t *testing.T) {
			rev, err := s.Revision(ctx, "activities")
			require.NoError(t, err)
			assert.Zero(t, rev)

			require.NoError(t, s.Put(ctx, "activities", []byte("a")))
			r1, _ := s.Revision(ctx, "activities")
			require.NoError(t, s.Put(ctx, "activities", []byte("a")))
			r2, _ := s.Revision(ctx, "activities")
			assert.Greater(t, r2, r1)

			require.NoError(t, s.Delete(ctx, "activities", "never-existed"))
			r3, _ := s.Revision(ctx, "activities")
			assert.Zero(t, r3)

			// A re-created key never reuses an older revision.
			require.NoError(t, s.Put(ctx, "activities", []byte("b")))
			r4, _ := s.Revision(ctx, "activities")
			assert.Greater(t, r4, r2)
		})
	}
}

func TestSQLStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	s1, err := NewSQLStore(SQLStoreOptions{DataDir: dataDir, Driver: DriverSQLCipher, Key: key})
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, "selection", []byte("kept")))
	require.NoError(t, s1.Close())

	s2, err := NewSQLStore(SQLStoreOptions{DataDir: dataDir, Driver: DriverSQLCipher, Key: key})
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, "selection")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), got)
}

func TestSQLStore_WrongKeyFails(t *testing.T) {
	dataDir := t.TempDir()
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	s, err := NewSQLStore(SQLStoreOptions{DataDir: dataDir, Driver: DriverSQLCipher, Key: key1})
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "selection", []byte("secret")))
	s.Close()

	_, err = NewSQLStore(SQLStoreOptions{DataDir: dataDir, Driver: DriverSQLCipher, Key: key2})
	assert.Error(t, err)
}

func TestSQLStore_FileIsEncrypted(t *testing.T) {
	s, dataDir := newTestStore(t, DriverSQLCipher)
	require.NoError(t, s.Put(context.Background(), "selection", []byte("plaintext-marker-value")))

	raw, err := os.ReadFile(filepath.Join(dataDir, StoreFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plaintext-marker-value")
	assert.NotContains(t, string(raw), "SQLite format 3")
}

func TestNewSQLStore_Validation(t *testing.T) {
	_, err := NewSQLStore(SQLStoreOptions{DataDir: t.TempDir(), Driver: DriverSQLCipher})
	assert.Error(t, err)

	_, err = NewSQLStore(SQLStoreOptions{DataDir: t.TempDir(), Driver: "postgres"})
	assert.Error(t, err)
}

// Two handles on the same file stand in for two processes.
func TestSQLStore_ConcurrentUpdatesSerialise(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	open := func() *SQLStore {
		s, err := NewSQLStore(SQLStoreOptions{DataDir: dataDir, Driver: DriverSQLite})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}
	a, b := open(), open()

	const perWriter = 20
	var wg sync.WaitGroup
	for _, s := range []*SQLStore{a, b} {
		wg.Add(1)
		go func(s *SQLStore) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := s.Update(ctx, "counter", func(cur []byte, found bool) ([]byte, error) {
					return append(cur, 'x'), nil
				})
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	got, err := a.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Len(t, got, 2*perWriter)
}
