package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestFileKeyProvider(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T, provider *FileKeyProvider)
	}{
		{
			name: "missing key file",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				assert.False(t, provider.KeyExists())
				_, err := provider.GetKey()
				assert.Error(t, err)
			},
		},
		{
			name: "stored key is readable with 0600 permissions",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))

				info, err := os.Stat(provider.keyPath)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

				got, err := provider.GetKey()
				require.NoError(t, err)
				assert.Equal(t, key, got)
			},
		},
		{
			name: "wrong key size rejected",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				err := provider.StoreKey([]byte("tooshort"))
				assert.ErrorContains(t, err, "invalid key size")
			},
		},
		{
			name: "truncated key file rejected",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				require.NoError(t, os.WriteFile(provider.keyPath, []byte(encodeKey([]byte("short"))), 0600))
				_, err := provider.GetKey()
				assert.ErrorContains(t, err, "invalid key size")
			},
		},
		{
			name: "creates nested directory",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				provider.keyPath = filepath.Join(filepath.Dir(provider.keyPath), "a", "b", keyFileName)
				key, _ := GenerateKey()
				require.NoError(t, provider.StoreKey(key))
				assert.True(t, provider.KeyExists())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFn(t, NewFileKeyProvider(t.TempDir()))
		})
	}
}

func TestKeyringKeyProvider(t *testing.T) {
	keyring.MockInit()
	provider := NewKeyringKeyProvider()

	assert.False(t, provider.KeyExists())

	key, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Len(t, key, keySize)
	assert.True(t, provider.KeyExists())

	again, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	assert.Error(t, provider.StoreKey([]byte("x")))
}

func TestNewKeyProvider(t *testing.T) {
	p, err := NewKeyProvider(KeySourceFile, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileKeyProvider{}, p)

	p, err = NewKeyProvider(KeySourceKeyring, "")
	require.NoError(t, err)
	assert.IsType(t, &KeyringKeyProvider{}, p)

	_, err = NewKeyProvider("vault", "")
	assert.Error(t, err)
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.Len(t, key, keySize)
		assert.False(t, seen[string(key)], "duplicate key generated")
		seen[string(key)] = true
	}
}

func TestEnsureKey_File(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())

	key, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.True(t, provider.KeyExists())

	again, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}
