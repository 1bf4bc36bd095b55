package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

const (
	keyFileName = ".store.key"
	keySize     = 32 // 256-bit SQLCipher passphrase

	keyringService = "shieldmon"
	keyringUser    = "store"
)

// KeySource selects where the store passphrase lives.
type KeySource string

const (
	KeySourceFile    KeySource = "file"
	KeySourceKeyring KeySource = "keyring"
)

// NewKeyProvider returns the provider for source.
func NewKeyProvider(source KeySource, dataDir string) (domain.KeyProvider, error) {
	switch source {
	case KeySourceFile, "":
		return NewFileKeyProvider(dataDir), nil
	case KeySourceKeyring:
		return NewKeyringKeyProvider(), nil
	}
	return nil, fmt.Errorf("unknown key source %q", source)
}

// FileKeyProvider keeps the passphrase base64-encoded in a 0600 file next to the store.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(dataDir, keyFileName),
	}
}

func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return decodeKey(string(encoded))
}

func (p *FileKeyProvider) StoreKey(key []byte) error {
	if err := checkKeySize(key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(p.keyPath, []byte(encodeKey(key)), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

var (
	keyringSet = keyring.Set
	keyringGet = keyring.Get
)

// KeyringKeyProvider keeps the passphrase in the OS keychain
// (macOS Keychain, Secret Service on Linux).
type KeyringKeyProvider struct {
	service string
	user    string
}

// NewKeyringKeyProvider creates a provider under the shieldmon service entry.
func NewKeyringKeyProvider() *KeyringKeyProvider {
	return &KeyringKeyProvider{service: keyringService, user: keyringUser}
}

func (p *KeyringKeyProvider) GetKey() ([]byte, error) {
	encoded, err := keyringGet(p.service, p.user)
	if err != nil {
		return nil, fmt.Errorf("failed to read key from keyring: %w", err)
	}
	return decodeKey(encoded)
}

func (p *KeyringKeyProvider) StoreKey(key []byte) error {
	if err := checkKeySize(key); err != nil {
		return err
	}
	if err := keyringSet(p.service, p.user, encodeKey(key)); err != nil {
		return fmt.Errorf("failed to write key to keyring: %w", err)
	}
	return nil
}

func (p *KeyringKeyProvider) KeyExists() bool {
	_, err := keyringGet(p.service, p.user)
	return err == nil
}

func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if err := checkKeySize(key); err != nil {
		return nil, err
	}
	return key, nil
}

func checkKeySize(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return nil
}

// GenerateKey creates a new random 256-bit passphrase.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the existing key, generating and storing one on first use.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var (
	_ domain.KeyProvider = (*FileKeyProvider)(nil)
	_ domain.KeyProvider = (*KeyringKeyProvider)(nil)
)
