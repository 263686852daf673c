package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/profprune/internal/domain"
)

const (
	keyFileName = ".key"
	keySize     = 32 // 256-bit SQLCipher key
)

// FileKeyProvider implements domain.KeyProvider with a base64 key file
// next to the run history database.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(dataDir, keyFileName),
	}
}

// Path returns the key file location.
func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

// GetKey decodes the history database key. Surrounding whitespace is ignored.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	raw, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("history key unreadable: %w", err)
	}
	key, err := decodeKey(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("history key %s: %w", p.keyPath, err)
	}
	return key, nil
}

// StoreKey replaces the key file. Only the owner may read it.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if err := checkKeySize(key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(p.keyPath), err)
	}
	if err := atomicWriteFile(p.keyPath, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return fmt.Errorf("cannot write history key: %w", err)
	}
	return nil
}

// KeyExists reports whether a key file is present.
func (p *FileKeyProvider) KeyExists() bool {
	info, err := os.Stat(p.keyPath)
	return err == nil && !info.IsDir()
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not base64: %w", err)
	}
	if err := checkKeySize(key); err != nil {
		return nil, err
	}
	return key, nil
}

func checkKeySize(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("history key must be %d bytes, got %d", keySize, len(key))
	}
	return nil
}

// GenerateKey returns keySize random bytes for a new history database.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("no randomness for history key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating one on first use.
// created reports whether a new key was written.
func EnsureKey(provider domain.KeyProvider) (key []byte, created bool, err error) {
	if provider.KeyExists() {
		key, err = provider.GetKey()
		return key, false, err
	}
	key, err = GenerateKey()
	if err != nil {
		return nil, false, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// OpenRunStore opens the encrypted run history in dataDir, creating its key if needed.
func OpenRunStore(dataDir string) (*EncryptedRunStore, bool, error) {
	key, created, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, false, err
	}
	store, err := NewEncryptedRunStore(dataDir, key)
	if err != nil {
		return nil, created, err
	}
	return store, created, nil
}

// Ensure FileKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*FileKeyProvider)(nil)
