package securestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// FileStore keeps all values in one file sealed with XChaCha20-Poly1305.
// The key is derived from a passphrase with scrypt; the salt is stored in the file header.
//
// Layout: salt (16) | nonce (24) | ciphertext.
type FileStore struct {
	path       string
	passphrase []byte

	mutex sync.Mutex
	salt  []byte
	key   []byte
}

func NewFileStore(path string, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is empty")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("file store passphrase is empty")
	}
	return &FileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	if value, ok := values[key]; ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

func (s *FileStore) Set(_ context.Context, key string, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secure store: %w", err)
	}

	if len(sealed) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("secure store file is truncated")
	}
	salt := sealed[:saltSize]
	nonce := sealed[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[saltSize+chacha20poly1305.NonceSizeX:]

	key, err := s.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open secure store (wrong passphrase?): %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("failed to decode secure store: %w", err)
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	if s.salt == nil {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
		if _, err := s.deriveKey(salt); err != nil {
			return err
		}
	}

	plaintext, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode secure store: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	sealed = append(sealed, s.salt...)
	sealed = append(sealed, nonce...)
	sealed = aead.Seal(sealed, nonce, plaintext, nil)

	return writeAtomic(s.path, sealed)
}

// deriveKey caches the derived key for the salt it was derived from.
func (s *FileStore) deriveKey(salt []byte) ([]byte, error) {
	if s.key != nil && string(s.salt) == string(salt) {
		return s.key, nil
	}
	key, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	s.salt = append([]byte(nil), salt...)
	s.key = key
	return key, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create secure store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".securestore-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secure store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync secure store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close secure store: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod secure store: %w", err)
	}
	return os.Rename(tmpName, path)
}
