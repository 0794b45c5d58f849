package config

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

var ErrSecretNotFound = errors.New("secret not found")

const secretCacheTTL = 5 * time.Minute

// SecretStore holds values that must not live in the plain config file,
// such as the API token signing key.
type SecretStore interface {
	GetSecret(key string) (string, error)
	SetSecret(key string, value string) error
	DeleteSecret(key string) error
	ListSecrets() ([]string, error)
}

type Encryption interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type AESEncryption struct {
	key []byte
}

// NewAESEncryption derives a 256-bit key from key when it is not already
// 32 bytes long.
func NewAESEncryption(key []byte) (*AESEncryption, error) {
	if len(key) == 0 {
		return nil, errors.New("encryption key is empty")
	}
	if len(key) != 32 {
		hash := sha256.Sum256(key)
		key = hash[:]
	}
	return &AESEncryption{key: key}, nil
}

func (e *AESEncryption) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func (e *AESEncryption) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *AESEncryption) Decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// FileSecretStore keeps one encrypted file per key under basePath.
type FileSecretStore struct {
	basePath   string
	encryption Encryption
	cache      map[string]cachedSecret
	mu         sync.RWMutex
	logger     Logger
}

func NewFileSecretStore(basePath string, encryption Encryption, logger Logger) (*FileSecretStore, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create secret store directory: %w", err)
	}
	return &FileSecretStore{
		basePath:   basePath,
		encryption: encryption,
		cache:      make(map[string]cachedSecret),
		logger:     logger,
	}, nil
}

func (s *FileSecretStore) path(key string) string {
	return filepath.Join(s.basePath, sanitizeKey(key)+".enc")
}

func (s *FileSecretStore) GetSecret(key string) (string, error) {
	s.mu.RLock()
	cached, exists := s.cache[key]
	s.mu.RUnlock()
	if exists && cached.expiresAt.After(time.Now()) {
		return cached.value, nil
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	plaintext, err := s.encryption.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	value := string(plaintext)
	s.remember(key, value)
	return value, nil
}

func (s *FileSecretStore) SetSecret(key string, value string) error {
	ciphertext, err := s.encryption.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(ciphertext)
	if err := os.WriteFile(s.path(key), []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	s.remember(key, value)
	s.logger.Debug("secret stored", "key", key)
	return nil
}

func (s *FileSecretStore) DeleteSecret(key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return fmt.Errorf("failed to delete secret file: %w", err)
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// ListSecrets returns sanitized key names.
func (s *FileSecretStore) ListSecrets() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".enc") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".enc"))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileSecretStore) remember(key, value string) {
	s.mu.Lock()
	s.cache[key] = cachedSecret{value: value, expiresAt: time.Now().Add(secretCacheTTL)}
	s.mu.Unlock()
}

func sanitizeKey(key string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(key)
}

// VaultSecretStore keeps every key as a field of one KV v2 secret.
type VaultSecretStore struct {
	kv      *vault.KVv2
	path    string
	timeout time.Duration
	logger  Logger
}

// NewVaultSecretStore connects to address (VAULT_ADDR when empty).
func NewVaultSecretStore(address, token, mount, path string, logger Logger) (*VaultSecretStore, error) {
	cfg := vault.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("invalid vault config: %w", cfg.Error)
	}
	if address != "" {
		cfg.Address = address
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}
	return &VaultSecretStore{
		kv:      client.KVv2(mount),
		path:    path,
		timeout: 10 * time.Second,
		logger:  logger,
	}, nil
}

func (s *VaultSecretStore) read(ctx context.Context) (map[string]interface{}, error) {
	secret, err := s.kv.Get(ctx, s.path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("failed to read vault secret %s: %w", s.path, err)
	}
	if secret.Data == nil {
		return map[string]interface{}{}, nil
	}
	return secret.Data, nil
}

func (s *VaultSecretStore) GetSecret(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: vault field %s is %T", ErrWrongType, key, value)
	}
	return str, nil
}

func (s *VaultSecretStore) SetSecret(key string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, err := s.read(ctx)
	if err != nil {
		return err
	}
	data[key] = value
	if _, err := s.kv.Put(ctx, s.path, data); err != nil {
		return fmt.Errorf("failed to write vault secret %s: %w", s.path, err)
	}
	s.logger.Debug("vault secret stored", "path", s.path, "key", key)
	return nil
}

func (s *VaultSecretStore) DeleteSecret(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, err := s.read(ctx)
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	delete(data, key)
	if _, err := s.kv.Put(ctx, s.path, data); err != nil {
		return fmt.Errorf("failed to write vault secret %s: %w", s.path, err)
	}
	return nil
}

func (s *VaultSecretStore) ListSecrets() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// OpenSecretStore builds the backend named by webserver.secret_backend.
// Vault address and token come from VAULT_ADDR and VAULT_TOKEN.
func OpenSecretStore(settings Settings, masterKey string, logger Logger) (SecretStore, error) {
	switch settings.SecretBackend {
	case "vault":
		return NewVaultSecretStore("", "", settings.VaultMount, settings.VaultPath, logger)
	case "file", "":
		enc, err := NewAESEncryption([]byte(masterKey))
		if err != nil {
			return nil, err
		}
		return NewFileSecretStore(settings.SecretDir, enc, logger)
	default:
		return nil, fmt.Errorf("unknown secret backend %q", settings.SecretBackend)
	}
}
