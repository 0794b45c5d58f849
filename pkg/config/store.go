package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Store is a sectioned key-value file with typed accessors. Values set at
// runtime stay in memory until Save is called.
type Store struct {
	mu         sync.RWMutex
	path       string
	format     ConfigFormat
	values     Document
	defaults   Document
	validators map[string][]ConfigValidator
	lastHash   [sha256.Size]byte
	loadedAt   time.Time
	logger     Logger
}

// NewStore creates a store backed by path. Nothing is read until Reload.
func NewStore(path string, logger Logger) *Store {
	return &Store{
		path:       path,
		format:     FormatFor(path),
		values:     make(Document),
		defaults:   make(Document),
		validators: make(map[string][]ConfigValidator),
		logger:     logger,
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) SetDefault(section, key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setIn(s.defaults, section, key, value)
}

func (s *Store) AddValidator(section, key string, validator ConfigValidator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := qualified(section, key)
	s.validators[k] = append(s.validators[k], validator)
}

// Reload re-reads the file. A missing file leaves only the defaults. When
// validation fails the previous values are kept.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	doc := make(Document)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn("config file not found, using defaults", "path", s.path)
	case err != nil:
		return fmt.Errorf("failed to read config %s: %w", s.path, err)
	default:
		doc, err = s.format.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(doc); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	s.values = doc
	s.lastHash = sha256.Sum256(data)
	s.loadedAt = time.Now()
	s.logger.Debug("config loaded", "path", s.path, "sections", len(doc))
	return nil
}

func (s *Store) validate(doc Document) error {
	var multiErr MultiError
	for key, validators := range s.validators {
		section, name := splitQualified(key)
		value, ok := lookup(doc, section, name)
		if !ok {
			value, ok = lookup(s.defaults, section, name)
		}
		if !ok {
			continue
		}
		for _, validator := range validators {
			if err := validator.Validate(key, value); err != nil {
				multiErr.Add(&ConfigError{
					Key:     key,
					Message: "validation failed",
					Err:     err,
				})
			}
		}
	}
	if multiErr.HasErrors() {
		return &multiErr
	}
	return nil
}

// Save writes the explicitly set values (not defaults) and reloads.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := s.format.Marshal(s.values)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace config: %w", err)
	}

	s.mu.Lock()
	s.lastHash = sha256.Sum256(data)
	s.mu.Unlock()

	s.logger.Debug("config saved", "path", s.path)
	return s.Reload()
}

// ChangedOnDisk reports whether the file differs from what the store last
// read or wrote.
func (s *Store) ChangedOnDisk() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sha256.Sum256(data) != s.lastHash, nil
}

func (s *Store) Get(section, key string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := lookup(s.values, section, key); ok {
		return v, nil
	}
	if v, ok := lookup(s.defaults, section, key); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, qualified(section, key))
}

// Set validates and stores value in memory.
func (s *Store) Set(section, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := qualified(section, key)
	for _, validator := range s.validators[k] {
		if err := validator.Validate(k, value); err != nil {
			return &ConfigError{Key: k, Message: "validation failed", Err: err}
		}
	}
	setIn(s.values, section, key, value)
	return nil
}

func (s *Store) GetString(section, key string) (string, error) {
	v, err := s.Get(section, key)
	if err != nil {
		return "", err
	}
	str, err := toString(v)
	if err != nil {
		return "", &ConfigError{Key: qualified(section, key), Message: "not a string", Err: err}
	}
	return str, nil
}

func (s *Store) GetBool(section, key string) (bool, error) {
	v, err := s.Get(section, key)
	if err != nil {
		return false, err
	}
	b, err := toBool(v)
	if err != nil {
		return false, &ConfigError{Key: qualified(section, key), Message: "not a boolean", Err: err}
	}
	return b, nil
}

func (s *Store) GetInt(section, key string) (int, error) {
	v, err := s.Get(section, key)
	if err != nil {
		return 0, err
	}
	n, err := toInt(v)
	if err != nil {
		return 0, &ConfigError{Key: qualified(section, key), Message: "not an integer", Err: err}
	}
	return n, nil
}

func (s *Store) GetDuration(section, key string) (time.Duration, error) {
	v, err := s.Get(section, key)
	if err != nil {
		return 0, err
	}
	d, err := toDuration(v)
	if err != nil {
		return 0, &ConfigError{Key: qualified(section, key), Message: "not a duration", Err: err}
	}
	return d, nil
}

// Snapshot returns defaults overlaid with the stored values.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Document)
	for _, doc := range []Document{s.defaults, s.values} {
		for section, keys := range doc {
			for k, v := range keys {
				setIn(out, section, k, v)
			}
		}
	}
	return out
}

// Keys lists every known section.key, sorted.
func (s *Store) Keys() []string {
	var keys []string
	for section, values := range s.Snapshot() {
		for k := range values {
			keys = append(keys, qualified(section, k))
		}
	}
	sort.Strings(keys)
	return keys
}

// ValidateAll re-runs every validator against the current values.
func (s *Store) ValidateAll() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validate(s.values)
}

func lookup(doc Document, section, key string) (interface{}, bool) {
	keys, ok := doc[section]
	if !ok {
		return nil, false
	}
	v, ok := keys[key]
	return v, ok
}

func setIn(doc Document, section, key string, value interface{}) {
	if doc[section] == nil {
		doc[section] = make(map[string]interface{})
	}
	doc[section][key] = value
}

func splitQualified(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
