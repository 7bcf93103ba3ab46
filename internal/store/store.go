// Package store persists small device-local records as a schema-versioned
// JSON file. It backs the passkey sync status and the credential index; the
// file is a single-writer resource per device and last-write-wins across
// concurrent sessions is accepted behaviour.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// currentSchema is bumped if the on-disk format changes.
const currentSchema = 1

type envelope struct {
	Schema  int                        `json:"schema"`
	Records map[string]json.RawMessage `json:"records"`
}

// Store is a file-backed key-value store for client-local state.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// New creates a store writing to the given path. The file is created lazily
// on the first Put.
func New(logger *zap.Logger, path string) *Store {
	return &Store{
		path:   path,
		logger: logger.With(zap.String("component", "Store")),
	}
}

// Get unmarshals the record under key into out. It returns false when the
// key (or the whole file) does not exist.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return false, err
	}
	raw, ok := env.Records[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode record %q: %v", key, err)
	}
	return true, nil
}

// Put stores value under key, replacing any previous record.
func (s *Store) Put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record %q: %v", key, err)
	}
	env.Records[key] = raw
	return s.save(env)
}

// Delete removes the record under key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := env.Records[key]; !ok {
		return nil
	}
	delete(env.Records, key)
	return s.save(env)
}

func (s *Store) load() (*envelope, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &envelope{Schema: currentSchema, Records: map[string]json.RawMessage{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode store: %v", err)
	}
	if env.Schema != currentSchema {
		// Unknown schema: start over rather than misread records.
		s.logger.Warn("Discarding store with unknown schema",
			zap.Int("schema", env.Schema),
			zap.Int("expected", currentSchema))
		return &envelope{Schema: currentSchema, Records: map[string]json.RawMessage{}}, nil
	}
	if env.Records == nil {
		env.Records = map[string]json.RawMessage{}
	}
	return &env, nil
}

// save writes via a temp file and rename so a crash never leaves a
// half-written store behind.
func (s *Store) save(env *envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %v", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("create temp store: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write store: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close store: %v", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store: %v", err)
	}
	return nil
}
