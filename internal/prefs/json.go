package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONStore implements the Store interface using a single JSON object file.
// Every Get re-reads the file and every Set rewrites it, so writes from
// another process sharing the path are seen.
type JSONStore struct {
	path   string
	values map[string]string
	mu     sync.Mutex
}

// NewJSONStore creates a JSON file-backed store at the given path.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path:   path,
		values: make(map[string]string),
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("load existing prefs: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	return s, nil
}

// load replaces the in-memory values with the file contents. A missing
// file means no values.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.values = make(map[string]string)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	s.values = values
	return nil
}

// save writes the map to disk. Callers must hold the write lock.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	// Write to temp file first, then rename (atomic on POSIX)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// Get returns the value stored under key.
func (s *JSONStore) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	value, ok := s.values[key]
	return value, ok, nil
}

// Set stores value under key and flushes the file.
func (s *JSONStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	previous, had := s.values[key]
	s.values[key] = value
	if err := s.save(); err != nil {
		if had {
			s.values[key] = previous
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Close is a no-op; the JSON store holds no open file handles.
func (s *JSONStore) Close() error {
	return nil
}
