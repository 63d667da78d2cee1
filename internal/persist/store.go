// Package persist implements the durable store shared by every watchguard collection.
//
// Each collection lives in its own JSON file under a data directory. Loads
// are tolerant: a missing, unreadable, or malformed file yields a supplied
// default instead of an error. Saves replace the file atomically and report
// failures as ErrStorage.
//
// Writers to the same file must be serialized. Store hands out one mutex
// per file; Lock acquires any subset of them in a fixed global order so that
// multi-file writers (label removal, reconciliation) cannot deadlock.
package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/fsops"
	"github.com/danieljhkim/watchguard/internal/hash"
)

// Key names a persisted collection. The file is <dir>/<key>.json.
type Key string

const (
	KeyLabels   Key = "labels"
	KeySettings Key = "settings"
	KeyServers  Key = "servers"
	KeyDomains  Key = "domains"
	KeyConfig   Key = "config"
)

// lockOrder is the global acquisition order for multi-file locks.
var lockOrder = []Key{KeyLabels, KeySettings, KeyServers, KeyDomains, KeyConfig}

// Store loads and saves named collections under a data directory.
type Store struct {
	fs     fsops.FS
	hasher hash.Hasher
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[Key]*sync.Mutex
}

// NewStore creates a Store rooted at dir.
func NewStore(fs fsops.FS, hasher hash.Hasher, dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fs:     fs,
		hasher: hasher,
		dir:    dir,
		logger: logger,
		locks:  make(map[Key]*sync.Mutex),
	}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *Store) Path(key Key) string {
	return filepath.Join(s.dir, string(key)+".json")
}

// Lock acquires the write locks for keys and returns the matching unlock.
// Keys are deduplicated and taken in global order regardless of argument order.
func (s *Store) Lock(keys ...Key) (unlock func()) {
	ordered := orderKeys(keys)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, k := range ordered {
		m := s.fileLock(k)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (s *Store) fileLock(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func orderKeys(keys []Key) []Key {
	rank := func(k Key) int {
		if i := slices.Index(lockOrder, k); i >= 0 {
			return i
		}
		return len(lockOrder)
	}

	out := slices.Clone(keys)
	slices.SortFunc(out, func(a, b Key) int {
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra - rb
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return slices.Compact(out)
}

// ReadRaw returns the file content for key.
// The boolean is false when the file does not exist; that is not an error.
func (s *Store) ReadRaw(key Key) ([]byte, bool, error) {
	path := s.Path(key)

	exists, err := s.fs.Exists(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	if !exists {
		return nil, false, nil
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, true, nil
}

// Load decodes the collection stored under key.
// Missing, unreadable, and malformed files all yield def(); the latter two are logged.
func Load[T any](s *Store, key Key, def func() T) T {
	data, exists, err := s.ReadRaw(key)
	if err != nil {
		s.logger.Warn("data file unreadable, using defaults",
			zap.String("file", s.Path(key)), zap.Error(err))
		return def()
	}
	if !exists {
		return def()
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("data file malformed, using defaults",
			zap.String("file", s.Path(key)), zap.Error(err))
		return def()
	}
	return v
}

// Ensure writes v under key if no file exists yet.
func (s *Store) Ensure(key Key, v any) error {
	exists, err := s.fs.Exists(s.Path(key))
	if err != nil {
		return fmt.Errorf("%w: failed to check %s: %w", ErrStorage, s.Path(key), err)
	}
	if exists {
		return nil
	}
	return s.Save(key, v)
}

// Save serializes v and atomically replaces the file for key.
// A nil error means the document is durable.
func (s *Store) Save(key Key, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal %s: %w", ErrStorage, key, err)
	}

	if err := s.fs.AtomicWrite(s.Path(key), data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrStorage, s.Path(key), err)
	}
	return nil
}

// SaveIfChanged saves v only if its serialized form differs from the file on disk.
// It reports whether a write happened.
func (s *Store) SaveIfChanged(key Key, v any) (bool, error) {
	data, err := Marshal(v)
	if err != nil {
		return false, fmt.Errorf("%w: failed to marshal %s: %w", ErrStorage, key, err)
	}

	current, exists, err := s.ReadRaw(key)
	if err == nil && exists && s.hasher.HashBytes(current) == s.hasher.HashBytes(data) {
		return false, nil
	}

	if err := s.fs.AtomicWrite(s.Path(key), data, 0644); err != nil {
		return false, fmt.Errorf("%w: failed to write %s: %w", ErrStorage, s.Path(key), err)
	}
	return true, nil
}

// Marshal renders v the way every data file is written: indented UTF-8 JSON
// without HTML escaping, terminated by a newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
