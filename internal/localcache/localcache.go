package localcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Well-known cache keys. Values persist until overwritten or removed.
const (
	KeyLastWaterReading = "lastWaterLevel"
	KeyLastAtmospheric  = "lastAtmospheric"
	KeyLastUpdateTime   = "lastUpdateTime"
	KeyTankCapacity     = "tankMaxCapacity"
	KeyCustomLogo       = "customLogo"
	KeyUserSession      = "user"
)

// DefaultTankCapacity is used when no capacity setting has been stored.
const DefaultTankCapacity = 10.0

// Store is a durable file-backed key-value shadow of the latest readings and
// session. It is a cold-start/offline fallback, never the primary source of
// truth while online, so missing or corrupt entries are treated as absent
// rather than surfaced as errors.
type Store struct {
	dir string
}

// New creates the backing directory if needed and returns a Store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Get returns the raw value for a key, or false when the key is missing or
// unreadable.
func (s *Store) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Set writes a value durably. The write goes through a temp file rename so a
// crash never leaves a half-written entry behind.
func (s *Store) Set(key string, value []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

// Remove deletes a key. Removing a missing key is not an error.
func (s *Store) Remove(key string) {
	_ = os.Remove(s.path(key))
}

// GetJSON unmarshals a stored value into out, reporting false when the key is
// absent or the stored payload doesn't parse.
func (s *Store) GetJSON(key string, out any) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// SetJSON marshals and stores a value.
func (s *Store) SetJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(key, data)
}

// TankCapacity returns the stored tank capacity setting or the default.
func (s *Store) TankCapacity() float64 {
	var capacity float64
	if !s.GetJSON(KeyTankCapacity, &capacity) || capacity <= 0 {
		return DefaultTankCapacity
	}
	return capacity
}

func (s *Store) path(key string) string {
	// Keys are fixed constants today; sanitize anyway so a stray key can't
	// escape the cache directory.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, key)
	return filepath.Join(s.dir, safe+".json")
}
