package localcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizunoto/tankwatch/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStore_SetGetRemove(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Set("k", []byte(`"v"`)))

	data, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, `"v"`, string(data))

	s.Remove("k")
	_, ok = s.Get("k")
	require.False(t, ok)

	// Removing again must not panic or error.
	s.Remove("k")
}

func TestStore_MissingKey(t *testing.T) {
	s := newStore(t)

	_, ok := s.Get("never-written")
	require.False(t, ok)
}

func TestStore_JSONRoundTrip(t *testing.T) {
	s := newStore(t)

	session := model.Session{ID: "u1", Username: "marie", IsAdmin: true, DarkMode: true}
	require.NoError(t, s.SetJSON(KeyUserSession, session))

	var got model.Session
	require.True(t, s.GetJSON(KeyUserSession, &got))
	require.Equal(t, session, got)
}

func TestStore_CorruptEntryTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyUserSession+".json"), []byte("{not json"), 0o644))

	var got model.Session
	require.False(t, s.GetJSON(KeyUserSession, &got))
}

func TestStore_TankCapacityDefault(t *testing.T) {
	s := newStore(t)

	require.Equal(t, DefaultTankCapacity, s.TankCapacity())

	require.NoError(t, s.SetJSON(KeyTankCapacity, 25.5))
	require.Equal(t, 25.5, s.TankCapacity())
}
