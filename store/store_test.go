package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rob-Hitchens/trading-bots/config"
)

func newJSONStore(t *testing.T) *Store {
	t.Helper()
	backend, err := NewJSONFile(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	return New(backend, nil)
}

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return New(backend, nil)
}

func testRoundTrip(t *testing.T, s *Store) {
	t.Helper()

	_, err := s.Get("position")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("position", "open"))
	value, err := s.Get("position")
	require.NoError(t, err)
	assert.Equal(t, "open", value)

	require.NoError(t, s.Set("position", "closed"))
	value, err = s.Get("position")
	require.NoError(t, err)
	assert.Equal(t, "closed", value)

	require.NoError(t, s.Delete("position"))
	_, err = s.Get("position")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing name only warns
	require.NoError(t, s.Delete("position"))
}

func testHashRoundTrip(t *testing.T, s *Store) {
	t.Helper()

	_, err := s.HGet("trades", "btcclp")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.HSet("trades", "btcclp", "[1,2]"))
	require.NoError(t, s.HSet("trades", "ethclp", "[3]"))

	value, err := s.HGet("trades", "btcclp")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", value)

	require.NoError(t, s.HDel("trades", "btcclp"))
	_, err = s.HGet("trades", "btcclp")
	assert.ErrorIs(t, err, ErrNotFound)

	value, err = s.HGet("trades", "ethclp")
	require.NoError(t, err)
	assert.Equal(t, "[3]", value)
}

func TestJSONFileRoundTrip(t *testing.T) {
	s := newJSONStore(t)
	testRoundTrip(t, s)
	testHashRoundTrip(t, s)
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	testRoundTrip(t, s)
	testHashRoundTrip(t, s)
}

func TestSQLiteDeleteRemovesHash(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Set("deposits", "summary"))
	require.NoError(t, s.HSet("deposits", "1", "pending"))
	require.NoError(t, s.Delete("deposits"))
	_, err := s.HGet("deposits", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	s := newJSONStore(t)

	type position struct {
		Status string  `json:"status"`
		Amount float64 `json:"amount"`
	}
	require.NoError(t, s.SetJSON("position", position{Status: "open", Amount: 1.5}))

	var got position
	require.NoError(t, s.GetJSON("position", &got))
	assert.Equal(t, position{Status: "open", Amount: 1.5}, got)

	require.NoError(t, s.HSetJSON("positions", "btcclp", got))
	var hashed position
	require.NoError(t, s.HGetJSON("positions", "btcclp", &hashed))
	assert.Equal(t, got, hashed)

	assert.ErrorIs(t, s.GetJSON("missing", &got), ErrNotFound)
}

func TestJSONFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	first, err := NewJSONFile(path)
	require.NoError(t, err)
	require.NoError(t, New(first, nil).Set("state", "kept"))

	second, err := NewJSONFile(path)
	require.NoError(t, err)
	value, err := New(second, nil).Get("state")
	require.NoError(t, err)
	assert.Equal(t, "kept", value)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.Storage{Name: "json", Filename: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v"))

	s, err = Open(config.Storage{Name: "sqlite3", Filename: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Close())

	_, err = Open(config.Storage{Name: "redis"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
