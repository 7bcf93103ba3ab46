package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(zap.NewNop(), filepath.Join(t.TempDir(), "wallet.json"))
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)

	var rec testRecord
	found, err := s.Get("absent", &rec)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutThenGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("sync", testRecord{Name: "status", Count: 2}))

	var rec testRecord
	found, err := s.Get("sync", &rec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "status", rec.Name)
	assert.Equal(t, 2, rec.Count)
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("k", testRecord{Count: 1}))
	require.NoError(t, s.Put("k", testRecord{Count: 2}))

	var rec testRecord
	found, err := s.Get("k", &rec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, rec.Count)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("k", testRecord{Count: 1}))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"), "deleting an absent key is a no-op")

	var rec testRecord
	found, err := s.Get("k", &rec)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUnknownSchemaIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema":99,"records":{"k":{"count":1}}}`), 0o600))

	s := New(zap.NewNop(), path)

	var rec testRecord
	found, err := s.Get("k", &rec)
	require.NoError(t, err)
	assert.False(t, found, "records under an unknown schema must not be read")
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")

	first := New(zap.NewNop(), path)
	require.NoError(t, first.Put("k", testRecord{Name: "persisted"}))

	second := New(zap.NewNop(), path)
	var rec testRecord
	found, err := second.Get("k", &rec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "persisted", rec.Name)
}
