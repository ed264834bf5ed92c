package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/cronocelda/internal/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "nested", "crono.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSettings(t *testing.T) {
	database := openTestDB(t)

	v, err := database.GetSetting(db.SettingLastCardID)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, database.SetSetting(db.SettingLastCardID, "card-1"))
	require.NoError(t, database.SetSetting(db.SettingLastCardID, "card-2"))

	v, err = database.GetSetting(db.SettingLastCardID)
	require.NoError(t, err)
	assert.Equal(t, "card-2", v)
}

func TestTagCache(t *testing.T) {
	cache := db.NewTagCache(openTestDB(t), 0)

	_, ok, err := cache.CachedTags("kickoff meeting")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.StoreTags("kickoff meeting", []string{"meeting", "planning"}))
	tags, ok, err := cache.CachedTags("kickoff meeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"meeting", "planning"}, tags)

	require.NoError(t, cache.StoreTags("empty", nil))
	tags, ok, err = cache.CachedTags("empty")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)

	require.NoError(t, cache.PurgeTags())
	_, ok, err = cache.CachedTags("kickoff meeting")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTagCacheExpiry(t *testing.T) {
	database := openTestDB(t)
	cache := db.NewTagCache(database, time.Hour)
	require.NoError(t, cache.StoreTags("old", []string{"x"}))

	_, err := database.Exec("UPDATE tag_cache SET created_at = ?", time.Now().Add(-2*time.Hour).UTC())
	require.NoError(t, err)

	_, ok, err := cache.CachedTags("old")
	require.NoError(t, err)
	assert.False(t, ok)
}
