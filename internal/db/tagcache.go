package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"time"
)

// TagCache remembers enrichment results by the text they were derived from.
// Entries older than ttl are ignored; a zero ttl keeps them forever.
type TagCache struct {
	db  *DB
	ttl time.Duration
}

// NewTagCache creates a cache stored in db
func NewTagCache(db *DB, ttl time.Duration) *TagCache {
	return &TagCache{db: db, ttl: ttl}
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CachedTags returns the tags stored for text
func (c *TagCache) CachedTags(text string) ([]string, bool, error) {
	var raw string
	var createdAt time.Time
	err := c.db.QueryRow("SELECT tags, created_at FROM tag_cache WHERE hash = ?", textHash(text)).
		Scan(&raw, &createdAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if c.ttl > 0 && time.Since(createdAt) > c.ttl {
		return nil, false, nil
	}

	tags := []string{}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, false, err
	}
	return tags, true, nil
}

// StoreTags records the tags resolved for text, replacing any previous entry
func (c *TagCache) StoreTags(text string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`
		INSERT INTO tag_cache (hash, tags, created_at) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET tags = excluded.tags, created_at = excluded.created_at
	`, textHash(text), string(raw), time.Now().UTC())
	return err
}

// PurgeTags removes every cached entry
func (c *TagCache) PurgeTags() error {
	_, err := c.db.Exec("DELETE FROM tag_cache")
	return err
}
