package llm

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("oracle_responses")

// ResponseCache stores raw oracle responses keyed by prompt hash, so a
// re-run of the same chain walk does not repeat identical oracle calls.
type ResponseCache struct {
	db *bolt.DB
}

// NewResponseCache opens (or creates) a bbolt-backed cache at path.
func NewResponseCache(path string) (*ResponseCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache bucket: %w", err)
	}

	return &ResponseCache{db: db}, nil
}

func cacheKey(systemPrompt, userPrompt string) []byte {
	h := sha256.New()
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(userPrompt))
	return h.Sum(nil)
}

// Get returns the cached response for the prompt pair, if present.
func (c *ResponseCache) Get(systemPrompt, userPrompt string) (string, bool) {
	var out []byte
	c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get(cacheKey(systemPrompt, userPrompt)); v != nil {
			out = append(out, v...)
		}
		return nil
	})
	if out == nil {
		return "", false
	}
	return string(out), true
}

// Put records a response for the prompt pair.
func (c *ResponseCache) Put(systemPrompt, userPrompt, response string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(cacheKey(systemPrompt, userPrompt), []byte(response))
	})
}

// Close closes the underlying database.
func (c *ResponseCache) Close() error {
	return c.db.Close()
}
