package catalog

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const cacheKeyPrefix = "catalog:search:"

// Cache stores SearchAll results in Redis. Keys include the registry
// fingerprint, so a catalog refresh never serves stale matches.
type Cache struct {
	Rdb *redis.Client
	TTL time.Duration
}

// Key is the cache key of a query against a catalog set. Queries with the same
// token set share a key.
func Key(fingerprint, text string, threshold float64) string {
	h := blake2b.Sum256([]byte(fingerprint + "\x00" + strings.Join(Tokens(text), " ") + "\x00" + strconv.FormatFloat(threshold, 'f', -1, 64)))
	return cacheKeyPrefix + hex.EncodeToString(h[:16])
}

// Get returns a cached result; a miss or an unreachable Redis is (nil, false).
func (c *Cache) Get(ctx context.Context, fingerprint, text string, threshold float64) (*MultiResult, bool) {
	if c == nil || c.Rdb == nil {
		return nil, false
	}
	b, err := c.Rdb.Get(ctx, Key(fingerprint, text, threshold)).Bytes()
	if err != nil {
		return nil, false
	}
	var res MultiResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false
	}
	// The cached copy came from an equivalent query; report the caller's own text.
	res.Query = text
	return &res, true
}

// Set stores a result under its key.
func (c *Cache) Set(ctx context.Context, fingerprint, text string, threshold float64, res MultiResult) error {
	if c == nil || c.Rdb == nil {
		return errors.New("catalog cache not configured")
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return c.Rdb.Set(ctx, Key(fingerprint, text, threshold), b, ttl).Err()
}
