package coeffstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a cached coefficients lookup stays fresh
// before CachingStore falls through to the wrapped Store again.
const DefaultCacheTTL = 30 * time.Minute

// CachingStore is a Redis cache-aside decorator over any Store: a hit
// returns straight from Redis, a miss reads through to the wrapped store
// and populates the cache before returning. This is a startup-time lookup
// pattern, not a per-simulation-trial one — the coefficients a calibrator
// uses for a race type are looked up once per fit, never on the Monte Carlo
// hot path, so a cache round trip here never threatens §5's "no I/O on the
// hot path" invariant.
type CachingStore struct {
	redis *redis.Client
	next  Store
	ttl   time.Duration
}

// NewCachingStore wraps next with a Redis cache-aside layer. ttl <= 0 uses
// DefaultCacheTTL.
func NewCachingStore(redisClient *redis.Client, next Store, ttl time.Duration) *CachingStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingStore{redis: redisClient, next: next, ttl: ttl}
}

func cacheKey(raceType string) string {
	return fmt.Sprintf("coefficients:%s", raceType)
}

// Get implements Store.
func (s *CachingStore) Get(ctx context.Context, raceType string) (RaceCoefficients, error) {
	key := cacheKey(raceType)

	cached, err := s.redis.Get(ctx, key).Bytes()
	if err == nil {
		var rc RaceCoefficients
		if jsonErr := json.Unmarshal(cached, &rc); jsonErr == nil {
			return rc, nil
		}
		// A corrupt cache entry is treated as a miss rather than a failure:
		// fall through to the backing store and overwrite it below.
	} else if !errors.Is(err, redis.Nil) {
		return RaceCoefficients{}, fmt.Errorf("coeffstore: cache read for %q: %w", raceType, err)
	}

	rc, err := s.next.Get(ctx, raceType)
	if err != nil {
		return RaceCoefficients{}, err
	}

	encoded, err := json.Marshal(rc)
	if err == nil {
		if setErr := s.redis.Set(ctx, key, encoded, s.ttl).Err(); setErr != nil {
			// A failed cache write doesn't invalidate a successful read
			// through to the backing store; the next Get just misses again.
			return rc, nil
		}
	}
	return rc, nil
}
