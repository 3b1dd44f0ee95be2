//go:build integration

package coeffstore

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/obsidiandynamics/brumby/internal/regression"
)

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_URL")
	if addr == "" {
		addr = "localhost:6380"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

type fakeStore struct {
	calls int
	rc    RaceCoefficients
}

func (f *fakeStore) Get(ctx context.Context, raceType string) (RaceCoefficients, error) {
	f.calls++
	if raceType != f.rc.RaceType {
		return RaceCoefficients{}, wrapNotFound(raceType)
	}
	return f.rc, nil
}

func TestCachingStoreReadsThroughOnMiss(t *testing.T) {
	client := getTestRedisClient(t)
	back := &fakeStore{rc: RaceCoefficients{
		RaceType: "thoroughbred",
		PerRank: []regression.Coefficients{{
			Terms:        []regression.Term{regression.Intercept{}},
			Coefficients: []float64{0.5},
		}},
		RSquared: 0.91,
	}}
	cache := NewCachingStore(client, back, 0)

	first, err := cache.Get(context.Background(), "thoroughbred")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if back.calls != 1 {
		t.Fatalf("back.calls = %d after first Get, want 1", back.calls)
	}

	second, err := cache.Get(context.Background(), "thoroughbred")
	if err != nil {
		t.Fatalf("Get (cached): %v", err)
	}
	if back.calls != 1 {
		t.Fatalf("back.calls = %d after cached Get, want still 1", back.calls)
	}
	if second.RSquared != first.RSquared {
		t.Fatalf("cached RSquared = %v, want %v", second.RSquared, first.RSquared)
	}
}

func TestCachingStorePropagatesNotFound(t *testing.T) {
	client := getTestRedisClient(t)
	back := &fakeStore{rc: RaceCoefficients{RaceType: "thoroughbred"}}
	cache := NewCachingStore(client, back, 0)

	_, err := cache.Get(context.Background(), "greyhound")
	if err == nil {
		t.Fatal("expected an error for an unknown race type")
	}
}
