package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "bank_reviews/internal/adapters/redis"
	"bank_reviews/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "t:")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	var miss []domain.BankStats
	if ok, err := c.Get(ctx, "stats:*", &miss); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	in := []domain.BankStats{{Bank: "CIH Bank", City: "Rabat", Branches: 2, Reviews: 7, AvgRating: 3.5}}
	if err := c.Set(ctx, "stats:*", in, 60); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("t:stats:*") {
		t.Fatal("key should carry the prefix")
	}

	var out []domain.BankStats
	ok, err := c.Get(ctx, "stats:*", &out)
	if err != nil || !ok {
		t.Fatalf("hit: ok=%v err=%v", ok, err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("round trip: %+v", out)
	}

	if err := c.Del(ctx, "stats:*"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.Get(ctx, "stats:*", &out); ok {
		t.Fatal("deleted key still served")
	}
}

func TestCache_TTL(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", 30); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(31 * time.Second)
	var s string
	if ok, _ := c.Get(ctx, "k", &s); ok {
		t.Fatal("expired key still served")
	}
}

func TestCache_UndecodableIsMiss(t *testing.T) {
	c, mr := newCache(t)
	if err := mr.Set("t:k", "not json"); err != nil {
		t.Fatal(err)
	}
	var out []domain.BankStats
	ok, err := c.Get(context.Background(), "k", &out)
	if ok || err == nil {
		t.Fatalf("want miss with error, got ok=%v err=%v", ok, err)
	}
}
