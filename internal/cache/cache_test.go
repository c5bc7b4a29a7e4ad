package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/crimson-sun/predictor/internal/model"
)

func prediction(home, away string) model.MatchPrediction {
	return model.MatchPrediction{HomeTeam: home, AwayTeam: away, Winner: model.WinnerDraw, Confidence: 33.33, HomeScore: 1, AwayScore: 1}
}

func TestLocalExpiry(t *testing.T) {
	c := NewLocal(time.Minute, 10)
	defer c.Close()
	now := time.Date(2024, 6, 14, 21, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", prediction("Germany", "Scotland"))
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after TTL")
	}
	c.removeExpired()
	if c.Len() != 0 {
		t.Errorf("expired entry not swept, len = %d", c.Len())
	}
	if got := c.HitRate(); got != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", got)
	}
}

func TestLocalMaxSize(t *testing.T) {
	c := NewLocal(time.Minute, 2)
	defer c.Close()

	c.Set("a", prediction("A", "B"))
	c.Set("b", prediction("C", "D"))
	c.Set("b", prediction("C", "D")) // overwrite does not evict
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	c.Set("c", prediction("E", "F"))
	if c.Len() != 2 {
		t.Errorf("len = %d after eviction, want 2", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry missing")
	}
}

func TestKeyNormalisation(t *testing.T) {
	c := New("v1", time.Minute)
	defer c.Close()

	a := model.MatchRequest{HomeTeam: "Curac\u0327ao", AwayTeam: "France"}
	b := model.MatchRequest{HomeTeam: "Cura\u00e7ao", AwayTeam: "France", Tournament: "Unknown"}
	if c.Key(a) != c.Key(b) {
		t.Errorf("keys differ:\n%q\n%q", c.Key(a), c.Key(b))
	}

	swapped := model.MatchRequest{HomeTeam: "France", AwayTeam: "Cura\u00e7ao"}
	if c.Key(a) == c.Key(swapped) {
		t.Error("home and away must not be interchangeable")
	}

	other := New("v2", time.Minute)
	defer other.Close()
	if c.Key(a) == other.Key(a) {
		t.Error("key must include the model version")
	}
}

func TestGetSetLocalOnly(t *testing.T) {
	c := New("v1", time.Minute)
	defer c.Close()
	ctx := context.Background()
	req := model.MatchRequest{HomeTeam: "Spain", AwayTeam: "Italy", City: "Gelsenkirchen"}

	if _, level, ok := c.Get(ctx, req); ok || level != LevelMiss {
		t.Fatalf("expected miss, got level %s", level)
	}
	c.Set(ctx, req, prediction("Spain", "Italy"))

	got, level, ok := c.Get(ctx, req)
	if !ok || level != LevelL1 {
		t.Fatalf("expected L1 hit, got ok=%v level=%s", ok, level)
	}
	if got.HomeTeam != "Spain" {
		t.Errorf("got %+v", got)
	}

	stats := c.Stats(ctx)
	if stats.Backend != "local" || stats.Entries != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRedisLevel(t *testing.T) {
	addr := os.Getenv("PREDICTOR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PREDICTOR_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := NewRedis(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	writer := New("redis-test", time.Minute, WithRedis(client))
	defer writer.Close()

	req := model.MatchRequest{HomeTeam: "Netherlands", AwayTeam: "France"}
	writer.Set(ctx, req, prediction("Netherlands", "France"))
	defer client.Del(ctx, writer.Key(req))

	// A second instance shares only the L2.
	client2, err := NewRedis(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	reader := New("redis-test", time.Minute, WithRedis(client2))
	defer reader.Close()

	got, level, ok := reader.Get(ctx, req)
	if !ok || level != LevelL2 {
		t.Fatalf("expected L2 hit, got ok=%v level=%s", ok, level)
	}
	if got.AwayTeam != "France" {
		t.Errorf("got %+v", got)
	}
	if _, level, _ := reader.Get(ctx, req); level != LevelL1 {
		t.Errorf("L2 hit not promoted to L1, level = %s", level)
	}
	if !reader.Stats(ctx).RedisReady {
		t.Error("expected redis ready")
	}
}
