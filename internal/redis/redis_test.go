package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/go-redis/redis/v8"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	return &Client{client: rdb, log: log}, mr, context.Background()
}

func TestConnectSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.RedisConfig{Host: "127.0.0.1", Port: mr.Port(), DB: 0}

	client, err := Connect(cfg, log)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.RedisConfig{Host: "127.0.0.1", Port: "0", DB: 0}
	if _, err := Connect(cfg, log); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestCloseNil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Fatalf("expected nil error on nil client close, got %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	if key := GenerateKey("stats", "store", "7", "30"); key != "stats:store:7:30" {
		t.Fatalf("unexpected key: %s", key)
	}
	if key := GenerateKey("lock"); key != "lock" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestSetGet(t *testing.T) {
	client, mr, ctx := newTestClient(t)

	type payload struct {
		Value string
	}

	val := payload{Value: "data"}
	if err := client.Set(ctx, "key1", val, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got payload
	if err := client.Get(ctx, "key1", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Value != val.Value {
		t.Fatalf("unexpected value: %+v", got)
	}

	if ttl := mr.TTL("key1"); ttl != time.Minute {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
}

func TestGetMissingKey(t *testing.T) {
	client, _, ctx := newTestClient(t)
	var dest struct{}
	err := client.Get(ctx, "absent", &dest)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestDeleteByPrefix(t *testing.T) {
	client, mr, ctx := newTestClient(t)

	_ = mr.Set("stats:1", "a")
	_ = mr.Set("stats:2", "b")
	_ = mr.Set("other:3", "c")

	if err := client.DeleteByPrefix(ctx, "stats"); err != nil {
		t.Fatalf("delete by prefix failed: %v", err)
	}

	if mr.Exists("stats:1") || mr.Exists("stats:2") {
		t.Fatalf("expected stats keys removed")
	}
	if !mr.Exists("other:3") {
		t.Fatalf("expected other key kept")
	}
}

func TestGetIntAndTTL(t *testing.T) {
	client, mr, ctx := newTestClient(t)

	client.client.Set(ctx, "counter", 5, 2*time.Second)

	val, err := client.GetInt(ctx, "counter")
	if err != nil {
		t.Fatalf("get int failed: %v", err)
	}
	if val != 5 {
		t.Fatalf("unexpected int value: %d", val)
	}

	ttl, err := client.TTL(ctx, "counter")
	if err != nil {
		t.Fatalf("ttl failed: %v", err)
	}
	if ttl <= 0 {
		t.Fatalf("expected positive ttl, got %v", ttl)
	}

	mr.FastForward(3 * time.Second)
	if _, err := client.GetInt(ctx, "counter"); err == nil {
		t.Fatalf("expected error for expired key")
	}
}

func TestIncrAndExpire(t *testing.T) {
	client, mr, ctx := newTestClient(t)
	val, err := client.Incr(ctx, "hits")
	if err != nil || val != 1 {
		t.Fatalf("expected incr to 1, got %d err=%v", val, err)
	}
	if err := client.Expire(ctx, "hits", time.Second); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, err := client.GetInt(ctx, "hits"); err == nil {
		t.Fatalf("expected key expired")
	}
}

func TestHealth(t *testing.T) {
	client, _, ctx := newTestClient(t)
	if err := client.Health(ctx); err != nil {
		t.Fatalf("health failed: %v", err)
	}
}

func TestHealth_Nil(t *testing.T) {
	var client *Client
	if err := client.Health(context.Background()); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestAcquireAndReleaseLock(t *testing.T) {
	client, mr, ctx := newTestClient(t)
	key := GenerateKey(KeyPrefixLock, "job", "expiry_cleanup")

	ok, err := client.AcquireLock(ctx, key, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock acquired, ok=%v err=%v", ok, err)
	}

	ok, err = client.AcquireLock(ctx, key, "owner-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}

	// чужой токен не снимает блокировку
	if err := client.ReleaseLock(ctx, key, "owner-b"); err != nil {
		t.Fatalf("release by stranger failed: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatalf("expected lock kept after foreign release")
	}

	if err := client.ReleaseLock(ctx, key, "owner-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected lock removed")
	}
}

func TestAcquireLock_ExpiresWithTTL(t *testing.T) {
	client, mr, ctx := newTestClient(t)
	key := GenerateKey(KeyPrefixLock, "job", "activation_scan")

	if ok, _ := client.AcquireLock(ctx, key, "a", time.Second); !ok {
		t.Fatalf("expected lock acquired")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := client.AcquireLock(ctx, key, "b", time.Second); !ok {
		t.Fatalf("expected lock free after ttl")
	}
}
