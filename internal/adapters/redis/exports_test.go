package redisad_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "app_reviews/internal/adapters/redis"
)

func newStore(t *testing.T) (*redisad.ExportStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestExportStore_PutGet(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "exports:google:a.b:csv"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := []byte("author,rating\n\xea\xb9\x80,5\n")
	if err := s.Put(ctx, "exports:google:a.b:csv", want, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "exports:google:a.b:csv")
	if err != nil || !ok || !bytes.Equal(got, want) {
		t.Fatalf("get = %q %v %v", got, ok, err)
	}
}

func TestExportStore_Expires(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("x"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("buffer should have expired")
	}
}

func TestExportStore_ConnectionError(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	s := redisad.New(addr, "", 0)
	t.Cleanup(func() { _ = s.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
