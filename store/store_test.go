package store

import (
	"context"
	"os"
	"testing"

	"github.com/rushteam/tourkit/config"
	"github.com/rushteam/tourkit/core"
)

// exerciseHashStore 对任意 HashStore 实现跑同一组断言
func exerciseHashStore(t *testing.T, s core.HashStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get(missing) err = %v, want not found", err)
	}
	if err := s.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get(ctx, "a"); err != nil || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v", v, err)
	}
	if err := s.BatchSet(ctx, map[string][]byte{"b": []byte("2"), "c": []byte("3")}); err != nil {
		t.Fatal(err)
	}
	got, err := s.BatchGet(ctx, []string{"a", "b", "zz"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || string(got["b"]) != "2" {
		t.Fatalf("BatchGet = %v", got)
	}

	if err := s.HSet(ctx, "h", "f1", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.HSet(ctx, "h", "f2", []byte("y")); err != nil {
		t.Fatal(err)
	}
	all, err := s.HGetAll(ctx, "h")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || string(all["f1"]) != "x" || string(all["f2"]) != "y" {
		t.Fatalf("HGetAll = %v", all)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "a"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get after Delete err = %v", err)
	}
	if err := s.Delete(ctx, "h"); err != nil {
		t.Fatal(err)
	}
	if all, _ := s.HGetAll(ctx, "h"); len(all) != 0 {
		t.Fatalf("HGetAll after Delete = %v", all)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseHashStore(t, s)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf)
	buf[0] = 'z'
	v, _ := s.Get(ctx, "k")
	if string(v) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %q", v)
	}
}

func TestBadgerStoreInMemory(t *testing.T) {
	s, err := OpenBadgerStore("")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseHashStore(t, s)
}

func TestBadgerStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBadgerStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenBadgerStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, err := s.Get(context.Background(), "k"); err != nil || string(v) != "v" {
		t.Fatalf("reopened Get = %q, %v", v, err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TOURKIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOURKIT_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), addr, "", 15)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer s.Close()
	exerciseHashStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		cfg  config.StoreConfig
		name string
	}{
		{config.StoreConfig{Backend: "memory"}, "memory"},
		{config.StoreConfig{Backend: "badger", Badger: config.BadgerConfig{InMemory: true}}, "badger"},
	}
	for _, tt := range tests {
		s, err := Open(ctx, tt.cfg)
		if err != nil {
			t.Fatalf("Open(%s) error: %v", tt.cfg.Backend, err)
		}
		if s.Name() != tt.name {
			t.Errorf("Name() = %s, want %s", s.Name(), tt.name)
		}
		_ = s.Close()
	}
	if _, err := Open(ctx, config.StoreConfig{Backend: "etcd"}); !core.IsNotSupported(err) {
		t.Errorf("unknown backend err = %v", err)
	}
}
