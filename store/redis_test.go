package store

import (
	"os"
	"testing"
)

// getTestRedisURL returns the Redis URL for testing.
func getTestRedisURL() string {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379"
	}
	return url
}

func setupRedis(t *testing.T) *RedisStore {
	t.Helper()

	s, err := NewRedis(getTestRedisURL())
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		ns, _ := s.Namespace("test-ns")
		ns.Clear()
		ns.Close()
		s.Close()
	})
	return s
}

func TestRedisRoundTrip(t *testing.T) {
	s := setupRedis(t)

	ns, err := s.Namespace("test-ns")
	if err != nil {
		t.Fatalf("Namespace() error: %v", err)
	}
	defer ns.Close()

	if err := ns.PutString("lat", "45.123456"); err != nil {
		t.Fatalf("PutString() error: %v", err)
	}
	if err := ns.PutUint32("logCount", 50); err != nil {
		t.Fatalf("PutUint32() error: %v", err)
	}

	if got := ns.GetString("lat", ""); got != "45.123456" {
		t.Errorf("GetString() = %q, want %q", got, "45.123456")
	}
	if got := ns.GetUint32("logCount", 0); got != 50 {
		t.Errorf("GetUint32() = %d, want 50", got)
	}
	if got := ns.GetString("missing", "def"); got != "def" {
		t.Errorf("GetString() miss = %q, want default", got)
	}
}

func TestRedisClear(t *testing.T) {
	s := setupRedis(t)

	ns, err := s.Namespace("test-ns")
	if err != nil {
		t.Fatalf("Namespace() error: %v", err)
	}
	defer ns.Close()

	ns.PutUint32("logIndex", 3)
	if err := ns.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if got := ns.GetUint32("logIndex", 0); got != 0 {
		t.Errorf("GetUint32() after Clear = %d, want 0", got)
	}
}

func TestRedisInvalidURL(t *testing.T) {
	if _, err := NewRedis("not-a-url://"); err == nil {
		t.Error("NewRedis() with bad URL should fail")
	}
}
