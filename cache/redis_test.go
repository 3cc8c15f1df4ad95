package cache

import (
	"context"
	"testing"
	"time"
)

func TestNilClientDegradesGracefully(t *testing.T) {
	var c *RedisClient

	if err := c.Set(context.Background(), "k", "v", time.Minute); err == nil {
		t.Fatal("expected error from nil client on Set")
	}

	var dest string
	if err := c.Get(context.Background(), "k", &dest); err == nil {
		t.Fatal("expected error from nil client on Get")
	}

	if err := c.Delete(context.Background(), "k"); err == nil {
		t.Fatal("expected error from nil client on Delete")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil client should be a no-op, got %v", err)
	}
}
