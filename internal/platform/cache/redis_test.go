package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := Connect("http://not-redis"); err == nil {
		t.Fatalf("expected error for non redis scheme")
	}
}

func TestConnectPingsServer(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := Connect("redis://" + server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}
