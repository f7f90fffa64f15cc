package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := Open(context.Background(), "redis://"+srv.Addr()+"/0")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer client.Close()
}

func TestOpenRejectsEmptyURL(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestOpenRejectsBadScheme(t *testing.T) {
	if _, err := Open(context.Background(), "http://localhost:6379"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEmbeddedServesCommands(t *testing.T) {
	client, stop, err := Embedded()
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	defer stop()

	ctx := context.Background()
	if err := client.Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := client.Get(ctx, "k").Val(); got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}
