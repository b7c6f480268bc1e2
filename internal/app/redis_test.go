package app

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestCollectionOf(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  redis.Cmder
		want string
	}{
		{"prefixed key", redis.NewStringCmd(ctx, "get", "meter:checkpoint:default"), "meter"},
		{"plain key", redis.NewStringCmd(ctx, "get", "positions"), "positions"},
		{"no key", redis.NewStatusCmd(ctx, "ping"), "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collectionOf(tt.cmd); got != tt.want {
				t.Errorf("collectionOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipelineCollection(t *testing.T) {
	ctx := context.Background()
	checkpoint := redis.NewStringCmd(ctx, "get", "meter:checkpoint:default")
	lock := redis.NewStatusCmd(ctx, "set", "lock:meter:default", "ride-1")

	tests := []struct {
		name string
		cmds []redis.Cmder
		want string
	}{
		{"empty", nil, "redis"},
		{"one family", []redis.Cmder{checkpoint, redis.NewIntCmd(ctx, "del", "meter:checkpoint:default")}, "meter"},
		{"mixed families", []redis.Cmder{checkpoint, lock}, "mixed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pipelineCollection(tt.cmds); got != tt.want {
				t.Errorf("pipelineCollection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStartSegment_WithoutTransaction(t *testing.T) {
	seg := startSegment(context.Background(), "get", "meter")
	if seg != nil {
		t.Fatalf("expected no segment outside a transaction, got %+v", seg)
	}
	// Ending a nil segment must be safe.
	seg.End()
}
