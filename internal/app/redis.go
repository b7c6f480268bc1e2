package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"taximeter/internal/config"
)

// NewRedisClient connects to the Redis holding the meter's short-lived state:
// settings cache, ride checkpoint, ride lock, last position and idempotency
// keys. With nrApp set, every command becomes a datastore segment of the
// request that issued it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if nrApp != nil {
		client.AddHook(datastoreHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// datastoreHook reports meter Redis traffic to the New Relic transaction
// found in the command context, grouped by key family.
type datastoreHook struct{}

func (datastoreHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (datastoreHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		defer startSegment(ctx, cmd.Name(), collectionOf(cmd)).End()
		return next(ctx, cmd)
	}
}

func (datastoreHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		defer startSegment(ctx, "pipeline", pipelineCollection(cmds)).End()
		return next(ctx, cmds)
	}
}

// startSegment returns a no-op segment when ctx carries no transaction.
func startSegment(ctx context.Context, operation, collection string) *newrelic.DatastoreSegment {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}
	return &newrelic.DatastoreSegment{
		StartTime:  txn.StartSegmentNow(),
		Product:    newrelic.DatastoreRedis,
		Operation:  operation,
		Collection: collection,
	}
}

// collectionOf names the key family a command touches, e.g. "meter" for
// "meter:checkpoint:default".
func collectionOf(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "redis"
	}
	key, ok := args[1].(string)
	if !ok || key == "" {
		return "redis"
	}
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// pipelineCollection is the shared key family of a pipeline, or "mixed".
func pipelineCollection(cmds []redis.Cmder) string {
	if len(cmds) == 0 {
		return "redis"
	}
	family := collectionOf(cmds[0])
	for _, cmd := range cmds[1:] {
		if collectionOf(cmd) != family {
			return "mixed"
		}
	}
	return family
}
