package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"bookaudio-server-go/internal/platform/errors"
)

type redisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a ledger over a shared redis instance so quota holds
// across multiple server processes.
func NewRedis(client *redis.Client, prefix string) Ledger {
	if prefix == "" {
		prefix = "bookaudio"
	}
	return &redisLedger{client: client, prefix: prefix}
}

func (l *redisLedger) key(key string) string {
	return l.prefix + ":ledger:" + key
}

func (l *redisLedger) Add(ctx context.Context, key string, amount float64, ttl time.Duration) (float64, error) {
	k := l.key(key)
	pipe := l.client.TxPipeline()
	incr := pipe.IncrByFloat(ctx, k, amount)
	pipe.ExpireNX(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(errors.KindStorage, "ledger.add", "redis increment failed", err)
	}
	return incr.Val(), nil
}

func (l *redisLedger) Get(ctx context.Context, key string) (float64, error) {
	val, err := l.client.Get(ctx, l.key(key)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "ledger.get", "redis read failed", err)
	}
	return val, nil
}

func (l *redisLedger) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "ledger.reset", "redis delete failed", err)
	}
	return nil
}

func (l *redisLedger) Close(_ context.Context) error {
	return l.client.Close()
}
