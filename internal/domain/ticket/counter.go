package ticket

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Counter hands out the per-type senha numbers.
type Counter interface {
	Next(ctx context.Context, t Type) (int64, error)
}

type repoCounter struct {
	repo Repository
}

// NewRepoCounter counts in the ticket repository.
func NewRepoCounter(repo Repository) Counter {
	return &repoCounter{repo: repo}
}

func (c *repoCounter) Next(ctx context.Context, t Type) (int64, error) {
	return c.repo.NextNumber(ctx, t)
}

// nextAboveFloor raises the key to ARGV[1] before incrementing, so a flushed
// Redis never hands out a number already stored.
var nextAboveFloor = redis.NewScript(`
	local floor = tonumber(ARGV[1])
	local current = tonumber(redis.call('GET', KEYS[1]) or 0)
	if current < floor then
		redis.call('SET', KEYS[1], floor)
	end
	return redis.call('INCR', KEYS[1])
`)

// RedisCounter shares the counters between server replicas.
type RedisCounter struct {
	client *redis.Client
	repo   Repository
	prefix string
}

func NewRedisCounter(client *redis.Client, repo Repository) *RedisCounter {
	return &RedisCounter{client: client, repo: repo, prefix: "siah:ticket:counter:"}
}

func (c *RedisCounter) Next(ctx context.Context, t Type) (int64, error) {
	floor, err := c.repo.MaxNumber(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("read highest %s ticket: %w", t, err)
	}
	n, err := nextAboveFloor.Run(ctx, c.client, []string{c.prefix + string(t)}, floor).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis ticket counter: %w", err)
	}
	return n, nil
}
