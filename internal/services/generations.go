package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Generations 作品评论的代数计数器。多实例部署时必须共享，
// 否则一个实例上的变更不会让其他实例的缓存页失效。
type Generations interface {
	Current(ctx context.Context, submissionID uint) (uint64, error)
	Bump(ctx context.Context, submissionID uint) error
}

// LocalGenerations 进程内计数，只适合单实例（内存存储）。
type LocalGenerations struct {
	mu   sync.Mutex
	gens map[uint]uint64
}

func NewLocalGenerations() *LocalGenerations {
	return &LocalGenerations{gens: make(map[uint]uint64)}
}

func (g *LocalGenerations) Current(_ context.Context, submissionID uint) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[submissionID], nil
}

func (g *LocalGenerations) Bump(_ context.Context, submissionID uint) error {
	g.mu.Lock()
	g.gens[submissionID]++
	g.mu.Unlock()
	return nil
}

// RedisGenerations 用 INCR comments:gen:<id> 在实例间共享代数。
// 键过期后代数从 0 重新开始，所以 keyTTL 必须比缓存页的 TTL 长，
// 旧代数下的页那时早已过期。
type RedisGenerations struct {
	client *redis.Client
	keyTTL time.Duration
}

func NewRedisGenerations(client *redis.Client, keyTTL time.Duration) *RedisGenerations {
	return &RedisGenerations{client: client, keyTTL: keyTTL}
}

func generationKey(submissionID uint) string {
	return "comments:gen:" + strconv.FormatUint(uint64(submissionID), 10)
}

func (g *RedisGenerations) Current(ctx context.Context, submissionID uint) (uint64, error) {
	n, err := g.client.Get(ctx, generationKey(submissionID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read comment generation: %w", err)
	}
	return n, nil
}

func (g *RedisGenerations) Bump(ctx context.Context, submissionID uint) error {
	key := generationKey(submissionID)
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, g.keyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("bump comment generation: %w", err)
	}
	return nil
}
