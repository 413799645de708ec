package services

import (
	"context"
	"fmt"
	"time"

	"contesthub/internal/logger"
	"contesthub/internal/metrics"
	"contesthub/internal/models"
	"contesthub/internal/utils"
)

// PageCache 缓存评论分页结果。键里带作品的“代数”，任何变更都让代数 +1，
// 旧代数下的所有页立即失效，不做增量修补。页本身在进程内，代数由
// Generations 提供；多实例时用 RedisGenerations，其他实例的下一次查询
// 就会读到新代数。
// nil *PageCache 等同于关闭缓存。
type PageCache struct {
	pages   *utils.TTLCache[models.CommentPage]
	ttl     time.Duration
	gens    Generations
	metrics *metrics.Metrics
}

// NewPageCache 返回容量为 size 的缓存；size <= 0 或 ttl <= 0 时返回 nil（关闭）。
// gens 为 nil 时用进程内计数。
func NewPageCache(size int, ttl time.Duration, gens Generations, m *metrics.Metrics) (*PageCache, error) {
	if size <= 0 || ttl <= 0 {
		return nil, nil
	}
	pages, err := utils.NewTTLCache[models.CommentPage](size)
	if err != nil {
		return nil, err
	}
	if gens == nil {
		gens = NewLocalGenerations()
	}
	return &PageCache{
		pages:   pages,
		ttl:     ttl,
		gens:    gens,
		metrics: m,
	}, nil
}

// Generation 返回作品当前的代数。查询前取一次，写缓存时用同一个值，
// 这样查询期间发生的变更会让这次结果落在已失效的代数下。
// 第二个返回值为 false 时本次查询不走缓存（缓存关闭或代数读不到）。
func (c *PageCache) Generation(ctx context.Context, submissionID uint) (uint64, bool) {
	if c == nil {
		return 0, false
	}
	gen, err := c.gens.Current(ctx, submissionID)
	if err != nil {
		logger.From(ctx).Warn("page cache bypassed", "submission_id", submissionID, "err", err)
		return 0, false
	}
	return gen, true
}

// Invalidate 丢弃作品的全部缓存页。变更已经落库，请求被取消也要失效。
func (c *PageCache) Invalidate(ctx context.Context, submissionID uint) {
	if c == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := c.gens.Bump(ctx, submissionID); err != nil {
		logger.From(ctx).Error("page cache invalidate failed", "submission_id", submissionID, "err", err)
	}
}

func (c *PageCache) Get(submissionID uint, gen uint64, page, size int, desc bool) (models.CommentPage, bool) {
	if c == nil {
		return models.CommentPage{}, false
	}
	p, ok := c.pages.Get(pageKey(submissionID, gen, page, size, desc))
	c.metrics.ObserveCache(ok)
	return p, ok
}

func (c *PageCache) Set(submissionID uint, gen uint64, page, size int, desc bool, p models.CommentPage) {
	if c == nil {
		return
	}
	c.pages.Set(pageKey(submissionID, gen, page, size, desc), p, c.ttl)
}

func pageKey(submissionID uint, gen uint64, page, size int, desc bool) string {
	order := "asc"
	if desc {
		order = "desc"
	}
	return fmt.Sprintf("comments:%d:%d:%d:%d:%s", submissionID, gen, page, size, order)
}
