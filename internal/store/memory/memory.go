// Package memory 是进程内的存储实现，用于本地运行和测试。
// 没有数据库唯一约束可依赖，所以投票的原子性由 mu 保护的比较并设置来保证。
package memory

import (
	"context"
	"sync"
	"time"

	"contesthub/internal/models"
)

type voteKey struct {
	submissionID uint
	userID       uint
}

type Store struct {
	mu            sync.RWMutex
	submissions   map[uint]models.Submission
	votes         map[voteKey]models.Vote
	comments      map[uint]models.Comment
	nextVoteID    uint
	nextCommentID uint
	now           func() time.Time
}

func New() *Store {
	return &Store{
		submissions: make(map[uint]models.Submission),
		votes:       make(map[voteKey]models.Vote),
		comments:    make(map[uint]models.Comment),
		now:         time.Now,
	}
}

// AddSubmission 注册一个外部作品，使投票/评论可以引用它。
func (s *Store) AddSubmission(sub models.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
		sub.UpdatedAt = sub.CreatedAt
	}
	s.submissions[sub.ID] = sub
}

func (s *Store) SubmissionExists(ctx context.Context, id uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.submissions[id]
	return ok, nil
}

// Ping 满足健康检查接口。
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
