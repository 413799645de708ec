// Package store 定义投票和评论的持久化接口，以及各实现共用的哨兵错误。
package store

import (
	"context"
	"errors"

	"contesthub/internal/models"
)

var (
	// ErrNotFound：记录不存在（作品、评论或投票）。
	ErrNotFound = errors.New("not found")
	// ErrConflict：唯一约束冲突，例如同一用户重复投票。
	ErrConflict = errors.New("conflict")
	// ErrParentNotFound：parent_id 指向的评论不存在或不属于同一作品。
	ErrParentNotFound = errors.New("parent not found")
	// ErrNotOwner：修改/删除者不是评论作者。
	ErrNotOwner = errors.New("not owner")
)

// SubmissionRepository 只读：作品由外部系统维护。
type SubmissionRepository interface {
	SubmissionExists(ctx context.Context, id uint) (bool, error)
}

// VoteRepository 是投票账本的持久化。CreateVote/DeleteVote 必须对
// (submission_id, user_id) 原子：并发的重复 CreateVote 只能有一个成功。
type VoteRepository interface {
	// CreateVote 写入一票。已存在返回 ErrConflict，作品不存在返回 ErrNotFound。
	CreateVote(ctx context.Context, vote *models.Vote) error
	// DeleteVote 硬删除一票。不存在返回 ErrNotFound。
	DeleteVote(ctx context.Context, submissionID, userID uint) error
	// CountVotes 实时统计票数，不依赖任何计数缓存。
	CountVotes(ctx context.Context, submissionID uint) (int64, error)
	HasVoted(ctx context.Context, submissionID, userID uint) (bool, error)
}

// CommentRepository 是两层评论树的持久化。
type CommentRepository interface {
	// CreateComment 写入评论并回填 ID/CreatedAt。ParentID 指向回复时，
	// 会被拍平到该回复所属的顶层评论。
	// 可能的错误：ErrParentNotFound、ErrNotFound（作品不存在）。
	CreateComment(ctx context.Context, comment *models.Comment) error
	// UpdateCommentContent 在行锁内校验作者并更新内容。
	// 可能的错误：ErrNotFound、ErrNotOwner。
	UpdateCommentContent(ctx context.Context, id, authorID uint, content string) (*models.Comment, error)
	// DeleteComment 在行锁内校验作者并硬删除；顶层评论连同回复一起删除。
	// 返回所属作品 ID，供调用方失效缓存。
	DeleteComment(ctx context.Context, id, authorID uint) (uint, error)
	CommentByID(ctx context.Context, id uint) (*models.Comment, error)
	// ListTopLevel 返回一页顶层评论（含全部回复）以及顶层评论总数。
	ListTopLevel(ctx context.Context, p models.ListParams) ([]models.TopLevelComment, int64, error)
}
