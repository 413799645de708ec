package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"contesthub/internal/config"
	"contesthub/internal/logger"
	"contesthub/internal/metrics"
	"contesthub/internal/models"
	"contesthub/internal/store"
	"contesthub/internal/utils"
)

const (
	SortByCreatedAt = "createdAt"
	OrderAsc        = "asc"
	OrderDesc       = "desc"
)

// ListInput 顶层评论分页参数。Page 从 1 开始；PageSize 为 0 时取默认值，
// 超过上限时截断到上限。
type ListInput struct {
	SubmissionID uint
	Page         int
	PageSize     int
	SortBy       string
	Order        string
}

// CreateInput 发表评论或回复。ParentID 指向回复时会被挂到它的顶层评论下。
type CreateInput struct {
	SubmissionID uint
	AuthorID     uint
	Content      string
	ParentID     *uint
}

// CommentStore 两层评论树：顶层评论分页，回复整体挂在顶层评论下。
// 任何变更之后调用方都应丢弃已取到的页并重新取第 1 页，
// 服务端的分页缓存也按作品整体失效。
type CommentStore struct {
	comments    store.CommentRepository
	submissions store.SubmissionRepository
	limits      config.LimitsConfig
	cache       *PageCache
	metrics     *metrics.Metrics
}

func NewCommentStore(
	comments store.CommentRepository,
	submissions store.SubmissionRepository,
	limits config.LimitsConfig,
	cache *PageCache,
	m *metrics.Metrics,
) *CommentStore {
	return &CommentStore{
		comments:    comments,
		submissions: submissions,
		limits:      limits,
		cache:       cache,
		metrics:     m,
	}
}

// List 返回一页顶层评论。页码超过最后一页时返回空列表，Pages 仍是总页数。
func (s *CommentStore) List(ctx context.Context, in ListInput) (models.CommentPage, error) {
	const op = "services/comments/List"
	lg := logger.From(ctx).With("op", op, "submission_id", in.SubmissionID, "page", in.Page)

	if in.SubmissionID == 0 || in.Page < 1 || in.PageSize < 0 {
		lg.Warn("invalid argument: submission/page/size")
		return models.CommentPage{}, fmt.Errorf("%s: %w", op, ErrValidation)
	}
	if in.SortBy != "" && in.SortBy != SortByCreatedAt {
		lg.Warn("invalid argument: sortBy", "sort_by", in.SortBy)
		return models.CommentPage{}, fmt.Errorf("%s: %w", op, ErrValidation)
	}
	desc := true
	switch strings.ToLower(in.Order) {
	case "", OrderDesc:
	case OrderAsc:
		desc = false
	default:
		lg.Warn("invalid argument: order", "order", in.Order)
		return models.CommentPage{}, fmt.Errorf("%s: %w", op, ErrValidation)
	}
	size := s.pageSize(in.PageSize)

	gen, cacheable := s.cache.Generation(ctx, in.SubmissionID)
	if cacheable {
		if page, ok := s.cache.Get(in.SubmissionID, gen, in.Page, size, desc); ok {
			return page, nil
		}
	}

	ok, err := s.submissions.SubmissionExists(ctx, in.SubmissionID)
	if err != nil {
		lg.Error("submission lookup failed", "err", err)
		return models.CommentPage{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}
	if !ok {
		lg.Warn("submission not found")
		return models.CommentPage{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	items, total, err := s.comments.ListTopLevel(ctx, models.ListParams{
		SubmissionID: in.SubmissionID,
		Offset:       utils.Offset(in.Page, size),
		Limit:        size,
		Desc:         desc,
	})
	if err != nil {
		lg.Error("list comments failed", "err", err)
		return models.CommentPage{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}
	if items == nil {
		items = []models.TopLevelComment{}
	}
	for i := range items {
		if items[i].Replies == nil {
			items[i].Replies = []models.Comment{}
		}
	}

	page := models.CommentPage{
		Items:    items,
		Pages:    utils.TotalPages(total, size),
		Page:     in.Page,
		PageSize: size,
		Total:    total,
	}
	if cacheable {
		s.cache.Set(in.SubmissionID, gen, in.Page, size, desc, page)
	}
	return page, nil
}

// Create 发表顶层评论或回复。
//
// 错误：
//   - ErrValidation：内容为空（去标签、去空白后）或超长；
//   - ErrNotFound：作品不存在，或 parent 不是同一作品下的评论。
func (s *CommentStore) Create(ctx context.Context, in CreateInput) (*models.Comment, error) {
	const op = "services/comments/Create"
	lg := logger.From(ctx).With("op", op, "submission_id", in.SubmissionID, "user_id", in.AuthorID)

	if in.SubmissionID == 0 || in.AuthorID == 0 {
		lg.Warn("invalid argument: empty submission or author")
		s.metrics.ObserveComment("create", metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%s: %w", op, ErrValidation)
	}
	if in.ParentID != nil && *in.ParentID == 0 {
		in.ParentID = nil
	}

	content, err := s.cleanContent(in.Content)
	if err != nil {
		lg.Warn("invalid content", "err", err)
		s.metrics.ObserveComment("create", metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c := &models.Comment{
		SubmissionID: in.SubmissionID,
		UserID:       in.AuthorID,
		ParentID:     in.ParentID,
		Content:      content,
	}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		switch {
		case errors.Is(err, store.ErrParentNotFound):
			lg.Warn("parent not found", "parent_id", *in.ParentID)
			s.metrics.ObserveComment("create", metrics.OutcomeNotFound)
			return nil, fmt.Errorf("%s: parent: %w", op, ErrNotFound)
		case errors.Is(err, store.ErrNotFound):
			lg.Warn("submission not found")
			s.metrics.ObserveComment("create", metrics.OutcomeNotFound)
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		default:
			lg.Error("create comment failed", "err", err)
			s.metrics.ObserveComment("create", metrics.OutcomeError)
			return nil, fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}

	s.cache.Invalidate(ctx, c.SubmissionID)
	s.metrics.ObserveComment("create", metrics.OutcomeOK)
	return c, nil
}

// Update 修改评论内容，仅作者本人可改。先判断评论是否存在、是否本人，
// 再校验内容：非作者无论提交什么都得到 ErrForbidden。
func (s *CommentStore) Update(ctx context.Context, commentID, authorID uint, content string) (*models.Comment, error) {
	const op = "services/comments/Update"
	lg := logger.From(ctx).With("op", op, "comment_id", commentID, "user_id", authorID)

	if commentID == 0 || authorID == 0 {
		s.metrics.ObserveComment("update", metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%s: %w", op, ErrValidation)
	}

	existing, err := s.comments.CommentByID(ctx, commentID)
	if err != nil {
		return nil, s.mutationError(ctx, op, "update", err)
	}
	if existing.UserID != authorID {
		return nil, s.mutationError(ctx, op, "update", store.ErrNotOwner)
	}

	cleaned, err := s.cleanContent(content)
	if err != nil {
		lg.Warn("invalid content", "err", err)
		s.metrics.ObserveComment("update", metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// 存储层在同一事务里再核对一次作者，防止读到之后评论被删
	c, err := s.comments.UpdateCommentContent(ctx, commentID, authorID, cleaned)
	if err != nil {
		return nil, s.mutationError(ctx, op, "update", err)
	}

	s.cache.Invalidate(ctx, c.SubmissionID)
	s.metrics.ObserveComment("update", metrics.OutcomeOK)
	return c, nil
}

// Delete 删除评论，仅作者本人可删。删除顶层评论会连同其回复一起删除。
func (s *CommentStore) Delete(ctx context.Context, commentID, authorID uint) error {
	const op = "services/comments/Delete"

	if commentID == 0 || authorID == 0 {
		s.metrics.ObserveComment("delete", metrics.OutcomeInvalid)
		return fmt.Errorf("%s: %w", op, ErrValidation)
	}

	submissionID, err := s.comments.DeleteComment(ctx, commentID, authorID)
	if err != nil {
		return s.mutationError(ctx, op, "delete", err)
	}

	s.cache.Invalidate(ctx, submissionID)
	s.metrics.ObserveComment("delete", metrics.OutcomeOK)
	return nil
}

func (s *CommentStore) mutationError(ctx context.Context, op, action string, err error) error {
	lg := logger.From(ctx).With("op", op)
	switch {
	case errors.Is(err, store.ErrNotFound):
		lg.Warn("comment not found")
		s.metrics.ObserveComment(action, metrics.OutcomeNotFound)
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrNotOwner):
		lg.Warn("not the author")
		s.metrics.ObserveComment(action, metrics.OutcomeDenied)
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	default:
		lg.Error("comment mutation failed", "err", err)
		s.metrics.ObserveComment(action, metrics.OutcomeError)
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}
}

func (s *CommentStore) cleanContent(raw string) (string, error) {
	content := utils.CleanContent(raw)
	if content == "" {
		return "", fmt.Errorf("empty content: %w", ErrValidation)
	}
	if limit := s.limits.MaxContentLength; limit > 0 && utils.RuneLen(content) > limit {
		return "", fmt.Errorf("content longer than %d characters: %w", limit, ErrValidation)
	}
	return content, nil
}

func (s *CommentStore) pageSize(requested int) int {
	size := requested
	if size == 0 {
		size = s.limits.DefaultPageSize
	}
	if size <= 0 {
		size = 10
	}
	if limit := s.limits.MaxPageSize; limit > 0 && size > limit {
		size = limit
	}
	return size
}
