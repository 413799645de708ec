package memory

import (
	"context"
	"sort"

	"contesthub/internal/models"
	"contesthub/internal/store"
)

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.submissions[comment.SubmissionID]; !ok {
		return store.ErrNotFound
	}

	if comment.ParentID != nil {
		parent, ok := s.comments[*comment.ParentID]
		if !ok || parent.SubmissionID != comment.SubmissionID {
			return store.ErrParentNotFound
		}
		// 回复的回复拍平到顶层评论下
		if parent.IsReply() {
			top := *parent.ParentID
			comment.ParentID = &top
		}
	}

	s.nextCommentID++
	comment.ID = s.nextCommentID
	comment.CreatedAt = s.now()
	comment.UpdatedAt = comment.CreatedAt
	comment.Replies = nil
	s.comments[comment.ID] = *comment
	return nil
}

func (s *Store) UpdateCommentContent(ctx context.Context, id, authorID uint, content string) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.UserID != authorID {
		return nil, store.ErrNotOwner
	}

	c.Content = content
	c.UpdatedAt = s.now()
	s.comments[id] = c
	return &c, nil
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID uint) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if c.UserID != authorID {
		return 0, store.ErrNotOwner
	}

	if !c.IsReply() {
		for rid, r := range s.comments {
			if r.ParentID != nil && *r.ParentID == id {
				delete(s.comments, rid)
			}
		}
	}
	delete(s.comments, id)
	return c.SubmissionID, nil
}

func (s *Store) CommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListTopLevel(ctx context.Context, p models.ListParams) ([]models.TopLevelComment, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var tops []models.Comment
	replies := make(map[uint][]models.Comment)
	for _, c := range s.comments {
		if c.SubmissionID != p.SubmissionID {
			continue
		}
		if !c.IsReply() {
			tops = append(tops, c)
		} else {
			replies[*c.ParentID] = append(replies[*c.ParentID], c)
		}
	}

	sort.Slice(tops, func(i, j int) bool {
		if p.Desc {
			return newer(tops[i], tops[j])
		}
		return newer(tops[j], tops[i])
	})

	total := int64(len(tops))
	if p.Offset >= len(tops) {
		return []models.TopLevelComment{}, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(tops) {
		end = len(tops)
	}

	items := make([]models.TopLevelComment, 0, end-p.Offset)
	for _, top := range tops[p.Offset:end] {
		rs := replies[top.ID]
		sort.Slice(rs, func(i, j int) bool { return newer(rs[j], rs[i]) })
		if rs == nil {
			rs = []models.Comment{}
		}
		items = append(items, models.TopLevelComment{Comment: top, Replies: rs})
	}
	return items, total, nil
}

// newer 按 (created_at, id) 比较，id 保证顺序全序
func newer(a, b models.Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
