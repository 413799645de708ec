package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contesthub/internal/models"
	"contesthub/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if comment.ParentID != nil {
			// FOR SHARE 防止父评论在插入回复的同时被删除
			var parent models.Comment
			err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
				Where("id = ? AND submission_id = ?", *comment.ParentID, comment.SubmissionID).
				First(&parent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrParentNotFound
			}
			if err != nil {
				return err
			}
			// 回复的回复拍平到顶层评论下
			if parent.IsReply() {
				top := *parent.ParentID
				comment.ParentID = &top
			}
		}

		return tx.Omit("Submission", "Replies").Create(comment).Error
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, store.ErrParentNotFound):
		return err
	case isForeignKeyViolation(err):
		if comment.ParentID != nil {
			return store.ErrParentNotFound
		}
		return store.ErrNotFound
	}
	return fmt.Errorf("create comment: %w", err)
}

// lockOwned 锁定评论行并校验作者
func lockOwned(tx *gorm.DB, id, authorID uint) (*models.Comment, error) {
	var c models.Comment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.UserID != authorID {
		return nil, store.ErrNotOwner
	}
	return &c, nil
}

func (s *Store) UpdateCommentContent(ctx context.Context, id, authorID uint, content string) (*models.Comment, error) {
	var out *models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := lockOwned(tx, id, authorID)
		if err != nil {
			return err
		}

		now := time.Now()
		err = tx.Model(&models.Comment{}).
			Where("id = ?", c.ID).
			Updates(map[string]interface{}{"content": content, "updated_at": now}).Error
		if err != nil {
			return err
		}

		c.Content = content
		c.UpdatedAt = now
		out = c
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotOwner) {
			return nil, err
		}
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID uint) (uint, error) {
	var submissionID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := lockOwned(tx, id, authorID)
		if err != nil {
			return err
		}
		submissionID = c.SubmissionID

		// 外键也是 ON DELETE CASCADE，这里显式删除以免依赖迁移状态
		if !c.IsReply() {
			if err := tx.Where("parent_id = ?", c.ID).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Comment{}, c.ID).Error
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotOwner) {
			return 0, err
		}
		return 0, fmt.Errorf("delete comment: %w", err)
	}
	return submissionID, nil
}

func (s *Store) CommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("comment by id: %w", err)
	}
	return &c, nil
}

func (s *Store) ListTopLevel(ctx context.Context, p models.ListParams) ([]models.TopLevelComment, int64, error) {
	var (
		total   int64
		tops    []models.Comment
		replies []models.Comment
	)

	// 计数和取页在同一快照内完成，保证 pages 与 items 一致
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		base := tx.Model(&models.Comment{}).Where("submission_id = ? AND parent_id IS NULL", p.SubmissionID)
		if err := base.Count(&total).Error; err != nil {
			return err
		}

		err := tx.Where("submission_id = ? AND parent_id IS NULL", p.SubmissionID).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: p.Desc}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: p.Desc}).
			Offset(p.Offset).
			Limit(p.Limit).
			Find(&tops).Error
		if err != nil {
			return err
		}
		if len(tops) == 0 {
			return nil
		}

		ids := make([]uint, len(tops))
		for i, c := range tops {
			ids[i] = c.ID
		}
		return tx.Where("parent_id IN ?", ids).
			Order("created_at ASC").
			Order("id ASC").
			Find(&replies).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}

	grouped := make(map[uint][]models.Comment, len(tops))
	for _, r := range replies {
		grouped[*r.ParentID] = append(grouped[*r.ParentID], r)
	}

	items := make([]models.TopLevelComment, 0, len(tops))
	for _, top := range tops {
		rs := grouped[top.ID]
		if rs == nil {
			rs = []models.Comment{}
		}
		items = append(items, models.TopLevelComment{Comment: top, Replies: rs})
	}
	return items, total, nil
}
