package postgres

import (
	"context"
	"fmt"

	"contesthub/internal/models"
	"contesthub/internal/store"
)

func (s *Store) CreateVote(ctx context.Context, vote *models.Vote) error {
	if err := s.db.WithContext(ctx).Omit("Submission").Create(vote).Error; err != nil {
		switch {
		case isUniqueViolation(err):
			return store.ErrConflict
		case isForeignKeyViolation(err):
			return store.ErrNotFound
		}
		return fmt.Errorf("create vote: %w", err)
	}
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, submissionID, userID uint) error {
	res := s.db.WithContext(ctx).
		Where("submission_id = ? AND user_id = ?", submissionID, userID).
		Delete(&models.Vote{})
	if res.Error != nil {
		return fmt.Errorf("delete vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountVotes(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("submission_id = ?", submissionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

func (s *Store) HasVoted(ctx context.Context, submissionID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("submission_id = ? AND user_id = ?", submissionID, userID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("vote status: %w", err)
	}
	return count > 0, nil
}
