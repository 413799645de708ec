package memory

import (
	"context"

	"contesthub/internal/models"
	"contesthub/internal/store"
)

func (s *Store) CreateVote(ctx context.Context, vote *models.Vote) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.submissions[vote.SubmissionID]; !ok {
		return store.ErrNotFound
	}

	key := voteKey{submissionID: vote.SubmissionID, userID: vote.UserID}
	if _, exists := s.votes[key]; exists {
		return store.ErrConflict
	}

	s.nextVoteID++
	vote.ID = s.nextVoteID
	vote.CreatedAt = s.now()
	s.votes[key] = *vote
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, submissionID, userID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{submissionID: submissionID, userID: userID}
	if _, exists := s.votes[key]; !exists {
		return store.ErrNotFound
	}
	delete(s.votes, key)
	return nil
}

func (s *Store) CountVotes(ctx context.Context, submissionID uint) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for k := range s.votes {
		if k.submissionID == submissionID {
			n++
		}
	}
	return n, nil
}

func (s *Store) HasVoted(ctx context.Context, submissionID, userID uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.votes[voteKey{submissionID: submissionID, userID: userID}]
	return ok, nil
}
