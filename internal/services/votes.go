package services

import (
	"context"
	"errors"
	"fmt"

	"contesthub/internal/logger"
	"contesthub/internal/metrics"
	"contesthub/internal/models"
	"contesthub/internal/store"
)

// VoteLedger 记录“某用户是否给某作品投过票”。票数总是实时 COUNT，
// 不维护计数列，所以不会和投票记录漂移。
type VoteLedger struct {
	votes       store.VoteRepository
	submissions store.SubmissionRepository
	metrics     *metrics.Metrics
}

func NewVoteLedger(votes store.VoteRepository, submissions store.SubmissionRepository, m *metrics.Metrics) *VoteLedger {
	return &VoteLedger{votes: votes, submissions: submissions, metrics: m}
}

// Count 返回作品当前票数。作品不存在时返回 ErrNotFound。
func (l *VoteLedger) Count(ctx context.Context, submissionID uint) (int64, error) {
	const op = "services/votes/Count"
	lg := logger.From(ctx).With("op", op, "submission_id", submissionID)

	if submissionID == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrValidation)
	}
	if err := l.requireSubmission(ctx, submissionID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := l.votes.CountVotes(ctx, submissionID)
	if err != nil {
		lg.Error("count votes failed", "err", err)
		return 0, fmt.Errorf("%s: %w", op, ErrInternal)
	}
	return n, nil
}

func (l *VoteLedger) Status(ctx context.Context, submissionID, userID uint) (bool, error) {
	const op = "services/votes/Status"
	lg := logger.From(ctx).With("op", op, "submission_id", submissionID, "user_id", userID)

	if submissionID == 0 || userID == 0 {
		return false, fmt.Errorf("%s: %w", op, ErrValidation)
	}
	if err := l.requireSubmission(ctx, submissionID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	voted, err := l.votes.HasVoted(ctx, submissionID, userID)
	if err != nil {
		lg.Error("vote status failed", "err", err)
		return false, fmt.Errorf("%s: %w", op, ErrInternal)
	}
	return voted, nil
}

// Cast 投一票。已投过返回 ErrConflict；并发的重复投票由存储层的唯一约束
// 裁决，只有一个能成功。
func (l *VoteLedger) Cast(ctx context.Context, submissionID, userID uint) (models.VoteSummary, error) {
	const op = "services/votes/Cast"
	lg := logger.From(ctx).With("op", op, "submission_id", submissionID, "user_id", userID)

	if submissionID == 0 || userID == 0 {
		l.metrics.ObserveVote("cast", metrics.OutcomeInvalid)
		return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrValidation)
	}

	err := l.votes.CreateVote(ctx, &models.Vote{SubmissionID: submissionID, UserID: userID})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			lg.Warn("already voted")
			l.metrics.ObserveVote("cast", metrics.OutcomeConflict)
			return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrConflict)
		case errors.Is(err, store.ErrNotFound):
			lg.Warn("submission not found")
			l.metrics.ObserveVote("cast", metrics.OutcomeNotFound)
			return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		default:
			lg.Error("create vote failed", "err", err)
			l.metrics.ObserveVote("cast", metrics.OutcomeError)
			return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}
	l.metrics.ObserveVote("cast", metrics.OutcomeOK)

	return l.summary(ctx, op, submissionID, true)
}

// Cancel 撤回一票。没有投过返回 ErrNotFound。
func (l *VoteLedger) Cancel(ctx context.Context, submissionID, userID uint) (models.VoteSummary, error) {
	const op = "services/votes/Cancel"
	lg := logger.From(ctx).With("op", op, "submission_id", submissionID, "user_id", userID)

	if submissionID == 0 || userID == 0 {
		l.metrics.ObserveVote("cancel", metrics.OutcomeInvalid)
		return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrValidation)
	}

	if err := l.votes.DeleteVote(ctx, submissionID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			lg.Warn("no vote to cancel")
			l.metrics.ObserveVote("cancel", metrics.OutcomeNotFound)
			return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		lg.Error("delete vote failed", "err", err)
		l.metrics.ObserveVote("cancel", metrics.OutcomeError)
		return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}
	l.metrics.ObserveVote("cancel", metrics.OutcomeOK)

	return l.summary(ctx, op, submissionID, false)
}

// summary 在变更成功后重新统计票数。统计失败不回滚已经生效的变更。
func (l *VoteLedger) summary(ctx context.Context, op string, submissionID uint, voted bool) (models.VoteSummary, error) {
	n, err := l.votes.CountVotes(ctx, submissionID)
	if err != nil {
		logger.From(ctx).Error("recount after mutation failed", "op", op, "submission_id", submissionID, "err", err)
		return models.VoteSummary{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}
	return models.VoteSummary{Voted: voted, Count: n}, nil
}

func (l *VoteLedger) requireSubmission(ctx context.Context, submissionID uint) error {
	ok, err := l.submissions.SubmissionExists(ctx, submissionID)
	if err != nil {
		logger.From(ctx).Error("submission lookup failed", "submission_id", submissionID, "err", err)
		return ErrInternal
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
