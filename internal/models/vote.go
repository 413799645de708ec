package models

import (
	"time"
)

// Vote 用户对作品的一票。存在即“已投票”，取消时硬删除。
// (submission_id, user_id) 唯一索引保证同一用户对同一作品最多一票。
type Vote struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SubmissionID uint       `gorm:"not null;uniqueIndex:idx_vote_submission_user,priority:1" json:"submissionId"`
	Submission   Submission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_vote_submission_user,priority:2;index" json:"userId"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// VoteSummary is what the vote endpoints return after a mutation.
type VoteSummary struct {
	Voted bool  `json:"voted"`
	Count int64 `json:"count"`
}
