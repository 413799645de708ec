package models

import (
	"time"
)

// Comment 作品下的评论。ParentID 为空是顶层评论，否则是对某条顶层评论的回复。
// 回复只有一层：存储的 ParentID 永远指向顶层评论。
type Comment struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SubmissionID uint       `gorm:"not null;index:idx_comment_submission_created,priority:1" json:"submissionId"`
	Submission   Submission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID       uint       `gorm:"not null;index" json:"authorUserId"`
	ParentID     *uint      `gorm:"index" json:"parentId"` // Nullable for top-level comments
	Replies      []Comment  `gorm:"foreignKey:ParentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time  `gorm:"index:idx_comment_submission_created,priority:2" json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsReply 是否是回复（ParentID 非空）。
func (c Comment) IsReply() bool {
	return c.ParentID != nil
}

// TopLevelComment 顶层评论及其全部回复（按时间正序），回复不单独分页。
type TopLevelComment struct {
	Comment
	Replies []Comment `json:"replies"`
}

// ListParams 顶层评论分页查询参数（存储层用 offset/limit）。
type ListParams struct {
	SubmissionID uint
	Offset       int
	Limit        int
	Desc         bool
}

// CommentPage 一页顶层评论。Pages = ceil(Total / PageSize)。
type CommentPage struct {
	Items    []TopLevelComment `json:"data"`
	Pages    int               `json:"pages"`
	Page     int               `json:"page"`
	PageSize int               `json:"size"`
	Total    int64             `json:"total"`
}
