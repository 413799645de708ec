package models

import (
	"time"
)

// Submission 参赛作品。由外部的作品 CRUD 维护，这里只用来校验存在性。
type Submission struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CompetitionID uint      `gorm:"not null;index" json:"competitionId"`
	UserID        uint      `gorm:"not null;index" json:"userId"`
	Title         string    `gorm:"not null" json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
