package model

import "time"

type Poll struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	CooperativeID uint64    `gorm:"not null;index:idx_coop_created,priority:1" json:"cooperative_id"`
	CreatorID     *uint64   `gorm:"index" json:"creator_id"` // 创建者被删除后置空
	Title         string    `gorm:"size:200;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	CreatedAt     time.Time `gorm:"index:idx_coop_created,priority:2,sort:desc" json:"created_at"`
	ClosesAt      time.Time `gorm:"not null" json:"closes_at"`
	UpdatedAt     time.Time `json:"-"`
	Options       []Option  `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

// IsOpen 开放状态只由截止时间决定，不落库
func (p *Poll) IsOpen(now time.Time) bool {
	return now.Before(p.ClosesAt)
}

type Option struct {
	ID        uint64 `gorm:"primaryKey" json:"id"`
	PollID    uint64 `gorm:"not null;index" json:"poll_id"`
	Text      string `gorm:"size:200;not null" json:"text"`
	VoteCount int64  `gorm:"not null;default:0" json:"vote_count"` // 冗余计数，与 votes 表同事务更新
}

type Vote struct {
	ID       uint64    `gorm:"primaryKey" json:"id"`
	UserID   uint64    `gorm:"not null;uniqueIndex:uk_vote_user_poll,priority:1" json:"user_id"`
	PollID   uint64    `gorm:"not null;uniqueIndex:uk_vote_user_poll,priority:2;index" json:"poll_id"`
	OptionID uint64    `gorm:"not null;index" json:"option_id"`
	VotedAt  time.Time `gorm:"autoCreateTime" json:"voted_at"`
}
