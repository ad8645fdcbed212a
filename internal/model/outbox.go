package model

import "time"

const (
	EventPollCreated = "poll_created"
	EventPollUpdated = "poll_updated"
	EventVoteCast    = "vote_cast"
)

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// PollOutbox 投票事件表，与业务写入同事务落库，由 OutboxRelayer 异步投递
type PollOutbox struct {
	ID            uint64 `gorm:"primaryKey"`
	EventType     string `gorm:"size:16;not null"`
	PollID        uint64 `gorm:"not null;index"`
	CooperativeID uint64 `gorm:"not null"`
	Payload       string `gorm:"type:text;not null"`
	Status        int8   `gorm:"not null;default:0;index"` // 0=pending,1=sent,2=failed
	Retry         int    `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PollOutbox) TableName() string { return "poll_outbox" }
