package mysql

import (
	"context"
	"errors"
	"sort"
	"time"

	"Coop_Voting/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPollHasVotes = errors.New("poll already has votes")

type PollRepository struct {
	DB *gorm.DB
}

// PollUpdate 为 nil 的字段不修改
type PollUpdate struct {
	Title       *string
	Description *string
	ClosesAt    *time.Time
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// Create 投票和选项一起落库，同事务写 outbox
func (r *PollRepository) Create(ctx context.Context, p *model.Poll) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventPollCreated, p.ID, p.CooperativeID, map[string]any{
			"title":     p.Title,
			"closes_at": p.ClosesAt,
			"options":   len(p.Options),
		})
	})
}

func (r *PollRepository) FindByID(ctx context.Context, id uint64) (*model.Poll, error) {
	var p model.Poll
	err := r.DB.WithContext(ctx).
		Preload("Options", orderedOptions).
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByCooperative 按创建时间倒序
func (r *PollRepository) ListByCooperative(ctx context.Context, coopID uint64) ([]model.Poll, error) {
	var list []model.Poll
	err := r.DB.WithContext(ctx).
		Where("cooperative_id = ?", coopID).
		Preload("Options", orderedOptions).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

// Update 修改标题/描述随时可以；截止时间只能在没有任何投票时修改
func (r *PollRepository) Update(ctx context.Context, p *model.Poll, upd PollUpdate) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.Poll
		// select for update 避免与并发修改交错
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, p.ID).Error; err != nil {
			return err
		}
		fields := map[string]any{}
		if upd.Title != nil {
			fields["title"] = *upd.Title
		}
		if upd.Description != nil {
			fields["description"] = *upd.Description
		}
		if upd.ClosesAt != nil {
			var n int64
			if err := tx.Model(&model.Vote{}).Where("poll_id = ?", p.ID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrPollHasVotes
			}
			fields["closes_at"] = *upd.ClosesAt
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&model.Poll{}).Where("id = ?", p.ID).Updates(fields).Error; err != nil {
			return err
		}
		changed := make([]string, 0, len(fields))
		for k := range fields {
			changed = append(changed, k)
		}
		sort.Strings(changed)
		return insertOutbox(tx, model.EventPollUpdated, p.ID, p.CooperativeID, map[string]any{
			"fields": changed,
		})
	})
}

func (r *PollRepository) CountVotes(ctx context.Context, pollID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Vote{}).Where("poll_id = ?", pollID).Count(&n).Error
	return n, err
}
