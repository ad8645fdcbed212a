package mysql

import (
	"context"
	"errors"

	"Coop_Voting/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDuplicateVote  = errors.New("duplicate vote")
	ErrOptionMismatch = errors.New("option does not belong to poll")
)

type VoteRepository struct {
	DB *gorm.DB
}

// VoterChoice 明细查询：谁投了哪个选项
type VoterChoice struct {
	UserID     uint64
	OptionID   uint64
	Username   string
	Name       string
	UnitNumber string
}

// Cast 插入投票并给选项计数 +1，两个写入同一事务提交。
// (user_id, poll_id) 唯一索引是并发下的最终防线，冲突统一返回 ErrDuplicateVote。
// 投票行加共享锁，与 PollRepository.Update 的排他锁互斥
func (r *VoteRepository) Cast(ctx context.Context, v *model.Vote, coopID uint64) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Poll
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").First(&p, v.PollID).Error; err != nil {
			return err
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		res := tx.Model(&model.Option{}).
			Where("id = ? AND poll_id = ?", v.OptionID, v.PollID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrOptionMismatch
		}
		return insertOutbox(tx, model.EventVoteCast, v.PollID, coopID, map[string]any{
			"user_id":   v.UserID,
			"option_id": v.OptionID,
		})
	})
	if IsDuplicateKey(err) {
		return ErrDuplicateVote
	}
	return err
}

func (r *VoteRepository) HasVoted(ctx context.Context, userID, pollID uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Vote{}).
		Where("user_id = ? AND poll_id = ?", userID, pollID).
		Count(&n).Error
	return n > 0, err
}

// VotedPollIDs 批量查询用户在哪些投票里已经投过
func (r *VoteRepository) VotedPollIDs(ctx context.Context, userID uint64, pollIDs []uint64) (map[uint64]bool, error) {
	out := make(map[uint64]bool, len(pollIDs))
	if len(pollIDs) == 0 {
		return out, nil
	}
	var ids []uint64
	if err := r.DB.WithContext(ctx).Model(&model.Vote{}).
		Where("user_id = ? AND poll_id IN ?", userID, pollIDs).
		Pluck("poll_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// ListChoices 按投票时间排序；已删除的用户不出现在明细里
func (r *VoteRepository) ListChoices(ctx context.Context, pollID uint64) ([]VoterChoice, error) {
	var list []VoterChoice
	err := r.DB.WithContext(ctx).Model(&model.Vote{}).
		Select("votes.user_id, votes.option_id, users.username, users.name, users.unit_number").
		Joins("JOIN users ON users.id = votes.user_id").
		Where("votes.poll_id = ?", pollID).
		Order("votes.voted_at ASC, votes.id ASC").
		Scan(&list).Error
	return list, err
}
