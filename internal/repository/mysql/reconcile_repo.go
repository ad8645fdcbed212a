package mysql

import (
	"context"

	"Coop_Voting/internal/model"

	"gorm.io/gorm"
)

type TallyReconcilerRepo struct {
	DB *gorm.DB
}

// OptionCounter 对账用的选项计数快照
type OptionCounter struct {
	ID        uint64
	PollID    uint64
	VoteCount int64
}

// ReconcileList 按 id 游标批量取选项
func (r *TallyReconcilerRepo) ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]OptionCounter, uint64, error) {
	var list []OptionCounter
	if err := r.DB.WithContext(ctx).Model(&model.Option{}).
		Select("id", "poll_id", "vote_count").
		Where("id > ?", lastID).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, lastID, err
	}
	if len(list) == 0 {
		return nil, lastID, nil
	}
	return list, list[len(list)-1].ID, nil
}

// RealCounts 从 votes 表统计真实票数，没有票的选项不在结果里
func (r *TallyReconcilerRepo) RealCounts(ctx context.Context, optionIDs []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(optionIDs))
	if len(optionIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		OptionID uint64
		N        int64
	}
	if err := r.DB.WithContext(ctx).Model(&model.Vote{}).
		Select("option_id, COUNT(*) AS n").
		Where("option_id IN ?", optionIDs).
		Group("option_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OptionID] = row.N
	}
	return out, nil
}

// FixVoteCount 用真实值覆盖冗余计数；计数在对账期间被并发修改过则跳过，留给下一轮
func (r *TallyReconcilerRepo) FixVoteCount(ctx context.Context, optionID uint64, seen, actual int64) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Option{}).
		Where("id = ? AND vote_count = ?", optionID, seen).
		UpdateColumn("vote_count", actual)
	return res.RowsAffected == 1, res.Error
}
